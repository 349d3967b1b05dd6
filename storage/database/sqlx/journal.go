package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

type journalRow struct {
	ClassID     string      `db:"class_id"`
	SessionDate time.Time   `db:"session_date"`
	Total       int         `db:"total"`
	Present     int         `db:"present"`
	Absent      int         `db:"absent"`
	Late        int         `db:"late"`
	Defaulted   int         `db:"defaulted"`
	SavedBy     null.String `db:"saved_by"`
	SavedAt     time.Time   `db:"saved_at"`
}

func (row journalRow) receipt() attendance.SaveReceipt {
	return attendance.SaveReceipt{
		ClassID:   row.ClassID,
		Date:      row.SessionDate.Format(core.DateLayout),
		Total:     row.Total,
		Present:   row.Present,
		Absent:    row.Absent,
		Late:      row.Late,
		Defaulted: row.Defaulted,
		SavedBy:   row.SavedBy.String,
		SavedAt:   row.SavedAt.UTC(),
	}
}

type journalRepository struct {
	db *sqlx.DB
}

var _ attendance.Journal = (*journalRepository)(nil)

func NewJournalRepository(db *sqlx.DB) attendance.Journal {
	return &journalRepository{db: db}
}

func (repo *journalRepository) RecordSave(ctx context.Context, r attendance.SaveReceipt) error {
	day, err := time.Parse(core.DateLayout, r.Date)
	if err != nil {
		return errors.Wrap(err, "parsing session date")
	}
	row := journalRow{
		ClassID:     r.ClassID,
		SessionDate: day,
		Total:       r.Total,
		Present:     r.Present,
		Absent:      r.Absent,
		Late:        r.Late,
		Defaulted:   r.Defaulted,
		SavedBy:     null.NewString(r.SavedBy, r.SavedBy != ""),
		SavedAt:     r.SavedAt,
	}
	q := `INSERT INTO save_journal (class_id, session_date, total, present, absent, late, defaulted, saved_by, saved_at)
		VALUES (:class_id, :session_date, :total, :present, :absent, :late, :defaulted, :saved_by, :saved_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return errors.Wrap(err, "inserting save receipt")
	}
	return nil
}

func (repo *journalRepository) LastSave(ctx context.Context, key attendance.SessionKey) (attendance.SaveReceipt, error) {
	day, err := time.Parse(core.DateLayout, key.Date)
	if err != nil {
		return attendance.SaveReceipt{}, errors.Wrap(err, "parsing session date")
	}
	var row journalRow
	q := `SELECT class_id, session_date, total, present, absent, late, defaulted, saved_by, saved_at
		FROM save_journal WHERE class_id = $1 AND session_date = $2
		ORDER BY saved_at DESC LIMIT 1`
	if err = repo.db.GetContext(ctx, &row, q, key.ClassID, day); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.SaveReceipt{}, attendance.ErrNotFound
		}
		return attendance.SaveReceipt{}, errors.Wrap(err, "querying last save receipt")
	}
	return row.receipt(), nil
}

// History returns the receipts of key, newest first.
func (repo *journalRepository) History(ctx context.Context, key attendance.SessionKey) ([]attendance.SaveReceipt, error) {
	day, err := time.Parse(core.DateLayout, key.Date)
	if err != nil {
		return nil, errors.Wrap(err, "parsing session date")
	}
	var rows []journalRow
	q := `SELECT class_id, session_date, total, present, absent, late, defaulted, saved_by, saved_at
		FROM save_journal WHERE class_id = $1 AND session_date = $2
		ORDER BY saved_at DESC`
	if err = repo.db.SelectContext(ctx, &rows, q, key.ClassID, day); err != nil {
		return nil, errors.Wrap(err, "querying save receipts")
	}
	receipts := make([]attendance.SaveReceipt, 0, len(rows))
	for _, row := range rows {
		receipts = append(receipts, row.receipt())
	}
	return receipts, nil
}
