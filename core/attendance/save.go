package attendance

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
)

var nowFunc = time.Now // mockable

type (
	// Saver persists a full session snapshot.
	Saver interface {
		SaveAttendance(ctx context.Context, payload SavePayload) error
	}

	// Journal keeps a receipt of every successful save.
	// LastSave returns ErrNotFound when the session was never saved.
	Journal interface {
		RecordSave(ctx context.Context, receipt SaveReceipt) error
		LastSave(ctx context.Context, key SessionKey) (SaveReceipt, error)
		// History returns the receipts of key, newest first.
		History(ctx context.Context, key SessionKey) ([]SaveReceipt, error)
	}

	SaveResult struct {
		Payload SavePayload
		Receipt SaveReceipt
	}
)

// SaveCoordinator validates, confirms and submits attendance snapshots.
type SaveCoordinator struct {
	saver      Saver
	journal    Journal
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
	actor      string
}

type SaveCoordinatorDeps struct {
	Saver      Saver
	Journal    Journal // optional
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
	Actor      string // recorded as SaveReceipt.SavedBy
}

func NewSaveCoordinator(deps SaveCoordinatorDeps) *SaveCoordinator {
	return &SaveCoordinator{
		saver:      deps.Saver,
		journal:    deps.Journal,
		validate:   deps.Validate,
		translator: deps.Translator,
		logger:     deps.Logger,
		actor:      deps.Actor,
	}
}

// BuildPayload creates one entry per roster student, in roster order.
// Students missing from rec are submitted as absent; the count of those is returned.
func BuildPayload(key SessionKey, rec Record, roster Roster) (SavePayload, int) {
	payload := SavePayload{
		ClassID:    key.ClassID,
		Date:       key.Date,
		Attendance: make([]AttendanceEntry, 0, len(roster)),
	}
	var defaulted int
	for _, e := range roster {
		st, ok := rec[e.StudentID]
		if !ok {
			st = StatusAbsent
			defaulted++
		}
		payload.Attendance = append(payload.Attendance, AttendanceEntry{StudentID: e.StudentID, Status: st})
	}
	return payload, defaulted
}

// Save submits the snapshot rec of roster for key.
// Preconditions are checked in order: complete key, non-empty rec, then user confirmation when students are unmarked.
// Declining returns ErrSaveDeclined without any side effect.
// Backend failures are returned as *PersistenceError.
func (c *SaveCoordinator) Save(ctx context.Context, key SessionKey, rec Record, roster Roster, confirm Confirmer) (SaveResult, error) {
	if !key.Complete() {
		return SaveResult{}, core.NewValidationError(errSelectClassAndDate)
	}
	rec = rec.Restrict(roster)
	if len(rec) == 0 {
		return SaveResult{}, core.NewValidationError(errMarkOneStudent)
	}

	stats := ComputeStats(roster, rec)
	if stats.Unmarked > 0 {
		prompt := fmt.Sprintf("%d of %d students are not marked and will be saved as absent. Save anyway?", stats.Unmarked, stats.Total)
		if confirm == nil || !confirm.Confirm(ctx, prompt) {
			return SaveResult{}, ErrSaveDeclined
		}
	}

	payload, defaulted := BuildPayload(key, rec, roster)
	if c.validate != nil {
		if err := c.validate.Struct(payload); err != nil {
			return SaveResult{}, core.TranslateValidationErrors(err, c.translator)
		}
	}

	if err := c.saver.SaveAttendance(ctx, payload); err != nil {
		return SaveResult{}, &PersistenceError{Err: err}
	}

	saved := ComputeStats(roster, payload.Record())
	receipt := SaveReceipt{
		ClassID:   key.ClassID,
		Date:      key.Date,
		Total:     saved.Total,
		Present:   saved.Present,
		Absent:    saved.Absent,
		Late:      saved.Late,
		Defaulted: defaulted,
		SavedBy:   c.actor,
		SavedAt:   nowFunc().UTC(),
	}
	if c.journal != nil {
		if err := c.journal.RecordSave(ctx, receipt); err != nil {
			c.logger.Error("recording save receipt", errors.Wrap(err, "journal"), map[string]interface{}{
				"class_id": key.ClassID, "date": key.Date,
			})
		}
	}
	return SaveResult{Payload: payload, Receipt: receipt}, nil
}

// History lists the journaled saves of key, newest first.
func (c *SaveCoordinator) History(ctx context.Context, key SessionKey) ([]SaveReceipt, error) {
	if c.journal == nil {
		return []SaveReceipt{}, nil
	}
	return c.journal.History(ctx, key)
}

// LastSaved returns the time of the last journaled save of key, zero when unknown.
func (c *SaveCoordinator) LastSaved(ctx context.Context, key SessionKey) time.Time {
	if c.journal == nil {
		return time.Time{}
	}
	receipt, err := c.journal.LastSave(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("reading save journal", err)
		}
		return time.Time{}
	}
	return receipt.SavedAt
}
