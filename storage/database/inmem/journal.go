package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

type journalRepository struct {
	mutex sync.RWMutex
	table map[attendance.SessionKey][]attendance.SaveReceipt
}

var _ attendance.Journal = (*journalRepository)(nil)

func NewJournalRepository() *journalRepository {
	return &journalRepository{table: make(map[attendance.SessionKey][]attendance.SaveReceipt)}
}

func (repo *journalRepository) RecordSave(_ context.Context, r attendance.SaveReceipt) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	repo.table[r.Key()] = append(repo.table[r.Key()], r)
	return nil
}

func (repo *journalRepository) LastSave(_ context.Context, key attendance.SessionKey) (attendance.SaveReceipt, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	receipts := repo.table[key]
	if len(receipts) == 0 {
		return attendance.SaveReceipt{}, attendance.ErrNotFound
	}
	last := receipts[0]
	for _, r := range receipts[1:] {
		if !r.SavedAt.Before(last.SavedAt) {
			last = r
		}
	}
	return last, nil
}

// History returns the receipts of key, newest first.
func (repo *journalRepository) History(_ context.Context, key attendance.SessionKey) ([]attendance.SaveReceipt, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	receipts := repo.table[key]
	out := make([]attendance.SaveReceipt, 0, len(receipts))
	for i := len(receipts) - 1; i >= 0; i-- {
		out = append(out, receipts[i])
	}
	return out, nil
}
