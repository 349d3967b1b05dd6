package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

// CheckJournal runs the behaviour every attendance.Journal must have against an empty journal.
func CheckJournal(t *testing.T, journal attendance.Journal) {
	t.Helper()
	ctx := context.Background()
	key := attendance.NewSessionKey("c1", "2024-03-04")
	first := time.Date(2024, 3, 4, 8, 15, 0, 0, time.UTC)

	_, err := journal.LastSave(ctx, key)
	assert.ErrorIs(t, err, attendance.ErrNotFound)
	history, err := journal.History(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, history)

	receipts := []attendance.SaveReceipt{
		{ClassID: "c1", Date: "2024-03-04", Total: 3, Present: 1, Absent: 2, Defaulted: 2, SavedBy: "ann", SavedAt: first},
		{ClassID: "c1", Date: "2024-03-04", Total: 3, Present: 2, Late: 1, SavedAt: first.Add(time.Hour)},
		{ClassID: "c2", Date: "2024-03-04", Total: 1, Present: 1, SavedBy: "ben", SavedAt: first.Add(2 * time.Hour)},
		{ClassID: "c1", Date: "2024-03-05", Total: 3, Absent: 3, SavedBy: "ann", SavedAt: first.Add(24 * time.Hour)},
	}
	for _, r := range receipts {
		require.NoError(t, journal.RecordSave(ctx, r))
	}

	last, err := journal.LastSave(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, receipts[1], last)

	history, err = journal.History(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []attendance.SaveReceipt{receipts[1], receipts[0]}, history)
}
