package attendance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedStore(r Roster, rec Record) *Store {
	s := NewStore()
	s.Dispatch(LoadRoster{Roster: r})
	s.Dispatch(LoadRecords{Record: rec})
	return s
}

func TestStore_AutoFill(t *testing.T) {
	t.Run("first view without marks", func(t *testing.T) {
		s := loadedStore(roster("s1", "s2", "s3"), Record{})
		require.False(t, s.Dirty())

		assert.True(t, s.Dispatch(AutoFill{}))

		stats := s.Stats()
		assert.Equal(t, 3, stats.Present)
		assert.Equal(t, 0, stats.Unmarked)
		assert.True(t, s.Dirty())
	})

	t.Run("keeps existing marks", func(t *testing.T) {
		s := loadedStore(roster("s1", "s2"), Record{"s1": StatusLate})

		assert.True(t, s.Dispatch(AutoFill{}))

		assert.Equal(t, Record{"s1": StatusLate, "s2": StatusPresent}, s.Snapshot())
	})

	t.Run("nothing to fill", func(t *testing.T) {
		s := loadedStore(roster("s1"), Record{"s1": StatusAbsent})

		assert.False(t, s.Dispatch(AutoFill{}))
		assert.False(t, s.Dirty())
	})
}

func TestStore_MarkAll(t *testing.T) {
	s := loadedStore(roster("s1", "s2", "s3", "s4", "s5"), Record{"s1": StatusLate, "s2": StatusPresent})

	assert.True(t, s.Dispatch(MarkAll{Status: StatusAbsent}))

	assert.Equal(t, Stats{Total: 5, Marked: 5, Absent: 5, Complete: true}, s.Stats())
	assert.True(t, s.Dirty())

	assert.False(t, s.Dispatch(MarkAll{Status: "sick"}))
}

func TestStore_SetStatus(t *testing.T) {
	tests := []struct {
		name      string
		studentID string
		status    Status
		want      bool
	}{
		{name: "enrolled student", studentID: "s1", status: StatusLate, want: true},
		{name: "unknown student", studentID: "ghost", status: StatusLate},
		{name: "invalid status", studentID: "s1", status: "sick"},
		{name: "unmarked is not a status", studentID: "s1", status: Unmarked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadedStore(roster("s1", "s2"), Record{})

			assert.Equal(t, tt.want, s.Dispatch(SetStatus{StudentID: tt.studentID, Status: tt.status}))
			assert.Equal(t, tt.want, s.Dirty())
			if tt.want {
				st, ok := s.Status(tt.studentID)
				assert.True(t, ok)
				assert.Equal(t, tt.status, st)
			}
		})
	}
}

func TestStore_StatsAlwaysAddUp(t *testing.T) {
	r := roster("s1", "s2", "s3", "s4", "s5", "s6", "s7")
	s := loadedStore(r, Record{})
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		status := Statuses[rnd.Intn(len(Statuses))]
		if rnd.Intn(10) == 0 {
			s.Dispatch(MarkAll{Status: status})
		} else {
			s.Dispatch(SetStatus{StudentID: r[rnd.Intn(len(r))].StudentID, Status: status})
		}

		stats := s.Stats()
		require.Equal(t, stats.Total, stats.Marked+stats.Unmarked, "step %d", i)
		require.Equal(t, stats.Marked, stats.Present+stats.Absent+stats.Late, "step %d", i)
		require.Equal(t, stats.Unmarked == 0, stats.Complete, "step %d", i)
	}
}

func TestStore_Load(t *testing.T) {
	s := NewStore()
	s.Dispatch(LoadRoster{Roster: Roster{
		{StudentID: " s1 ", DisplayName: "Ann"},
		{StudentID: "s2", DisplayName: "Ben"},
		{StudentID: "s1", DisplayName: "Ann again"},
		{StudentID: "", DisplayName: "nobody"},
	}})
	s.Dispatch(LoadRecords{Record: Record{"s1": StatusPresent, "s9": StatusAbsent, "s2": "sick"}})

	assert.Equal(t, []string{"s1", "s2"}, s.Roster().IDs())
	assert.Equal(t, Record{"s1": StatusPresent}, s.Snapshot(), "marks are filtered to the roster")
	assert.False(t, s.Dirty())
	assert.Equal(t, StateClean, s.State())

	// a reload of the roster reverts unsaved marks
	s.Dispatch(SetStatus{StudentID: "s2", Status: StatusLate})
	require.True(t, s.Dirty())
	s.Dispatch(LoadRoster{Roster: roster("s1", "s2")})
	assert.Equal(t, Record{"s1": StatusPresent}, s.Snapshot())
	assert.False(t, s.Dirty())
	assert.Empty(t, s.Diff())

	// and drops marks of students no longer enrolled
	s.Dispatch(LoadRoster{Roster: roster("s2")})
	assert.Equal(t, Record{}, s.Snapshot())
}

func TestStore_KeepLocal(t *testing.T) {
	tests := []struct {
		name      string
		local     Record
		wantRec   Record
		wantDirty bool
	}{
		{name: "edited", local: Record{"s1": StatusLate, "s9": StatusLate}, wantRec: Record{"s1": StatusLate}, wantDirty: true},
		{name: "same as loaded", local: Record{"s1": StatusAbsent}, wantRec: Record{"s1": StatusAbsent}, wantDirty: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadedStore(roster("s1", "s2"), Record{"s1": StatusAbsent})
			rev := s.Revision()

			assert.True(t, s.Dispatch(KeepLocal{Record: tt.local}))

			assert.Equal(t, tt.wantRec, s.Snapshot())
			assert.Equal(t, tt.wantDirty, s.Dirty())
			assert.Equal(t, tt.wantDirty, s.Diff() != "")
			assert.Greater(t, s.Revision(), rev)
		})
	}
}

func TestStore_MarkAllWithoutRoster(t *testing.T) {
	s := NewStore()

	assert.False(t, s.Dispatch(MarkAll{Status: StatusPresent}))
	assert.False(t, s.Dirty())
	assert.Zero(t, s.Revision())
}

func TestStore_SaveRoundTrip(t *testing.T) {
	s := loadedStore(roster("s1", "s2"), Record{})
	s.Dispatch(SetStatus{StudentID: "s1", Status: StatusLate})
	require.True(t, s.Dirty())

	payload, _ := BuildPayload(SessionKey{ClassID: "c", Date: "2024-03-04"}, s.Snapshot(), s.Roster())
	assert.True(t, s.Dispatch(SaveSucceeded{Persisted: payload.Record(), Revision: s.Revision()}))

	assert.False(t, s.Dirty())
	assert.Equal(t, StateClean, s.State())
	assert.Equal(t, Record{"s1": StatusLate, "s2": StatusAbsent}, s.Snapshot(), "defaulted students show as saved")
	assert.Empty(t, s.Diff())

	s.Dispatch(SetStatus{StudentID: "s2", Status: StatusPresent})
	assert.True(t, s.Dirty())
	assert.Equal(t, StateDirty, s.State())
}

func TestStore_SaveSucceededAfterEdits(t *testing.T) {
	s := loadedStore(roster("s1", "s2"), Record{})
	s.Dispatch(MarkAll{Status: StatusPresent})
	snapshot, rev := s.Snapshot(), s.Revision()

	// edited while the save was in flight
	s.Dispatch(SetStatus{StudentID: "s2", Status: StatusLate})

	assert.False(t, s.Dispatch(SaveSucceeded{Persisted: snapshot, Revision: rev}))
	assert.True(t, s.Dirty())
	assert.Equal(t, Record{"s1": StatusPresent, "s2": StatusLate}, s.Snapshot())
	assert.Contains(t, s.Diff(), "+s2\tN-s2\tStudent s2\tlate")
}

func TestStore_Diff(t *testing.T) {
	s := loadedStore(Roster{
		{StudentID: "s1", DisplayName: "Ann", StudentNumber: "001"},
		{StudentID: "s2", DisplayName: "Ben", StudentNumber: "002"},
	}, Record{"s1": StatusPresent})
	assert.Empty(t, s.Diff())

	s.Dispatch(SetStatus{StudentID: "s2", Status: StatusLate})

	diff := s.Diff()
	assert.Contains(t, diff, "--- saved")
	assert.Contains(t, diff, "+++ local")
	assert.Contains(t, diff, "-s2\t002\tBen\tunmarked")
	assert.Contains(t, diff, "+s2\t002\tBen\tlate")
	assert.NotContains(t, diff, "Ann")

	// back to the saved state
	s.Dispatch(LoadRecords{Record: Record{"s1": StatusPresent, "s2": StatusLate}})
	assert.Empty(t, s.Diff())
}
