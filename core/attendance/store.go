package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/looplab/fsm"
	"github.com/pmezard/go-difflib/difflib"
)

// Lifecycle states of the Reconciled Record.
const (
	StateClean = "clean"
	StateDirty = "dirty"

	eventEdit = "edit"
	eventSync = "sync"
)

type (
	// Action is a tagged mutation dispatched to a Store.
	Action interface {
		reduce(s *Store) (mutated bool)
	}

	// LoadRoster installs a freshly loaded roster and reverts the Record to the last persisted snapshot.
	// Marks of students no longer enrolled are discarded.
	LoadRoster struct{ Roster Roster }

	// LoadRecords replaces the Record with the statuses fetched from the backend.
	LoadRecords struct{ Record Record }

	// SetStatus upserts one student's status.
	SetStatus struct {
		StudentID string
		Status    Status
	}

	// MarkAll overwrites every roster entry's status.
	MarkAll struct{ Status Status }

	// KeepLocal reinstates marks made while a load was in flight on top of the loaded state.
	KeepLocal struct{ Record Record }

	// AutoFill marks every unmarked roster entry present.
	AutoFill struct{}

	// SaveSucceeded records Persisted as the server state.
	// Revision is the Store revision the save snapshot was taken at.
	SaveSucceeded struct {
		Persisted Record
		Revision  uint64
	}
)

// Store holds the merged view of a session: roster x status x dirty flag.
// A Store is not safe for concurrent use; Session serializes access.
type Store struct {
	roster    Roster
	record    Record
	persisted Record // last-known persisted snapshot
	revision  uint64 // bumped on every mutation
	lifecycle *fsm.FSM
}

func NewStore() *Store {
	return &Store{
		record:    make(Record),
		persisted: make(Record),
		lifecycle: fsm.NewFSM(
			StateClean,
			fsm.Events{
				{Name: eventEdit, Src: []string{StateClean, StateDirty}, Dst: StateDirty},
				{Name: eventSync, Src: []string{StateClean, StateDirty}, Dst: StateClean},
			},
			fsm.Callbacks{},
		),
	}
}

// Dispatch applies a and reports whether the Record changed.
func (s *Store) Dispatch(a Action) bool {
	return a.reduce(s)
}

func (s *Store) transition(event string) {
	// re-entering the current state yields fsm.NoTransitionError; nothing to do then.
	_ = s.lifecycle.Event(context.Background(), event)
}

func (s *Store) edited() {
	s.revision++
	s.transition(eventEdit)
}

func (s *Store) synced() {
	s.transition(eventSync)
}

func (a LoadRoster) reduce(s *Store) bool {
	s.roster = a.Roster.normalized()
	s.persisted = s.persisted.Restrict(s.roster)
	s.record = s.persisted.Clone()
	s.revision++
	s.synced()
	return true
}

func (a LoadRecords) reduce(s *Store) bool {
	s.record = a.Record.Restrict(s.roster)
	s.persisted = s.record.Clone()
	s.revision++
	s.synced()
	return true
}

func (a SetStatus) reduce(s *Store) bool {
	if !a.Status.Valid() || !s.roster.Contains(a.StudentID) {
		return false
	}
	s.record[a.StudentID] = a.Status
	s.edited()
	return true
}

func (a MarkAll) reduce(s *Store) bool {
	if !a.Status.Valid() || len(s.roster) == 0 {
		return false
	}
	for _, e := range s.roster {
		s.record[e.StudentID] = a.Status
	}
	s.edited()
	return true
}

func (a KeepLocal) reduce(s *Store) bool {
	s.record = a.Record.Restrict(s.roster)
	s.revision++
	if s.record.Equal(s.persisted) {
		s.synced()
	} else {
		s.transition(eventEdit)
	}
	return true
}

func (a AutoFill) reduce(s *Store) bool {
	var inserted bool
	for _, e := range s.roster {
		if _, ok := s.record[e.StudentID]; !ok {
			s.record[e.StudentID] = StatusPresent
			inserted = true
		}
	}
	if inserted {
		s.edited()
	}
	return inserted
}

func (a SaveSucceeded) reduce(s *Store) bool {
	s.persisted = a.Persisted.Restrict(s.roster)
	if a.Revision != s.revision {
		// edited while the save was in flight: the newer marks are still unsaved.
		return false
	}
	s.record = s.persisted.Clone()
	s.revision++
	s.synced()
	return true
}

func (s *Store) Roster() Roster {
	out := make(Roster, len(s.roster))
	copy(out, s.roster)
	return out
}

// Snapshot returns a copy of the Reconciled Record.
func (s *Store) Snapshot() Record { return s.record.Clone() }

func (s *Store) Status(studentID string) (Status, bool) {
	st, ok := s.record[studentID]
	return st, ok
}

func (s *Store) Revision() uint64 { return s.revision }

func (s *Store) Dirty() bool { return s.lifecycle.Is(StateDirty) }

func (s *Store) State() string { return s.lifecycle.Current() }

func (s *Store) Stats() Stats { return ComputeStats(s.roster, s.record) }

// Diff renders the unsaved changes as a unified diff, in roster order.
// It returns an empty string when the Record matches the last persisted snapshot.
func (s *Store) Diff() string {
	if s.record.Equal(s.persisted) {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(s.render(s.persisted)),
		B:        difflib.SplitLines(s.render(s.record)),
		FromFile: "saved",
		ToFile:   "local",
		Context:  0,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

func (s *Store) render(rec Record) string {
	var b strings.Builder
	for _, e := range s.roster {
		status := Unmarked
		if st, ok := rec[e.StudentID]; ok {
			status = st.String()
		}
		_, _ = fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", e.StudentID, e.StudentNumber, e.DisplayName, status)
	}
	return b.String()
}
