package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"

	"github.com/trezcool/masomo-attendance/core"
)

// Notice codes
const (
	NoticeNoStudents         = "no_students"
	NoticeRosterUnavailable  = "roster_unavailable"
	NoticeRecordsUnavailable = "records_unavailable"
	NoticeReconcileFailed    = "reconcile_failed"
)

type (
	// Notice is an informational, non-blocking condition shown alongside the session.
	Notice struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	Row struct {
		StudentID     string `json:"student_id"`
		DisplayName   string `json:"display_name"`
		StudentNumber string `json:"student_number"`
		Status        string `json:"status"` // Unmarked when not in the Record
		Marked        bool   `json:"marked"`
	}

	// View is a rendering snapshot of a session.
	View struct {
		Key         SessionKey `json:"key"`
		State       string     `json:"state"`
		Dirty       bool       `json:"dirty"`
		Search      string     `json:"search,omitempty"`
		Stats       Stats      `json:"stats"`
		Rows        []Row      `json:"rows"`
		Notices     []Notice   `json:"notices"`
		LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
	}

	SessionDeps struct {
		Roster  *RosterLoader
		Records *RecordLoader
		Saves   *SaveCoordinator
		Logger  core.Logger
	}
)

// Session is the attendance marking screen state for one user.
// It is safe for concurrent use; network calls never run under its lock.
type Session struct {
	deps  SessionDeps
	guard NavigationGuard

	mu          sync.Mutex
	key         SessionKey
	generation  uint64 // bumped on every (re)load; results of older loads are discarded
	store       *Store
	notices     []Notice
	lastSavedAt time.Time
}

func NewSession(deps SessionDeps) *Session {
	s := &Session{deps: deps, store: NewStore()}
	s.guard = NewNavigationGuard(s.Dirty)
	return s
}

// Select switches the session to key and loads its roster and records.
// Switching away from unsaved edits needs confirmation like refresh and unload do.
func (s *Session) Select(ctx context.Context, key SessionKey, confirm Confirmer) error {
	key = NewSessionKey(key.ClassID, key.Date)
	if !key.Complete() {
		return core.NewValidationError(errSelectClassAndDate)
	}
	if key.Day().IsZero() {
		return core.NewValidationError(errSelectClassAndDate, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
	}

	if !s.guard.Allow(ctx, confirm) {
		return ErrActionCancelled
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.key = key
	s.store = NewStore()
	s.notices = nil
	s.lastSavedAt = time.Time{}
	rev := s.store.Revision()
	s.mu.Unlock()

	return s.load(ctx, gen, rev, key)
}

// Refresh reloads the roster and records of the current key, discarding local edits once confirmed.
func (s *Session) Refresh(ctx context.Context, confirm Confirmer) error {
	key := s.Key()
	if !key.Complete() {
		return core.NewValidationError(errSelectClassAndDate)
	}
	if !s.guard.Allow(ctx, confirm) {
		return ErrActionCancelled
	}

	s.mu.Lock()
	if s.key != key {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.generation++
	gen := s.generation
	rev := s.store.Revision()
	s.mu.Unlock()

	return s.load(ctx, gen, rev, key)
}

// load fetches roster, records and last save concurrently, then merges them if gen is still current.
// Marks made since rev, while the fetches were in flight, are kept on top of the loaded state.
// Load failures become notices; only ErrSuperseded is returned.
func (s *Session) load(ctx context.Context, gen, rev uint64, key SessionKey) error {
	ctx, span := tracer.Start(ctx, "attendance.Session.load")
	span.SetAttributes(keyAttributes(key)...)
	defer span.End()

	var (
		wg        sync.WaitGroup
		roster    Roster
		rosterErr error
		rec       Record
		recErr    error
		lastSaved time.Time
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		roster, rosterErr = s.deps.Roster.Load(ctx, key.ClassID)
	}()
	go func() {
		defer wg.Done()
		rec, recErr = s.deps.Records.Load(ctx, key)
	}()
	if s.deps.Saves != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lastSaved = s.deps.Saves.LastSaved(ctx, key)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		countStale(ctx)
		s.deps.Logger.Debug("discarding stale session load", map[string]interface{}{"key": key.String()})
		return ErrSuperseded
	}

	var local Record
	editedMeanwhile := s.store.Revision() != rev
	if editedMeanwhile {
		local = s.store.Snapshot()
	}

	notices := make([]Notice, 0)
	if rosterErr != nil {
		s.deps.Logger.Warn("loading roster", rosterErr, map[string]interface{}{"key": key.String()})
		notices = append(notices, Notice{Code: NoticeRosterUnavailable, Message: "The class roster could not be loaded."})
		roster = Roster{}
	}
	s.store.Dispatch(LoadRoster{Roster: roster})

	if recErr != nil {
		s.deps.Logger.Warn("loading attendance records", recErr, map[string]interface{}{"key": key.String()})
		notices = append(notices, Notice{
			Code:    NoticeRecordsUnavailable,
			Message: "Saved attendance could not be loaded; you can still mark attendance.",
		})
	} else {
		s.store.Dispatch(LoadRecords{Record: rec})
	}
	if editedMeanwhile {
		s.store.Dispatch(KeepLocal{Record: local})
	}

	stats := s.store.Stats()
	switch {
	case stats.Total == 0 && rosterErr == nil:
		notices = append(notices, Notice{Code: NoticeNoStudents, Message: "No students are enrolled in this class yet."})
	case stats.Total > 0 && stats.Marked == 0 && recErr == nil && !editedMeanwhile:
		// first view of a session without prior marks
		s.store.Dispatch(AutoFill{})
	}

	s.notices = notices
	if !lastSaved.IsZero() {
		s.lastSavedAt = lastSaved
	}
	return nil
}

// Save submits the current snapshot. Edits made while the save is in flight stay dirty.
func (s *Session) Save(ctx context.Context, confirm Confirmer) (SaveReceipt, error) {
	ctx, span := tracer.Start(ctx, "attendance.Session.save")
	defer span.End()

	s.mu.Lock()
	key := s.key
	gen := s.generation
	snapshot := s.store.Snapshot()
	roster := s.store.Roster()
	revision := s.store.Revision()
	s.mu.Unlock()
	span.SetAttributes(keyAttributes(key)...)

	result, err := s.deps.Saves.Save(ctx, key, snapshot, roster, confirm)
	if err != nil {
		switch {
		case errors.Is(err, ErrSaveDeclined):
			countSave(ctx, "declined")
		case core.IsValidationError(err):
			countSave(ctx, "invalid")
		default:
			countSave(ctx, "failed")
			span.RecordError(err)
			span.SetStatus(codes.Error, "save failed")
			s.deps.Logger.Error("saving attendance", err, map[string]interface{}{"key": key.String()})
		}
		return SaveReceipt{}, err
	}
	countSave(ctx, "saved")

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return result.Receipt, nil
	}
	applied := s.store.Dispatch(SaveSucceeded{Persisted: result.Payload.Record(), Revision: revision})
	s.lastSavedAt = result.Receipt.SavedAt
	rev := s.store.Revision()
	s.mu.Unlock()

	if applied {
		s.reconcile(ctx, gen, key, rev)
	}
	return result.Receipt, nil
}

// reconcile re-reads the records after a save, unless the user has moved on or kept editing.
func (s *Session) reconcile(ctx context.Context, gen uint64, key SessionKey, rev uint64) {
	rec, err := s.deps.Records.Load(ctx, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen || s.store.Revision() != rev {
		countStale(ctx)
		return
	}
	if err != nil || len(rec) == 0 {
		if err != nil {
			s.deps.Logger.Warn("reconciling saved attendance", err, map[string]interface{}{"key": key.String()})
		}
		s.notices = append(s.notices, Notice{
			Code:    NoticeReconcileFailed,
			Message: "Attendance was saved but could not be re-read from the server.",
		})
		return
	}
	s.store.Dispatch(LoadRecords{Record: rec})
}

func (s *Session) SetStatus(studentID string, status Status) error {
	if !status.Valid() {
		return core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
	}
	studentID = core.CleanString(studentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.key.Complete() {
		return ErrNoSession
	}
	if !s.store.Dispatch(SetStatus{StudentID: studentID, Status: status}) {
		return core.NewValidationError(ErrUnknownStudent, core.FieldError{Field: "student_id", Error: ErrUnknownStudent.Error()})
	}
	return nil
}

func (s *Session) MarkAll(status Status) error {
	if !status.Valid() {
		return core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.key.Complete() {
		return ErrNoSession
	}
	s.store.Dispatch(MarkAll{Status: status})
	return nil
}

// AutoFill marks unmarked students present and returns how many were filled.
func (s *Session) AutoFill() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.key.Complete() {
		return 0, ErrNoSession
	}
	before := s.store.Stats().Unmarked
	s.store.Dispatch(AutoFill{})
	return before - s.store.Stats().Unmarked, nil
}

// Close is the unload guard: it fails with ErrActionCancelled while unsaved edits are not confirmed away.
func (s *Session) Close(ctx context.Context, confirm Confirmer) error {
	if !s.guard.Allow(ctx, confirm) {
		return ErrActionCancelled
	}
	return nil
}

func (s *Session) Key() SessionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Dirty()
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Stats()
}

func (s *Session) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

func (s *Session) Diff() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Diff()
}

func (s *Session) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt
}

// View renders the session; search only narrows the rows, never the stats or the Record.
func (s *Session) View(search string) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Key:     s.key,
		State:   s.store.State(),
		Dirty:   s.store.Dirty(),
		Search:  core.CleanString(search),
		Stats:   s.store.Stats(),
		Notices: append([]Notice{}, s.notices...),
	}
	for _, e := range s.store.roster.Filter(search) {
		row := Row{StudentID: e.StudentID, DisplayName: e.DisplayName, StudentNumber: e.StudentNumber, Status: Unmarked}
		if st, ok := s.store.Status(e.StudentID); ok {
			row.Status = st.String()
			row.Marked = true
		}
		v.Rows = append(v.Rows, row)
	}
	if v.Rows == nil {
		v.Rows = []Row{}
	}
	if !s.lastSavedAt.IsZero() {
		t := s.lastSavedAt
		v.LastSavedAt = &t
	}
	return v
}

// History lists the journaled saves of the current key, newest first.
func (s *Session) History(ctx context.Context) ([]SaveReceipt, error) {
	key := s.Key()
	if !key.Complete() {
		return nil, ErrNoSession
	}
	return s.deps.Saves.History(ctx, key)
}
