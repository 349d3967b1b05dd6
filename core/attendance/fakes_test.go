package attendance

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	logsvc "github.com/trezcool/masomo-attendance/services/logger"
)

var errBoom = errors.New("boom")

func roster(ids ...string) Roster {
	r := make(Roster, 0, len(ids))
	for _, id := range ids {
		r = append(r, RosterEntry{StudentID: id, DisplayName: "Student " + id, StudentNumber: "N-" + id})
	}
	return r
}

// rosterSourceFunc adapts a func to RosterSource and counts calls.
type rosterSourceFunc struct {
	name  string
	fn    func(classID string) (Roster, error)
	mu    sync.Mutex
	calls int
}

func (src *rosterSourceFunc) Name() string { return src.name }

func (src *rosterSourceFunc) FetchRoster(_ context.Context, classID string) (Roster, error) {
	src.mu.Lock()
	src.calls++
	src.mu.Unlock()
	return src.fn(classID)
}

func (src *rosterSourceFunc) Calls() int {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.calls
}

// memBackend is an in-memory school backend.
type memBackend struct {
	mu          sync.Mutex
	rosters     map[string]Roster
	records     map[SessionKey]Record
	rosterErr   error
	recordsErr  error
	saveErr     error
	saves       []SavePayload
	recordGates map[SessionKey]chan struct{}
	recordEnter map[SessionKey]chan struct{}
	saveGate    chan struct{}
	saveEnter   chan struct{}
}

func newMemBackend() *memBackend {
	return &memBackend{
		rosters:     make(map[string]Roster),
		records:     make(map[SessionKey]Record),
		recordGates: make(map[SessionKey]chan struct{}),
		recordEnter: make(map[SessionKey]chan struct{}),
	}
}

func (b *memBackend) Name() string { return "memory" }

func (b *memBackend) FetchRoster(_ context.Context, classID string) (Roster, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rosterErr != nil {
		return nil, b.rosterErr
	}
	return b.rosters[classID], nil
}

func (b *memBackend) FetchRecords(_ context.Context, key SessionKey) (Record, error) {
	b.mu.Lock()
	gate, enter := b.recordGates[key], b.recordEnter[key]
	b.mu.Unlock()
	if enter != nil {
		close(enter)
	}
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recordsErr != nil {
		return nil, b.recordsErr
	}
	rec, ok := b.records[key]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "GET records: 404")
	}
	return rec.Clone(), nil
}

// holdRecords blocks the records fetch of key until release is called; entered is closed once it started.
func (b *memBackend) holdRecords(key SessionKey) (entered <-chan struct{}, release func()) {
	gate, enter := make(chan struct{}), make(chan struct{})
	b.mu.Lock()
	b.recordGates[key] = gate
	b.recordEnter[key] = enter
	b.mu.Unlock()
	return enter, func() {
		b.mu.Lock()
		delete(b.recordGates, key)
		delete(b.recordEnter, key)
		b.mu.Unlock()
		close(gate)
	}
}

// holdSave blocks the next save until release is called.
func (b *memBackend) holdSave() (entered <-chan struct{}, release func()) {
	gate, enter := make(chan struct{}), make(chan struct{})
	b.mu.Lock()
	b.saveGate, b.saveEnter = gate, enter
	b.mu.Unlock()
	return enter, func() { close(gate) }
}

func (b *memBackend) SaveAttendance(_ context.Context, payload SavePayload) error {
	b.mu.Lock()
	gate, enter := b.saveGate, b.saveEnter
	b.saveGate, b.saveEnter = nil, nil
	b.mu.Unlock()
	if enter != nil {
		close(enter)
	}
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves = append(b.saves, payload)
	b.records[SessionKey{ClassID: payload.ClassID, Date: payload.Date}] = payload.Record()
	return nil
}

func (b *memBackend) Saves() []SavePayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SavePayload{}, b.saves...)
}

type memJournal struct {
	mu       sync.Mutex
	receipts []SaveReceipt
	err      error
}

func (j *memJournal) RecordSave(_ context.Context, r SaveReceipt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.receipts = append(j.receipts, r)
	return nil
}

func (j *memJournal) LastSave(ctx context.Context, key SessionKey) (SaveReceipt, error) {
	history, _ := j.History(ctx, key)
	if len(history) == 0 {
		return SaveReceipt{}, ErrNotFound
	}
	return history[0], nil
}

func (j *memJournal) History(_ context.Context, key SessionKey) ([]SaveReceipt, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]SaveReceipt, 0)
	for _, r := range j.receipts {
		if r.Key() == key {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].SavedAt.After(out[k].SavedAt) })
	return out, nil
}

// recordingConfirmer answers with answer and keeps the prompts it was asked.
type recordingConfirmer struct {
	answer  bool
	prompts []string
}

func (c *recordingConfirmer) Confirm(_ context.Context, prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

func newTestCoordinator(b *memBackend, j Journal) *SaveCoordinator {
	validate, translator := newTestValidator()
	return NewSaveCoordinator(SaveCoordinatorDeps{
		Saver:      b,
		Journal:    j,
		Validate:   validate,
		Translator: translator,
		Logger:     logsvc.NewDiscardLogger(),
		Actor:      "tester",
	})
}

func newTestSession(b *memBackend, j Journal) *Session {
	logger := logsvc.NewDiscardLogger()
	return NewSession(SessionDeps{
		Roster:  NewRosterLoader(logger, b),
		Records: NewRecordLoader(b),
		Saves:   newTestCoordinator(b, j),
		Logger:  logger,
	})
}
