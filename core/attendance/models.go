package attendance

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
)

// Statuses
const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// Unmarked is only a display value: an unmarked student has no entry in the Record.
const Unmarked = "unmarked"

var (
	Statuses = []Status{StatusPresent, StatusAbsent, StatusLate}

	ErrInvalidStatus = errors.New("invalid attendance status")
)

// Status is the persisted attendance status of a student for a session.
type Status string

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(s string) (Status, error) {
	st := Status(core.CleanString(s, true /* lower */))
	if !st.Valid() {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

// SessionKey identifies exactly one attendance session.
type SessionKey struct {
	ClassID string `json:"class_id" validate:"required,notblank"`
	Date    string `json:"date" validate:"required,isodate"` // YYYY-MM-DD
}

func NewSessionKey(classID, date string) SessionKey {
	return SessionKey{ClassID: core.CleanString(classID), Date: core.CleanString(date)}
}

func (k SessionKey) IsZero() bool { return k.ClassID == "" && k.Date == "" }

// Complete reports whether both parts are set; loads and saves are refused otherwise.
func (k SessionKey) Complete() bool { return k.ClassID != "" && k.Date != "" }

func (k SessionKey) String() string { return k.ClassID + "@" + k.Date }

// Day returns the session date. Zero when the date is malformed.
func (k SessionKey) Day() time.Time {
	d, _ := time.Parse(core.DateLayout, k.Date)
	return d
}

// RosterEntry is an immutable student snapshot for the session's lifetime.
type RosterEntry struct {
	StudentID     string `json:"student_id"`
	DisplayName   string `json:"display_name"`
	StudentNumber string `json:"student_number"`
}

// Roster is the ordered list of students enrolled in the session's class.
type Roster []RosterEntry

func (r Roster) Contains(studentID string) bool {
	for _, e := range r {
		if e.StudentID == studentID {
			return true
		}
	}
	return false
}

func (r Roster) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, e := range r {
		ids = append(ids, e.StudentID)
	}
	return ids
}

// normalized drops entries without an ID and duplicate IDs, keeping the first occurrence.
func (r Roster) normalized() Roster {
	seen := make(map[string]struct{}, len(r))
	out := make(Roster, 0, len(r))
	for _, e := range r {
		e.StudentID = core.CleanString(e.StudentID)
		if e.StudentID == "" {
			continue
		}
		if _, dup := seen[e.StudentID]; dup {
			continue
		}
		seen[e.StudentID] = struct{}{}
		e.DisplayName = core.CleanString(e.DisplayName)
		e.StudentNumber = core.CleanString(e.StudentNumber)
		out = append(out, e)
	}
	return out
}

// Filter returns the entries whose name or number contains search (case-insensitive).
func (r Roster) Filter(search string) Roster {
	search = core.CleanString(search, true /* lower */)
	if search == "" {
		return r
	}
	out := make(Roster, 0, len(r))
	for _, e := range r {
		if strings.Contains(strings.ToLower(e.DisplayName), search) ||
			strings.Contains(strings.ToLower(e.StudentNumber), search) {
			out = append(out, e)
		}
	}
	return out
}

// Record maps studentId to Status. A missing key means unmarked.
type Record map[string]Status

func (rec Record) Clone() Record {
	out := make(Record, len(rec))
	for id, st := range rec {
		out[id] = st
	}
	return out
}

// Restrict returns a copy only keeping valid statuses of students on the roster.
func (rec Record) Restrict(roster Roster) Record {
	out := make(Record, len(rec))
	for _, e := range roster {
		if st, ok := rec[e.StudentID]; ok && st.Valid() {
			out[e.StudentID] = st
		}
	}
	return out
}

func (rec Record) Equal(other Record) bool {
	if len(rec) != len(other) {
		return false
	}
	for id, st := range rec {
		if o, ok := other[id]; !ok || o != st {
			return false
		}
	}
	return true
}

// Keys returns the student IDs in lexical order.
func (rec Record) Keys() []string {
	keys := make([]string, 0, len(rec))
	for id := range rec {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

// Stats are derived on every read, never stored.
type Stats struct {
	Total    int  `json:"total"`
	Marked   int  `json:"marked"`
	Present  int  `json:"present"`
	Absent   int  `json:"absent"`
	Late     int  `json:"late"`
	Unmarked int  `json:"unmarked"`
	Complete bool `json:"complete"`
}

func ComputeStats(roster Roster, rec Record) Stats {
	s := Stats{Total: len(roster)}
	for _, e := range roster {
		st, ok := rec[e.StudentID]
		if !ok {
			continue
		}
		s.Marked++
		switch st {
		case StatusPresent:
			s.Present++
		case StatusAbsent:
			s.Absent++
		case StatusLate:
			s.Late++
		}
	}
	s.Unmarked = s.Total - s.Marked
	s.Complete = s.Marked == s.Total
	return s
}

// AttendanceEntry is one submitted student status.
type AttendanceEntry struct {
	StudentID string `json:"studentId" validate:"required,notblank"`
	Status    Status `json:"status" validate:"attendance_status"`
}

// SavePayload is the full per-session snapshot posted to the backend.
type SavePayload struct {
	ClassID    string            `json:"classId" validate:"required,notblank"`
	Date       string            `json:"date" validate:"required,isodate"`
	Attendance []AttendanceEntry `json:"attendance" validate:"required,min=1,dive"`
}

// Record returns the payload as a Record.
func (p SavePayload) Record() Record {
	rec := make(Record, len(p.Attendance))
	for _, a := range p.Attendance {
		rec[a.StudentID] = a.Status
	}
	return rec
}

// SaveReceipt is appended to the Journal after every successful save.
type SaveReceipt struct {
	ClassID   string    `json:"class_id"`
	Date      string    `json:"date"`
	Total     int       `json:"total"`
	Present   int       `json:"present"`
	Absent    int       `json:"absent"`
	Late      int       `json:"late"`
	Defaulted int       `json:"defaulted"` // unmarked students persisted as absent
	SavedBy   string    `json:"saved_by,omitempty"`
	SavedAt   time.Time `json:"saved_at"` // UTC
}

func (r SaveReceipt) Key() SessionKey { return SessionKey{ClassID: r.ClassID, Date: r.Date} }
