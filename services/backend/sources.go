package backend

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

var (
	_ attendance.RosterSource = (*MyClassesSource)(nil)
	_ attendance.RosterSource = (*ClassStudentsSource)(nil)
	_ attendance.RosterSource = (*AllStudentsSource)(nil)
	_ attendance.RecordSource = (*RecordsSource)(nil)
	_ attendance.Saver        = (*Saver)(nil)
)

// RosterSources returns the roster fallback chain in the order it must be tried.
func RosterSources(c *Client, paths core.BackendPaths) []attendance.RosterSource {
	return []attendance.RosterSource{
		&MyClassesSource{client: c, path: paths.MyClasses},
		&ClassStudentsSource{client: c, path: paths.ClassStudents},
		&AllStudentsSource{client: c, path: paths.Students},
	}
}

// MyClassesSource reads the students of the class among the caller's own classes.
type MyClassesSource struct {
	client *Client
	path   string
}

func (src *MyClassesSource) Name() string { return "my-classes" }

func (src *MyClassesSource) FetchRoster(ctx context.Context, classID string) (attendance.Roster, error) {
	raw, err := src.client.GetJSON(ctx, expandPath(src.path, classID), nil)
	if err != nil {
		return nil, err
	}
	classes, err := extractList(raw, "classes", "data")
	if err != nil {
		return nil, err
	}
	for _, class := range classes {
		if firstStr(class, "id", "_id", "classId") != classID {
			continue
		}
		students := listOf(class["students"])
		if students == nil {
			return nil, errors.Wrap(attendance.ErrNotApplicable, "class without students list")
		}
		return toRoster(students), nil
	}
	return nil, errors.Wrapf(attendance.ErrNotApplicable, "class %s is not among my classes", classID)
}

// ClassStudentsSource reads the generic class students endpoint.
type ClassStudentsSource struct {
	client *Client
	path   string
}

func (src *ClassStudentsSource) Name() string { return "class-students" }

func (src *ClassStudentsSource) FetchRoster(ctx context.Context, classID string) (attendance.Roster, error) {
	raw, err := src.client.GetJSON(ctx, expandPath(src.path, classID), nil)
	if err != nil {
		return nil, err
	}
	objs, err := extractList(raw, "students", "data")
	if err != nil {
		return nil, err
	}
	return toRoster(objs), nil
}

// AllStudentsSource reads every student and keeps those of the class.
type AllStudentsSource struct {
	client *Client
	path   string
}

func (src *AllStudentsSource) Name() string { return "all-students" }

func (src *AllStudentsSource) FetchRoster(ctx context.Context, classID string) (attendance.Roster, error) {
	raw, err := src.client.GetJSON(ctx, src.path, nil)
	if err != nil {
		return nil, err
	}
	objs, err := extractList(raw, "students", "data")
	if err != nil {
		return nil, err
	}
	inClass := make([]object, 0, len(objs))
	for _, obj := range objs {
		if classIDOf(obj) == classID {
			inClass = append(inClass, obj)
		}
	}
	return toRoster(inClass), nil
}

// RecordsSource reads the saved statuses of a session.
type RecordsSource struct {
	client *Client
	path   string
	logger core.Logger
}

func NewRecordsSource(c *Client, paths core.BackendPaths, logger core.Logger) *RecordsSource {
	return &RecordsSource{client: c, path: paths.Records, logger: logger}
}

// FetchRecords returns attendance.ErrNotFound on 404.
// Unexpected shapes and unknown statuses are logged and skipped.
func (src *RecordsSource) FetchRecords(ctx context.Context, key attendance.SessionKey) (attendance.Record, error) {
	raw, err := src.client.GetJSON(ctx, expandPath(src.path, key.ClassID), url.Values{"date": {key.Date}})
	if err != nil {
		return nil, err
	}

	rec := make(attendance.Record)
	objs, err := extractList(raw, "attendance", "records", "data")
	if err != nil {
		// a session document may nest its entries: {"data": {"attendance": [...]}}
		if doc, dErr := decodeObject(raw); dErr == nil {
			if inner, ok := doc["data"].(object); ok {
				objs = listOf(inner["attendance"])
			}
		}
		if objs == nil {
			src.logger.Warn("attendance records: unexpected response shape", map[string]interface{}{"key": key.String()})
			return rec, nil
		}
	}

	for _, obj := range objs {
		id := firstStr(obj, "studentId", "student_id")
		if id == "" {
			id = idOf(obj["student"])
		}
		status, sErr := attendance.ParseStatus(str(obj["status"]))
		if id == "" || sErr != nil {
			src.logger.Warn("attendance records: skipping entry", sErr, map[string]interface{}{
				"key": key.String(), "student_id": id,
			})
			continue
		}
		rec[id] = status
	}
	return rec, nil
}

func listOf(v interface{}) []object {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	objs := make([]object, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(object); ok {
			objs = append(objs, obj)
		}
	}
	return objs
}

// Saver posts full session snapshots.
type Saver struct {
	client *Client
	path   string
}

func NewSaver(c *Client, paths core.BackendPaths) *Saver {
	return &Saver{client: c, path: paths.Save}
}

func (s *Saver) SaveAttendance(ctx context.Context, payload attendance.SavePayload) error {
	_, err := s.client.PostJSON(ctx, s.path, payload)
	return err
}
