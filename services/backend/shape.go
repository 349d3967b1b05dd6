package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

type object = map[string]interface{}

// extractList finds the list of objects carried by a loosely-typed response:
// a bare array, one of the preferred keys, or else the first array-valued property in document order.
// Non-object items are skipped. attendance.ErrNotApplicable is returned when no array is found.
func extractList(raw json.RawMessage, keys ...string) ([]object, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.Wrap(attendance.ErrNotApplicable, "empty body")
	}

	switch raw[0] {
	case '[':
		return decodeObjects(raw)
	case '{':
		props, err := orderedProperties(raw)
		if err != nil {
			return nil, errors.Wrap(attendance.ErrNotApplicable, err.Error())
		}
		for _, key := range keys {
			for _, p := range props {
				if p.name == key && isArray(p.value) {
					return decodeObjects(p.value)
				}
			}
		}
		for _, p := range props {
			if isArray(p.value) {
				return decodeObjects(p.value)
			}
		}
	}
	return nil, errors.Wrap(attendance.ErrNotApplicable, "no list in response")
}

type property struct {
	name  string
	value json.RawMessage
}

// orderedProperties keeps the JSON object's key order, unlike decoding into a map.
func orderedProperties(raw json.RawMessage) ([]property, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // {
		return nil, err
	}
	var props []property
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value json.RawMessage
		if err = dec.Decode(&value); err != nil {
			return nil, err
		}
		props = append(props, property{name: name, value: value})
	}
	return props, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func decodeObjects(raw json.RawMessage) ([]object, error) {
	var items []interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, errors.Wrap(attendance.ErrNotApplicable, err.Error())
	}
	objs := make([]object, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(object); ok {
			objs = append(objs, obj)
		}
	}
	return objs, nil
}

func decodeObject(raw json.RawMessage) (object, error) {
	var obj object
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, errors.Wrap(attendance.ErrNotApplicable, err.Error())
	}
	return obj, nil
}

// str renders scalar JSON values (strings and numbers) as strings.
func str(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return fmt.Sprintf("%v", val)
	case bool:
		return fmt.Sprintf("%t", val)
	}
	return ""
}

// firstStr returns the first non-empty scalar among keys.
func firstStr(obj object, keys ...string) string {
	for _, k := range keys {
		if s := str(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

// idOf reads an identifier from an ID field or from a nested object's ID field.
func idOf(v interface{}) string {
	if obj, ok := v.(object); ok {
		return firstStr(obj, "id", "_id")
	}
	return str(v)
}

func toRosterEntry(obj object) (attendance.RosterEntry, bool) {
	id := firstStr(obj, "id", "_id", "studentId", "student_id")
	if id == "" {
		return attendance.RosterEntry{}, false
	}

	name := firstStr(obj, "name", "fullName", "full_name", "displayName")
	if name == "" {
		name = strings.TrimSpace(firstStr(obj, "firstName", "first_name") + " " + firstStr(obj, "lastName", "last_name"))
	}
	if name == "" {
		if usr, ok := obj["user"].(object); ok {
			name = firstStr(usr, "name", "fullName", "username")
		}
	}

	return attendance.RosterEntry{
		StudentID:     id,
		DisplayName:   name,
		StudentNumber: firstStr(obj, "studentNumber", "student_number", "rollNumber", "admissionNumber", "number"),
	}, true
}

func toRoster(objs []object) attendance.Roster {
	roster := make(attendance.Roster, 0, len(objs))
	for _, obj := range objs {
		if e, ok := toRosterEntry(obj); ok {
			roster = append(roster, e)
		}
	}
	return roster
}

// classIDOf matches a flat classId field or a nested class object.
func classIDOf(obj object) string {
	if id := firstStr(obj, "classId", "class_id"); id != "" {
		return id
	}
	return idOf(obj["class"])
}
