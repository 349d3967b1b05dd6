package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
	inmemdb "github.com/trezcool/masomo-attendance/storage/database/inmem"
	"github.com/trezcool/masomo-attendance/tests"
)

const sessionDate = "2024-03-04"

type httpErr struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func setup(t *testing.T) (*Server, *testutil.FakeBackend) {
	t.Helper()

	fb := testutil.NewFakeBackend()
	t.Cleanup(fb.Close)
	fb.AddStudents("c1",
		testutil.Student{ID: "s1", FirstName: "Ann", LastName: "Lee", Roll: "001"},
		testutil.Student{ID: "s2", FirstName: "Ben", LastName: "Kay", Roll: "002"},
		testutil.Student{ID: "s3", FirstName: "Cleo", LastName: "Moss", Roll: "003"},
	)
	fb.AddStudents("c2", testutil.Student{ID: "s4", FirstName: "Dan", LastName: "Ode", Roll: "004"})

	conf := &core.Config{
		TestMode: true,
		AppName:  "Masomo Attendance",
		Server:   core.ServerConfig{SessionTTL: time.Hour},
	}
	validate, translator := testutil.NewValidator()
	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logsvc.NewDiscardLogger(),
		Sessions:   testutil.NewSessionFactory(t, fb, inmemdb.NewJournalRepository()),
		Validate:   validate,
		Translator: translator,
	})
	return server, fb
}

func do(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// openSession creates a session of class c1 and returns its path.
func openSession(t *testing.T, server *Server) (string, SessionResponse) {
	t.Helper()
	rec := do(t, server, http.MethodPost, "/v1/sessions", echoMap{"class_id": "c1", "date": sessionDate})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp SessionResponse
	decode(t, rec, &resp)
	return "/v1/sessions/" + resp.ID, resp
}

type echoMap map[string]interface{}

func TestServer_home(t *testing.T) {
	server, _ := setup(t)

	rec := do(t, server, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo Attendance!", rec.Body.String())
}

func Test_sessionApi_create(t *testing.T) {
	t.Run("without key", func(t *testing.T) {
		server, _ := setup(t)

		rec := do(t, server, http.MethodPost, "/v1/sessions", nil)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp SessionResponse
		decode(t, rec, &resp)
		_, err := uuid.Parse(resp.ID)
		assert.NoError(t, err)
		assert.True(t, resp.Key.IsZero())
		assert.Empty(t, resp.Rows)
	})

	t.Run("with key", func(t *testing.T) {
		server, _ := setup(t)

		_, resp := openSession(t, server)

		assert.Equal(t, attendance.SessionKey{ClassID: "c1", Date: sessionDate}, resp.Key)
		assert.Equal(t, attendance.Stats{Total: 3, Marked: 3, Present: 3, Complete: true}, resp.Stats)
		assert.True(t, resp.Dirty)
		assert.Equal(t, attendance.StateDirty, resp.State)
		require.Len(t, resp.Rows, 3)
		assert.Equal(t, attendance.Row{StudentID: "s1", DisplayName: "Ann Lee", StudentNumber: "001", Status: "present", Marked: true}, resp.Rows[0])
	})

	tests := []struct {
		name     string
		body     echoMap
		wantData map[string]string
	}{
		{name: "bad date", body: echoMap{"class_id": "c1", "date": "04/03/2024"}, wantData: map[string]string{"date": "date must be a date formatted as YYYY-MM-DD"}},
		{name: "missing date", body: echoMap{"class_id": "c1"}, wantData: map[string]string{"date": "this field is required"}},
		{name: "blank class", body: echoMap{"class_id": " ", "date": sessionDate}, wantData: map[string]string{"class_id": "this field is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setup(t)

			rec := do(t, server, http.MethodPost, "/v1/sessions", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var data map[string]string
			decode(t, rec, &data)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func Test_sessionApi_notFound(t *testing.T) {
	server, _ := setup(t)

	for _, path := range []string{"/v1/sessions/" + uuid.NewString(), "/v1/sessions/not-a-uuid/diff"} {
		rec := do(t, server, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		var data httpErr
		decode(t, rec, &data)
		assert.Equal(t, "session not found", data.Error)
	}
}

func Test_sessionApi_markAndSave(t *testing.T) {
	server, fb := setup(t)
	path, _ := openSession(t, server)

	// mark
	rec := do(t, server, http.MethodPost, path+"/statuses", echoMap{"student_id": "s2", "status": " Absent "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SessionResponse
	decode(t, rec, &resp)
	assert.Equal(t, attendance.Stats{Total: 3, Marked: 3, Present: 2, Absent: 1, Complete: true}, resp.Stats)

	// invalid marks
	tests := []struct {
		name     string
		body     echoMap
		wantData map[string]string
	}{
		{name: "unknown student", body: echoMap{"student_id": "ghost", "status": "late"}, wantData: map[string]string{"student_id": "student is not on the roster"}},
		{name: "unknown status", body: echoMap{"student_id": "s1", "status": "sick"}, wantData: map[string]string{"status": "status must be one of present, absent or late"}},
		{name: "no student", body: echoMap{"status": "late"}, wantData: map[string]string{"student_id": "this field is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, server, http.MethodPost, path+"/statuses", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var data map[string]string
			decode(t, rec, &data)
			assert.Equal(t, tt.wantData, data)
		})
	}

	// search
	rec = do(t, server, http.MethodGet, path+"?search=ben", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "absent", resp.Rows[0].Status)
	assert.Equal(t, 3, resp.Stats.Total)

	// diff
	rec = do(t, server, http.MethodGet, path+"/diff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var diff DiffResponse
	decode(t, rec, &diff)
	assert.True(t, diff.Dirty)
	assert.Contains(t, diff.Diff, "+s2\t002\tBen Kay\tabsent")

	// save
	rec = do(t, server, http.MethodPost, path+"/save", echoMap{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved SaveResponse
	decode(t, rec, &saved)
	assert.Equal(t, 3, saved.Receipt.Total)
	assert.Equal(t, 1, saved.Receipt.Absent)
	assert.Equal(t, "tester", saved.Receipt.SavedBy)
	assert.False(t, saved.Dirty)
	assert.NotNil(t, saved.LastSavedAt)

	require.Len(t, fb.Saves(), 1)
	assert.Equal(t, attendance.Record{"s1": "present", "s2": "absent", "s3": "present"}, fb.Saves()[0].Record())

	// history
	rec = do(t, server, http.MethodGet, path+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []attendance.SaveReceipt
	decode(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, saved.Receipt.SavedAt.Unix(), history[0].SavedAt.Unix())
}

func Test_sessionApi_saveNeedsConfirmation(t *testing.T) {
	server, fb := setup(t)
	fb.SetRecords(attendance.NewSessionKey("c1", sessionDate), map[string]string{"s1": "late"})
	path, resp := openSession(t, server)
	require.False(t, resp.Dirty)
	require.Equal(t, 2, resp.Stats.Unmarked)

	rec := do(t, server, http.MethodPost, path+"/save", echoMap{"confirm": false})

	assert.Equal(t, http.StatusConflict, rec.Code)
	var data httpErr
	decode(t, rec, &data)
	assert.Equal(t, httpErr{Error: "save declined", Code: "confirmation_required"}, data)
	assert.Empty(t, fb.Saves())

	rec = do(t, server, http.MethodPost, path+"/save", echoMap{"confirm": true})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved SaveResponse
	decode(t, rec, &saved)
	assert.Equal(t, 2, saved.Receipt.Defaulted)
	assert.Equal(t, attendance.Record{"s1": "late", "s2": "absent", "s3": "absent"}, fb.Saves()[0].Record())
}

func Test_sessionApi_guard(t *testing.T) {
	server, _ := setup(t)
	path, resp := openSession(t, server)
	require.True(t, resp.Dirty)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{name: "change key", method: http.MethodPut, path: path + "/key", body: echoMap{"class_id": "c2", "date": sessionDate}},
		{name: "refresh", method: http.MethodPost, path: path + "/refresh", body: echoMap{"confirm": false}},
		{name: "unload", method: http.MethodDelete, path: path},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, server, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusConflict, rec.Code)
			var data httpErr
			decode(t, rec, &data)
			assert.Equal(t, "confirmation_required", data.Code)
		})
	}

	rec := do(t, server, http.MethodDelete, path+"?confirm=lol", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// confirmed key change
	rec = do(t, server, http.MethodPut, path+"/key", echoMap{"class_id": "c2", "date": sessionDate, "confirm": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &resp)
	assert.Equal(t, "c2", resp.Key.ClassID)
	assert.Equal(t, 1, resp.Stats.Total)

	// confirmed unload
	rec = do(t, server, http.MethodDelete, path+"?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, server, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_sessionApi_bulkActions(t *testing.T) {
	server, _ := setup(t)
	path, _ := openSession(t, server)

	rec := do(t, server, http.MethodPost, path+"/mark-all", echoMap{"status": "late"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SessionResponse
	decode(t, rec, &resp)
	assert.Equal(t, 3, resp.Stats.Late)

	rec = do(t, server, http.MethodPost, path+"/mark-all", echoMap{"status": "unmarked"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, server, http.MethodPost, path+"/auto-fill", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var filled AutoFillResponse
	decode(t, rec, &filled)
	assert.Zero(t, filled.Filled)
	assert.Equal(t, 3, filled.Stats.Late)
}

func Test_sessionApi_unselected(t *testing.T) {
	server, _ := setup(t)
	rec := do(t, server, http.MethodPost, "/v1/sessions", nil)
	var resp SessionResponse
	decode(t, rec, &resp)
	path := "/v1/sessions/" + resp.ID

	rec = do(t, server, http.MethodPost, path+"/statuses", echoMap{"student_id": "s1", "status": "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	var data httpErr
	decode(t, rec, &data)
	assert.Equal(t, "select class and date first", data.Error)

	rec = do(t, server, http.MethodPost, path+"/save", echoMap{"confirm": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &data)
	assert.Equal(t, "select class and date", data.Error)

	// nothing to lose
	rec = do(t, server, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_sessionApi_backendFailure(t *testing.T) {
	server, fb := setup(t)
	path, _ := openSession(t, server)
	fb.Fail(testutil.RouteSave, http.StatusInternalServerError)

	rec := do(t, server, http.MethodPost, path+"/save", echoMap{"confirm": true})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var data httpErr
	decode(t, rec, &data)
	assert.Equal(t, "attendance could not be saved, please retry", data.Error)

	// local marks survive
	rec = do(t, server, http.MethodGet, path, nil)
	var resp SessionResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Dirty)
	assert.Equal(t, 3, resp.Stats.Present)
}

func Test_registry(t *testing.T) {
	calls := 0
	reg := newRegistry(50*time.Millisecond, func() *attendance.Session {
		calls++
		return attendance.NewSession(attendance.SessionDeps{})
	})

	id, sess := reg.create()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, reg.count())

	got, err := reg.get(id)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	time.Sleep(100 * time.Millisecond)
	_, err = reg.get(id)
	assert.ErrorIs(t, err, errSessionNotFound)

	id, _ = reg.create()
	reg.delete(id)
	_, err = reg.get(id)
	assert.ErrorIs(t, err, errSessionNotFound)

	forever := newRegistry(0, func() *attendance.Session { return attendance.NewSession(attendance.SessionDeps{}) })
	id, _ = forever.create()
	_, err = forever.get(id)
	assert.NoError(t, err)
}
