package testutil

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

// Route names accepted by FakeBackend.Fail.
const (
	RouteMyClasses     = "my-classes"
	RouteClassStudents = "class-students"
	RouteStudents      = "students"
	RouteRecords       = "records"
	RouteSave          = "save"
)

type Student struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Roll      string `json:"rollNumber"`
	ClassID   string `json:"-"`
}

// FakeBackend is an in-memory school REST backend.
type FakeBackend struct {
	mu        sync.Mutex
	students  []Student
	myClasses map[string]bool
	records   map[attendance.SessionKey]map[string]string
	saves     []attendance.SavePayload
	failures  map[string]int
	hits      map[string]int
	delays    map[string]chan struct{}

	Server *httptest.Server
}

func NewFakeBackend() *FakeBackend {
	f := &FakeBackend{
		myClasses: make(map[string]bool),
		records:   make(map[attendance.SessionKey]map[string]string),
		failures:  make(map[string]int),
		hits:      make(map[string]int),
		delays:    make(map[string]chan struct{}),
	}

	app := echo.New()
	app.HideBanner = true
	app.GET("/teachers/me/classes", f.handle(RouteMyClasses, f.myClassesHandler))
	app.GET("/classes/:classId/students", f.handle(RouteClassStudents, f.classStudentsHandler))
	app.GET("/students", f.handle(RouteStudents, f.studentsHandler))
	app.GET("/attendance/class/:classId", f.handle(RouteRecords, f.recordsHandler))
	app.POST("/attendance/bulk", f.handle(RouteSave, f.saveHandler))

	f.Server = httptest.NewServer(app)
	return f
}

func (f *FakeBackend) Close() { f.Server.Close() }

// Config points a backend client at the fake.
func (f *FakeBackend) Config() core.BackendConfig {
	return BackendConfig(f.Server.URL)
}

// BackendConfig returns the default backend paths rooted at baseURL.
func BackendConfig(baseURL string) core.BackendConfig {
	return core.BackendConfig{
		BaseURL: baseURL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
		Paths: core.BackendPaths{
			MyClasses:     "/teachers/me/classes",
			ClassStudents: "/classes/{classId}/students",
			Students:      "/students",
			Records:       "/attendance/class/{classId}",
			Save:          "/attendance/bulk",
		},
	}
}

func (f *FakeBackend) AddStudents(classID string, students ...Student) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range students {
		s.ClassID = classID
		f.students = append(f.students, s)
	}
}

// Own lists classID among the caller's own classes.
func (f *FakeBackend) Own(classID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.myClasses[classID] = true
}

func (f *FakeBackend) SetRecords(key attendance.SessionKey, statuses map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = statuses
}

// Fail makes route answer with code until Fail(route, 0) is called.
func (f *FakeBackend) Fail(route string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == 0 {
		delete(f.failures, route)
		return
	}
	f.failures[route] = code
}

// Hold blocks route until the returned func is called.
func (f *FakeBackend) Hold(route string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.delays[route] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.delays, route)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *FakeBackend) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

func (f *FakeBackend) Saves() []attendance.SavePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]attendance.SavePayload{}, f.saves...)
}

func (f *FakeBackend) handle(route string, h echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		f.mu.Lock()
		f.hits[route]++
		code := f.failures[route]
		hold := f.delays[route]
		f.mu.Unlock()

		if hold != nil {
			<-hold
		}
		if code != 0 {
			return ctx.JSON(code, echo.Map{"error": http.StatusText(code)})
		}
		return h(ctx)
	}
}

func (f *FakeBackend) inClass(classID string) []Student {
	out := make([]Student, 0)
	for _, s := range f.students {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	return out
}

func (f *FakeBackend) myClassesHandler(ctx echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.myClasses))
	for id := range f.myClasses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	classes := make([]echo.Map, 0, len(ids))
	for _, id := range ids {
		classes = append(classes, echo.Map{"id": id, "name": "Class " + id, "students": f.inClass(id)})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "classes": classes})
}

func (f *FakeBackend) classStudentsHandler(ctx echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ctx.JSON(http.StatusOK, echo.Map{"students": f.inClass(ctx.Param("classId"))})
}

func (f *FakeBackend) studentsHandler(ctx echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := make([]echo.Map, 0, len(f.students))
	for _, s := range f.students {
		data = append(data, echo.Map{
			"_id": s.ID, "firstName": s.FirstName, "lastName": s.LastName, "rollNumber": s.Roll,
			"class": echo.Map{"id": s.ClassID},
		})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": data})
}

func (f *FakeBackend) recordsHandler(ctx echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := attendance.SessionKey{ClassID: ctx.Param("classId"), Date: ctx.QueryParam("date")}
	statuses, ok := f.records[key]
	if !ok {
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": "no attendance for this date"})
	}
	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entries := make([]echo.Map, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, echo.Map{"student": echo.Map{"_id": id}, "status": statuses[id]})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"attendance": entries})
}

func (f *FakeBackend) saveHandler(ctx echo.Context) error {
	var payload attendance.SavePayload
	if err := ctx.Bind(&payload); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, payload)
	statuses := make(map[string]string, len(payload.Attendance))
	for _, a := range payload.Attendance {
		statuses[a.StudentID] = string(a.Status)
	}
	f.records[attendance.SessionKey{ClassID: payload.ClassID, Date: payload.Date}] = statuses
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true})
}
