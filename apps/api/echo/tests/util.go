package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/mainino/apps/api/echo"
	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/dashboard"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/notification"
	"github.com/trezcool/mainino/core/payment"
	"github.com/trezcool/mainino/core/people"
	emailsvc "github.com/trezcool/mainino/services/email"
	inmemdb "github.com/trezcool/mainino/storage/database/inmem"

	"github.com/go-playground/locales/en"
)

var conf = core.NewTestConfig()

// app holds one fully wired server over the in-memory store, plus the
// fixtures every test addresses by name.
type app struct {
	server *Server

	pplSvc *people.Service
	grpSvc *group.Service
	attSvc *attendance.Service
	pmtSvc *payment.Service
	ntfSvc *notification.Service

	admin   people.Parent // staff
	parent  people.Parent
	kid1    people.Student
	kid2    people.Student
	algebra group.Group
	physics group.Group
}

func setup(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	pplSvc := people.NewService(inmemdb.NewPeopleRepository(db), mailSvc, conf)
	grpSvc := group.NewService(inmemdb.NewGroupRepository(db), nil)
	attSvc := attendance.NewService(inmemdb.NewAttendanceRepository(db))
	pmtSvc := payment.NewService(inmemdb.NewPaymentRepository(db))
	ntfSvc := notification.NewService(inmemdb.NewNotificationRepository(db), nil)
	dashSvc := dashboard.NewService(pplSvc, grpSvc, attSvc, ntfSvc, nil, nil, conf.UpcomingHorizonDays)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	people.InitValidators(validate, translator)
	group.InitValidators(validate, translator)

	a := &app{
		pplSvc: pplSvc,
		grpSvc: grpSvc,
		attSvc: attSvc,
		pmtSvc: pmtSvc,
		ntfSvc: ntfSvc,
		server: NewServer(ServerDeps{
			Conf:            conf,
			Logger:          testLogger{t},
			PeopleSvc:       pplSvc,
			GroupSvc:        grpSvc,
			AttendanceSvc:   attSvc,
			PaymentSvc:      pmtSvc,
			NotificationSvc: ntfSvc,
			DashboardSvc:    dashSvc,
			Validate:        validate,
			Translator:      translator,
			DisableReqLogs:  true,
		}),
	}
	a.seed(t, ctx)
	return a
}

func (a *app) seed(t *testing.T, ctx context.Context) {
	t.Helper()
	var err error

	a.admin, err = a.pplSvc.CreateParent(ctx, people.NewParent{
		Name: "Ad", Surname: "Min", Username: "admin", Email: "admin@test.com",
		Password: "LeP@ssword123", Staff: true,
	})
	die(t, err)
	a.parent, err = a.pplSvc.CreateParent(ctx, people.NewParent{
		Name: "Jane", Surname: "Doe", Username: "jdoe", Email: "jdoe@test.com",
		Password: "LeP@ssword123",
	})
	die(t, err)
	a.kid1, _, err = a.pplSvc.CreateStudent(ctx, people.NewStudent{
		ParentID: a.parent.ID, Name: "Sam", Surname: "Doe", Username: "sam", Email: "sam@test.com",
	})
	die(t, err)
	a.kid2, _, err = a.pplSvc.CreateStudent(ctx, people.NewStudent{
		ParentID: a.parent.ID, Name: "Kim", Surname: "Doe", Username: "kim", Email: "kim@test.com",
	})
	die(t, err)

	_, err = a.pplSvc.CreateTeacher(ctx, people.Teacher{ID: "t1", Name: "Ada", Surname: "Lovelace"})
	die(t, err)

	a.algebra, err = a.grpSvc.Create(ctx, group.NewGroup{
		Name: "Algebra", Subject: "Math", Level: "S1", TeacherID: "t1",
		TimeSlots: []group.TimeSlot{{Day: "Monday", StartTime: "10:00", EndTime: "11:00"}},
	})
	die(t, err)
	a.physics, err = a.grpSvc.Create(ctx, group.NewGroup{
		Name: "Physics", Subject: "Science", Level: "S1", TeacherID: "t1",
		TimeSlots: []group.TimeSlot{{Day: "Tuesday", StartTime: "14:00", EndTime: "15:00"}},
	})
	die(t, err)
	die(t, a.grpSvc.Enroll(ctx, a.algebra.ID, a.kid1.ID))
	die(t, a.grpSvc.Enroll(ctx, a.algebra.ID, a.kid2.ID))
	die(t, a.grpSvc.Enroll(ctx, a.physics.ID, a.kid1.ID))
}

func die(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seeding fixtures: %v", err)
	}
}

func newTranslator() ut.Translator {
	lang := en.New()
	u := ut.New(lang, lang)
	translator, _ := u.GetTranslator("en")
	return translator
}

// testLogger funnels app logs through the test output.
type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG "+msg, args...) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO "+msg, args...) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN "+msg, args...) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL %s %v", msg, args) }

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

var errMissingToken = mustMarshal(map[string]interface{}{"success": false, "error": "missing or malformed jwt"})

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getParentToken(t *testing.T, p people.Parent) string {
	token, err := GenerateToken(GetParentClaims(p, conf), conf)
	if err != nil {
		t.Fatalf("getParentToken(): %v", err)
	}
	return token
}

func getStudentToken(t *testing.T, s people.Student) string {
	token, err := GenerateToken(GetStudentClaims(s, conf), conf)
	if err != nil {
		t.Fatalf("getStudentToken(): %v", err)
	}
	return token
}

// okData wraps a payload in the success envelope.
func okData(t *testing.T, data interface{}) []byte {
	t.Helper()
	return marchallObj(t, map[string]interface{}{"success": true, "data": data})
}

// errData wraps an error payload in the failure envelope.
func errData(t *testing.T, msg interface{}) []byte {
	t.Helper()
	return marchallObj(t, map[string]interface{}{"success": false, "error": msg})
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func mustMarshal(obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		if rec.Body.Len() > 0 {
			t.Errorf("failed! data = %v; want empty body", rec.Body.String())
		}
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
