package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/compliance"
	"github.com/caremint/backend/core/target"
	"github.com/caremint/backend/core/user"
	emailsvc "github.com/caremint/backend/services/email"
	"github.com/caremint/backend/storage/database/dummy"
)

const testUserPwd = "Snakes&Ladders1"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	conf    *core.Config
	app     *Server
	usrRepo *dummy.UserRepository
	tgtRepo *dummy.TargetRepository
	usrSvc  user.Service
	tgtSvc  target.Service
}

type testLogger struct {
	t *testing.T
}

func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG %s %v", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO %s %v", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN %s %v", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL %s %v", msg, args) }

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	target.InitValidators(validate, translator)

	usrRepo := dummy.NewUserRepository()
	tgtRepo := dummy.NewTargetRepository()
	dealRepo := dummy.NewDealRepository()
	actRepo := dummy.NewActivityRepository()

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	tgtSvc := target.NewService(nil, tgtRepo, usrRepo)
	evaluator := compliance.NewEvaluator(
		nil, usrRepo, tgtRepo,
		compliance.NewAggregator(dealRepo, actRepo),
		testLogger{t}, conf,
	)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         testLogger{t},
		UserSvc:        usrSvc,
		TargetSvc:      tgtSvc,
		Evaluator:      evaluator,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &testEnv{
		conf:    conf,
		app:     app,
		usrRepo: usrRepo,
		tgtRepo: tgtRepo,
		usrSvc:  usrSvc,
		tgtSvc:  tgtSvc,
	}
}

func (env *testEnv) createUser(t *testing.T, name, uname, email string, roles []string, isActive bool) user.User {
	t.Helper()

	usr := user.User{
		TenantID: "clinic-a",
		Name:     name,
		Username: uname,
		Email:    email,
		Roles:    roles,
	}
	usr.SetActive(isActive)
	if err := usr.SetPassword(testUserPwd); err != nil {
		t.Fatalf("SetPassword(): %v", err)
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(env.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
