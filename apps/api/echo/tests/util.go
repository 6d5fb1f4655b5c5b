package tests

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/jifunze/apps/api/echo"
	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/activity"
	"github.com/trezcool/jifunze/core/progress"
	"github.com/trezcool/jifunze/core/session"
	"github.com/trezcool/jifunze/services/cache"
	"github.com/trezcool/jifunze/services/email"
	"github.com/trezcool/jifunze/services/logger"
	"github.com/trezcool/jifunze/services/metrics"
	"github.com/trezcool/jifunze/storage/database/inmem"
	"github.com/trezcool/jifunze/tests"
)

var (
	errMissingToken = httpErr{Error: "Access denied. No token provided."}
	errInvalidToken = httpErr{Error: "Invalid or expired token."}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testApp struct {
	*Server
	accRepo  account.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
	sessions *session.Manager
}

func setup(t *testing.T, opts ...func(conf *core.Config)) testApp {
	t.Helper()
	conf := core.NewTestConfig()
	for _, opt := range opts {
		opt(conf)
	}

	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "API : ", log.LstdFlags), conf)
	logger.Enable(false)

	// set up DB & repos
	db := inmemdb.Open()
	accRepo := inmemdb.NewAccountRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	accSvc := account.NewService(accRepo, cache.NewMemoryStore(), mailSvc, conf)
	sessions := session.NewManager(conf)
	validate, translator := testutil.NewValidator()

	// set up server
	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		AccountSvc: accSvc,
		Sessions:   sessions,
		Recorder:   activity.NewRecorder(inmemdb.NewActivityRepository(db), accSvc),
		Aggregator: progress.NewAggregator(inmemdb.NewProgressRepository(db), accSvc),
		Metrics:    metrics.New(),
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = server.Close() })

	return testApp{
		Server:   server,
		accRepo:  accRepo,
		mailSvc:  mailSvc,
		sessions: sessions,
	}
}

func (app testApp) getToken(t *testing.T, p account.Principal) string {
	t.Helper()
	token, _, err := app.sessions.Issue(p)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// serve runs the request described by tt and checks the response.
func (app testApp) serve(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
	return rec
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
	wantData []byte // not checked when nil
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	if method == "" {
		method = http.MethodGet
	}
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
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; data = %v", rec.Code, tt.wantCode, rec.Body.String())
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

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}

func itoa(i int) string { return strconv.Itoa(i) }
