package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/proctor/apps/api/echo"
	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
	"github.com/trezcool/proctor/services/email"
	"github.com/trezcool/proctor/storage/database/inmem"
	"github.com/trezcool/proctor/storage/evidence"
	"github.com/trezcool/proctor/tests"
)

const (
	roomID     = "algebra-1"
	instructor = "prof-1"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	app    *Server
	conf   *core.Config
	clock  *clock
	svc    *exam.Service
	queue  *evidence.Queue
	logger *testutil.Logger
	token  string // owner of roomID
}

func setup(t *testing.T) *fixture {
	conf := &core.Config{
		AppName:   "Proctor",
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		Proctor: core.ProctorConfig{
			DebounceWindow:    1500 * time.Millisecond,
			StrikeThreshold:   3,
			FrameSampleEvery:  1,
			DownscaleWidth:    320,
			GazeIrisThreshold: 0.012,
			PostureTolerance:  0.08,
			DeviceConfidence:  0.55,
		},
	}

	db, err := inmemdb.Open()
	require.NoError(t, err)
	sink, err := evidence.NewSink(t.TempDir())
	require.NoError(t, err)
	queue := evidence.NewQueue(sink, 1, 16, time.Second)
	t.Cleanup(queue.Close)

	f := &fixture{
		conf:   conf,
		clock:  &clock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)},
		queue:  queue,
		logger: new(testutil.Logger),
	}
	f.svc = exam.NewService(exam.Deps{
		Conf:      conf,
		Logger:    f.logger,
		Rooms:     inmemdb.NewRoomRepository(db),
		Sessions:  inmemdb.NewSessionRepository(db),
		Incidents: inmemdb.NewIncidentRepository(db),
		Evidence:  queue,
		Mailer:    emailsvc.NewConsoleServiceMock(conf),
		Now:       f.clock.Now,
	})

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	proctor.InitValidators(validate, translator)

	f.app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         f.logger,
		ExamSvc:        f.svc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	_, err = f.svc.OpenRoom(proctor.NewRoom{ID: roomID, Subject: "Algebra", InstructorID: instructor})
	require.NoError(t, err)
	f.token = getToken(t, conf, instructor)
	return f
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
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

func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func getToken(t *testing.T, conf *core.Config, instructorID string) string {
	claims := NewInstructorClaims(conf, instructorID, "Prof "+instructorID, instructorID+"@school.test")
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshall(%s): %v", rec.Body.String(), err)
	}
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
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual() failed to compare") {
		assert.True(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
