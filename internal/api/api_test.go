package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/ac-controller/db"
	"github.com/thatsimonsguy/ac-controller/internal/dispatcher"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type fakeStatus struct {
	msg model.StatusMessage
	ok  bool
}

func (f *fakeStatus) Last() (model.StatusMessage, bool) { return f.msg, f.ok }

type fakeSubmitter struct {
	msgs []dispatcher.Message
	err  error
}

func (f *fakeSubmitter) Submit(msg dispatcher.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeEvents struct {
	limit  int
	events []db.Event
	err    error
}

func (f *fakeEvents) Recent(limit int) ([]db.Event, error) {
	f.limit = limit
	return f.events, f.err
}

type fakeConn bool

func (f fakeConn) IsConnected() bool { return bool(f) }

type fakeSensor bool

func (f fakeSensor) Healthy() bool { return bool(f) }

type fixture struct {
	server *Server
	status *fakeStatus
	submit *fakeSubmitter
	events *fakeEvents
}

func setupTestServer() *fixture {
	f := &fixture{
		status: &fakeStatus{},
		submit: &fakeSubmitter{},
		events: &fakeEvents{},
	}
	f.server = NewServer(f.status, f.submit, f.events, fakeConn(true), fakeSensor(true), "ac/living/set")
	f.server.newID = func() string { return "fixed-id" }
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestGetState(t *testing.T) {
	f := setupTestServer()

	w := f.do(http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	state := model.NewACState(model.DaikinLimits, true)
	state.SetTemperature(22)
	f.status.msg = model.StatusMessage{Status: state.Snapshot()}
	f.status.ok = true

	w = f.do(http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, float64(22), got["temp"])
	assert.Equal(t, "auto", got["fan"])
}

func TestPutState(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		submitErr      error
		expectedStatus int
		queued         int
	}{
		{"valid", `{"temp":24,"mode":"cool"}`, nil, http.StatusAccepted, 1},
		{"empty object", `{}`, nil, http.StatusAccepted, 1},
		{"not json", `temp=24`, nil, http.StatusBadRequest, 0},
		{"array", `[1,2]`, nil, http.StatusBadRequest, 0},
		{"null", `null`, nil, http.StatusBadRequest, 0},
		{"too large", `{"x":"` + strings.Repeat("a", maxBodyBytes) + `"}`, nil, http.StatusRequestEntityTooLarge, 0},
		{"queue full", `{"temp":24}`, dispatcher.ErrQueueFull, http.StatusServiceUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestServer()
			f.submit.err = tt.submitErr

			w := f.do(http.MethodPut, "/api/state", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Len(t, f.submit.msgs, tt.queued)
		})
	}
}

func TestPutState_WrapsFieldsAsCommand(t *testing.T) {
	f := setupTestServer()

	w := f.do(http.MethodPut, "/api/state", `{"powerOn":"true","temp":24}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "fixed-id", resp.MessageID)

	require.Len(t, f.submit.msgs, 1)
	msg := f.submit.msgs[0]
	assert.Equal(t, "ac/living/set", msg.Topic)

	cmd, err := model.ParseCommand(msg.Payload)
	require.NoError(t, err)
	id, _ := cmd.MessageID.Get()
	assert.Equal(t, "fixed-id", id)
	on, ok := cmd.PowerOn.Get()
	assert.True(t, ok)
	assert.True(t, on)
	temp, _ := cmd.Temp.Get()
	assert.Equal(t, 24, temp)
}

func TestPutState_GeneratesUUID(t *testing.T) {
	f := setupTestServer()
	f.server = NewServer(f.status, f.submit, f.events, nil, nil, "ac/living/set")

	w := f.do(http.MethodPut, "/api/state", `{"temp":20}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.MessageID, 36)
}

func TestGetEvents(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedLimit  int
	}{
		{"default limit", "", http.StatusOK, db.DefaultEventLimit},
		{"explicit limit", "?limit=5", http.StatusOK, 5},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
		{"garbage", "?limit=abc", http.StatusBadRequest, 0},
		{"too many", "?limit=5000", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestServer()
			f.events.events = []db.Event{{ID: 1, At: time.Now(), Kind: db.KindCommand, Topic: "ac/living/set", Outcome: "applied"}}

			w := f.do(http.MethodGet, "/api/events"+tt.query, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedLimit, f.events.limit)
			if tt.expectedStatus == http.StatusOK {
				var got []db.Event
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Len(t, got, 1)
			}
		})
	}
}

func TestGetEvents_Error(t *testing.T) {
	f := setupTestServer()
	f.events.err = errors.New("database is locked")

	w := f.do(http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		sensorOK  bool
		expected  HealthResponse
	}{
		{"all good", true, true, HealthResponse{Status: "ok", MQTTConnected: true, PowerSenseHealthy: true}},
		{"broker down", false, true, HealthResponse{Status: "degraded", MQTTConnected: false, PowerSenseHealthy: true}},
		{"sensor failing", true, false, HealthResponse{Status: "degraded", MQTTConnected: true, PowerSenseHealthy: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestServer()
			f.server.mqtt = fakeConn(tt.connected)
			f.server.sensor = fakeSensor(tt.sensorOK)

			w := f.do(http.MethodGet, "/healthz", "")
			require.Equal(t, http.StatusOK, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expected, resp)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestServer()
	w := f.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestMethodNotAllowed(t *testing.T) {
	f := setupTestServer()
	w := f.do(http.MethodDelete, "/api/state", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSHeaders(t *testing.T) {
	f := setupTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://panel.local")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
