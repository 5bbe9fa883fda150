package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ergosense/ergosense/pkg/reading"
	"github.com/ergosense/ergosense/pkg/status"
)

func setupTestServer(t *testing.T, samples ...reading.Raw) (*gin.Engine, *testRig) {
	t.Helper()

	rig := newTestRig(t, true, samples...)
	conf = rig.conf
	runner = rig.runner
	sseHub = rig.hub
	metrics = rig.runner.metrics

	router := setupRoutes()
	gin.SetMode(gin.TestMode)
	return router, rig
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_StatusAndCycle(t *testing.T) {
	router, _ := setupTestServer(t, reading.Raw{DistanceCm: 50, LightRaw: 0, TemperatureC: 22, HumidityPct: 50})

	if w := doRequest(router, http.MethodGet, "/status", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /status before first cycle = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	w := doRequest(router, http.MethodPost, "/cycle", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /cycle = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status = %d: %s", w.Code, w.Body.String())
	}
	var snap struct {
		Overall string    `json:"overall"`
		Light   string    `json:"light"`
		Display [2]string `json:"display"`
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("GET /status returned invalid JSON: %v", err)
	}
	if snap.Overall != "OK" || snap.Light != "verde" || snap.Display[0] != "TUDO OK 0m" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Session.ID == "" {
		t.Errorf("snapshot has no session id")
	}
}

func TestHandlers_SetErrorPolicy(t *testing.T) {
	router, rig := setupTestServer(t)

	tests := []struct {
		body     string
		wantCode int
		want     status.ErrorPolicy
	}{
		{`"bad"`, http.StatusCreated, status.ErrorAsBad},
		{`"warn"`, http.StatusCreated, status.ErrorAsWarn},
		{`"panic"`, http.StatusBadRequest, status.ErrorAsWarn},
		{`3`, http.StatusBadRequest, status.ErrorAsWarn},
	}
	for _, tt := range tests {
		w := doRequest(router, http.MethodPut, "/error-policy", tt.body)
		if w.Code != tt.wantCode {
			t.Errorf("PUT /error-policy %s = %d, want %d", tt.body, w.Code, tt.wantCode)
		}
		if got := rig.conf.ErrorPolicy(); got != tt.want {
			t.Errorf("after PUT %s ErrorPolicy() = %v, want %v", tt.body, got, tt.want)
		}
	}

	// The change is persisted.
	if err := rig.conf.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := rig.conf.ErrorPolicy(); got != status.ErrorAsWarn {
		t.Errorf("reloaded ErrorPolicy() = %v", got)
	}
}

func TestHandlers_SetAlarm(t *testing.T) {
	router, rig := setupTestServer(t)

	if w := doRequest(router, http.MethodPut, "/alarm", "false"); w.Code != http.StatusCreated {
		t.Fatalf("PUT /alarm = %d", w.Code)
	}
	if rig.conf.AlarmEnabled() {
		t.Errorf("AlarmEnabled() = true after disabling")
	}
	if w := doRequest(router, http.MethodPut, "/alarm", "maybe"); w.Code != http.StatusBadRequest {
		t.Errorf("PUT /alarm maybe = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandlers_Misc(t *testing.T) {
	router, _ := setupTestServer(t, reading.Raw{DistanceCm: 50, LightRaw: 0, TemperatureC: 22, HumidityPct: 50})
	if w := doRequest(router, http.MethodPost, "/cycle", ""); w.Code != http.StatusCreated {
		t.Fatalf("POST /cycle = %d", w.Code)
	}

	w := doRequest(router, http.MethodGet, "/config", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"dataTopic": "ergosense/dados"`) {
		t.Errorf("GET /config = %d: %s", w.Code, w.Body.String())
	}

	started := time.Now().Add(-time.Second).Round(time.Second)
	loopRecorder.AddRecord(started)
	w = doRequest(router, http.MethodGet, "/cycles", "")
	var cycles CyclesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &cycles); err != nil || w.Code != http.StatusOK {
		t.Errorf("GET /cycles = %d, %v", w.Code, err)
	}
	if cycles.Last != started.Format(time.RFC3339) {
		t.Errorf("GET /cycles last = %q, want %q", cycles.Last, started.Format(time.RFC3339))
	}

	w = doRequest(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ergosense_cycles_total 1") {
		t.Errorf("GET /metrics = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/version", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), `"`) {
		t.Errorf("GET /version = %d: %s", w.Code, w.Body.String())
	}
}

func TestHandlers_Events(t *testing.T) {
	router, _ := setupTestServer(t, reading.Raw{DistanceCm: 50, LightRaw: 0, TemperatureC: 22, HumidityPct: 50})
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /events error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	if _, err := runner.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event:") {
			if name := strings.TrimSpace(strings.TrimPrefix(line, "event:")); name != "cycle.completed" {
				t.Errorf("event = %q, want cycle.completed", name)
			}
			return
		}
	}
	t.Fatalf("stream ended without an event: %v", sc.Err())
}
