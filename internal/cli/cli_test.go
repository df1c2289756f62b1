package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/shaiso/Observa/internal/mq"
	"github.com/spf13/cobra"
)

func init() {
	color.NoColor = true
}

type apiStub struct {
	server   *httptest.Server
	requests []*http.Request
	bodies   []string
	routes   map[string]func(w http.ResponseWriter)
}

func newAPIStub(t *testing.T) *apiStub {
	t.Helper()
	s := &apiStub{routes: map[string]func(http.ResponseWriter){}}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.requests = append(s.requests, r)
		s.bodies = append(s.bodies, string(body))

		h, ok := s.routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "NOT_FOUND", "message": "no route"}})
			return
		}
		h(w)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *apiStub) data(route string, v any) {
	s.routes[route] = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": v})
	}
}

func (s *apiStub) fail(route string, status int, code, msg string) {
	s.routes[route] = func(w http.ResponseWriter) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": code, "message": msg}})
	}
}

func runCmd(t *testing.T, stub *apiStub, jsonMode bool, factory func(func() *Client, func() *Output) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	clientFn := func() *Client { return NewClient(stub.server.URL) }
	outputFn := func() *Output { return &Output{jsonMode: jsonMode, w: &stdout, errW: &stderr} }

	cmd := factory(clientFn, outputFn)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var sampleConfig = map[string]any{
	"config_id":             3,
	"measurement_frequency": 60,
	"first_measurement":     "2023-04-26T08:00:00Z",
	"rgb_camera":            true,
	"multispectral_camera":  false,
	"number_of_sensors":     1,
	"length_of_ae":          10,
}

// --- Status Tests ---

func TestStatusCmd(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("GET /api/v1/scheduler/status", map[string]any{
		"active": true, "state": "armed", "next_scheduled_time": "2024-06-01T13:00:00Z",
		"interval_minutes": 60, "config_id": 3,
	})

	out, _, err := runCmd(t, stub, false, NewStatusCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"ACTIVE", "armed", "60m", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCmd_APIError(t *testing.T) {
	stub := newAPIStub(t)
	stub.fail("GET /api/v1/scheduler/status", http.StatusServiceUnavailable, "UNAVAILABLE", "scheduler is not running")

	_, _, err := runCmd(t, stub, false, NewStatusCmd)
	if err == nil || !strings.Contains(err.Error(), "UNAVAILABLE") {
		t.Errorf("expected API error, got %v", err)
	}
}

// --- Config Tests ---

func TestConfigGet_JSON(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("GET /api/v1/settings/measurement-config", sampleConfig)

	out, _, err := runCmd(t, stub, true, NewConfigCmd, "get")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var cfg ConfigResponse
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("json output expected: %v\n%s", err, out)
	}
	if cfg.ConfigID != 3 || cfg.MeasurementFrequency != 60 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestConfigSet_MergesWithCurrent(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("GET /api/v1/settings/measurement-config", sampleConfig)
	updated := map[string]any{}
	for k, v := range sampleConfig {
		updated[k] = v
	}
	updated["config_id"] = 4
	updated["measurement_frequency"] = 30
	stub.data("PUT /api/v1/settings/measurement-config", updated)

	_, stderr, err := runCmd(t, stub, false, NewConfigCmd, "set", "--frequency", "30", "--sensors", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sent ConfigRequest
	if err := json.Unmarshal([]byte(stub.bodies[len(stub.bodies)-1]), &sent); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if sent.MeasurementFrequency != 30 || sent.NumberOfSensors != 2 {
		t.Errorf("flags not applied: %+v", sent)
	}
	if !sent.RGBCamera || sent.LengthOfAE != 10 || sent.FirstMeasurement == nil {
		t.Errorf("unset flags should keep current values: %+v", sent)
	}
	if !strings.Contains(stderr, "Configuration stored: 4") {
		t.Errorf("unexpected message %q", stderr)
	}
}

func TestConfigSet_Rejected(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("GET /api/v1/settings/measurement-config", sampleConfig)
	stub.fail("PUT /api/v1/settings/measurement-config", http.StatusBadRequest, "INVALID_CONFIGURATION", "measurement_frequency must be greater than length_of_ae")

	_, _, err := runCmd(t, stub, false, NewConfigCmd, "set", "--frequency", "5")
	if err == nil || !strings.Contains(err.Error(), "INVALID_CONFIGURATION") {
		t.Errorf("expected rejection, got %v", err)
	}
}

// --- Runs Tests ---

func TestRunsShow(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("GET /api/v1/measurements/abc", map[string]any{
		"id":        "abc",
		"date_time": "2024-06-01T12:00:00Z",
		"stages": []map[string]any{
			{"stage": "primary-camera", "status": "success", "artifact": "RGB_20240601120000.png", "finished_at": "2024-06-01T12:00:05Z"},
			{"stage": "secondary-camera", "status": "error", "message": "camera offline", "finished_at": "2024-06-01T12:00:06Z"},
		},
	})

	out, _, err := runCmd(t, stub, false, NewRunsCmd, "show", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"primary-camera", "RGB_20240601120000.png", "camera offline"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunsHistory_SendsRange(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("GET /api/v1/measurements/history", map[string]any{"measurements": []any{}})

	_, _, err := runCmd(t, stub, false, NewRunsCmd, "history", "--from", "2024-06-01T00:00:00Z", "--to", "2024-06-02T00:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := stub.requests[0].URL.Query()
	if q.Get("start_date") != "2024-06-01T00:00:00Z" || q.Get("end_date") != "2024-06-02T00:00:00Z" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestRunsHistory_BadFlag(t *testing.T) {
	stub := newAPIStub(t)

	if _, _, err := runCmd(t, stub, false, NewRunsCmd, "history", "--from", "last week"); err == nil {
		t.Error("expected error for invalid --from")
	}
	if len(stub.requests) != 0 {
		t.Error("no request should be sent")
	}
}

// --- Trigger Tests ---

type fakePublisher struct {
	payloads []mq.RunTriggerPayload
	err      error
}

func (f *fakePublisher) PublishRunTrigger(_ context.Context, p mq.RunTriggerPayload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

type nopCloser struct{ closed bool }

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func TestTrigger_HTTP(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("POST /api/v1/scheduler/trigger", map[string]any{
		"success": true, "message": "measurement triggered: abc",
		"measurement": map[string]any{"id": "abc", "date_time": "2024-06-01T12:00:00Z"},
	})

	out, stderr, err := runCmd(t, stub, false, NewTriggerCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "measurement triggered: abc") || !strings.Contains(out, "abc") {
		t.Errorf("unexpected output %q / %q", out, stderr)
	}
}

func TestTrigger_AMQP(t *testing.T) {
	stub := newAPIStub(t)
	pub := &fakePublisher{}
	closer := &nopCloser{}

	orig := dialPublisher
	dialPublisher = func(url string) (runTriggerPublisher, io.Closer, error) {
		if url != "amqp://broker" {
			t.Errorf("unexpected url %s", url)
		}
		return pub, closer, nil
	}
	defer func() { dialPublisher = orig }()

	_, _, err := runCmd(t, stub, false, NewTriggerCmd, "--amqp-url", "amqp://broker", "--requested-by", "ops")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.payloads) != 1 || pub.payloads[0].RequestedBy != "ops" || pub.payloads[0].Config != nil {
		t.Errorf("unexpected payloads %+v", pub.payloads)
	}
	if !closer.closed {
		t.Error("connection should be closed")
	}
	if len(stub.requests) != 0 {
		t.Error("API must not be called when queueing through the broker")
	}
}

func TestTrigger_AMQPDialError(t *testing.T) {
	stub := newAPIStub(t)

	orig := dialPublisher
	dialPublisher = func(string) (runTriggerPublisher, io.Closer, error) {
		return nil, nil, errors.New("connection refused")
	}
	defer func() { dialPublisher = orig }()

	if _, _, err := runCmd(t, stub, false, NewTriggerCmd, "--amqp-url", "amqp://broker"); err == nil {
		t.Error("expected dial error")
	}
}

// --- Devices Tests ---

func TestDevicesCmd_Refresh(t *testing.T) {
	stub := newAPIStub(t)
	stub.data("GET /api/v1/devices/health", []map[string]any{
		{"device": "primary-camera", "ok": false, "error": "timeout", "checked_at": "2024-06-01T12:00:00Z"},
	})

	out, _, err := runCmd(t, stub, false, NewDevicesCmd, "--refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.requests[0].URL.Query().Get("refresh") != "true" {
		t.Error("refresh flag not forwarded")
	}
	if !strings.Contains(out, "down") || !strings.Contains(out, "timeout") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// --- Output Tests ---

func TestStatusColouring_Disabled(t *testing.T) {
	if got := Status("error"); got != "error" {
		t.Errorf("with NoColor the cell must be unchanged, got %q", got)
	}
}
