package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/climate-control/internal/audit"
	"github.com/nerrad567/climate-control/internal/auth"
	"github.com/nerrad567/climate-control/internal/automation"
	"github.com/nerrad567/climate-control/internal/climate"
	"github.com/nerrad567/climate-control/internal/climateswitch"
	"github.com/nerrad567/climate-control/internal/configentry"
	"github.com/nerrad567/climate-control/internal/configflow"
	"github.com/nerrad567/climate-control/internal/history"
	"github.com/nerrad567/climate-control/internal/infrastructure/config"
	"github.com/nerrad567/climate-control/internal/infrastructure/logging"
	"github.com/nerrad567/climate-control/internal/platform"
	"github.com/nerrad567/climate-control/internal/platform/platformtest"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// ─── Mocks ──────────────────────────────────────────────────────────────────

type mockEntries struct {
	mu      sync.Mutex
	entries map[string]*configentry.Entry
}

func newMockEntries() *mockEntries {
	return &mockEntries{entries: make(map[string]*configentry.Entry)}
}

func (m *mockEntries) List(_ context.Context, domain string) []configentry.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []configentry.Entry{}
	for _, e := range m.entries {
		if domain == "" || e.Domain == domain {
			out = append(out, *e.DeepCopy())
		}
	}
	return out
}

func (m *mockEntries) Get(_ context.Context, id string) (*configentry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, configentry.ErrEntryNotFound
	}
	return e.DeepCopy(), nil
}

func (m *mockEntries) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return configentry.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *mockEntries) HasUniqueID(domain, uniqueID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return true
		}
	}
	return false
}

func (m *mockEntries) Create(_ context.Context, e *configentry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = "entry-" + e.UniqueID
	m.entries[e.ID] = e.DeepCopy()
	return nil
}

func (m *mockEntries) UpdateOptions(_ context.Context, id string, options map[string]any) (*configentry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, configentry.ErrEntryNotFound
	}
	e.Options = options
	return e.DeepCopy(), nil
}

type mockHistory struct {
	entries []history.Entry
	err     error
}

func (m *mockHistory) Record(context.Context, string, string, map[string]any, time.Time) error {
	return nil
}

func (m *mockHistory) GetHistory(_ context.Context, entityID string, _ int) ([]history.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []history.Entry{}
	for _, e := range m.entries {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockHistory) Prune(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type mockRuns struct {
	runs []automation.Run
}

func (m *mockRuns) CreateRun(_ context.Context, run *automation.Run) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockRuns) ListRuns(_ context.Context, automationID string, _ int) ([]automation.Run, error) {
	var out []automation.Run
	for _, r := range m.runs {
		if automationID == "" || r.AutomationID == automationID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockAudit struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *mockAudit) Create(_ context.Context, rec *audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockAudit) List(_ context.Context, filter audit.Filter) (*audit.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []audit.Record{}
	for _, r := range m.records {
		if filter.Action == "" || r.Action == filter.Action {
			out = append(out, r)
		}
	}
	return &audit.Page{Records: out, Total: len(out), Limit: filter.Limit}, nil
}

// waitFor polls until n records are stored or a second passes.
func (m *mockAudit) waitFor(t *testing.T, n int) []audit.Record {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		m.mu.Lock()
		got := append([]audit.Record(nil), m.records...)
		m.mu.Unlock()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ─── Fixture ────────────────────────────────────────────────────────────────

type fixture struct {
	srv       *Server
	router    http.Handler
	host      *platform.Host
	transport *platformtest.Transport
	entries   *mockEntries
	history   *mockHistory
	runs      *mockRuns
	audit     *mockAudit
}

// testServer creates a Server over a host carrying the climate switch.
func testServer(t *testing.T) *fixture {
	t.Helper()

	tr := platformtest.NewTransport()
	host := platform.NewHost(tr, nil)
	if err := host.AddEntity(context.Background(), climateswitch.New(climateswitch.Topics{}, nil, nil)); err != nil {
		t.Fatalf("AddEntity(switch) error = %v", err)
	}

	entries := newMockEntries()
	hist := &mockHistory{}
	runs := &mockRuns{}
	auditRepo := &mockAudit{}
	rules := automation.NewRegistry()
	if _, err := rules.Add(automation.DefaultRule()); err != nil {
		t.Fatalf("rules.Add() error = %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Logger:  logging.Discard(),
		Host:    host,
		Entries: entries,
		Flows:   configflow.NewManager(entries, host.MQTT()),
		History: hist,
		Runs:    runs,
		Rules:   rules,
		Audit:   auditRepo,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("# metrics\n")) //nolint:errcheck // test handler
		}),
		HealthChecks: map[string]HealthCheck{
			"mqtt": func(context.Context) error { return nil },
		},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, srv.logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)
	go srv.drainAuditLog(ctx)

	return &fixture{
		srv:       srv,
		router:    srv.buildRouter(),
		host:      host,
		transport: tr,
		entries:   entries,
		history:   hist,
		runs:      runs,
		audit:     auditRepo,
	}
}

func token(t *testing.T, role auth.Role) string {
	t.Helper()
	signed, err := auth.GenerateToken("test", role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return signed
}

// do performs a request as role; an empty role sends no token.
func (f *fixture) do(t *testing.T, role auth.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Health & Middleware ────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	f := testServer(t)

	w := f.do(t, "", http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestHealth_Degraded(t *testing.T) {
	f := testServer(t)
	f.srv.healthChecks["database"] = func(context.Context) error { return errors.New("locked") }

	w := f.do(t, "", http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decode(t, w, &resp)
	if resp.Status != "degraded" || resp.Components["database"] != "locked" || resp.Components["mqtt"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestRequestID(t *testing.T) {
	f := testServer(t)

	w := f.do(t, "", http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/states", nil)
	req.Header.Set("Origin", "http://panel.local")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	f := testServer(t)

	w := f.do(t, "", http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "# metrics") {
		t.Errorf("metrics = %d %q", w.Code, w.Body.String())
	}
}

// ─── Auth ───────────────────────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	f := testServer(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token(t, auth.RoleViewer), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/states", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestPermissions(t *testing.T) {
	f := testServer(t)

	tests := []struct {
		role   auth.Role
		method string
		path   string
		body   string
		want   int
	}{
		{auth.RoleViewer, http.MethodPost, "/api/v1/services/switch/turn_on", `{"entity_id":"switch.climate"}`, http.StatusForbidden},
		{auth.RoleOperator, http.MethodPost, "/api/v1/services/switch/turn_on", `{"entity_id":"switch.climate"}`, http.StatusOK},
		{auth.RoleOperator, http.MethodGet, "/api/v1/config/entries", "", http.StatusForbidden},
		{auth.RoleAdmin, http.MethodGet, "/api/v1/config/entries", "", http.StatusOK},
		{auth.RoleViewer, http.MethodGet, "/api/v1/automations", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+" "+tt.path, func(t *testing.T) {
			w := f.do(t, tt.role, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

// ─── States & Services ──────────────────────────────────────────────────────

func TestStates(t *testing.T) {
	f := testServer(t)

	w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/states", "")
	var states []platform.State
	decode(t, w, &states)
	if len(states) != 1 || states[0].EntityID != climateswitch.EntityID || states[0].State != climateswitch.StateOff {
		t.Fatalf("states = %+v", states)
	}

	w = f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/states/switch.climate", "")
	if w.Code != http.StatusOK {
		t.Errorf("get state status = %d", w.Code)
	}

	w = f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/states/switch.nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown entity status = %d, want 404", w.Code)
	}
}

func TestCallService(t *testing.T) {
	f := testServer(t)

	w := f.do(t, auth.RoleOperator, http.MethodPost, "/api/v1/services/switch/turn_on", `{"entity_id":"switch.climate"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if got := f.transport.PublishedTo(climateswitch.DefaultCommandTopic); len(got) != 1 || got[0] != "ON" {
		t.Errorf("published = %v, want [ON]", got)
	}
	if st := f.host.States().Get(climateswitch.EntityID); st.State != climateswitch.StateOn {
		t.Errorf("switch state = %s, want on", st.State)
	}
}

func TestCallService_Errors(t *testing.T) {
	f := testServer(t)

	tests := []struct {
		name     string
		path     string
		body     string
		want     int
		wantCode string
	}{
		{"unknown service", "/api/v1/services/switch/toggle", `{"entity_id":"switch.climate"}`, http.StatusNotFound, ErrCodeNotFound},
		{"missing entity id", "/api/v1/services/switch/turn_on", ``, http.StatusBadRequest, ErrCodeValidation},
		{"bad json", "/api/v1/services/switch/turn_on", `{`, http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, auth.RoleOperator, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			var e Error
			decode(t, w, &e)
			if e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := testServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		want     int
		wantCode string
	}{
		{"unknown path", http.MethodGet, "/api/v1/nope", http.StatusNotFound, ErrCodeNotFound},
		{"wrong method", http.MethodPut, "/api/v1/health", http.StatusMethodNotAllowed, ErrCodeMethodNotAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "", tt.method, tt.path, "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			var e Error
			decode(t, w, &e)
			if e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestListServices(t *testing.T) {
	f := testServer(t)

	w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/services", "")
	var services map[string][]string
	decode(t, w, &services)
	if got := services["switch"]; len(got) != 2 {
		t.Errorf("switch services = %v", got)
	}
}

// ─── Config Flows & Entries ─────────────────────────────────────────────────

func TestConfigFlow_EndToEnd(t *testing.T) {
	f := testServer(t)

	w := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/flows", `{"handler":"climate_control"}`)
	var res configflow.Result
	decode(t, w, &res)
	if res.Type != configflow.ResultForm || res.StepID != configflow.StepUser {
		t.Fatalf("start = %+v", res)
	}

	user := `{"name":"Office","mode_command_topic":"o/mode/set","mode_state_topic":"o/mode",` +
		`"temperature_command_topic":"o/temp/set","temperature_state_topic":"o/temp",` +
		`"current_temperature_topic":"o/current"}`
	w = f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/flows/"+res.FlowID, user)
	decode(t, w, &res)
	if res.StepID != configflow.StepClimate {
		t.Fatalf("user step = %+v", res)
	}

	w = f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/flows/"+res.FlowID, `{"min_temp":30,"max_temp":20}`)
	decode(t, w, &res)
	if res.Errors[climate.ConfMinTemp] != configflow.ErrorMinTempHigher {
		t.Fatalf("climate step errors = %v", res.Errors)
	}

	w = f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/flows/"+res.FlowID, `{"min_temp":10,"max_temp":28}`)
	decode(t, w, &res)
	if res.Type != configflow.ResultCreateEntry || res.Title != "Office" {
		t.Fatalf("finish = %+v", res)
	}

	w = f.do(t, auth.RoleAdmin, http.MethodGet, "/api/v1/config/entries?domain=climate_control", "")
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 {
		t.Errorf("entries count = %d, want 1", list.Count)
	}
}

func TestConfigFlow_NotFound(t *testing.T) {
	f := testServer(t)

	if w := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/flows/missing", `{}`); w.Code != http.StatusNotFound {
		t.Errorf("configure status = %d, want 404", w.Code)
	}
	if w := f.do(t, auth.RoleAdmin, http.MethodDelete, "/api/v1/config/flows/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("abort status = %d, want 404", w.Code)
	}
	if w := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/flows", `{"handler":"light"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown handler status = %d, want 400", w.Code)
	}
}

func TestOptionsFlow(t *testing.T) {
	f := testServer(t)
	f.entries.entries["e1"] = &configentry.Entry{ID: "e1", Domain: climate.Domain, Title: "Office", UniqueID: "Office"}

	w := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/entries/e1/options", "")
	var res configflow.Result
	decode(t, w, &res)
	if res.StepID != configflow.StepInit {
		t.Fatalf("options start = %+v", res)
	}

	w = f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/options/"+res.FlowID, `{"max_temp":24}`)
	decode(t, w, &res)
	if res.Type != configflow.ResultCreateEntry {
		t.Fatalf("options finish = %+v", res)
	}
	if got := f.entries.entries["e1"].Options[climate.ConfMaxTemp]; got != 24.0 {
		t.Errorf("max_temp option = %v, want 24", got)
	}

	if w := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/entries/nope/options", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown entry status = %d, want 404", w.Code)
	}
}

func TestOptionsFlow_AlreadyInProgress(t *testing.T) {
	f := testServer(t)
	f.entries.entries["e1"] = &configentry.Entry{ID: "e1", Domain: climate.Domain, Title: "Office", UniqueID: "Office"}

	if w := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/entries/e1/options", ""); w.Code != http.StatusOK {
		t.Fatalf("first start status = %d", w.Code)
	}

	w := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/v1/config/entries/e1/options", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("second start status = %d, want 409", w.Code)
	}
	var e Error
	decode(t, w, &e)
	if e.Code != ErrCodeConflict {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeConflict)
	}
}

func TestDeleteEntry(t *testing.T) {
	f := testServer(t)
	f.entries.entries["e1"] = &configentry.Entry{ID: "e1", Domain: climate.Domain, Title: "Office"}

	if w := f.do(t, auth.RoleAdmin, http.MethodGet, "/api/v1/config/entries/e1", ""); w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}
	if w := f.do(t, auth.RoleAdmin, http.MethodDelete, "/api/v1/config/entries/e1", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := f.do(t, auth.RoleAdmin, http.MethodDelete, "/api/v1/config/entries/e1", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

// ─── History & Automations ──────────────────────────────────────────────────

func TestHistory(t *testing.T) {
	f := testServer(t)
	f.history.entries = []history.Entry{
		{ID: 1, EntityID: "switch.climate", State: "on"},
		{ID: 2, EntityID: "climate.office", State: "heat"},
	}

	w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/history/switch.climate?limit=5", "")
	var resp struct {
		Count   int             `json:"count"`
		History []history.Entry `json:"history"`
	}
	decode(t, w, &resp)
	if resp.Count != 1 || resp.History[0].State != "on" {
		t.Errorf("history = %+v", resp)
	}

	if w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/history/switch.climate?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}

	f.history.err = errors.New("disk I/O error")
	if w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/history/switch.climate", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("store error status = %d, want 500", w.Code)
	}

	f.srv.history = nil
	if w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/history/switch.climate", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d, want 503", w.Code)
	}
}

func TestAutomations(t *testing.T) {
	f := testServer(t)
	f.runs.runs = []automation.Run{
		{ID: 1, AutomationID: automation.DefaultRuleID, Service: "turn_on"},
		{ID: 2, AutomationID: "other", Service: "turn_off"},
	}

	w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/automations", "")
	var rules struct {
		Count int `json:"count"`
	}
	decode(t, w, &rules)
	if rules.Count != 1 {
		t.Errorf("automations count = %d, want 1", rules.Count)
	}

	w = f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/automations/runs?automation_id="+automation.DefaultRuleID, "")
	var runs struct {
		Count int              `json:"count"`
		Runs  []automation.Run `json:"runs"`
	}
	decode(t, w, &runs)
	if runs.Count != 1 || runs.Runs[0].Service != "turn_on" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestSystemMetrics(t *testing.T) {
	f := testServer(t)

	w := f.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/system", "")
	var m SystemMetrics
	decode(t, w, &m)
	if m.Entities.Total != 1 || m.Entities.ByDomain["switch"] != 1 || m.Entities.Automations != 1 {
		t.Errorf("entities = %+v", m.Entities)
	}
	if !m.MQTT.Connected || m.MQTT.Topics != 1 {
		t.Errorf("mqtt = %+v", m.MQTT)
	}
}

// ─── Audit ──────────────────────────────────────────────────────────────────

func TestAudit_ServiceCall(t *testing.T) {
	f := testServer(t)

	w := f.do(t, auth.RoleOperator, http.MethodPost, "/api/v1/services/switch/turn_off", `{"entity_id":"switch.climate"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	records := f.audit.waitFor(t, 1)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Action != audit.ActionServiceCall || rec.Target != "switch.turn_off" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Subject != "test" || rec.Role != string(auth.RoleOperator) {
		t.Errorf("identity = %s/%s", rec.Subject, rec.Role)
	}
	if rec.Details["entity_id"] != "switch.climate" {
		t.Errorf("details = %v", rec.Details)
	}
}

func TestAudit_FailedCallNotRecorded(t *testing.T) {
	f := testServer(t)

	f.do(t, auth.RoleOperator, http.MethodPost, "/api/v1/services/switch/toggle", `{"entity_id":"switch.climate"}`)
	f.do(t, auth.RoleViewer, http.MethodPost, "/api/v1/services/switch/turn_on", `{"entity_id":"switch.climate"}`)

	if got := f.audit.waitFor(t, 1); len(got) != 0 {
		t.Errorf("audit records = %+v, want none", got)
	}
}

func TestAudit_EntryDeleteAndList(t *testing.T) {
	f := testServer(t)
	f.entries.entries["e1"] = &configentry.Entry{ID: "e1", Domain: climate.Domain, Title: "Office"}

	if w := f.do(t, auth.RoleAdmin, http.MethodDelete, "/api/v1/config/entries/e1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	f.audit.waitFor(t, 1)

	w := f.do(t, auth.RoleAdmin, http.MethodGet, "/api/v1/audit?action=entry_delete", "")
	var page audit.Page
	decode(t, w, &page)
	if page.Total != 1 || page.Records[0].Target != "e1" {
		t.Errorf("page = %+v", page)
	}

	if w := f.do(t, auth.RoleOperator, http.MethodGet, "/api/v1/audit", ""); w.Code != http.StatusForbidden {
		t.Errorf("operator status = %d, want 403", w.Code)
	}
}

// ─── WebSocket ──────────────────────────────────────────────────────────────

func TestWSTicket_SingleUse(t *testing.T) {
	f := testServer(t)

	w := f.do(t, auth.RoleViewer, http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	decode(t, w, &resp)
	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	entry, ok := f.srv.validateTicket(ticket)
	if !ok {
		t.Fatal("ticket should be valid on first use")
	}
	if entry.role != auth.RoleViewer || entry.subject != "test" {
		t.Errorf("ticket identity = %s/%s", entry.subject, entry.role)
	}
	if _, ok := f.srv.validateTicket(ticket); ok {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	f := testServer(t)
	ticket := generateTicket()
	f.srv.tickets.tickets[ticket] = ticketEntry{expiresAt: time.Now().Add(-time.Second), role: auth.RoleViewer}

	if _, ok := f.srv.validateTicket(ticket); ok {
		t.Error("expired ticket should not be valid")
	}
}

func TestWebSocket_RequiresTicket(t *testing.T) {
	f := testServer(t)

	if w := f.do(t, "", http.MethodGet, "/api/v1/ws", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no ticket status = %d, want 401", w.Code)
	}
	if w := f.do(t, "", http.MethodGet, "/api/v1/ws?ticket=bogus", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("bogus ticket status = %d, want 401", w.Code)
	}
}

func TestStateChangesReachHub(t *testing.T) {
	f := testServer(t)
	f.srv.subscribeStateUpdates()
	t.Cleanup(f.srv.unsubState)

	client := &WSClient{
		hub:           f.srv.hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelStateChanged: {}},
	}
	f.srv.hub.Register(client)

	if err := f.transport.Deliver(climateswitch.DefaultStateTopic, "ON"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelStateChanged {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelStateChanged)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for state_changed broadcast")
	}
}

func TestHub_BroadcastOnlyToSubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{automation.ChannelAutomationRun: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelStateChanged: {}},
	}
	hub.Register(subscribed)
	hub.Register(other)
	if hub.ClientCount() != 2 {
		t.Fatalf("client count = %d, want 2", hub.ClientCount())
	}

	hub.Broadcast(automation.ChannelAutomationRun, automation.Run{ID: 1})

	select {
	case <-subscribed.send:
	case <-time.After(time.Second):
		t.Error("subscribed client got nothing")
	}
	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(50 * time.Millisecond):
	}

	hub.Unregister(other)
	if hub.ClientCount() != 1 {
		t.Errorf("after unregister count = %d, want 1", hub.ClientCount())
	}
}

func TestWSClient_Subscribe(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())

	tests := []struct {
		name     string
		role     auth.Role
		channels string
		wantType string
	}{
		{"known channel", auth.RoleViewer, `["state_changed"]`, WSTypeResponse},
		{"unknown channel", auth.RoleViewer, `["device.state_changed"]`, WSTypeError},
		{"no role", "", `["state_changed"]`, WSTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &WSClient{
				hub:           hub,
				send:          make(chan []byte, wsSendBufferSize),
				subscriptions: make(map[string]struct{}),
				role:          tt.role,
			}
			client.handleMessage([]byte(`{"type":"subscribe","id":"1","payload":{"channels":` + tt.channels + `}}`))

			var reply WSMessage
			if err := json.Unmarshal(<-client.send, &reply); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if reply.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", reply.Type, tt.wantType)
			}
			if got := client.isSubscribed(ChannelStateChanged); got != (tt.wantType == WSTypeResponse) {
				t.Errorf("isSubscribed = %v", got)
			}
		})
	}
}
