package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/component"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/firebase"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/provisioning"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryBackend is a signed-out adapter with one in-memory table.
type memoryBackend struct {
	backend.Unavailable

	mu      sync.Mutex
	session *backend.AuthSession
	rows    map[string]backend.Record
	nextID  int
	queries []backend.Query
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		Unavailable: backend.Unavailable{ProviderKind: backend.KindSupabase},
		rows:        map[string]backend.Record{},
	}
}

func (m *memoryBackend) Name() string {
	return "memory"
}

func (m *memoryBackend) Initialize(context.Context) error {
	return nil
}

func (m *memoryBackend) IsAvailable(context.Context) bool {
	return true
}

func (m *memoryBackend) CurrentSession(context.Context) (*backend.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *memoryBackend) SignIn(_ context.Context, email, password string) (*backend.AuthIdentity, error) {
	if password != "correct horse" {
		return nil, errors.AuthFailed("invalid login credentials")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &backend.AuthSession{
		User:         backend.AuthIdentity{ID: "u-1", Email: email},
		AccessToken:  "access",
		RefreshToken: "refresh",
	}
	return &m.session.User, nil
}

func (m *memoryBackend) SignUp(_ context.Context, email, _ string, meta backend.Metadata) (*backend.AuthIdentity, error) {
	return &backend.AuthIdentity{ID: "u-2", Email: email, Metadata: meta}, nil
}

func (m *memoryBackend) SignOut(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memoryBackend) Query(_ context.Context, q backend.Query) backend.Result[[]backend.Record] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if q.Table != "projects" {
		return backend.Fail[[]backend.Record](errors.InvalidInput("table", "relation does not exist"))
	}
	out := []backend.Record{}
	for _, r := range m.rows {
		out = append(out, r)
	}
	return backend.OK(out)
}

func (m *memoryBackend) QueryOne(_ context.Context, q backend.Query) backend.Result[backend.Record] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	for _, f := range q.Filters {
		if f.Column == "id" {
			if r, ok := m.rows[fmt.Sprint(f.Value)]; ok {
				return backend.OK(r)
			}
		}
	}
	return backend.OK[backend.Record](nil)
}

func (m *memoryBackend) Insert(_ context.Context, table string, rec backend.Record) backend.Result[backend.Record] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec["owner_id"] == "ghost" {
		return backend.Fail[backend.Record](errors.MissingReference(table))
	}
	m.nextID++
	rec["id"] = fmt.Sprintf("p-%d", m.nextID)
	m.rows[rec["id"].(string)] = rec
	return backend.OK(rec)
}

func (m *memoryBackend) Update(_ context.Context, _ string, id string, rec backend.Record) backend.Result[backend.Record] {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return backend.OK[backend.Record](nil)
	}
	for k, v := range rec {
		row[k] = v
	}
	return backend.OK(row)
}

func (m *memoryBackend) Delete(_ context.Context, _ string, id string) backend.Result[struct{}] {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return backend.OK(struct{}{})
}

type stubProvisioner struct {
	source backend.Provider
}

func (s stubProvisioner) EnsureCurrent(ctx context.Context) (*backend.UserProfile, provisioning.Report, error) {
	session, err := s.source.CurrentSession(ctx)
	if err != nil {
		return nil, provisioning.Report{}, err
	}
	if session == nil {
		return nil, provisioning.Report{}, errors.Unauthorized("sign in before provisioning a profile")
	}
	return &backend.UserProfile{ID: session.User.ID, Email: session.User.Email},
		provisioning.Report{Outcome: provisioning.OutcomeInserted, Inserts: 1}, nil
}

type gateway struct {
	handler http.Handler
	mem     *memoryBackend
	manager *backend.Manager
	server  *Server
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	mem := newMemoryBackend()
	registry := backend.NewRegistry()
	registry.Register(backend.KindSupabase, func() (backend.Provider, error) { return mem, nil })
	registry.Register(backend.KindFirebase, firebase.Factory(firebase.Config{ProjectID: "demo"}))
	manager := backend.NewManager(registry, nil, backend.WithLogger(logger.Nop()))
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	cfg := Config{Enabled: true, Port: 0}
	cfg.ApplyDefaults()
	s := New(cfg, logger.Nop())
	s.ApplyMiddleware()
	s.RegisterProbes("bizgateway", func(ctx context.Context) []component.Health {
		st := manager.Status(ctx)
		if !st.Available {
			return []component.Health{{Name: "backend", Status: component.StatusUnhealthy}}
		}
		return []component.Health{{Name: "backend", Status: component.StatusHealthy}}
	})
	NewAPI(manager, stubProvisioner{source: mem}, logger.Nop()).Register(s.Engine())
	return &gateway{handler: s.Handler(), mem: mem, manager: manager, server: s}
}

func (g *gateway) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	g.handler.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", rr.Body.String(), err)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("invalid data %q: %v", env.Data, err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body errors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", rr.Body.String(), err)
	}
	return body.Error.Code
}

func TestProbes(t *testing.T) {
	g := newGateway(t)

	if rr := g.do(t, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", rr.Code)
	}
	rr := g.do(t, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ready"`) {
		t.Errorf("expected ready, got %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected a request id header")
	}

	if err := g.manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if rr := g.do(t, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 once the backend is down, got %d", rr.Code)
	}
}

func TestProvider_GetAndSwitch(t *testing.T) {
	g := newGateway(t)

	var view struct {
		Kind      backend.Kind   `json:"kind"`
		Available bool           `json:"available"`
		Kinds     []backend.Kind `json:"kinds"`
	}
	rr := g.do(t, http.MethodGet, "/v1/provider", "")
	decodeData(t, rr, &view)
	if view.Kind != backend.KindSupabase || !view.Available || len(view.Kinds) != 2 {
		t.Errorf("expected available supabase of 2 kinds, got %+v", view)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   errors.ErrorCode
	}{
		{"unknown kind", `{"kind":"mongo"}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"missing kind", `{}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"not registered", `{"kind":"hybrid"}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"initialize fails", `{"kind":"firebase"}`, http.StatusNotImplemented, errors.ErrCodeNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := g.do(t, http.MethodPut, "/v1/provider", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, code)
			}
		})
	}

	if k := g.manager.Provider().Kind(); k != backend.KindSupabase {
		t.Errorf("expected the failed switch to roll back to supabase, got %s", k)
	}
	rr = g.do(t, http.MethodPut, "/v1/provider", `{"kind":"supabase"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("expected switching to the active kind to succeed, got %d", rr.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	g := newGateway(t)

	rr := g.do(t, http.MethodGet, "/v1/auth/session", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"data":null`) {
		t.Fatalf("expected data:null when signed out, got %d %s", rr.Code, rr.Body.String())
	}

	rr = g.do(t, http.MethodPost, "/v1/profile/provision", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 provisioning without a session, got %d", rr.Code)
	}

	rr = g.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"ada@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != errors.ErrCodeAuth {
		t.Errorf("expected 401 AUTH_ERROR, got %d %s", rr.Code, rr.Body.String())
	}
	rr = g.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"not-an-email","password":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed email, got %d", rr.Code)
	}

	rr = g.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"ada@example.com","password":"correct horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected sign-in to succeed, got %d %s", rr.Code, rr.Body.String())
	}

	rr = g.do(t, http.MethodGet, "/v1/auth/session", "")
	if strings.Contains(rr.Body.String(), "refresh") {
		t.Error("session view must not expose the refresh token")
	}
	var session sessionView
	decodeData(t, rr, &session)
	if session.User.ID != "u-1" {
		t.Errorf("expected session for u-1, got %+v", session)
	}

	var provisioned provisionResponse
	rr = g.do(t, http.MethodPost, "/v1/profile/provision", "")
	decodeData(t, rr, &provisioned)
	if provisioned.Profile == nil || provisioned.Profile.ID != "u-1" || provisioned.Report.Outcome != provisioning.OutcomeInserted {
		t.Errorf("expected an inserted profile for u-1, got %+v", provisioned)
	}

	if rr := g.do(t, http.MethodPost, "/v1/auth/sign-out", ""); rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	rr = g.do(t, http.MethodPost, "/v1/auth/sign-up", `{"email":"grace@example.com","password":"hopper1","metadata":{"full_name":"Grace"}}`)
	var identity backend.AuthIdentity
	decodeData(t, rr, &identity)
	if rr.Code != http.StatusCreated || identity.Metadata.FullName != "Grace" {
		t.Errorf("expected 201 with metadata, got %d %+v", rr.Code, identity)
	}
}

func TestRecords(t *testing.T) {
	g := newGateway(t)

	rr := g.do(t, http.MethodPost, "/v1/records/projects", `{"name":"alpha","owner_id":"u-1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	var created backend.Record
	decodeData(t, rr, &created)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected a generated id, got %v", created)
	}

	rr = g.do(t, http.MethodGet, "/v1/records/projects?name=eq.alpha&order=created_at.desc&limit=10", "")
	var rows []backend.Record
	decodeData(t, rr, &rows)
	if len(rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(rows))
	}
	q := g.mem.queries[len(g.mem.queries)-1]
	if len(q.Filters) != 1 || q.Filters[0].Op != backend.OpEq || q.Limit != 10 || !q.Orders[0].Descending {
		t.Errorf("expected parsed filter, order and limit, got %+v", q)
	}

	rr = g.do(t, http.MethodPatch, "/v1/records/projects/"+id, `{"name":"beta"}`)
	var updated backend.Record
	decodeData(t, rr, &updated)
	if updated["name"] != "beta" {
		t.Errorf("expected updated name, got %v", updated)
	}

	rr = g.do(t, http.MethodGet, "/v1/records/projects/"+id+"?select=id,name", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if q := g.mem.queries[len(g.mem.queries)-1]; len(q.Columns) != 2 {
		t.Errorf("expected 2 selected columns, got %v", q.Columns)
	}

	if rr := g.do(t, http.MethodDelete, "/v1/records/projects/"+id, ""); rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	// deleting again is not an error
	if rr := g.do(t, http.MethodDelete, "/v1/records/projects/"+id, ""); rr.Code != http.StatusNoContent {
		t.Errorf("expected 204 for a repeated delete, got %d", rr.Code)
	}

	errorCases := []struct {
		name, method, path, body string
		status                   int
		code                     errors.ErrorCode
	}{
		{"missing row", http.MethodGet, "/v1/records/projects/" + id, "", http.StatusNotFound, errors.ErrCodeNotFound},
		{"update missing row", http.MethodPatch, "/v1/records/projects/nope", `{"name":"x"}`, http.StatusNotFound, errors.ErrCodeNotFound},
		{"bad table", http.MethodGet, "/v1/records/drop%20table", "", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad is value", http.MethodGet, "/v1/records/projects?done=is.maybe", "", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad limit", http.MethodGet, "/v1/records/projects?limit=-1", "", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"body not an object", http.MethodPost, "/v1/records/projects", `[1,2]`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"null body", http.MethodPost, "/v1/records/projects", `null`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"missing reference", http.MethodPost, "/v1/records/projects", `{"owner_id":"ghost"}`, http.StatusConflict, errors.ErrCodeMissingReference},
		{"unknown route", http.MethodGet, "/v2/anything", "", http.StatusNotFound, errors.ErrCodeNotFound},
		{"wrong method", http.MethodPut, "/v1/records/projects", `{}`, http.StatusMethodNotAllowed, errors.ErrCodeInvalidInput},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rr := g.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, code)
			}
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	g := newGateway(t)
	c := NewComponent(g.server)
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = c.Stop(ctx) }()

	resp, err := http.Get("http://" + g.server.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy while listening, got %s", h.Status)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Errorf("expected a second stop to be a no-op, got %v", err)
	}
}

func TestServer_Routes(t *testing.T) {
	g := newGateway(t)
	routes := strings.Join(g.server.Routes(), "\n")
	for _, want := range []string{
		"GET /healthz",
		"PUT /v1/provider",
		"POST /v1/profile/provision",
		"PATCH /v1/records/:table/:id",
	} {
		if !strings.Contains(routes, want) {
			t.Errorf("expected route %q in\n%s", want, routes)
		}
	}
}
