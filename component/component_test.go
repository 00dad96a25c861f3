package component

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(context.Context) error {
	if m.events != nil {
		*m.events = append(*m.events, "start:"+m.name)
	}
	return m.startErr
}

func (m *mockComponent) Stop(context.Context) error {
	if m.events != nil {
		*m.events = append(*m.events, "stop:"+m.name)
	}
	return m.stopErr
}

func (m *mockComponent) Health(context.Context) Health { return m.health }

type describedComponent struct {
	mockComponent
}

func (d *describedComponent) Describe() Description {
	return Description{Type: "cache", Details: "localhost:6379"}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&mockComponent{name: "db"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(&mockComponent{name: "db"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Get("db") == nil || r.Get("missing") != nil {
		t.Error("Get returned unexpected results")
	}
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	r := NewRegistry()
	for _, name := range []string{"db", "redis", "http"} {
		_ = r.Register(&mockComponent{name: name, events: &events})
	}
	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	want := "start:db,start:redis,start:http,stop:http,stop:redis,stop:db"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestStartAll_FailureStopsOnlyStarted(t *testing.T) {
	var events []string
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "db", events: &events})
	_ = r.Register(&mockComponent{name: "redis", events: &events, startErr: errors.New("refused")})
	_ = r.Register(&mockComponent{name: "http", events: &events})

	ctx := context.Background()
	if err := r.StartAll(ctx); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis start error, got %v", err)
	}
	_ = r.StopAll(ctx)
	want := "start:db,start:redis,stop:db"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestStopAll_JoinsErrors(t *testing.T) {
	stopErr := errors.New("boom")
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "a", stopErr: stopErr})
	_ = r.Register(&mockComponent{name: "b", stopErr: stopErr})
	ctx := context.Background()
	_ = r.StartAll(ctx)
	err := r.StopAll(ctx)
	if !errors.Is(err, stopErr) {
		t.Fatalf("expected joined error wrapping boom, got %v", err)
	}
}

func TestHealthAllAndDescriptions(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "db", health: Health{Name: "db", Status: StatusHealthy}})
	_ = r.Register(&describedComponent{mockComponent{name: "redis", health: Health{Name: "redis", Status: StatusDegraded}}})

	health := r.HealthAll(context.Background())
	if len(health) != 2 || health[1].Status != StatusDegraded {
		t.Errorf("unexpected health %+v", health)
	}
	descs := r.Descriptions()
	if len(descs) != 1 || descs[0].Name != "redis" || descs[0].Type != "cache" {
		t.Errorf("unexpected descriptions %+v", descs)
	}
	if len(r.All()) != 2 {
		t.Errorf("expected 2 components, got %d", len(r.All()))
	}
}

func TestWorst(t *testing.T) {
	healthy := Health{Name: "db", Status: StatusHealthy}
	degraded := Health{Name: "backend", Status: StatusDegraded, Message: "initializing"}
	down := Health{Name: "redis", Status: StatusUnhealthy}

	tests := []struct {
		name   string
		report []Health
		want   HealthStatus
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Health{healthy, healthy}, StatusHealthy},
		{"degraded", []Health{healthy, degraded}, StatusDegraded},
		{"unhealthy wins", []Health{degraded, down, healthy}, StatusUnhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Worst(tc.report); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if !healthy.OK() || degraded.OK() {
		t.Error("expected only the healthy entry to be OK")
	}
	if got := degraded.String(); got != "backend=degraded(initializing)" {
		t.Errorf("expected backend=degraded(initializing), got %q", got)
	}
	if got := down.String(); got != "redis=unhealthy" {
		t.Errorf("expected redis=unhealthy, got %q", got)
	}
}
