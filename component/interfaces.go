package component

import "context"

// HealthStatus is what a component reports on the health endpoints.
type HealthStatus string

// Degraded components still serve traffic; unhealthy ones fail readiness.
const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one component's entry in the health report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// OK reports whether the component is fully healthy.
func (h Health) OK() bool { return h.Status == StatusHealthy }

// String renders the entry as name=status, with the message in parentheses.
func (h Health) String() string {
	s := h.Name + "=" + string(h.Status)
	if h.Message != "" {
		s += "(" + h.Message + ")"
	}
	return s
}

// Worst folds a health report into one status. Any unhealthy entry wins,
// then any degraded one. An empty report is healthy.
func Worst(report []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range report {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// Component is a piece of gateway infrastructure owned by the Registry.
// Start and Stop are called once each, in registration order and reverse.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description feeds the startup summary. Port is zero for components that
// do not listen.
type Description struct {
	Name    string
	Type    string
	Details string
	Port    int
}

// Describable components show up in the startup summary.
type Describable interface {
	Describe() Description
}
