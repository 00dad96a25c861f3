package bootstrap

import (
	"context"
	"fmt"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/component"
	"github.com/kbukum/bizbackend/logger"
)

var (
	_ component.Component   = (*backendComponent)(nil)
	_ component.Describable = (*backendComponent)(nil)
)

// backendComponent drives the Manager from the component registry.
type backendComponent struct {
	manager *backend.Manager
	log     *logger.Logger
}

func (c *backendComponent) Name() string { return "backend" }

// Start initialises the preferred adapter. A failure is not fatal: the
// gateway keeps serving, readiness reports the backend down and the next
// request retries initialisation.
func (c *backendComponent) Start(ctx context.Context) error {
	if err := c.manager.Initialize(ctx); err != nil {
		c.log.Warn("Backend not initialized, continuing without it", logger.Fields(logger.FieldError, err.Error()))
	}
	return nil
}

func (c *backendComponent) Stop(ctx context.Context) error {
	return c.manager.Shutdown(ctx)
}

func (c *backendComponent) Health(ctx context.Context) component.Health {
	st := c.manager.Status(ctx)
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case st.Available:
	case st.State == backend.StateInitializing.String():
		h.Status, h.Message = component.StatusDegraded, "initializing"
	case st.Kind == "":
		h.Status, h.Message = component.StatusUnhealthy, "no backend selected"
	default:
		h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("%s unavailable (%s)", st.Kind, st.State)
	}
	return h
}

func (c *backendComponent) Describe() component.Description {
	st := c.manager.Status(context.Background())
	return component.Description{
		Name:    "Backend",
		Type:    "backend",
		Details: fmt.Sprintf("active=%s state=%s kinds=%v", st.Kind, st.State, c.manager.Kinds()),
	}
}
