package server

import (
	"context"
	"fmt"

	"github.com/kbukum/bizbackend/component"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component runs a Server under the component registry.
type Component struct {
	server *Server
}

// NewComponent wraps s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Name returns the registry name.
func (c *Component) Name() string {
	return componentName
}

// Start binds and serves.
func (c *Component) Start(ctx context.Context) error {
	return c.server.Start(ctx)
}

// Stop shuts the listener down.
func (c *Component) Stop(ctx context.Context) error {
	return c.server.Stop(ctx)
}

// Health reports whether the listener is bound.
func (c *Component) Health(context.Context) component.Health {
	c.server.mu.Lock()
	bound := c.server.listener != nil
	c.server.mu.Unlock()
	if !bound {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe summarises the listener for the startup log.
func (c *Component) Describe() component.Description {
	cfg := c.server.config
	return component.Description{
		Name:    "HTTP Gateway",
		Type:    "server",
		Details: fmt.Sprintf("%s:%d h2c routes=%d", cfg.Host, cfg.Port, len(c.server.engine.Routes())),
		Port:    cfg.Port,
	}
}
