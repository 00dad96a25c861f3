package bootstrap

import (
	"context"
	"time"

	"github.com/kbukum/bizbackend/logger"
)

// logSummary logs what was started, and the gateway routes at debug level.
func (a *App) logSummary(startup time.Duration) {
	for _, d := range a.Components.Descriptions() {
		fields := logger.Fields(logger.FieldComponent, d.Name, "type", d.Type, "details", d.Details)
		if d.Port > 0 {
			fields["port"] = d.Port
		}
		a.Logger.Info("Component ready", fields)
	}
	if a.Server != nil {
		for _, r := range a.Server.Routes() {
			a.Logger.Debug("Route", logger.Fields("route", r))
		}
	}
	fields := logger.Fields(
		"name", a.Name,
		"version", a.Version,
		logger.FieldDuration, startup.Milliseconds(),
	)
	if a.Server != nil {
		fields["addr"] = a.Server.Addr()
	}
	if a.Manager != nil {
		fields[logger.FieldProvider] = a.Manager.Status(context.Background()).Kind
	}
	a.Logger.Info("Startup complete", fields)
}
