package endpoint

import (
	"context"

	"github.com/kbukum/bizbackend/component"
)

// HealthChecker returns the health of every component the gateway depends on.
type HealthChecker func(ctx context.Context) []component.Health

func check(ctx context.Context, checker HealthChecker) []component.Health {
	if checker == nil {
		return nil
	}
	return checker(ctx)
}
