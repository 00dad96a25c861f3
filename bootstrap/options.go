package bootstrap

import (
	"time"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/resilience"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	prefs           backend.PreferenceStore
	factories       map[backend.Kind]backend.Factory
	sleep           resilience.SleepFunc
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{factories: make(map[backend.Kind]backend.Factory)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the application logger instead of initialising the global
// one from config.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithPreferenceStore replaces the configured preference store.
func WithPreferenceStore(s backend.PreferenceStore) Option {
	return func(o *appOptions) {
		o.prefs = s
	}
}

// WithFactory registers factory for kind in place of the configured adapter.
func WithFactory(kind backend.Kind, factory backend.Factory) Option {
	return func(o *appOptions) {
		o.factories[kind] = factory
	}
}

// WithProvisioningSleep replaces the wait used by the provisioning protocol.
func WithProvisioningSleep(fn resilience.SleepFunc) Option {
	return func(o *appOptions) {
		o.sleep = fn
	}
}
