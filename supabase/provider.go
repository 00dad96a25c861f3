package supabase

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/httpclient"
	"github.com/kbukum/bizbackend/logger"
)

// Provider is the Supabase backend.Provider.
type Provider struct {
	*Auth
	*REST
	backend.RecordProfiles

	cfg    Config
	client *httpclient.Client
	ready  atomic.Bool
	log    *logger.Logger
}

var _ backend.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the client built from Config.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New builds the adapter. No request is made until it is used.
func New(cfg Config, opts ...Option) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{cfg: cfg, log: logger.Get("supabase")}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		client, err := NewHTTPClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("supabase: %w", err)
		}
		p.client = client
	}
	p.Auth = NewAuth(p.client, cfg.RefreshSkew)
	p.REST = NewREST(p.client, p.Auth.AccessToken)
	p.RecordProfiles = backend.RecordProfiles{Store: p.REST, Table: cfg.ProfilesTable}
	return p, nil
}

// NewHTTPClient builds the client shared by Auth and REST: apikey and
// anon bearer on every request, retries for idempotent calls and a
// circuit breaker on transport failures.
func NewHTTPClient(cfg Config) (*httpclient.Client, error) {
	httpCfg := httpclient.Config{
		BaseURL:        cfg.URL,
		Timeout:        cfg.Timeout,
		Headers:        map[string]string{"apikey": cfg.AnonKey},
		Auth:           httpclient.BearerAuth(cfg.AnonKey),
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig(backendName),
	}
	if cfg.MaxRetries > 0 {
		retry := httpclient.DefaultRetryConfig()
		retry.MaxAttempts = cfg.MaxRetries + 1
		httpCfg.Retry = retry
	}
	return httpclient.New(httpCfg)
}

// Factory returns a backend.Factory for the registry.
func Factory(cfg Config) backend.Factory {
	return func() (backend.Provider, error) {
		return New(cfg)
	}
}

func (p *Provider) Kind() backend.Kind { return backend.KindSupabase }

func (p *Provider) Name() string { return "Supabase" }

// Initialize marks the adapter ready. The session starts empty.
func (p *Provider) Initialize(context.Context) error {
	if p.client == nil {
		return errors.ServiceUnavailable(backendName)
	}
	p.ready.Store(true)
	p.log.Debug("supabase adapter initialized", logger.Fields("url", p.cfg.URL))
	return nil
}

// Cleanup drops the session and idle connections.
func (p *Provider) Cleanup(context.Context) error {
	p.ready.Store(false)
	p.Auth.Reset()
	p.client.CloseIdleConnections()
	return nil
}

// IsAvailable reports whether the adapter is initialized and the auth
// service answers.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.ready.Load() && p.Auth.Healthy(ctx)
}
