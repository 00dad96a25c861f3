// Package hybrid combines Supabase authentication with direct PostgreSQL
// access: sessions come from the hosted auth service, while profiles,
// records and functions are served by pgstore over a pooled connection.
package hybrid

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/httpclient"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/pgstore"
	"github.com/kbukum/bizbackend/supabase"
)

// Config pairs the auth project with the database.
type Config struct {
	Auth     supabase.Config `mapstructure:"auth"`
	Database pgstore.Config  `mapstructure:"database"`
}

// Provider is the hybrid backend.Provider.
type Provider struct {
	*supabase.Auth

	client *httpclient.Client
	db     *pgstore.Component
	ready  atomic.Bool
	log    *logger.Logger
}

var _ backend.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*options)

type options struct {
	client   *httpclient.Client
	database []pgstore.ComponentOption
}

// WithHTTPClient replaces the auth client built from Config.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(o *options) { o.client = c }
}

// WithDatabaseOptions customises the database component.
func WithDatabaseOptions(opts ...pgstore.ComponentOption) Option {
	return func(o *options) { o.database = append(o.database, opts...) }
}

// New builds the adapter. The database connects on Initialize.
func New(cfg Config, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg.Auth.ApplyDefaults()
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	cfg.Database.Enabled = true
	if cfg.Database.ProfilesTable == "" {
		cfg.Database.ProfilesTable = cfg.Auth.ProfilesTable
	}
	cfg.Database.ApplyDefaults()
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("hybrid: %w", err)
	}

	client := o.client
	if client == nil {
		var err error
		if client, err = supabase.NewHTTPClient(cfg.Auth); err != nil {
			return nil, fmt.Errorf("hybrid: %w", err)
		}
	}
	return &Provider{
		Auth:   supabase.NewAuth(client, cfg.Auth.RefreshSkew),
		client: client,
		db:     pgstore.NewComponent(cfg.Database, o.database...),
		log:    logger.Get("hybrid"),
	}, nil
}

// Factory returns a backend.Factory for the registry.
func Factory(cfg Config, opts ...Option) backend.Factory {
	return func() (backend.Provider, error) {
		return New(cfg, opts...)
	}
}

func (p *Provider) Kind() backend.Kind { return backend.KindHybrid }

func (p *Provider) Name() string { return "Hybrid (Supabase auth + PostgreSQL)" }

// Initialize connects the database.
func (p *Provider) Initialize(ctx context.Context) error {
	if err := p.db.Start(ctx); err != nil {
		return errors.ConnectionFailed("postgres").WithCause(err)
	}
	p.ready.Store(true)
	p.log.Debug("hybrid adapter initialized")
	return nil
}

// Cleanup drops the session and closes the database.
func (p *Provider) Cleanup(ctx context.Context) error {
	p.ready.Store(false)
	p.Auth.Reset()
	p.client.CloseIdleConnections()
	return p.db.Stop(ctx)
}

// IsAvailable reports whether both the database and the auth service answer.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if !p.ready.Load() {
		return false
	}
	return p.db.Health(ctx).OK() && p.Auth.Healthy(ctx)
}

func (p *Provider) store() (*pgstore.Store, *errors.AppError) {
	s := p.db.Store()
	if s == nil {
		return nil, errors.ServiceUnavailable("postgres").WithHint("the hybrid backend is not initialized")
	}
	return s, nil
}

func (p *Provider) GetUserProfile(ctx context.Context, id string) (*backend.UserProfile, error) {
	s, err := p.store()
	if err != nil {
		return nil, err
	}
	return s.GetUserProfile(ctx, id)
}

func (p *Provider) CreateUserProfile(ctx context.Context, id string, profile backend.UserProfile) (*backend.UserProfile, error) {
	s, err := p.store()
	if err != nil {
		return nil, err
	}
	return s.CreateUserProfile(ctx, id, profile)
}

func (p *Provider) UpdateUserProfile(ctx context.Context, id string, update backend.ProfileUpdate) (*backend.UserProfile, error) {
	s, err := p.store()
	if err != nil {
		return nil, err
	}
	return s.UpdateUserProfile(ctx, id, update)
}

func (p *Provider) Query(ctx context.Context, q backend.Query) backend.Result[[]backend.Record] {
	s, err := p.store()
	if err != nil {
		return backend.Fail[[]backend.Record](err)
	}
	return s.Query(ctx, q)
}

func (p *Provider) QueryOne(ctx context.Context, q backend.Query) backend.Result[backend.Record] {
	s, err := p.store()
	if err != nil {
		return backend.Fail[backend.Record](err)
	}
	return s.QueryOne(ctx, q)
}

func (p *Provider) Insert(ctx context.Context, table string, rec backend.Record) backend.Result[backend.Record] {
	s, err := p.store()
	if err != nil {
		return backend.Fail[backend.Record](err)
	}
	return s.Insert(ctx, table, rec)
}

func (p *Provider) Update(ctx context.Context, table, id string, rec backend.Record) backend.Result[backend.Record] {
	s, err := p.store()
	if err != nil {
		return backend.Fail[backend.Record](err)
	}
	return s.Update(ctx, table, id, rec)
}

func (p *Provider) Delete(ctx context.Context, table, id string) backend.Result[struct{}] {
	s, err := p.store()
	if err != nil {
		return backend.Fail[struct{}](err)
	}
	return s.Delete(ctx, table, id)
}

func (p *Provider) CallFunction(ctx context.Context, name string, params map[string]any) backend.Result[json.RawMessage] {
	s, err := p.store()
	if err != nil {
		return backend.Fail[json.RawMessage](err)
	}
	return s.CallFunction(ctx, name, params)
}
