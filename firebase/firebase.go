// Package firebase registers the document-store backend. Its client SDK is
// not part of this build, so the adapter fails fast: Initialize and every
// data or auth call return NOT_IMPLEMENTED, and IsAvailable is false.
package firebase

import (
	"github.com/kbukum/bizbackend/backend"
)

// Config identifies the Firebase project the adapter would serve.
type Config struct {
	ProjectID string `mapstructure:"project_id"`
	APIKey    string `mapstructure:"api_key"`
}

const unavailableReason = "the firebase client is not included in this build; switch to supabase or hybrid"

// Provider is the Firebase adapter.
type Provider struct {
	backend.Unavailable
	cfg Config
}

var _ backend.Provider = (*Provider)(nil)

// New builds the adapter.
func New(cfg Config) *Provider {
	return &Provider{
		Unavailable: backend.Unavailable{ProviderKind: backend.KindFirebase, Reason: unavailableReason},
		cfg:         cfg,
	}
}

// Factory returns a backend.Factory for the registry.
func Factory(cfg Config) backend.Factory {
	return func() (backend.Provider, error) {
		return New(cfg), nil
	}
}

func (p *Provider) Name() string {
	if p.cfg.ProjectID == "" {
		return "Firebase"
	}
	return "Firebase (" + p.cfg.ProjectID + ")"
}
