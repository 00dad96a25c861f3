package hybrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/pgstore"
	"github.com/kbukum/bizbackend/supabase"
)

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "password" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"expires_at":    time.Now().Add(time.Hour).Unix(),
			"user":          map[string]any{"id": "5f0c2c4e-2b7a-4c43-9d6e-0d3c1a7e9b10", "email": "ada@example.com"},
		})
	})
	mux.HandleFunc("GET /auth/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T) *Provider {
	t.Helper()
	srv := newAuthServer(t)
	cfg := Config{
		Auth:     supabase.Config{URL: srv.URL, AnonKey: "anon"},
		Database: pgstore.Config{DSN: "unused", MaxOpenConns: 1, MaxIdleConns: 1, AutoMigrate: true, LogLevel: "silent"},
	}
	p, err := New(cfg, WithDatabaseOptions(pgstore.WithDialector(sqlite.Open("file::memory:"))))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Cleanup(context.Background()) })
	return p
}

func TestProvider_NotInitialized(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	if p.IsAvailable(ctx) {
		t.Error("expected unavailable before Initialize")
	}
	_, err := p.GetUserProfile(ctx, "u1")
	if errors.CodeOf(err) != errors.ErrCodeServiceUnavailable {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if res := p.Query(ctx, backend.From("users")); res.Error == nil || res.Error.Code != errors.ErrCodeServiceUnavailable {
		t.Errorf("expected SERVICE_UNAVAILABLE from Query, got %v", res.Error)
	}
}

func TestProvider_AuthAndProfiles(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	if p.Kind() != backend.KindHybrid {
		t.Errorf("expected kind hybrid, got %s", p.Kind())
	}
	if err := p.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !p.IsAvailable(ctx) {
		t.Error("expected available after Initialize")
	}

	identity, err := p.SignIn(ctx, "ada@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	session, err := p.CurrentSession(ctx)
	if err != nil || session == nil {
		t.Fatalf("expected a session, got %v / %v", session, err)
	}

	if got, err := p.GetUserProfile(ctx, identity.ID); err != nil || got != nil {
		t.Fatalf("expected no profile yet, got %v / %v", got, err)
	}
	created, err := p.CreateUserProfile(ctx, identity.ID, backend.UserProfile{Email: identity.Email})
	if err != nil {
		t.Fatalf("CreateUserProfile failed: %v", err)
	}
	if created.Email != "ada@example.com" {
		t.Errorf("expected ada@example.com, got %s", created.Email)
	}
	if _, err := p.CreateUserProfile(ctx, identity.ID, backend.UserProfile{Email: identity.Email}); errors.CodeOf(err) != errors.ErrCodeAlreadyExists {
		t.Errorf("expected ALREADY_EXISTS on second create, got %v", err)
	}

	res := p.CallFunction(ctx, "ensure_user_profile", map[string]any{"user_id": identity.ID})
	if res.Error == nil || res.Error.Code != errors.ErrCodeFunctionNotFound {
		t.Errorf("expected FUNCTION_NOT_FOUND without postgres, got %v", res.Error)
	}

	if err := p.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if session, _ := p.CurrentSession(ctx); session != nil {
		t.Error("expected session dropped by Cleanup")
	}
	if p.IsAvailable(ctx) {
		t.Error("expected unavailable after Cleanup")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing auth settings")
	}
	_, err := New(Config{Auth: supabase.Config{URL: "http://localhost", AnonKey: "k"}})
	if err == nil {
		t.Error("expected error for missing database DSN")
	}
}
