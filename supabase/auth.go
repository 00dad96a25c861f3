package supabase

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/httpclient"
	"github.com/kbukum/bizbackend/logger"
)

// Auth is the GoTrue client. It holds the session in memory only and is
// shared by the supabase and hybrid adapters.
type Auth struct {
	client    *httpclient.Client
	skew      time.Duration
	now       func() time.Time
	log       *logger.Logger
	listeners backend.AuthListeners
	refresh   singleflight.Group

	mu      sync.Mutex
	session *backend.AuthSession
}

// NewAuth creates an Auth on client. client must carry the apikey header.
func NewAuth(client *httpclient.Client, refreshSkew time.Duration) *Auth {
	return &Auth{
		client: client,
		skew:   refreshSkew,
		now:    time.Now,
		log:    logger.Get("supabase"),
	}
}

// SignUp registers email. When the project auto-confirms, the returned
// session is installed and SIGNED_IN is emitted.
func (a *Auth) SignUp(ctx context.Context, email, password string, meta backend.Metadata) (*backend.AuthIdentity, error) {
	if email == "" || password == "" {
		return nil, errors.InvalidInput("email", "email and password are required")
	}
	resp, err := a.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/signup",
		Body: map[string]any{
			"email":    email,
			"password": password,
			"data":     meta,
		},
	})
	if err != nil {
		return nil, translateAuth(err, "sign-up")
	}
	identity, session, err := parseAuthBody(resp.Body, a.now())
	if err != nil {
		return nil, errors.ExternalServiceError(backendName, err)
	}
	if session != nil {
		a.install(session, backend.AuthSignedIn)
	}
	return identity, nil
}

// SignIn exchanges the password for a session.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*backend.AuthIdentity, error) {
	if email == "" || password == "" {
		return nil, errors.InvalidInput("email", "email and password are required")
	}
	session, err := a.token(ctx, "password", map[string]any{"email": email, "password": password})
	if err != nil {
		return nil, translateAuth(err, "sign-in")
	}
	if session == nil {
		return nil, errors.AuthFailed("sign-in returned no session")
	}
	a.install(session, backend.AuthSignedIn)
	user := session.User
	return &user, nil
}

// SignOut drops the session and revokes it remotely. The local session is
// dropped even when revocation fails; only a transport failure is returned.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	session := a.session
	a.session = nil
	a.mu.Unlock()

	if session == nil {
		return nil
	}
	_, err := a.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/logout",
		Auth:   httpclient.BearerAuth(session.AccessToken),
	})
	a.listeners.Emit(backend.AuthSignedOut, nil)
	if err == nil || httpclient.IsAuth(err) {
		return nil
	}
	if herr, ok := httpclient.AsError(err); ok && (herr.Code == httpclient.ErrCodeConnection || herr.Code == httpclient.ErrCodeTimeout) {
		return translateAuth(err, "sign-out")
	}
	a.log.Warn("remote sign-out failed", logger.Fields(logger.FieldError, err.Error()))
	return nil
}

// CurrentSession returns the session, refreshing it when it is about to
// expire. Concurrent callers share one refresh per refresh token. A rejected
// refresh signs the user out and returns nil, unless another caller already
// installed a newer session.
func (a *Auth) CurrentSession(ctx context.Context) (*backend.AuthSession, error) {
	session := a.current()
	if session == nil {
		return nil, nil
	}
	if !session.Expired(a.now(), a.skew) {
		return session, nil
	}
	if session.RefreshToken == "" {
		return a.drop(session), nil
	}

	v, err, _ := a.refresh.Do(session.RefreshToken, func() (interface{}, error) {
		return a.refreshSession(context.WithoutCancel(ctx), session)
	})
	if err != nil {
		return nil, err
	}
	refreshed, _ := v.(*backend.AuthSession)
	return refreshed, nil
}

// refreshSession exchanges the refresh token of seen. If seen was already
// replaced, the current session is returned without a request.
func (a *Auth) refreshSession(ctx context.Context, seen *backend.AuthSession) (*backend.AuthSession, error) {
	if cur := a.current(); cur != seen {
		return cur, nil
	}
	refreshed, err := a.token(ctx, "refresh_token", map[string]any{"refresh_token": seen.RefreshToken})
	if err != nil {
		appErr := translateAuth(err, "refresh")
		if appErr.Retryable {
			return nil, appErr
		}
		a.log.Info("session refresh rejected", logger.Fields(logger.FieldUserID, seen.User.ID, logger.FieldCode, appErr.BackendCode()))
		return a.drop(seen), nil
	}
	if refreshed == nil {
		return a.drop(seen), nil
	}
	a.install(refreshed, backend.AuthTokenRefreshed)
	return refreshed, nil
}

// AccessToken returns the bearer for data requests, or "" when signed out.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	session, err := a.CurrentSession(ctx)
	if err != nil || session == nil {
		return "", err
	}
	return session.AccessToken, nil
}

// OnAuthStateChange registers fn for session transitions.
func (a *Auth) OnAuthStateChange(fn backend.AuthListener) func() {
	return a.listeners.Subscribe(fn)
}

// Healthy reports whether the auth service answers its health endpoint.
func (a *Auth) Healthy(ctx context.Context) bool {
	resp, err := a.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/auth/v1/health"})
	return err == nil && resp.IsSuccess()
}

// Reset forgets the session without calling the backend.
func (a *Auth) Reset() {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
}

func (a *Auth) token(ctx context.Context, grant string, body map[string]any) (*backend.AuthSession, error) {
	resp, err := a.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/token",
		Query:  url.Values{"grant_type": {grant}},
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	_, session, err := parseAuthBody(resp.Body, a.now())
	if err != nil {
		return nil, errors.ExternalServiceError(backendName, err)
	}
	return session, nil
}

func (a *Auth) install(session *backend.AuthSession, event backend.AuthEventType) {
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	a.listeners.Emit(event, session)
}

func (a *Auth) current() *backend.AuthSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// drop clears the session if it is still the one the caller saw. Otherwise
// it returns the session that replaced it.
func (a *Auth) drop(seen *backend.AuthSession) *backend.AuthSession {
	a.mu.Lock()
	if a.session != seen {
		cur := a.session
		a.mu.Unlock()
		return cur
	}
	a.session = nil
	a.mu.Unlock()
	a.listeners.Emit(backend.AuthSignedOut, nil)
	return nil
}
