package provisioning

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/observability"
	"github.com/kbukum/bizbackend/resilience"
	"github.com/kbukum/bizbackend/validation"
)

const metricsComponent = "provisioning"

// Source yields the active backend. The protocol asks for it at every step,
// so a switch made while a run is in progress is picked up by the next step.
type Source interface {
	Provider() backend.Provider
}

// SourceFunc adapts a function to Source.
type SourceFunc func() backend.Provider

func (f SourceFunc) Provider() backend.Provider { return f() }

// Outcome says how the profile row was established.
type Outcome string

const (
	OutcomeExisting  Outcome = "existing"
	OutcomeSynced    Outcome = "synced"
	OutcomeInserted  Outcome = "inserted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomePolled    Outcome = "polled"
	OutcomeVerified  Outcome = "verified"
	OutcomeFailed    Outcome = "failed"
)

// Report describes one run.
type Report struct {
	Outcome    Outcome       `json:"outcome"`
	Inserts    int           `json:"inserts"`
	Polls      int           `json:"polls"`
	SyncCalled bool          `json:"sync_called"`
	Waited     time.Duration `json:"waited"`
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithSleep replaces the timer-based wait used for the confirm delay and
// polling.
func WithSleep(fn resilience.SleepFunc) Option {
	return func(p *Protocol) { p.sleep = fn }
}

// WithMetrics records one operation per run.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Protocol) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Protocol) { p.log = l }
}

// Protocol makes sure a profile row exists for an identity before anything
// that references it is written.
type Protocol struct {
	source  Source
	cfg     Config
	sleep   resilience.SleepFunc
	metrics *observability.Metrics
	log     *logger.Logger
}

// New creates a Protocol reading the active backend from source.
func New(source Source, cfg Config, opts ...Option) (*Protocol, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("provisioning config: %w", err)
	}
	p := &Protocol{
		source: source,
		cfg:    cfg,
		sleep:  resilience.Sleep,
		log:    logger.Get("provisioning"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective settings.
func (p *Protocol) Config() Config {
	return p.cfg
}

// Ensure returns the profile for identity, creating it if needed. It fails
// with PROVISIONING_FAILED, carrying an operator hint, when no row could be
// established within the configured budget.
func (p *Protocol) Ensure(ctx context.Context, identity backend.AuthIdentity) (*backend.UserProfile, error) {
	profile, _, err := p.EnsureWithReport(ctx, identity)
	return profile, err
}

// EnsureCurrent provisions the identity of the active session. It fails
// with UNAUTHORIZED when nobody is signed in.
func (p *Protocol) EnsureCurrent(ctx context.Context) (*backend.UserProfile, Report, error) {
	session, err := p.source.Provider().CurrentSession(ctx)
	if err != nil {
		return nil, Report{}, err
	}
	if session == nil {
		return nil, Report{}, errors.Unauthorized("sign in before provisioning a profile")
	}
	return p.EnsureWithReport(ctx, session.User)
}

// WithProfile runs fn only after the profile for identity is established.
// A provisioning failure is returned unchanged and fn is not called.
func (p *Protocol) WithProfile(ctx context.Context, identity backend.AuthIdentity, fn func(context.Context, *backend.UserProfile) error) error {
	profile, err := p.Ensure(ctx, identity)
	if err != nil {
		return err
	}
	return fn(ctx, profile)
}

// EnsureWithReport is Ensure plus a description of what the run did.
func (p *Protocol) EnsureWithReport(ctx context.Context, identity backend.AuthIdentity) (*backend.UserProfile, Report, error) {
	if appErr := validation.New().Required("id", identity.ID).Validate(); appErr != nil {
		return nil, Report{}, appErr
	}
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "provisioning.ensure")
	defer span.End()
	observability.SetSpanAttribute(ctx, "user.id", identity.ID)

	r := &run{
		p:        p,
		identity: identity,
		log:      p.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldUserID, identity.ID)),
	}
	profile, err := r.execute(ctx)
	if err != nil {
		r.report.Outcome = OutcomeFailed
		observability.SetSpanError(ctx, err)
		p.metrics.RecordError(ctx, string(errors.CodeOf(err)), metricsComponent)
	}
	observability.SetSpanAttribute(ctx, "provisioning.outcome", string(r.report.Outcome))
	observability.SetSpanAttribute(ctx, "provisioning.inserts", r.report.Inserts)
	observability.SetSpanAttribute(ctx, "provisioning.polls", r.report.Polls)
	p.metrics.RecordOperation(ctx, metricsComponent, "ensure", string(r.report.Outcome), time.Since(start))
	return profile, r.report, err
}

// errNotVisible marks a poll that did not find the row.
var errNotVisible = stderrors.New("profile row not visible yet")

// run is the state of one Ensure call.
type run struct {
	p        *Protocol
	identity backend.AuthIdentity
	log      *logger.Logger
	report   Report
	lastErr  error
}

func (r *run) execute(ctx context.Context) (*backend.UserProfile, error) {
	if profile := r.lookup(ctx, "existence check"); profile != nil {
		return r.done(OutcomeExisting, profile), nil
	}

	profile, err := r.sync(ctx)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return r.done(OutcomeSynced, profile), nil
	}

	profile, outcome, err := r.insert(ctx)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return r.done(outcome, profile), nil
	}

	if profile := r.lookup(ctx, "final verification"); profile != nil {
		return r.done(OutcomeVerified, profile), nil
	}
	return nil, r.fail()
}

func (r *run) done(outcome Outcome, profile *backend.UserProfile) *backend.UserProfile {
	r.report.Outcome = outcome
	r.log.Debug("profile provisioned", logger.Fields(
		"outcome", outcome,
		"inserts", r.report.Inserts,
		"polls", r.report.Polls,
	))
	return profile
}

// lookup reads the row. A read failure counts as absence.
func (r *run) lookup(ctx context.Context, step string) *backend.UserProfile {
	profile, err := r.p.source.Provider().GetUserProfile(ctx, r.identity.ID)
	if err != nil {
		r.lastErr = err
		r.log.Warn("profile lookup failed", logger.Fields(
			"step", step,
			logger.FieldCode, errors.CodeOf(err),
			logger.FieldError, err.Error(),
		))
		return nil
	}
	return profile
}

// sync calls the remote function. Only a cancelled wait is an error; every
// backend failure falls through to the insert.
func (r *run) sync(ctx context.Context) (*backend.UserProfile, error) {
	fn := r.p.cfg.SyncFunction
	if fn == "" {
		return nil, nil
	}
	r.report.SyncCalled = true
	res := r.p.source.Provider().CallFunction(ctx, fn, map[string]any{"user_id": r.identity.ID})
	switch {
	case res.Error == nil:
		if err := r.wait(ctx, r.p.cfg.ConfirmDelay); err != nil {
			return nil, err
		}
		return r.lookup(ctx, "sync confirmation"), nil
	case res.Error.Code == errors.ErrCodeFunctionNotFound:
		r.log.Debug("backend has no profile sync function", logger.Fields(logger.FieldFunction, fn))
	default:
		r.lastErr = res.Error
		r.log.Warn("profile sync function failed", logger.Fields(
			logger.FieldFunction, fn,
			logger.FieldCode, res.Error.Code,
			logger.FieldError, res.Error.Message,
		))
	}
	return nil, nil
}

// insert writes the row directly and classifies the outcome.
func (r *run) insert(ctx context.Context) (*backend.UserProfile, Outcome, error) {
	r.report.Inserts++
	profile, err := r.p.source.Provider().CreateUserProfile(ctx, r.identity.ID, backend.UserProfile{
		ID:    r.identity.ID,
		Email: r.identity.Email,
		Name:  r.identity.Metadata.DisplayName(),
	})
	if err == nil {
		return profile, OutcomeInserted, nil
	}
	r.lastErr = err

	switch errors.CodeOf(err) {
	case errors.ErrCodeAlreadyExists:
		if profile := r.lookup(ctx, "duplicate read-back"); profile != nil {
			return profile, OutcomeDuplicate, nil
		}
		// The row exists even though it cannot be read back yet.
		return &backend.UserProfile{
			ID:    r.identity.ID,
			Email: r.identity.Email,
			Name:  r.identity.Metadata.DisplayName(),
		}, OutcomeDuplicate, nil
	case errors.ErrCodeForbidden:
		r.log.Debug("direct insert rejected by access policy, polling", logger.Fields(
			logger.FieldAttempt, r.p.cfg.PollAttempts,
			"interval", r.p.cfg.PollInterval.String(),
		))
		profile, err := r.poll(ctx)
		return profile, OutcomePolled, err
	default:
		r.log.Warn("direct profile insert failed", logger.Fields(
			logger.FieldCode, errors.CodeOf(err),
			logger.FieldError, err.Error(),
		))
		return nil, "", nil
	}
}

// poll re-reads the row a bounded number of times, waiting the fixed
// interval before each read.
func (r *run) poll(ctx context.Context) (*backend.UserProfile, error) {
	cfg := resilience.FixedBackoff(r.p.cfg.PollAttempts, r.p.cfg.PollInterval)
	cfg.DelayFirst = true
	cfg.Sleep = r.wait
	cfg.RetryIf = func(err error) bool { return stderrors.Is(err, errNotVisible) }

	profile, err := resilience.Retry(ctx, cfg, func() (*backend.UserProfile, error) {
		r.report.Polls++
		if profile := r.lookup(ctx, "poll"); profile != nil {
			return profile, nil
		}
		return nil, errNotVisible
	})
	if stderrors.Is(err, errNotVisible) {
		return nil, nil
	}
	return profile, err
}

func (r *run) wait(ctx context.Context, d time.Duration) error {
	r.report.Waited += d
	if err := r.p.sleep(ctx, d); err != nil {
		return fmt.Errorf("provisioning interrupted: %w", err)
	}
	return nil
}

func (r *run) fail() *errors.AppError {
	id := r.identity.ID
	appErr := errors.ProvisioningFailed(id).
		WithHint(r.p.cfg.hint(id)).
		WithDetails(map[string]any{
			"inserts":     r.report.Inserts,
			"polls":       r.report.Polls,
			"sync_called": r.report.SyncCalled,
		})
	if r.lastErr != nil {
		appErr.WithCause(r.lastErr)
		if code := errors.CodeOf(r.lastErr); code != "" {
			appErr.WithDetail("last_error_code", string(code))
		}
	}
	r.log.Error("profile provisioning failed", logger.Fields(
		"inserts", r.report.Inserts,
		"polls", r.report.Polls,
	))
	return appErr
}
