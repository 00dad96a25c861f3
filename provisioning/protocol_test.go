package provisioning

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/observability"
)

const userID = "5f0c2c4e-2b7a-4c43-9d6e-0d3c1a7e9b10"

var identity = backend.AuthIdentity{
	ID:       userID,
	Email:    "ada@example.com",
	Metadata: backend.Metadata{FullName: "Ada Lovelace"},
}

// fakeBackend models a profiles table behind an access policy and an
// optional trigger.
type fakeBackend struct {
	backend.Unavailable

	mu      sync.Mutex
	row     *backend.UserProfile
	session *backend.AuthSession
	// appearOnGet makes the trigger's row visible from that read on (1-based).
	appearOnGet int
	insertErr   error
	rpcErr      *errors.AppError
	rpcCreates  bool

	gets, inserts, rpcCalls int
}

func newFake() *fakeBackend {
	return &fakeBackend{
		Unavailable: backend.Unavailable{ProviderKind: backend.KindSupabase},
		rpcErr:      errors.FunctionNotFound(DefaultSyncFunction),
	}
}

func (f *fakeBackend) triggerRow() *backend.UserProfile {
	return &backend.UserProfile{ID: userID, Email: identity.Email, CreatedAt: time.Unix(1700000000, 0).UTC()}
}

func (f *fakeBackend) GetUserProfile(_ context.Context, id string) (*backend.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.row == nil && f.appearOnGet > 0 && f.gets >= f.appearOnGet {
		f.row = f.triggerRow()
	}
	if f.row == nil || f.row.ID != id {
		return nil, nil
	}
	p := *f.row
	return &p, nil
}

func (f *fakeBackend) CreateUserProfile(_ context.Context, id string, profile backend.UserProfile) (*backend.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if f.row != nil {
		return nil, errors.AlreadyExists("users")
	}
	profile.ID = id
	profile.CreatedAt = time.Unix(1700000000, 0).UTC()
	f.row = &profile
	p := profile
	return &p, nil
}

func (f *fakeBackend) CallFunction(_ context.Context, name string, params map[string]any) backend.Result[json.RawMessage] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rpcCalls++
	if params["user_id"] != userID {
		return backend.Fail[json.RawMessage](errors.InvalidInput("user_id", "unexpected"))
	}
	if f.rpcErr != nil {
		return backend.Fail[json.RawMessage](f.rpcErr)
	}
	if f.rpcCreates && f.row == nil {
		f.row = f.triggerRow()
	}
	return backend.OK(json.RawMessage(`null`))
}

func (f *fakeBackend) CurrentSession(context.Context) (*backend.AuthSession, error) {
	return f.session, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func (s *sleepRecorder) total() time.Duration {
	var sum time.Duration
	for _, d := range s.waits {
		sum += d
	}
	return sum
}

func newProtocol(t *testing.T, f *fakeBackend, opts ...Option) (*Protocol, *sleepRecorder, *int) {
	t.Helper()
	rec := &sleepRecorder{}
	fetches := 0
	source := SourceFunc(func() backend.Provider {
		fetches++
		return f
	})
	opts = append([]Option{WithSleep(rec.sleep), WithLogger(logger.Nop())}, opts...)
	p, err := New(source, Config{}, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p, rec, &fetches
}

func TestEnsure_ExistingRow(t *testing.T) {
	f := newFake()
	f.row = f.triggerRow()
	p, rec, _ := newProtocol(t, f)

	profile, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if profile.ID != userID {
		t.Errorf("expected profile %s, got %s", userID, profile.ID)
	}
	if report.Outcome != OutcomeExisting || report.Inserts != 0 || report.SyncCalled {
		t.Errorf("expected existing with no writes, got %+v", report)
	}
	if f.rpcCalls != 0 || f.inserts != 0 || len(rec.waits) != 0 {
		t.Errorf("expected no rpc, insert or wait, got rpc=%d inserts=%d waits=%v", f.rpcCalls, f.inserts, rec.waits)
	}
}

func TestEnsure_SyncFunctionCreatesRow(t *testing.T) {
	f := newFake()
	f.rpcErr = nil
	f.rpcCreates = true
	p, rec, _ := newProtocol(t, f)

	_, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.Outcome != OutcomeSynced || !report.SyncCalled {
		t.Errorf("expected synced, got %+v", report)
	}
	if f.inserts != 0 {
		t.Errorf("expected no direct insert, got %d", f.inserts)
	}
	if len(rec.waits) != 1 || rec.waits[0] != DefaultConfirmDelay {
		t.Errorf("expected one confirm delay of %s, got %v", DefaultConfirmDelay, rec.waits)
	}
}

func TestEnsure_DirectInsert(t *testing.T) {
	f := newFake()
	p, _, _ := newProtocol(t, f)

	profile, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.Outcome != OutcomeInserted || report.Inserts != 1 || !report.SyncCalled {
		t.Errorf("expected one insert after a missing sync function, got %+v", report)
	}
	if profile.Name != "Ada Lovelace" || profile.Email != identity.Email {
		t.Errorf("expected name and email from the identity, got %+v", profile)
	}
}

// A trigger creates the row 4 seconds after sign-up while the access policy
// rejects the client insert.
func TestEnsure_PermissionDeniedThenRowAppears(t *testing.T) {
	f := newFake()
	f.insertErr = errors.PermissionDenied("new row violates row-level security policy")
	f.appearOnGet = 3 // existence check, poll 1, poll 2
	p, rec, fetches := newProtocol(t, f)

	profile, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if profile == nil || profile.ID != userID {
		t.Fatalf("expected profile %s, got %v", userID, profile)
	}
	if report.Outcome != OutcomePolled {
		t.Errorf("expected outcome polled, got %s", report.Outcome)
	}
	if f.inserts != 1 || report.Polls != 2 {
		t.Errorf("expected 1 insert and 2 polls, got %d inserts and %d polls", f.inserts, report.Polls)
	}
	if rec.total() != 4*time.Second || report.Waited != 4*time.Second {
		t.Errorf("expected 4s of waiting, got %v (report %v)", rec.waits, report.Waited)
	}
	if want := f.gets + f.inserts + f.rpcCalls; *fetches != want {
		t.Errorf("expected a fresh provider for each of %d steps, got %d fetches", want, *fetches)
	}
}

func TestEnsure_FailsAfterBudget(t *testing.T) {
	f := newFake()
	f.insertErr = errors.PermissionDenied("new row violates row-level security policy")
	p, rec, _ := newProtocol(t, f)

	written := false
	err := p.WithProfile(context.Background(), identity, func(context.Context, *backend.UserProfile) error {
		written = true
		return nil
	})
	if written {
		t.Fatal("dependent write must not run without a profile")
	}

	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeProvisioningFailed {
		t.Fatalf("expected PROVISIONING_FAILED, got %v", err)
	}
	if !appErr.Retryable {
		t.Error("expected the failure to be retryable for the user")
	}
	if !strings.Contains(appErr.Hint, "ensure_user_profile('"+userID+"')") {
		t.Errorf("expected remediation naming the user, got %q", appErr.Hint)
	}
	if appErr.Details["polls"] != DefaultPollAttempts || appErr.Details["last_error_code"] != string(errors.ErrCodeForbidden) {
		t.Errorf("expected poll count and last error in details, got %v", appErr.Details)
	}
	if f.inserts != 1 {
		t.Errorf("expected exactly 1 insert, got %d", f.inserts)
	}
	if len(rec.waits) != DefaultPollAttempts || rec.total() != 6*time.Second {
		t.Errorf("expected %d waits totalling 6s, got %v", DefaultPollAttempts, rec.waits)
	}
	// existence check + polls + final verification
	if want := 1 + DefaultPollAttempts + 1; f.gets != want {
		t.Errorf("expected %d reads, got %d", want, f.gets)
	}
}

func TestEnsure_DuplicateKeyIsSuccess(t *testing.T) {
	f := newFake()
	f.insertErr = errors.AlreadyExists("users")
	f.appearOnGet = 2 // the row lands between the existence check and the insert
	p, rec, _ := newProtocol(t, f)

	profile, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.Outcome != OutcomeDuplicate || report.Polls != 0 {
		t.Errorf("expected duplicate without polling, got %+v", report)
	}
	if profile.CreatedAt.IsZero() {
		t.Errorf("expected the stored row, got %+v", profile)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected no waits, got %v", rec.waits)
	}
}

func TestEnsure_DuplicateKeyWithoutReadBack(t *testing.T) {
	f := newFake()
	f.insertErr = errors.AlreadyExists("users")
	p, _, _ := newProtocol(t, f)

	profile, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.Outcome != OutcomeDuplicate || profile.ID != userID || profile.Email != identity.Email {
		t.Errorf("expected a profile built from the identity, got %+v / %+v", profile, report)
	}
}

func TestEnsure_OtherInsertErrorFallsThroughToVerification(t *testing.T) {
	f := newFake()
	f.insertErr = errors.DatabaseError(nil)
	f.appearOnGet = 2
	p, _, _ := newProtocol(t, f)

	_, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.Outcome != OutcomeVerified || report.Polls != 0 {
		t.Errorf("expected verified without polling, got %+v", report)
	}
}

func TestEnsure_SyncFailureIsNotFatal(t *testing.T) {
	f := newFake()
	f.rpcErr = errors.ExternalServiceError("supabase", nil)
	p, _, _ := newProtocol(t, f)

	_, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.Outcome != OutcomeInserted {
		t.Errorf("expected inserted after a failed sync, got %s", report.Outcome)
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	f := newFake()
	p, _, _ := newProtocol(t, f)
	ctx := context.Background()

	first, _, err := p.EnsureWithReport(ctx, identity)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	insertsBefore, rpcBefore := f.inserts, f.rpcCalls

	second, report, err := p.EnsureWithReport(ctx, identity)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if f.inserts != insertsBefore || f.rpcCalls != rpcBefore || report.Inserts != 0 {
		t.Errorf("expected zero writes on the second run, got %d inserts and %d rpc calls", f.inserts-insertsBefore, f.rpcCalls-rpcBefore)
	}
	if *first != *second {
		t.Errorf("expected the same profile, got %+v and %+v", first, second)
	}
}

func TestEnsure_SyncDisabled(t *testing.T) {
	f := newFake()
	rec := &sleepRecorder{}
	p, err := New(SourceFunc(func() backend.Provider { return f }), Config{SyncFunction: "-"}, WithSleep(rec.sleep))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.SyncCalled || f.rpcCalls != 0 {
		t.Errorf("expected no sync call, got %d", f.rpcCalls)
	}
}

func TestEnsure_CancelledWhilePolling(t *testing.T) {
	f := newFake()
	f.insertErr = errors.PermissionDenied("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := New(SourceFunc(func() backend.Provider { return f }), Config{PollInterval: time.Hour}, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, _, err = p.EnsureWithReport(ctx, identity)
	if err == nil || !strings.Contains(err.Error(), "context canceled") {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if f.inserts != 1 {
		t.Errorf("expected the insert before polling, got %d", f.inserts)
	}
}

func TestEnsure_RequiresIdentity(t *testing.T) {
	p, _, _ := newProtocol(t, newFake())
	_, err := p.Ensure(context.Background(), backend.AuthIdentity{})
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestEnsureCurrent(t *testing.T) {
	f := newFake()
	p, _, _ := newProtocol(t, f)
	ctx := context.Background()

	if _, _, err := p.EnsureCurrent(ctx); errors.CodeOf(err) != errors.ErrCodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED without a session, got %v", err)
	}

	f.session = &backend.AuthSession{User: identity, AccessToken: "t"}
	profile, report, err := p.EnsureCurrent(ctx)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if profile.ID != userID || report.Outcome != OutcomeInserted {
		t.Errorf("expected inserted profile for the session user, got %+v / %+v", profile, report)
	}
}

func TestEnsure_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	f := newFake()
	f.insertErr = errors.PermissionDenied("")
	p, _, _ := newProtocol(t, f, WithMetrics(metrics))
	ctx := context.Background()

	_, _ = p.Ensure(ctx, identity)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	outcomes := map[string]int64{}
	errorsByCode := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch md.Name {
				case "backend.operation.total":
					v, _ := dp.Attributes.Value("outcome")
					outcomes[v.AsString()] += dp.Value
				case "backend.error.total":
					v, _ := dp.Attributes.Value("code")
					errorsByCode[v.AsString()] += dp.Value
				}
			}
		}
	}
	if outcomes[string(OutcomeFailed)] != 1 {
		t.Errorf("expected one failed operation, got %v", outcomes)
	}
	if errorsByCode[string(errors.ErrCodeProvisioningFailed)] != 1 {
		t.Errorf("expected one PROVISIONING_FAILED error, got %v", errorsByCode)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults %+v, got %+v", DefaultConfig(), cfg)
	}

	noWait := Config{ConfirmDelay: -1, PollInterval: -time.Second}
	noWait.ApplyDefaults()
	if noWait.ConfirmDelay != 0 || noWait.PollInterval != 0 {
		t.Errorf("expected negative delays to become zero, got %v and %v", noWait.ConfirmDelay, noWait.PollInterval)
	}
	if err := noWait.Validate(); err != nil {
		t.Errorf("expected zero delays to be valid, got %v", err)
	}

	bad := Config{PollAttempts: -1, SyncFunction: "drop table"}
	if _, err := New(SourceFunc(func() backend.Provider { return newFake() }), bad); err == nil {
		t.Error("expected invalid config to be rejected")
	}
}

func TestEnsure_ZeroPollInterval(t *testing.T) {
	f := newFake()
	f.insertErr = errors.PermissionDenied("new row violates row-level security policy")
	f.appearOnGet = 3
	rec := &sleepRecorder{}
	p, err := New(SourceFunc(func() backend.Provider { return f }), Config{PollInterval: -1},
		WithSleep(rec.sleep), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, report, err := p.EnsureWithReport(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if report.Polls != 2 {
		t.Errorf("expected 2 polls, got %d", report.Polls)
	}
	if rec.total() != 0 || report.Waited != 0 {
		t.Errorf("expected no waiting, got %v (report %v)", rec.waits, report.Waited)
	}
}
