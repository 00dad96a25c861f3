package backend

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kbukum/bizbackend/errors"
)

func TestMetadata_JSON(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"name":"Ada","phone":"123","plan":"pro","age":3}`), &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m.Name != "Ada" || m.Phone != "123" {
		t.Errorf("known keys not typed: %+v", m)
	}
	if m.Extra["plan"] != "pro" || m.Extra["age"] != float64(3) {
		t.Errorf("unknown keys not kept: %v", m.Extra)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var flat map[string]any
	_ = json.Unmarshal(out, &flat)
	if flat["name"] != "Ada" || flat["plan"] != "pro" {
		t.Errorf("expected a flat object, got %s", out)
	}
	if _, ok := flat["full_name"]; ok {
		t.Error("empty known keys must be omitted")
	}
}

func TestMetadata_DisplayName(t *testing.T) {
	if (Metadata{FullName: " Grace Hopper "}).DisplayName() != "Grace Hopper" {
		t.Error("expected full_name fallback")
	}
	if (Metadata{Name: "G", FullName: "Grace"}).DisplayName() != "G" {
		t.Error("expected name to win")
	}
}

func TestAuthSession_Expired(t *testing.T) {
	now := time.Now()
	exp := now.Add(30 * time.Second)
	s := &AuthSession{ExpiresAt: &exp}
	if s.Expired(now, 0) {
		t.Error("expected live session")
	}
	if !s.Expired(now, time.Minute) {
		t.Error("expected session inside skew to count as expired")
	}
	if (&AuthSession{}).Expired(now, time.Hour) {
		t.Error("sessions without expiry never expire")
	}
}

func TestProfileUpdate_Fields(t *testing.T) {
	name := "New"
	rec := ProfileUpdate{Name: &name}.Fields()
	if len(rec) != 1 || rec["name"] != "New" {
		t.Errorf("expected only name, got %v", rec)
	}
}

type staticStore struct {
	Unavailable
	rows []Record
}

func (s staticStore) Query(ctx context.Context, q Query) Result[[]Record] {
	return OK(s.rows)
}

func (s staticStore) QueryOne(ctx context.Context, q Query) Result[Record] {
	if len(s.rows) == 0 {
		return OK[Record](nil)
	}
	return OK(s.rows[0])
}

type customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestQueryAs(t *testing.T) {
	store := staticStore{rows: []Record{{"id": "c1", "name": "Acme"}, {"id": "c2", "name": "Globex"}}}
	res := QueryAs[customer](context.Background(), store, From("customers"))
	if !res.OK() {
		t.Fatalf("unexpected error %v", res.Error)
	}
	if len(res.Data) != 2 || res.Data[1].Name != "Globex" {
		t.Errorf("unexpected rows %+v", res.Data)
	}

	one := QueryOneAs[customer](context.Background(), staticStore{}, From("customers"))
	if one.Error != nil || one.Data != nil {
		t.Errorf("expected nil data and nil error for a missing row, got %+v", one)
	}
}

func TestResult_ErrIsNilOnSuccess(t *testing.T) {
	if err := OK(1).Err(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	res := Fail[int](errors.AlreadyExists("users"))
	if _, err := res.Unwrap(); !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
}

func TestUnavailable_FailsFast(t *testing.T) {
	u := Unavailable{ProviderKind: KindFirebase, Reason: "sdk not installed"}
	err := u.Initialize(context.Background())
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeNotImplemented || appErr.Hint != "sdk not installed" {
		t.Fatalf("unexpected error %v", err)
	}
	if u.IsAvailable(context.Background()) {
		t.Error("expected unavailable")
	}
	if res := u.Insert(context.Background(), "t", Record{}); res.Error == nil {
		t.Error("expected insert to fail")
	}
	unsub := u.OnAuthStateChange(func(AuthEvent) {})
	unsub()
}

func TestAuthListeners(t *testing.T) {
	var l AuthListeners
	var got []AuthEventType
	unsub := l.Subscribe(func(e AuthEvent) { got = append(got, e.Type) })
	l.Emit(AuthSignedIn, &AuthSession{})
	unsub()
	unsub()
	l.Emit(AuthSignedOut, nil)
	if len(got) != 1 || got[0] != AuthSignedIn {
		t.Errorf("expected one SIGNED_IN, got %v", got)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Supabase "); err != nil || k != KindSupabase {
		t.Errorf("expected supabase, got %q %v", k, err)
	}
	if _, err := ParseKind("mongo"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
