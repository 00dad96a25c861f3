package backend

import (
	"context"
	"encoding/json"

	"github.com/kbukum/bizbackend/errors"
)

// Unavailable implements Provider by failing every call with NOT_IMPLEMENTED.
// Adapters whose backend is not wired into this build embed it.
type Unavailable struct {
	ProviderKind Kind
	Reason       string
}

var _ Provider = Unavailable{}

func (u Unavailable) err(op string) *errors.AppError {
	e := errors.NotImplemented(string(u.ProviderKind) + " " + op)
	if u.Reason != "" {
		e.WithHint(u.Reason)
	}
	return e.WithDetail(errors.DetailBackend, string(u.ProviderKind))
}

func (u Unavailable) Kind() Kind {
	return u.ProviderKind
}

func (u Unavailable) Name() string {
	return string(u.ProviderKind) + " (unavailable)"
}

func (u Unavailable) Initialize(context.Context) error {
	return u.err("initialize")
}

func (u Unavailable) Cleanup(context.Context) error {
	return nil
}

func (u Unavailable) IsAvailable(context.Context) bool {
	return false
}

func (u Unavailable) OnAuthStateChange(AuthListener) func() {
	return func() {}
}

func (u Unavailable) SignOut(context.Context) error {
	return u.err("sign-out")
}

func (u Unavailable) CurrentSession(context.Context) (*AuthSession, error) {
	return nil, u.err("session")
}

func (u Unavailable) SignUp(context.Context, string, string, Metadata) (*AuthIdentity, error) {
	return nil, u.err("sign-up")
}

func (u Unavailable) SignIn(context.Context, string, string) (*AuthIdentity, error) {
	return nil, u.err("sign-in")
}

func (u Unavailable) GetUserProfile(context.Context, string) (*UserProfile, error) {
	return nil, u.err("profiles")
}

func (u Unavailable) CreateUserProfile(context.Context, string, UserProfile) (*UserProfile, error) {
	return nil, u.err("profiles")
}

func (u Unavailable) UpdateUserProfile(context.Context, string, ProfileUpdate) (*UserProfile, error) {
	return nil, u.err("profiles")
}

func (u Unavailable) Query(context.Context, Query) Result[[]Record] {
	return Result[[]Record]{Error: u.err("query")}
}

func (u Unavailable) QueryOne(context.Context, Query) Result[Record] {
	return Result[Record]{Error: u.err("query")}
}

func (u Unavailable) Insert(context.Context, string, Record) Result[Record] {
	return Result[Record]{Error: u.err("insert")}
}

func (u Unavailable) Update(context.Context, string, string, Record) Result[Record] {
	return Result[Record]{Error: u.err("update")}
}

func (u Unavailable) Delete(context.Context, string, string) Result[struct{}] {
	return Result[struct{}]{Error: u.err("delete")}
}

func (u Unavailable) CallFunction(context.Context, string, map[string]any) Result[json.RawMessage] {
	return Result[json.RawMessage]{Error: u.err("functions")}
}
