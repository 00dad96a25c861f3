package backend

import (
	"context"
	"encoding/json"
)

// Lifecycle is the part of the contract the Manager drives.
type Lifecycle interface {
	// Kind identifies the backend technology.
	Kind() Kind
	// Name returns a human-readable adapter name.
	Name() string
	// Initialize prepares connections and state. It is called when the
	// adapter is selected and again after a Cleanup.
	Initialize(ctx context.Context) error
	// Cleanup releases connections and drops session state.
	Cleanup(ctx context.Context) error
	// IsAvailable reports whether the adapter can serve requests.
	IsAvailable(ctx context.Context) bool
}

// Authenticator covers identity and session operations.
type Authenticator interface {
	// CurrentSession returns the live session, or nil without error when signed out.
	CurrentSession(ctx context.Context) (*AuthSession, error)
	// SignUp registers a new identity. Fails with AUTH_ERROR on rejection.
	SignUp(ctx context.Context, email, password string, meta Metadata) (*AuthIdentity, error)
	// SignIn authenticates with email and password. Fails with AUTH_ERROR on bad credentials.
	SignIn(ctx context.Context, email, password string) (*AuthIdentity, error)
	// SignOut ends the session. Signing out while signed out succeeds.
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers a listener for session transitions. The
	// returned function deregisters it and may be called any number of times.
	OnAuthStateChange(fn AuthListener) (unsubscribe func())
}

// ProfileStore covers the user profile row.
type ProfileStore interface {
	// GetUserProfile returns the profile, or nil without error when absent.
	GetUserProfile(ctx context.Context, id string) (*UserProfile, error)
	// CreateUserProfile inserts the profile. Fails with ALREADY_EXISTS on a
	// duplicate key and FORBIDDEN on a permission rejection.
	CreateUserProfile(ctx context.Context, id string, profile UserProfile) (*UserProfile, error)
	// UpdateUserProfile changes the given fields and returns the stored row.
	UpdateUserProfile(ctx context.Context, id string, update ProfileUpdate) (*UserProfile, error)
}

// RecordStore is generic CRUD over named tables. Absence is never an error:
// QueryOne and Update report a missing row as nil Data.
type RecordStore interface {
	Query(ctx context.Context, q Query) Result[[]Record]
	QueryOne(ctx context.Context, q Query) Result[Record]
	Insert(ctx context.Context, table string, rec Record) Result[Record]
	Update(ctx context.Context, table, id string, rec Record) Result[Record]
	Delete(ctx context.Context, table, id string) Result[struct{}]
}

// FunctionCaller invokes server-side functions.
type FunctionCaller interface {
	// CallFunction runs the named function. Fails with FUNCTION_NOT_FOUND
	// when the backend has no such function.
	CallFunction(ctx context.Context, name string, params map[string]any) Result[json.RawMessage]
}

// Provider is the full contract an adapter implements.
type Provider interface {
	Lifecycle
	Authenticator
	ProfileStore
	RecordStore
	FunctionCaller
}

// Factory builds an adapter. It is called at most once per kind.
type Factory func() (Provider, error)

// PreferenceStore persists the selected kind across restarts.
type PreferenceStore interface {
	// Load returns the stored kind; ok is false when nothing is stored.
	Load(ctx context.Context) (kind Kind, ok bool, err error)
	// Save stores kind.
	Save(ctx context.Context, kind Kind) error
}
