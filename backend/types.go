package backend

import (
	"encoding/json"
	"strings"
	"time"
)

// AuthIdentity is the authenticated principal as the auth service reports it.
type AuthIdentity struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	Metadata      Metadata `json:"metadata"`
}

// Metadata is the user metadata attached at sign-up. Known keys are typed;
// anything else lands in Extra.
type Metadata struct {
	Name      string
	FullName  string
	Phone     string
	AvatarURL string
	Extra     map[string]any
}

var metadataKeys = map[string]func(*Metadata) *string{
	"name":       func(m *Metadata) *string { return &m.Name },
	"full_name":  func(m *Metadata) *string { return &m.FullName },
	"phone":      func(m *Metadata) *string { return &m.Phone },
	"avatar_url": func(m *Metadata) *string { return &m.AvatarURL },
}

// DisplayName returns the best available human name, or "".
func (m Metadata) DisplayName() string {
	if n := strings.TrimSpace(m.Name); n != "" {
		return n
	}
	return strings.TrimSpace(m.FullName)
}

// Map flattens the metadata into one object.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+len(metadataKeys))
	for k, v := range m.Extra {
		out[k] = v
	}
	for k, field := range metadataKeys {
		if v := *field(&m); v != "" {
			out[k] = v
		}
	}
	return out
}

// MarshalJSON writes known and extra keys as one flat object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON splits a flat object into known keys and Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		if field, ok := metadataKeys[k]; ok {
			if s, isString := v.(string); isString {
				*field(m) = s
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return nil
}

// AuthSession is a live session. It is never persisted by this package.
type AuthSession struct {
	User         AuthIdentity `json:"user"`
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
}

// Expired reports whether the session expires within skew of now.
func (s *AuthSession) Expired(now time.Time, skew time.Duration) bool {
	if s == nil || s.ExpiresAt == nil {
		return false
	}
	return !now.Add(skew).Before(*s.ExpiresAt)
}

// AuthEventType names a session transition.
type AuthEventType string

const (
	AuthSignedIn       AuthEventType = "SIGNED_IN"
	AuthSignedOut      AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is delivered to auth listeners. Session is nil after sign-out.
type AuthEvent struct {
	Type    AuthEventType
	Session *AuthSession
}

// AuthListener receives auth events.
type AuthListener func(AuthEvent)

// UserProfile is the application-level user row keyed by the auth identity id.
type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	IsSuperAdmin *bool     `json:"is_super_admin,omitempty"`
}

// ProfileUpdate holds the fields to change. Nil fields are left untouched.
type ProfileUpdate struct {
	Email        *string `json:"email,omitempty"`
	Name         *string `json:"name,omitempty"`
	IsSuperAdmin *bool   `json:"is_super_admin,omitempty"`
}

// Fields returns the column values to write.
func (u ProfileUpdate) Fields() Record {
	rec := Record{}
	if u.Email != nil {
		rec["email"] = *u.Email
	}
	if u.Name != nil {
		rec["name"] = *u.Name
	}
	if u.IsSuperAdmin != nil {
		rec["is_super_admin"] = *u.IsSuperAdmin
	}
	return rec
}

// Record is one row of a generic table.
type Record = map[string]any
