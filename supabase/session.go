package supabase

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/bizbackend/backend"
)

// tokenResponse is the GoTrue session document.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *authUser `json:"user"`
}

// authUser is the GoTrue user document.
type authUser struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	EmailConfirmedAt string           `json:"email_confirmed_at"`
	UserMetadata     backend.Metadata `json:"user_metadata"`
}

func (u authUser) identity() backend.AuthIdentity {
	return backend.AuthIdentity{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailConfirmedAt != "",
		Metadata:      u.UserMetadata,
	}
}

// parseAuthBody decodes a sign-in, sign-up or refresh response. Sign-up
// without auto-confirm answers with a bare user and no session.
func parseAuthBody(body []byte, now time.Time) (*backend.AuthIdentity, *backend.AuthSession, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, nil, err
	}
	if tr.AccessToken == "" {
		var u authUser
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, nil, err
		}
		id := u.identity()
		return &id, nil, nil
	}

	var user backend.AuthIdentity
	if tr.User != nil {
		user = tr.User.identity()
	}
	session := &backend.AuthSession{
		User:         user,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiry(tr, now),
	}
	return &session.User, session, nil
}

// expiry prefers expires_at, then the token's exp claim, then expires_in.
func expiry(tr tokenResponse, now time.Time) *time.Time {
	if tr.ExpiresAt > 0 {
		t := time.Unix(tr.ExpiresAt, 0)
		return &t
	}
	if t := tokenExpiry(tr.AccessToken); t != nil {
		return t
	}
	if tr.ExpiresIn > 0 {
		t := now.Add(time.Duration(tr.ExpiresIn) * time.Second)
		return &t
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature. The
// token came straight from the auth service over TLS.
func tokenExpiry(token string) *time.Time {
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
