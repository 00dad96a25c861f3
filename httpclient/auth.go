package httpclient

import "net/http"

// AuthConfig configures request authentication. A nil AuthConfig sends
// nothing.
type AuthConfig struct {
	Token string
}

// BearerAuth sends Authorization: Bearer <token>.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Token: token}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil || a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}
