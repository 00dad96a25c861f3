package supabase

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/bizbackend/backend"
)

// Config holds the Supabase project settings.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL string `mapstructure:"url"`
	// AnonKey is the public anon key sent as apikey on every request.
	AnonKey string `mapstructure:"anon_key"`
	// ProfilesTable defaults to "users".
	ProfilesTable string `mapstructure:"profiles_table"`
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration `mapstructure:"timeout"`
	// RefreshSkew refreshes sessions this long before they expire.
	RefreshSkew time.Duration `mapstructure:"refresh_skew"`
	// MaxRetries is the number of extra attempts for idempotent requests.
	MaxRetries int `mapstructure:"max_retries"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ProfilesTable == "" {
		c.ProfilesTable = backend.DefaultProfilesTable
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RefreshSkew <= 0 {
		c.RefreshSkew = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("url %q is not absolute", c.URL))
	}
	if c.AnonKey == "" {
		errs = append(errs, errors.New("anon_key is required"))
	}
	if !backend.ValidIdentifier(c.ProfilesTable) {
		errs = append(errs, fmt.Errorf("invalid profiles_table %q", c.ProfilesTable))
	}
	if len(errs) > 0 {
		return fmt.Errorf("supabase: invalid config: %w", errors.Join(errs...))
	}
	return nil
}
