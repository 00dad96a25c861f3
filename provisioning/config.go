package provisioning

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/bizbackend/validation"
)

// Defaults for Config.
const (
	DefaultSyncFunction = "ensure_user_profile"
	DefaultConfirmDelay = 500 * time.Millisecond
	DefaultPollAttempts = 3
	DefaultPollInterval = 2 * time.Second
	DefaultRemediation  = "run select public.ensure_user_profile('%s') against the database, then try again"
)

// Config tunes the provisioning chain.
type Config struct {
	// SyncFunction is the remote call that creates a missing profile row.
	// Empty skips the remote step.
	SyncFunction string `mapstructure:"sync_function" validate:"omitempty,identifier"`
	// ConfirmDelay is the wait between a successful remote call and the
	// existence re-check. Zero means the default; a negative value means no
	// wait.
	ConfirmDelay time.Duration `mapstructure:"confirm_delay" validate:"gte=0"`
	// PollAttempts bounds the existence checks after a rejected insert.
	PollAttempts int `mapstructure:"poll_attempts" validate:"gte=1"`
	// PollInterval is the fixed wait before every poll. Zero means the
	// default; a negative value means no wait.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
	// Remediation is the operator hint attached to a failure. A %s verb is
	// replaced with the user id.
	Remediation string `mapstructure:"remediation"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		SyncFunction: DefaultSyncFunction,
		ConfirmDelay: DefaultConfirmDelay,
		PollAttempts: DefaultPollAttempts,
		PollInterval: DefaultPollInterval,
		Remediation:  DefaultRemediation,
	}
}

// ApplyDefaults fills in zero-valued fields. SyncFunction "-" disables the
// remote step and negative delays become zero.
func (c *Config) ApplyDefaults() {
	switch c.SyncFunction {
	case "":
		c.SyncFunction = DefaultSyncFunction
	case "-":
		c.SyncFunction = ""
	}
	c.ConfirmDelay = durationOrDefault(c.ConfirmDelay, DefaultConfirmDelay)
	if c.PollAttempts == 0 {
		c.PollAttempts = DefaultPollAttempts
	}
	c.PollInterval = durationOrDefault(c.PollInterval, DefaultPollInterval)
	if c.Remediation == "" {
		c.Remediation = DefaultRemediation
	}
}

func durationOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	}
	return d
}

// Validate checks the settings.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

func (c Config) hint(userID string) string {
	if strings.Contains(c.Remediation, "%s") {
		return fmt.Sprintf(c.Remediation, userID)
	}
	return c.Remediation
}
