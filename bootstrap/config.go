package bootstrap

import (
	"errors"
	"fmt"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/config"
	"github.com/kbukum/bizbackend/firebase"
	"github.com/kbukum/bizbackend/hybrid"
	"github.com/kbukum/bizbackend/observability"
	"github.com/kbukum/bizbackend/preference"
	"github.com/kbukum/bizbackend/provisioning"
	"github.com/kbukum/bizbackend/redis"
	"github.com/kbukum/bizbackend/server"
	"github.com/kbukum/bizbackend/supabase"
	"github.com/kbukum/bizbackend/validation"
)

// ServiceName is the default service name and config file stem.
const ServiceName = "bizgateway"

// Config is the gateway configuration.
//
//	name: bizgateway
//	backend:
//	  default: supabase
//	supabase:
//	  url: https://xyz.supabase.co
//	  anon_key: ...
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Backend       BackendConfig        `yaml:"backend" mapstructure:"backend"`
	Supabase      supabase.Config      `yaml:"supabase" mapstructure:"supabase"`
	Firebase      firebase.Config      `yaml:"firebase" mapstructure:"firebase"`
	Hybrid        hybrid.Config        `yaml:"hybrid" mapstructure:"hybrid"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Preference    preference.Config    `yaml:"preference" mapstructure:"preference"`
	Provisioning  provisioning.Config  `yaml:"provisioning" mapstructure:"provisioning"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
}

// BackendConfig selects the adapters.
type BackendConfig struct {
	// Default is used while no preference is stored.
	Default string `yaml:"default" mapstructure:"default" validate:"omitempty,backend_kind"`
	// Disabled kinds are never registered.
	Disabled []string `yaml:"disabled" mapstructure:"disabled" validate:"dive,backend_kind"`
}

// LoadConfig reads the config file, .env file and environment.
func LoadConfig(opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.LoadConfig(ServiceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields. The hybrid adapter authenticates against
// the supabase project unless it names its own.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Observability.ApplyDefaults()
	if c.Backend.Default == "" {
		c.Backend.Default = string(backend.DefaultKind)
	}
	c.Supabase.ApplyDefaults()
	if c.Hybrid.Auth.URL == "" {
		c.Hybrid.Auth = c.Supabase
	}
	c.Redis.ApplyDefaults()
	c.Preference.ApplyDefaults()
	c.Provisioning.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Validate checks every section. Adapter sections are checked only when the
// adapter is configured.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	var errs []error
	if err := validation.Validate(&c.Backend); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.supabaseConfigured() {
		if err := c.Supabase.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.hybridConfigured() {
		db := c.Hybrid.Database
		db.Enabled = true
		db.ApplyDefaults()
		if err := db.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("hybrid.database: %w", err))
		}
	}
	if err := c.Redis.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := validation.Validate(&c.Preference); err != nil {
		errs = append(errs, fmt.Errorf("preference: %w", err))
	}
	if c.Preference.Driver == preference.DriverRedis && !c.Redis.Enabled {
		errs = append(errs, fmt.Errorf("preference.driver redis requires redis.enabled"))
	}
	if err := c.Provisioning.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("provisioning: %w", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// kinds returns the adapters to register, in registration order.
func (c *Config) kinds() []backend.Kind {
	disabled := make(map[backend.Kind]bool, len(c.Backend.Disabled))
	for _, d := range c.Backend.Disabled {
		if k, err := backend.ParseKind(d); err == nil {
			disabled[k] = true
		}
	}
	var out []backend.Kind
	for _, k := range backend.Kinds() {
		if !disabled[k] {
			out = append(out, k)
		}
	}
	return out
}

func (c *Config) supabaseConfigured() bool {
	return c.Supabase.URL != ""
}

func (c *Config) hybridConfigured() bool {
	return c.Hybrid.Database.DSN != ""
}
