package preference

import (
	"fmt"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/redis"
)

// Driver names a preference store implementation.
type Driver string

const (
	DriverFile   Driver = "file"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

// DefaultKey is the dotenv key and the Redis key suffix.
const DefaultKey = "BACKEND_PROVIDER"

// Config selects and configures the store.
type Config struct {
	Driver    Driver `mapstructure:"driver" validate:"omitempty,oneof=file redis memory"`
	Path      string `mapstructure:"path"`
	Key       string `mapstructure:"key"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverFile
	}
	if c.Path == "" {
		c.Path = ".backend.env"
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "bizbackend"
	}
}

// New builds the configured store. client is required for DriverRedis.
func New(cfg Config, client *redis.Client) (backend.PreferenceStore, error) {
	cfg.ApplyDefaults()
	switch cfg.Driver {
	case DriverFile:
		return NewFileStore(cfg.Path, cfg.Key), nil
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("preference driver %q requires a redis client", cfg.Driver)
		}
		return NewRedisStore(client, cfg.KeyPrefix+":"+cfg.Key), nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown preference driver %q", cfg.Driver)
	}
}
