package pgstore

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/kbukum/bizbackend/component"
	"github.com/kbukum/bizbackend/logger"
)

var _ component.Component = (*Component)(nil)

// Component manages the connection and store lifecycle.
type Component struct {
	cfg       Config
	dialector gorm.Dialector
	log       *logger.Logger

	mu    sync.RWMutex
	db    *DB
	store *Store
}

// ComponentOption customises a Component.
type ComponentOption func(*Component)

// WithDialector replaces the PostgreSQL dialector, e.g. with sqlite in tests.
func WithDialector(d gorm.Dialector) ComponentOption {
	return func(c *Component) { c.dialector = d }
}

// NewComponent creates the component. The connection opens on Start.
func NewComponent(cfg Config, opts ...ComponentOption) *Component {
	cfg.ApplyDefaults()
	c := &Component{cfg: cfg, log: logger.Get("pgstore")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store, or nil before Start.
func (c *Component) Store() *Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

func (c *Component) Name() string { return "pgstore" }

// Start connects and runs the configured migrations. Starting a started
// component is a no-op.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return nil
	}
	db, err := Open(ctx, c.cfg, c.dialector, c.log)
	if err != nil {
		return fmt.Errorf("pgstore start: %w", err)
	}
	store := NewStore(db)
	if c.cfg.Migrate {
		if err := Migrate(db); err != nil {
			_ = db.Close()
			return fmt.Errorf("pgstore migrate: %w", err)
		}
	}
	if c.cfg.AutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("pgstore auto-migrate: %w", err)
		}
	}
	c.db, c.store = db, store
	return nil
}

// Stop closes the connection. The component can be started again.
func (c *Component) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db, c.store = nil, nil
	return err
}

func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "database not connected"}
	}
	if err := db.PingContext(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("pool=%d/%d profiles=%s", c.cfg.MaxOpenConns, c.cfg.MaxIdleConns, c.cfg.ProfilesTable)
	if c.cfg.Migrate {
		details += " migrate=on"
	}
	return component.Description{Name: "Database", Type: "postgres", Details: details}
}
