package pgstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/resilience"
)

// DB is a pooled gorm connection.
type DB struct {
	gorm   *gorm.DB
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// Open connects with retry and configures the pool. A nil dialector
// connects to cfg.DSN with the PostgreSQL driver.
func Open(ctx context.Context, cfg Config, dialector gorm.Dialector, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("pgstore")
	}
	if dialector == nil {
		dialector = postgres.Open(cfg.DSN)
	}
	gormCfg := &gorm.Config{
		Logger:         newGormLogger(log, duration(cfg.SlowQueryThreshold), parseLogLevel(cfg.LogLevel)),
		TranslateError: true,
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.MaxRetries,
		InitialBackoff: duration(cfg.RetryBackoff),
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Warn("Database connection attempt failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt-1,
				logger.FieldError, err.Error(),
				"backoff", backoff.String(),
			))
		},
	}
	attempts := 0
	db, err := resilience.Retry(ctx, retry, func() (*gorm.DB, error) {
		attempts++
		return connect(ctx, dialector, gormCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(duration(cfg.ConnMaxLifetime))
	sqlDB.SetConnMaxIdleTime(duration(cfg.ConnMaxIdleTime))

	log.Info("Database connection established", logger.Fields(
		logger.FieldAttempt, attempts,
		"dialect", dialector.Name(),
	))
	return &DB{gorm: db, log: log, cfg: cfg}, nil
}

func connect(ctx context.Context, dialector gorm.Dialector, cfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Gorm returns the underlying gorm handle.
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// WithContext returns a gorm session scoped to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.gorm.WithContext(ctx)
}

// Dialect returns the dialector name, e.g. "postgres" or "sqlite".
func (d *DB) Dialect() string {
	return d.gorm.Dialector.Name()
}

// PingContext verifies the connection is alive.
func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the pool. Safe to call more than once.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	d.closed = true
	d.log.Info("Closing database connection")
	return sqlDB.Close()
}
