package pgstore

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"

	"github.com/kbukum/bizbackend/component"
)

func TestComponent_Lifecycle(t *testing.T) {
	cfg := Config{Enabled: true, DSN: "unused", MaxOpenConns: 1, MaxIdleConns: 1, AutoMigrate: true, LogLevel: "silent"}
	c := NewComponent(cfg, WithDialector(sqlite.Open("file::memory:")))
	ctx := context.Background()

	if c.Store() != nil {
		t.Fatal("expected no store before Start")
	}
	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}
	if p, err := c.Store().GetUserProfile(ctx, "nobody"); err != nil || p != nil {
		t.Errorf("expected migrated empty profiles table, got %v / %v", p, err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.Store() != nil {
		t.Error("expected store dropped after Stop")
	}
	if err := c.Stop(ctx); err != nil {
		t.Errorf("expected second Stop to succeed, got %v", err)
	}
}

func TestComponent_Describe(t *testing.T) {
	c := NewComponent(Config{Migrate: true})
	d := c.Describe()
	if d.Type != "postgres" {
		t.Errorf("expected type postgres, got %s", d.Type)
	}
	if want := "pool=25/5 profiles=users migrate=on"; d.Details != want {
		t.Errorf("expected %q, got %q", want, d.Details)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"valid", Config{Enabled: true, DSN: "postgres://localhost/app"}, false},
		{"missing dsn", Config{Enabled: true}, true},
		{"bad duration", Config{Enabled: true, DSN: "x", RetryBackoff: "soon"}, true},
		{"idle above open", Config{Enabled: true, DSN: "x", MaxOpenConns: 2, MaxIdleConns: 3}, true},
		{"bad table", Config{Enabled: true, DSN: "x", ProfilesTable: "users;"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMigrationVersions(t *testing.T) {
	versions, err := MigrationVersions()
	if err != nil {
		t.Fatalf("MigrationVersions failed: %v", err)
	}
	if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Errorf("expected [1 2], got %v", versions)
	}
}

func TestMigrate_RejectsOtherDialects(t *testing.T) {
	db := openTestDB(t)
	if err := Migrate(db); err == nil {
		t.Error("expected an error migrating sqlite")
	}
}
