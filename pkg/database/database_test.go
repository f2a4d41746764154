package database_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/inspector/pkg/database"
	"github.com/JaimeStill/inspector/pkg/lifecycle"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := database.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"driver", cfg.Driver, database.DriverSQLite},
		{"path", cfg.Path, "image_log.db"},
		{"busy_timeout", cfg.BusyTimeout, "5s"},
		{"max_open_conns", cfg.MaxOpenConns, 4},
		{"max_idle_conns", cfg.MaxIdleConns, 2},
		{"conn_max_lifetime", cfg.ConnMaxLifetime, "15m"},
		{"conn_timeout", cfg.ConnTimeout, "5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DB_DRIVER", "pgx")
	t.Setenv("TEST_DB_PATH", "/var/lib/inspector/results.db")
	t.Setenv("TEST_DB_DSN", "postgres://u:p@localhost/inspector")
	t.Setenv("TEST_DB_BUSY", "2s")
	t.Setenv("TEST_DB_MAX_OPEN", "8")
	t.Setenv("TEST_DB_MAX_IDLE", "3")
	t.Setenv("TEST_DB_LIFETIME", "30m")
	t.Setenv("TEST_DB_TIMEOUT", "10s")

	env := &database.Env{
		Driver:          "TEST_DB_DRIVER",
		Path:            "TEST_DB_PATH",
		DSN:             "TEST_DB_DSN",
		BusyTimeout:     "TEST_DB_BUSY",
		MaxOpenConns:    "TEST_DB_MAX_OPEN",
		MaxIdleConns:    "TEST_DB_MAX_IDLE",
		ConnMaxLifetime: "TEST_DB_LIFETIME",
		ConnTimeout:     "TEST_DB_TIMEOUT",
	}

	cfg := database.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"driver", cfg.Driver, "pgx"},
		{"path", cfg.Path, "/var/lib/inspector/results.db"},
		{"dsn", cfg.DSN, "postgres://u:p@localhost/inspector"},
		{"busy_timeout", cfg.BusyTimeout, "2s"},
		{"max_open_conns", cfg.MaxOpenConns, 8},
		{"max_idle_conns", cfg.MaxIdleConns, 3},
		{"conn_max_lifetime", cfg.ConnMaxLifetime, "30m"},
		{"conn_timeout", cfg.ConnTimeout, "10s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     database.Config
		wantErr string
	}{
		{
			name:    "unknown driver",
			cfg:     database.Config{Driver: "mysql"},
			wantErr: "unsupported database driver",
		},
		{
			name:    "postgres without dsn",
			cfg:     database.Config{Driver: "pgx"},
			wantErr: "dsn required",
		},
		{
			name:    "invalid busy_timeout",
			cfg:     database.Config{BusyTimeout: "bad"},
			wantErr: "invalid busy_timeout",
		},
		{
			name:    "invalid conn_timeout",
			cfg:     database.Config{ConnTimeout: "bad"},
			wantErr: "invalid conn_timeout",
		},
		{
			name:    "negative pool",
			cfg:     database.Config{MaxOpenConns: -1},
			wantErr: "max_open_conns must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := database.Config{
		Driver:       database.DriverSQLite,
		Path:         "base.db",
		MaxOpenConns: 4,
	}

	base.Merge(&database.Config{Path: "overlay.db", BusyTimeout: "1s"})

	if base.Path != "overlay.db" {
		t.Errorf("path: got %s, want overlay.db", base.Path)
	}
	if base.BusyTimeout != "1s" {
		t.Errorf("busy_timeout: got %s, want 1s", base.BusyTimeout)
	}
	if base.Driver != database.DriverSQLite {
		t.Errorf("driver should remain sqlite3, got %s", base.Driver)
	}
	if base.MaxOpenConns != 4 {
		t.Errorf("max_open_conns should remain 4, got %d", base.MaxOpenConns)
	}
}

func TestDsn(t *testing.T) {
	cfg := database.Config{Driver: database.DriverSQLite, Path: "data/results.db", BusyTimeout: "3s"}
	dsn := cfg.Dsn()

	if !strings.HasPrefix(dsn, "file:data/results.db?") {
		t.Errorf("dsn = %q, want file: prefix with path", dsn)
	}
	for _, want := range []string{"_journal_mode=WAL", "_foreign_keys=on", "_busy_timeout=3000"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %s", dsn, want)
		}
	}

	pg := database.Config{Driver: database.DriverPostgres, DSN: "postgres://localhost/inspector"}
	if got := pg.Dsn(); got != "postgres://localhost/inspector" {
		t.Errorf("postgres dsn = %q", got)
	}
}

func TestDurationParsers(t *testing.T) {
	cfg := database.Config{
		BusyTimeout:     "250ms",
		ConnMaxLifetime: "15m",
		ConnTimeout:     "5s",
	}

	if d := cfg.BusyTimeoutDuration(); d != 250*time.Millisecond {
		t.Errorf("busy_timeout: got %v, want 250ms", d)
	}
	if d := cfg.ConnMaxLifetimeDuration(); d != 15*time.Minute {
		t.Errorf("conn_max_lifetime: got %v, want 15m", d)
	}
	if d := cfg.ConnTimeoutDuration(); d != 5*time.Second {
		t.Errorf("conn_timeout: got %v, want 5s", d)
	}
}

func newSQLite(t *testing.T, path string) database.System {
	t.Helper()

	cfg := database.Config{Path: path}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	sys, err := database.New(&cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sys
}

func TestNewCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "results.db")
	sys := newSQLite(t, path)
	defer sys.Connection().Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("database directory not created: %v", err)
	}
	if sys.Driver() != database.DriverSQLite {
		t.Errorf("Driver() = %q", sys.Driver())
	}
}

func TestStartPingsAndCloses(t *testing.T) {
	sys := newSQLite(t, filepath.Join(t.TempDir(), "results.db"))

	lc := lifecycle.New(context.Background())
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("WaitForStartup: %v", err)
	}

	var mode string
	if err := sys.Connection().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := sys.Connection().Ping(); err == nil {
		t.Error("connection should be closed after shutdown")
	}
}

func TestNewMigrator(t *testing.T) {
	sys := newSQLite(t, filepath.Join(t.TempDir(), "results.db"))
	db := sys.Connection()
	defer db.Close()

	migrations := fstest.MapFS{
		"m/000001_items.up.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY);")},
		"m/000001_items.down.sql": {Data: []byte("DROP TABLE IF EXISTS items;")},
	}

	m, err := database.NewMigrator(db, sys.Driver(), migrations, "m")
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}

	if err := m.Up(); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := m.Up(); !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("second Up = %v, want ErrNoChange", err)
	}

	v, dirty, err := m.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 1 || dirty {
		t.Errorf("Version = (%d, %v), want (1, false)", v, dirty)
	}

	if _, err := db.Exec("INSERT INTO items (id) VALUES (1)"); err != nil {
		t.Errorf("migrated table unusable: %v", err)
	}
}

func TestNewMigratorUnsupportedDriver(t *testing.T) {
	_, err := database.NewMigrator(nil, "mysql", fstest.MapFS{
		"m/000001_x.up.sql": {Data: []byte("SELECT 1;")},
	}, "m")
	if !errors.Is(err, database.ErrUnsupportedDriver) {
		t.Errorf("NewMigrator(mysql) = %v, want ErrUnsupportedDriver", err)
	}
}
