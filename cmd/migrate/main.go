package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/inspector/internal/config"
	"github.com/JaimeStill/inspector/internal/results"
	"github.com/JaimeStill/inspector/pkg/database"
)

func main() {
	var (
		driver  = flag.String("driver", "", "Database driver: sqlite3 or pgx (default from configuration)")
		path    = flag.String("path", "", "SQLite database file (default from configuration)")
		dsn     = flag.String("dsn", "", "PostgreSQL connection string (default from configuration)")
		up      = flag.Bool("up", false, "Run all up migrations")
		down    = flag.Bool("down", false, "Run all down migrations")
		steps   = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version = flag.Bool("version", false, "Print current migration version")
		force   = flag.Int("force", -1, "Force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbCfg := cfg.Database
	dbCfg.Merge(&database.Config{Driver: *driver, Path: *path, DSN: *dsn})
	if err := dbCfg.Finalize(nil); err != nil {
		log.Fatalf("invalid database config: %v", err)
	}

	db, err := database.New(&dbCfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	m, err := database.NewMigrator(
		db.Connection(),
		db.Driver(),
		results.Migrations,
		results.MigrationsDir(db.Driver()),
	)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			return
		}
		if err != nil {
			log.Fatalf("failed to get version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(*force); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		fmt.Printf("forced to version %d\n", *force)
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run up migrations: %v", err)
		}
		fmt.Println("migrations applied successfully")
	case *down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run down migrations: %v", err)
		}
		fmt.Println("migrations reverted successfully")
	case *steps != 0:
		if err := m.Steps(*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run migrations: %v", err)
		}
		fmt.Printf("applied %d migration steps\n", *steps)
	default:
		fmt.Println("usage: migrate [-driver sqlite3|pgx] [-path file | -dsn url] [-up|-down|-steps N|-version|-force N]")
		flag.PrintDefaults()
	}
}
