package main

import (
	"context"
	"fmt"

	"github.com/JaimeStill/inspector/internal/classifier"
	"github.com/JaimeStill/inspector/internal/config"
	"github.com/JaimeStill/inspector/internal/defects"
	"github.com/JaimeStill/inspector/internal/infrastructure"
	"github.com/JaimeStill/inspector/internal/inspection"
	"github.com/JaimeStill/inspector/internal/results"
)

// App wires the inspector systems for one command invocation.
type App struct {
	cfg       *config.Config
	infra     *infrastructure.Infrastructure
	Results   results.System
	Inspector *inspection.Inspector
}

// NewApp starts the infrastructure and builds the domain systems.
// The lifecycle is detached from command cancellation so an interrupted
// batch can finish its in-flight item before the database closes.
func NewApp(cfg *config.Config) (*App, error) {
	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra}

	if err := infra.Start(); err != nil {
		a.Close()
		return nil, err
	}

	store, err := results.New(
		infra.Lifecycle.Context(),
		infra.Database.Connection(),
		infra.Database.Driver(),
		infra.Logger,
		cfg.Inspection.Limits,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("results init failed: %w", err)
	}
	a.Results = store

	agent, err := classifier.New(cfg.Agent.Agent(), classifier.Options{
		Labels:       cfg.Inspection.Labels,
		Instructions: cfg.Inspection.Prompt,
		MaxImageSize: int64(cfg.Inspection.MaxImageSize),
		Timeout:      cfg.Inspection.ClassifyTimeoutDuration(),
	}, infra.Logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("classifier init failed: %w", err)
	}

	opts := []inspection.Option{inspection.WithHashWorkers(cfg.Inspection.HashWorkers)}
	if infra.Storage != nil {
		opts = append(opts, inspection.WithArchive(infra.Storage))
	}

	a.Inspector = inspection.New(
		agent,
		defects.NewNormalizer(cfg.Inspection.Labels),
		store,
		infra.Logger,
		opts...,
	)

	infra.Logger.Debug(
		"inspector initialized",
		"env", cfg.Env(),
		"driver", infra.Database.Driver(),
		"archive", infra.Storage != nil,
	)
	return a, nil
}

// Close shuts down the infrastructure within the configured timeout.
func (a *App) Close() error {
	return a.infra.Lifecycle.Shutdown(a.cfg.ShutdownTimeoutDuration())
}
