package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"storygraph/internal/config"
	"storygraph/internal/logging"
	"storygraph/internal/store"
	"storygraph/internal/store/postgres"
	"storygraph/internal/store/sqlite"
)

const (
	configPath = "storygraph.yaml"
	schemaPath = "schema.yaml"
)

type project struct {
	cfg    *config.ProjectConfig
	schema *config.Schema
	logger *log.Logger
}

func loadProject() (*project, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, err
	}

	schema, err := config.LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}

	// stdout carries command output and the MCP stream.
	logger, err := logging.New(cfg.Log.Level, os.Stderr)
	if err != nil {
		return nil, err
	}

	return &project{cfg: cfg, schema: schema, logger: logger}, nil
}

func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	var (
		db  store.Store
		err error
	)
	switch strings.ToLower(cfg.Store.Driver) {
	case config.DriverSQLite:
		db, err = sqlite.New(ctx, cfg.Store.DSN)
	case config.DriverPostgres:
		db, err = postgres.New(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}
