package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"github.com/Match-Score-project/Match-Score/cmd/buildCFG"
	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/dynamostore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/memstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/sqlstore"
)

// openStore connects the configured document store and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, sc buildCFG.StoreConfig, log *zerolog.Logger) (docstore.Store, error) {
	switch sc.Driver {
	case buildCFG.StorePostgres:
		masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to build DB config: %w", err)
		}
		db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		if err := db.Master.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("DB ping failed: %w", err)
		}
		log.Info().Msg("Database connected successfully")
		s, err := sqlstore.NewPostgres(db, log)
		if err != nil {
			return nil, err
		}
		if err := s.MigrateUp(sc.MigrationsDir); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return s, nil

	case buildCFG.StoreSQLite:
		s, err := sqlstore.OpenSQLite(sc.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if err := s.MigrateUp(sc.MigrationsDir); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return s, nil

	case buildCFG.StoreDynamo:
		client, err := dynamostore.NewClient(ctx, sc.DynamoRegion, sc.DynamoURL)
		if err != nil {
			return nil, err
		}
		s := dynamostore.New(client, sc.DynamoTable, log)
		if err := s.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return s, nil

	default:
		log.Warn().Msg("using the in-memory store, data is lost on restart")
		return memstore.New(log), nil
	}
}

type migrator interface {
	MigrateDown(migrationsDir string) error
}

// resetStore drops the schema of a SQL store when the deployment asked for it,
// leaving a clean database for the next start.
func resetStore(store docstore.Store, sc buildCFG.StoreConfig, log *zerolog.Logger) error {
	if !sc.ResetOnShutdown {
		return nil
	}
	m, ok := store.(migrator)
	if !ok {
		return nil
	}
	log.Warn().Str("driver", sc.Driver).Msg("store.reset_on_shutdown set, rolling back migrations")
	if err := m.MigrateDown(sc.MigrationsDir); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}
