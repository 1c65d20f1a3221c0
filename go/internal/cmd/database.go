package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/teamaction/geohunt/go/internal/dbconfig"
)

// setupDatabase opens the Postgres pool through the pgx stdlib driver. The
// DSN is also handed to the vote change feed, which needs its own
// dedicated LISTEN connection.
func setupDatabase() (*sql.DB, string, error) {
	cfg := dbconfig.NewConfigFromEnv()
	dsn := cfg.DSN()

	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.Ping(); err != nil {
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return database, dsn, nil
}
