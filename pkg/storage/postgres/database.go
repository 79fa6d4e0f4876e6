package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"papertrade/config"

	"github.com/lib/pq"
)

const bootstrapTimeout = 15 * time.Second

// CreateDatabase creates cfg.DBName through the server's maintenance
// database. It reports whether the database was created; an existing one is
// left alone.
func CreateDatabase(ctx context.Context, cfg config.PostgresConfig, env string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	dsn, err := cfg.AdminDSN(ctx, env)
	if err != nil {
		return false, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return false, fmt.Errorf("open admin connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return false, fmt.Errorf("reach %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	var found bool
	const lookup = `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := db.QueryRowContext(ctx, lookup, cfg.DBName).Scan(&found); err != nil {
		return false, fmt.Errorf("look up database %q: %w", cfg.DBName, err)
	}
	if found {
		return false, nil
	}

	// Identifiers can't be bound as parameters.
	stmt := "CREATE DATABASE " + pq.QuoteIdentifier(cfg.DBName)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		// Another instance may have won the race.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "42P04" {
			return false, nil
		}
		return false, fmt.Errorf("create database %q: %w", cfg.DBName, err)
	}
	return true, nil
}
