package config

import (
	"context"
	"fmt"
	"time"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds a connection string. In prod, host and credentials come from
// Parameter Store.
func (cfg *PostgresConfig) DSN(ctx context.Context, env string) (string, error) {
	return cfg.dsnFor(ctx, env, cfg.DBName)
}

// AdminDSN points at the server's default "postgres" database, used to create
// the application database.
func (cfg *PostgresConfig) AdminDSN(ctx context.Context, env string) (string, error) {
	return cfg.dsnFor(ctx, env, "postgres")
}

func (cfg *PostgresConfig) dsnFor(ctx context.Context, env, dbname string) (string, error) {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" {
		values, err := parameterLookup(ctx, paramDBHost, paramDBUser, paramDBPassword)
		if err != nil {
			return "", fmt.Errorf("resolve postgres credentials: %w", err)
		}
		host, user, password = values[paramDBHost], values[paramDBUser], values[paramDBPassword]
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn, nil
}
