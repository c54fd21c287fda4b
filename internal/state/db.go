// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool. It stays nil when persistence is not configured.
var DB *sql.DB

// ErrNotInitialized is returned by every store when DB is nil.
var ErrNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (cfg DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	var err error
	DB, err = sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// Configured reports whether a database pool is available.
func Configured() bool {
	return DB != nil
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS vault_parameters (
		params_id SERIAL PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 1,
		config_name VARCHAR(255) NOT NULL DEFAULT 'default',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		asset_symbol VARCHAR(32) NOT NULL,
		asset_decimals SMALLINT NOT NULL,
		fee_percentage NUMERIC(78, 0) NOT NULL,
		fee_absolute_minimum NUMERIC(78, 0) NOT NULL,
		threshold_percentage NUMERIC(78, 0) NOT NULL,
		CONSTRAINT uq_vault_parameters_config_version UNIQUE (config_name, version)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_parameters_config_active ON vault_parameters(config_name, is_active, activated_at DESC);

	CREATE TABLE IF NOT EXISTS vault_events (
		event_id BIGSERIAL PRIMARY KEY,
		tx_id UUID NOT NULL,
		sequence INTEGER NOT NULL,
		kind VARCHAR(64) NOT NULL,
		payload JSONB NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT uq_vault_events_tx_sequence UNIQUE (tx_id, sequence)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_events_created ON vault_events(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_events_kind ON vault_events(kind);
	CREATE INDEX IF NOT EXISTS idx_vault_events_tags ON vault_events USING GIN (tags);

	CREATE TABLE IF NOT EXISTS vault_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		cycle_id UUID NOT NULL,
		snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		total_assets NUMERIC(78, 0) NOT NULL,
		idle_balance NUMERIC(78, 0) NOT NULL,
		invested_principal NUMERIC(78, 0) NOT NULL,
		total_queued_assets NUMERIC(78, 0) NOT NULL,
		queue_shortfall NUMERIC(78, 0) NOT NULL,
		vault_status JSONB NOT NULL,
		queue_summary JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vault_snapshots_timestamp ON vault_snapshots(snapshot_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_snapshots_cycle ON vault_snapshots(cycle_number DESC);

	CREATE TABLE IF NOT EXISTS monitor_cycle_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);

	INSERT INTO monitor_cycle_counter (id, current_cycle)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;
`

// dropSchemaSQL removes every table EnsureSchema creates.
const dropSchemaSQL = `
	DROP TABLE IF EXISTS vault_snapshots CASCADE;
	DROP TABLE IF EXISTS vault_events CASCADE;
	DROP TABLE IF EXISTS vault_parameters CASCADE;
	DROP TABLE IF EXISTS monitor_cycle_counter CASCADE;
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes all tables. Used by the reset script.
func DropSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}
	if _, err := DB.Exec(dropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Warn().Msg("Dropped all tables")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
