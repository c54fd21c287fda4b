package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/liquidvault/internal/state"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// HTTPListenAddr is where the operator API listens.
	HTTPListenAddr string
	// GRPCListenAddr is where the gRPC health service listens.
	GRPCListenAddr string
	// AllowedOrigins feeds the CORS handler of the operator API.
	AllowedOrigins []string

	// Database is nil when DB_HOST is unset; the daemon then runs without persistence.
	Database *state.DBConfig
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	HTTPListenAddr = getEnvOrDefault("HTTP_LISTEN_ADDR", ":8080")
	GRPCListenAddr = getEnvOrDefault("GRPC_LISTEN_ADDR", ":9090")
	AllowedOrigins = []string{getEnvOrDefault("CORS_ALLOWED_ORIGIN", "*")}

	Database = nil
	if _, ok := os.LookupEnv("DB_HOST"); ok {
		cfg, err := loadDatabaseConfig()
		if err != nil {
			return err
		}
		Database = cfg
	}

	log.Debug().
		Str("HTTPListenAddr", HTTPListenAddr).
		Str("GRPCListenAddr", GRPCListenAddr).
		Bool("Database", Database != nil).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

func loadDatabaseConfig() (*state.DBConfig, error) {
	cfg := &state.DBConfig{
		Host:     os.Getenv("DB_HOST"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvOrDefault("DB_NAME", "liquidvault"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		Port:     5432,
	}
	if _, ok := os.LookupEnv("DB_PORT"); ok {
		port, err := getEnvAsUint64("DB_PORT")
		if err != nil {
			return nil, err
		}
		if port == 0 || port > 65535 {
			return nil, errors.New("environment variable DB_PORT out of range: " + strconv.FormatUint(port, 10))
		}
		cfg.Port = int(port)
	}
	return cfg, nil
}
