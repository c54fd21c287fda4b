package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/liquidvault/internal/config"
	"github.com/elys-network/liquidvault/internal/engine"
	"github.com/elys-network/liquidvault/internal/health"
	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/monitor"
	"github.com/elys-network/liquidvault/internal/state"
	"github.com/elys-network/liquidvault/internal/txn"
	"github.com/elys-network/liquidvault/internal/types"
	"github.com/elys-network/liquidvault/internal/web"
)

const parametersVersion = 1

// main is the entry point of the vault daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if config.LogFile != "" {
		file, err := logger.FileWriter(config.LogFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", config.LogFile).Msg("Failed to open log file")
		}
		logger.InitializeWithWriter(zerolog.MultiLevelWriter(logger.Output(config.LogFormat), file), config.LogLevel)
	} else {
		logger.Initialize(config.LogLevel, config.LogFormat)
	}
	log.Info().Msg("Liquidity vault daemon starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Persistence (optional) ---
	params := config.Parameters
	var sinks []txn.Sink
	var store monitor.Store
	if config.Database != nil {
		if err := state.InitDB(*config.Database); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		params = loadParameters(params)
		sinks = append(sinks, state.NewEventJournal())
		store = monitor.DBStore{}
	} else {
		log.Warn().Msg("DB_HOST not set, running without persistence")
	}

	// --- 3. Ledger ---
	eng, err := engine.New(ctx, engine.Config{
		Params:             params,
		VaultAddress:       config.VaultAddress,
		QueueAddress:       config.QueueAddress,
		CoordinatorAddress: config.CoordinatorAddress,
		Owner:              config.OwnerAddress,
		FeeReceiver:        config.FeeReceiverAddress,
		PenaltyFeeReceiver: config.PenaltyFeeReceiverAddress,
		RemoteVenue:        config.RemoteVenueAddress,
		Operators:          config.OperatorAddresses,
		Genesis:            config.GenesisBalances,
		Sinks:              sinks,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap engine")
	}

	// --- 4. Health, monitor and API ---
	healthServer := health.NewServer(monitor.ServiceName)
	go func() {
		if err := healthServer.ListenAndServe(ctx, config.GRPCListenAddr); err != nil {
			log.Error().Err(err).Msg("gRPC health service failed")
		}
	}()

	mon, err := monitor.New(monitor.Config{Source: eng, Store: store, Health: healthServer})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create monitor")
	}

	webServer, err := web.NewWebServer(web.Config{
		Addr:           config.HTTPListenAddr,
		Engine:         eng,
		Monitor:        mon,
		AllowedOrigins: config.AllowedOrigins,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	go func() {
		if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	// --- 5. Main loop ---
	log.Info().Str("interval", config.MonitorInterval.String()).Msg("Starting monitor loop")
	mon.RunLoop(ctx, config.MonitorInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	healthServer.Stop()
	log.Info().Msg("Liquidity vault daemon stopped")
}

// loadParameters prefers the active versioned parameters and seeds the database with the configured ones
// when none exist yet.
func loadParameters(configured types.VaultParameters) types.VaultParameters {
	stored, err := state.LoadActiveVaultParameters(config.ConfigName)
	if err == nil {
		log.Info().Str("config", config.ConfigName).Msg("Using active vault parameters from database")
		return *stored
	}

	log.Warn().Err(err).Msg("Failed to load active vault parameters, using configured values and saving.")
	if _, err := state.SaveVaultParameters(configured, config.ConfigName, parametersVersion, true); err != nil {
		log.Fatal().Err(err).Msg("Failed to save initial vault parameters.")
	}
	return configured
}
