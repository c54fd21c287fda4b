package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/elys-network/liquidvault/internal/engine"
	"github.com/elys-network/liquidvault/internal/logger"
	"github.com/elys-network/liquidvault/internal/state"
	"github.com/elys-network/liquidvault/internal/types"
)

// CallerHeader carries the identity an operation is performed as. Authenticating it is the job of the
// gateway in front of this server.
const CallerHeader = "X-Caller-Address"

// SnapshotSource exposes the monitor's most recent cycle.
type SnapshotSource interface {
	Latest() (types.StatusSnapshot, bool)
}

// Config holds the dependencies of the operator API.
type Config struct {
	Addr           string
	Engine         *engine.Engine
	Monitor        SnapshotSource // optional
	AllowedOrigins []string
}

// WebServer serves the operator HTTP API.
type WebServer struct {
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	engine  *engine.Engine
	monitor SnapshotSource
	logger  zerolog.Logger
	started time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	ws := &WebServer{
		router:  mux.NewRouter(),
		engine:  cfg.Engine,
		monitor: cfg.Monitor,
		logger:  logger.GetForComponent("web_server"),
		started: time.Now(),
	}
	ws.setupRoutes()

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", CallerHeader}),
	)
	ws.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{ws.logger}),
		handlers.PrintRecoveryStack(true),
	)(cors(ws.router))

	ws.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      ws.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return ws, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Vault
	api.HandleFunc("/vault/status", ws.handleVaultStatus).Methods("GET")
	api.HandleFunc("/vault/parameters", ws.handleVaultParameters).Methods("GET")
	api.HandleFunc("/vault/fee", ws.handleWithdrawFee).Methods("GET")
	api.HandleFunc("/vault/limits/{address}", ws.handleLimits).Methods("GET")
	api.HandleFunc("/vault/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/vault/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/vault/redeem", ws.handleRedeem).Methods("POST")
	api.HandleFunc("/vault/dispatch", ws.handleDispatch).Methods("POST")
	api.HandleFunc("/vault/repatriate", ws.handleRepatriate).Methods("POST")
	api.HandleFunc("/vault/exchange-rate", ws.handleExchangeRate).Methods("POST")

	// Withdrawal queue
	api.HandleFunc("/queue/summary", ws.handleQueueSummary).Methods("GET")
	api.HandleFunc("/queue/requests", ws.handlePendingRequests).Methods("GET")
	api.HandleFunc("/queue/requests", ws.handleQueueRequest).Methods("POST")
	api.HandleFunc("/queue/requests/{id}", ws.handleGetRequest).Methods("GET")
	api.HandleFunc("/queue/requests/{id}/penalty-fee", ws.handleSetPenaltyFee).Methods("POST")
	api.HandleFunc("/queue/requests/{id}/execute", ws.handleExecute).Methods("POST")
	api.HandleFunc("/queue/receivers/{address}/requests", ws.handleReceiverRequests).Methods("GET")
	api.HandleFunc("/queue/receivers/{address}/execute", ws.handleExecuteReceiver).Methods("POST")

	// Coordinator, roles and tokens
	api.HandleFunc("/fulfill", ws.handleFulfill).Methods("POST")
	api.HandleFunc("/roles/{role}/{address}", ws.handleRole).Methods("GET")
	api.HandleFunc("/tokens/{symbol}/balances/{address}", ws.handleBalance).Methods("GET")
	api.HandleFunc("/tokens/{symbol}/approve", ws.handleApprove).Methods("POST")

	// Persistence and monitor
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/snapshots/latest", ws.handleLatestSnapshot).Methods("GET")
	api.HandleFunc("/snapshots/{id:[0-9]+}", ws.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/events/counts", ws.handleEventCounts).Methods("GET")

	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.handler
}

// Start starts the web server. It returns http.ErrServerClosed after Shutdown.
func (ws *WebServer) Start() error {
	ws.logger.Info().Str("addr", ws.server.Addr).Msg("Starting web server")
	return ws.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	database := map[string]interface{}{
		"configured": state.Configured(),
		"healthy":    false,
	}
	healthy := true
	if state.Configured() {
		if err := state.TestDBConnection(); err != nil {
			database["error"] = err.Error()
			healthy = false
		} else {
			database["healthy"] = true
		}
	}

	monitorInfo := map[string]interface{}{
		"current_cycle":   0,
		"last_cycle_time": nil,
	}
	if ws.monitor != nil {
		if latest, ok := ws.monitor.Latest(); ok {
			monitorInfo["current_cycle"] = latest.CycleNumber
			monitorInfo["last_cycle_time"] = latest.Timestamp
			monitorInfo["queue_shortfall"] = latest.Queue.Shortfall
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !healthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "liquidvault",
			"version": "1.0.0",
		},
		"database": database,
		"monitor":  monitorInfo,
	})
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// writeError maps a ledger error to its HTTP status.
func (ws *WebServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	event := ws.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = ws.logger.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	ws.writeErrorResponse(w, status, types.ErrorKind(err), err.Error())
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrBelowThreshold), errors.Is(err, types.ErrFeeNotSet):
		return http.StatusConflict
	case errors.Is(err, types.ErrExceedsMax),
		errors.Is(err, types.ErrInsufficientFunds),
		errors.Is(err, types.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, state.ErrNotInitialized),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("caller", r.Header.Get(CallerHeader)).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// recoveryLogger adapts zerolog to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
