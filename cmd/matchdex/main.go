package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/matchdex/internal/config"
	"github.com/kailas-cloud/matchdex/internal/index"
	logpkg "github.com/kailas-cloud/matchdex/internal/logger"
	"github.com/kailas-cloud/matchdex/internal/metrics"
	"github.com/kailas-cloud/matchdex/internal/retry"
	"github.com/kailas-cloud/matchdex/internal/store"
	storeElastic "github.com/kailas-cloud/matchdex/internal/store/elastic"
	storeOpensearch "github.com/kailas-cloud/matchdex/internal/store/opensearch"
	chiTransport "github.com/kailas-cloud/matchdex/internal/transport/chi"
	"github.com/kailas-cloud/matchdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting matchdex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("store_addr", cfg.Store.Addr),
	)

	// Create document store based on driver
	storeCfg := storeElastic.Config{
		Addr:        cfg.Store.Addr,
		Username:    cfg.Store.Username,
		Password:    cfg.Store.Password,
		MinHealth:   cfg.Store.MinHealth,
		Timeout:     time.Duration(cfg.Store.TimeoutSec) * time.Second,
		InsecureTLS: cfg.Store.InsecureTLS,
		CAFile:      cfg.Store.CAFile,
	}

	var st store.Store
	switch cfg.Store.Driver {
	case "elastic":
		st, err = storeElastic.NewStore(storeCfg)
	case "opensearch":
		st, err = storeOpensearch.NewStore(storeCfg)
	default:
		logger.Fatal("Unknown store driver", zap.String("driver", cfg.Store.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create document store", zap.Error(err))
	}
	defer st.Close()

	// Wait for the store to be ready
	ctx := context.Background()
	if err := st.WaitForReady(ctx, time.Duration(cfg.Store.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Document store not ready", zap.Error(err))
	}
	logger.Info("Connected to document store")

	// Register store metrics explicitly (no init())
	metrics.RegisterStoreMetrics()

	// Index manager with optional settings template and credentials
	manager, err := buildIndexManager(st, cfg.Index, logger)
	if err != nil {
		logger.Fatal("Failed to create index manager", zap.Error(err))
	}

	// Startup index discovery, retried under the configured data policy
	dataPolicy := retry.FromConfig(cfg.Retry.Data)
	var indices []string
	listCtx := logpkg.ContextWithLogger(ctx, logger)
	if err := dataPolicy.Do(listCtx, "list indices", func(ctx context.Context) error {
		var listErr error
		indices, listErr = manager.ListIndices(ctx)
		return listErr
	}); err != nil {
		logger.Warn("Could not list indices", zap.Error(err))
	} else {
		logger.Info("Serving indices", zap.Int("count", len(indices)), zap.Strings("indices", indices))
	}

	// Probe server
	server := chiTransport.NewServer(st, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndexManager assembles the index manager from its configuration: an
// optional settings template file replacing the embedded one, and an
// optional credentials file feeding template placeholders.
func buildIndexManager(st store.Store, cfg config.IndexConfig, logger *zap.Logger) (*index.Manager, error) {
	opts := []index.Option{index.WithLogger(logger)}

	if cfg.SettingsFile != "" {
		tmpl, err := os.ReadFile(cfg.SettingsFile)
		if err != nil {
			return nil, fmt.Errorf("read settings template: %w", err)
		}
		opts = append(opts, index.WithSettingsTemplate(tmpl))
	}

	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		var creds map[string]string
		if err := yaml.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("parse credentials file: %w", err)
		}
		opts = append(opts, index.WithCredentials(creds))
	}

	return index.NewManager(st, opts...), nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
