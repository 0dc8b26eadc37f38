// cmd/crew-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"crew-orchestrator/internal/audit"
	"crew-orchestrator/internal/common/config"
	"crew-orchestrator/internal/common/database"
	"crew-orchestrator/internal/common/llm"
	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/common/observability"
	"crew-orchestrator/internal/dispatch"
	agentgen "crew-orchestrator/internal/generation/agent"
	crewgen "crew-orchestrator/internal/generation/crew"
	taskgen "crew-orchestrator/internal/generation/task"
	"crew-orchestrator/internal/models"
	"crew-orchestrator/internal/templates"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting crew manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("crew-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch disabled, interaction logs stay in PostgreSQL only")
	}

	// --- Build Services ---
	templateStore := templates.NewStore(
		pg.DB,
		redis.Client,
		time.Duration(cfg.Dispatch.TemplateCacheTTL)*time.Second,
		log,
	)

	var auditLogger *audit.Logger
	if cfg.Audit.Enabled {
		auditLogger = audit.NewLogger(pg.DB, esClient, cfg.Database.Elasticsearch.Index, log)
	}

	llmClient := llm.NewClient(&cfg.LLM, log)

	resolver := dispatch.NewResolver(llmClient, templateStore, log)

	agentService := agentgen.NewService(llmClient, templateStore, log)
	taskService := taskgen.NewService(llmClient, templateStore, log)
	crewService := crewgen.NewService(llmClient, templateStore, log)

	var auditSink dispatch.AuditSink
	if auditLogger != nil {
		auditSink = auditLogger
	}

	dispatcher := dispatch.NewDispatcher(
		resolver,
		agentService,
		taskService,
		crewService,
		auditSink,
		cfg.LLM.DefaultModel,
		log,
	)

	zapLog.Info("All services initialized")

	// --- HTTP Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dispatch", dispatchHandler(dispatcher, obs, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	// --- Metrics Server ---
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := http.ListenAndServe(cfg.Server.MetricsAddress, metricsMux); err != nil {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Crew manager stopped gracefully")
}

// dispatchHandler decodes a dispatch request, runs it through the dispatcher,
// and writes the routing result. Group context comes from headers so browser
// clients don't have to repeat it in every body.
func dispatchHandler(dispatcher *dispatch.Dispatcher, obs *observability.Observability, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		started := time.Now()

		var req models.DispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Message == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		var groupCtx *models.GroupContext
		if groupID := r.Header.Get("X-Group-ID"); groupID != "" {
			groupCtx = &models.GroupContext{
				GroupID: groupID,
				UserID:  r.Header.Get("X-User-ID"),
			}
		}

		result, err := dispatcher.Dispatch(r.Context(), req, groupCtx)
		if err != nil {
			log.Error("dispatch failed", map[string]interface{}{
				"error": err.Error(),
			})
			obs.RecordDispatch(r.Context(), "", "error")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "dispatch failed",
			})
			return
		}

		obs.RecordDispatch(r.Context(), string(result.Dispatcher.Intent), "success")
		obs.RecordDispatchDuration(r.Context(), time.Since(started), string(result.Dispatcher.Intent))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
