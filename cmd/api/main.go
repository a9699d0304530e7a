package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pantheonmod/pantheon/internal/config"
	"github.com/pantheonmod/pantheon/internal/declarative"
	"github.com/pantheonmod/pantheon/internal/engine"
	"github.com/pantheonmod/pantheon/internal/handlers"
	"github.com/pantheonmod/pantheon/internal/logger"
	"github.com/pantheonmod/pantheon/internal/middleware"
	"github.com/pantheonmod/pantheon/internal/services"
	"github.com/pantheonmod/pantheon/internal/storage"
	"github.com/pantheonmod/pantheon/pkg/deity"
	"github.com/pantheonmod/pantheon/pkg/prayer"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Pantheon API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"default_provider", cfg.DefaultProvider,
		"data_dir", cfg.DataDir)

	var store storage.Store
	if cfg.RedisURL != "" {
		redisStore, err := storage.NewRedisStore(cfg.RedisURL, log)
		if err != nil {
			log.Error("Failed to configure Redis storage", "error", err)
			os.Exit(1)
		}
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := redisStore.WaitForConnection(connectCtx); err != nil {
			connectCancel()
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		connectCancel()
		log.Info("Redis connection established")
		store = redisStore
	} else {
		log.Warn("REDIS_URL not set, using in-memory storage; state is lost on restart")
		store = storage.NewMemoryStore()
	}

	registry := services.NewRegistry(services.Credentials{
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		OllamaBaseURL:   cfg.OllamaBaseURL,
		DefaultProvider: cfg.DefaultProvider,
		DefaultModel:    cfg.DefaultModel,
	}, log)

	deities := deity.NewStore(log)
	deities.SetBaseTimeout(cfg.ProviderTimeout)

	source := declarative.NewSource(cfg.DataDir, log)
	defs, err := source.Load()
	if err != nil {
		log.Error("Failed to read deity definitions", "error", err, "dir", cfg.DataDir)
		os.Exit(1)
	}
	result := deities.Load(defs)
	log.Info("Deity definitions loaded", "loaded", result.Loaded, "errors", result.Errors)

	eng := engine.New(engine.Options{
		Deities:       deities,
		Providers:     registry,
		Relationships: store,
		Cooldowns:     store,
		Audit:         store,
		Executor:      &loggingExecutor{log: log},
		Logger:        log,
	})

	reloader := &configReloader{source: source, engine: eng}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := declarative.NewWatcher(cfg.DataDir, func() {
		if _, err := reloader.Reload(context.Background()); err != nil {
			log.Error("Reload after file change failed", "error", err)
		}
	}, log)
	if err != nil {
		log.Warn("Config watcher unavailable, reload via POST /v1/config/reload only", "error", err)
	} else {
		go watcher.Start(ctx)
	}

	scheduler := cron.New()
	if cfg.SweepInterval > 0 {
		_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.SweepInterval), func() {
			if _, err := eng.SweepProgression(ctx); err != nil {
				log.Warn("Progression sweep failed", "error", err)
			}
		})
		if err != nil {
			log.Error("Failed to schedule progression sweep", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		log.Info("Progression sweep scheduled", "interval", cfg.SweepInterval)
	}

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, func() int {
		return deities.Snapshot().Len()
	}, log))
	mux.Handle("/v1/prayer", handlers.NewPrayerHandler(eng, log))
	mux.Handle("/v1/deities/", handlers.NewDeityConfigHandler(eng, log))
	mux.Handle("/v1/config/reload", handlers.NewConfigReloadHandler(reloader, log))

	progressionHandler := handlers.NewProgressionHandler(eng, log)
	mux.Handle("/v1/progression/", progressionHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")
	cancel()
	scheduler.Stop()

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}

// loggingExecutor stands in for the game host's command bridge: it
// accepts every batch and logs what would run. Deployments embed a real
// executor through the engine options.
type loggingExecutor struct {
	log *slog.Logger
}

func (x *loggingExecutor) Execute(ctx context.Context, batch []prayer.Action, requesterID string) <-chan bool {
	for _, a := range batch {
		x.log.Info("Action dispatched", "requester", requesterID, "action", a.String())
	}
	ch := make(chan bool, 1)
	ch <- true
	close(ch)
	return ch
}

// configReloader re-reads the data directory and swaps the active set.
type configReloader struct {
	source *declarative.Source
	engine *engine.Engine
}

func (r *configReloader) Reload(ctx context.Context) (deity.LoadResult, error) {
	defs, err := r.source.Load()
	if err != nil {
		return deity.LoadResult{}, err
	}
	return r.engine.ReloadConfig(defs), nil
}
