package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"insights-filter/internal/cache"
	"insights-filter/internal/config"
	"insights-filter/internal/insights/insights_api"
	"insights-filter/internal/insights/loader"
	"insights-filter/internal/kafka"
	"insights-filter/internal/logger"
	"insights-filter/internal/metrics"
	"insights-filter/internal/session"
)

func newRouter(cfg *config.Config, handler *insights_api.Handler, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)
	r.Use(requestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	log.Info("ROUTER", "Insights routes registered under /api/insights/tables")
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func setupPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) kafka.Publisher {
	topics := kafka.Topics{
		TableLoaded:  cfg.Kafka.Topics.TableLoaded,
		ViewExported: cfg.Kafka.Topics.ViewExported,
	}
	switch {
	case !cfg.Kafka.Enabled:
		log.Info("KAFKA", "Activity events disabled")
		return kafka.NoopPublisher{}
	case cfg.Kafka.MockMode:
		log.Info("KAFKA", "Mock mode: activity events are logged, not sent")
		return kafka.NewMockProducer(topics, log)
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := kafka.EnsureTopicsExist(ensureCtx, cfg.Kafka.Brokers, []string{topics.TableLoaded, topics.ViewExported}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	return kafka.NewProducer(cfg.Kafka.Brokers, topics, log)
}

func main() {
	// .env must be read before the config and logger pick up their settings.
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(logger.Options{
		Level:       cfg.Log.Level,
		Dir:         cfg.Log.Dir,
		FileEnabled: cfg.Log.FileEnabled,
		Color:       true,
	})
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	log.Info("APP", "Starting insights-filter")

	ctx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()

	var normalizedCache loader.NormalizedCache
	if cfg.Redis.Enabled {
		redisClient, err := cache.InitializeRedis(cfg.Redis.Addr, log)
		if err != nil {
			log.Warn("CACHE", "Continuing without normalized table cache")
		} else {
			defer redisClient.Close()
			normalizedCache = cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
		}
	}

	publisher := setupPublisher(ctx, cfg, log)
	defer publisher.Close()

	tableLoader := loader.New(loader.Options{
		Location:      cfg.Insights.Location(),
		Cache:         normalizedCache,
		MaxAdvisories: cfg.Insights.MaxAdvisories,
		Logger:        log,
	})

	sessions := session.NewStore(cfg.Insights.SessionTTL, nil, log)
	go sessions.Run(ctx, time.Minute)

	handler := insights_api.NewHandler(tableLoader, sessions, publisher, log, cfg.Insights.MaxUploadBytes)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      newRouter(cfg, handler, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Insights service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopJanitor()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Insights service shutdown complete")
	}
}
