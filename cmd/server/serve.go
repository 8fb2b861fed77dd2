package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/config"
	"github.com/oneshare/signal-server-go/internal/database"
	"github.com/oneshare/signal-server-go/internal/handler"
	"github.com/oneshare/signal-server-go/internal/jobs"
	"github.com/oneshare/signal-server-go/internal/lan"
	"github.com/oneshare/signal-server-go/internal/middleware"
	"github.com/oneshare/signal-server-go/internal/mirror"
	"github.com/oneshare/signal-server-go/internal/redis"
	"github.com/oneshare/signal-server-go/internal/repository"
	"github.com/oneshare/signal-server-go/internal/service"
	"github.com/oneshare/signal-server-go/internal/signaling"
	"github.com/oneshare/signal-server-go/internal/store"
)

func runServer(cfg *config.Config) error {
	storeOpts := []store.Option{}

	var mirrorStats handler.MirrorStats
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
		err = db.Ping(ctx)
		if err == nil {
			err = repository.NewRoomMirrorRepository(db.DB).EnsureSchema(ctx)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("prepare mirror database: %w", err)
		}
		log.Info().Msg("database connected")

		roomMirrorRepo := repository.NewRoomMirrorRepository(db.DB)

		writer := mirror.NewWriter(roomMirrorRepo, cfg.MirrorQueueSize, config.MirrorWriteTimeout)
		writer.Start()
		defer writer.Stop()
		mirrorStats = writer
		storeOpts = append(storeOpts, store.WithMirror(writer))

		cleanupJob := jobs.NewCleanupJob(roomMirrorRepo, config.MirrorCleanupInterval)
		cleanupJob.Start()
		defer cleanupJob.Stop()
	} else {
		log.Info().Msg("DATABASE_URL not set, room mirror disabled")
	}

	limiterFactory := service.MemoryLimiters
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		var err error
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		if cfg.RateLimitBackend == config.RateLimitBackendRedis {
			limiterFactory = func(p service.Policy) service.Limiter {
				return service.NewRedisTokenBucketLimiter(redisClient.Client, p.Capacity, p.RefillPerSec)
			}
		}
	}
	log.Info().Str("backend", cfg.RateLimitBackend).Msg("rate limiter configured")

	storeOpts = append(storeOpts, store.WithIDRetention(cfg.RoomTokenTTL()))
	rooms := store.New(cfg.RoomTTL(), storeOpts...)
	defer rooms.Stop()

	limits := service.NewRateLimits(service.DefaultPolicies, limiterFactory)
	tokens := service.NewTokenService(cfg.SigningSecret, cfg.RoomTokenTTL())
	creds := service.NewCredentialService(cfg.STUNURIs, cfg.TURNURIs, cfg.TURNSecret, cfg.TURNTTL())
	log.Info().
		Str("trustMode", string(tokens.Mode())).
		Bool("turn", creds.TURNEnabled()).
		Msg("session services ready")

	relay := signaling.NewRelay(signaling.NewHub(), rooms, limits, tokens, creds, lan.NewRegistry())
	defer relay.Shutdown()
	rooms.OnExpire(func(res store.CloseResult) {
		relay.NotifyClosed(res, "")
	})

	var redisCheck handler.DependencyChecker
	if redisClient != nil {
		redisCheck = redisClient
		healthReporter := jobs.NewHealthReporter(rooms, relay, redisClient, config.HealthReportInterval, config.HealthSnapshotTTL)
		healthReporter.Start()
		defer healthReporter.Stop()
	}

	shareHandler := handler.NewShareHandler(rooms, relay, limits)
	healthHandler := handler.NewHealthHandler(rooms, relay, mirrorStats, redisCheck, cfg.TURNConfigured())
	wsHandler := handler.NewWSHandler(relay, cfg.AllowedOrigin())
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxBodySize)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg))

	r.Mount("/health", healthHandler.Routes())
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/v1/share", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimitMiddleware.Handler)
		r.Mount("/", shareHandler.Routes())
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}
