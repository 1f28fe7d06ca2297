package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"teamdesk/internal/attendance"
	"teamdesk/internal/cache"
	"teamdesk/internal/config"
	"teamdesk/internal/db"
	"teamdesk/internal/db/memdb"
	teamdeskgrpc "teamdesk/internal/grpc"
	internalhttp "teamdesk/internal/http"
	"teamdesk/internal/jobs"
	"teamdesk/internal/logger"
	"teamdesk/internal/realtime"
	"teamdesk/internal/team"
)

type store interface {
	attendance.Store
	team.Store
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := st.Migrate(migrateCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("migration failed")
	}
	cancel()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("redis close error")
			}
		}()
	}

	registry := realtime.NewRegistry(log)
	dispatcher := realtime.NewDispatcher(registry, log)
	attendanceSvc := attendance.NewService(st, dispatcher, log,
		attendance.WithCache(cache.NewWindowCache(redisClient, cfg.WindowCacheTTL)))
	teamSvc := team.NewService(st, attendanceSvc, dispatcher, log)

	if created, err := teamSvc.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		log.Fatal().Err(err).Msg("bootstrap admin failed")
	} else if created {
		log.Info().Str("email", cfg.BootstrapAdminEmail).Msg("bootstrap admin ready")
	}

	server := internalhttp.NewServer(cfg, log, attendanceSvc, teamSvc, registry, st)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer, err := teamdeskgrpc.NewServer(cfg.ServiceAuthToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("grpc init failed")
	}

	jobs.StartLivenessSweep(ctx, registry, cfg.PingInterval, log)
	jobs.StartHealthProbe(ctx, st, healthServer, cfg.HealthProbeInterval, 2*time.Second, log, "", teamdeskgrpc.ServiceName)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("grpc listen error")
		}
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc listening")
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("grpc server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	// Hijacked websocket connections are not tracked by Shutdown.
	registry.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	grpcServer.GracefulStop()
	log.Info().Msg("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store, func()) {
	switch cfg.StorageDriver {
	case "memory":
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return memdb.New(), func() {}
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("db connection failed")
		}
		return db.NewStore(pool), pool.Close
	}
	log.Fatal().Str("driver", cfg.StorageDriver).Msg("unknown STORAGE_DRIVER")
	return nil, nil
}
