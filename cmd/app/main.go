package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rideshare/internal/auth"
	"rideshare/internal/chat"
	"rideshare/internal/config"
	"rideshare/internal/db"
	"rideshare/internal/logging"
	"rideshare/internal/server"
	"rideshare/internal/storage/memory"
	"rideshare/internal/storage/postgres"
	"rideshare/internal/storage/rediscache"
	"rideshare/internal/storage/sqlite"
	"rideshare/internal/web"
)

// backend is what every storage package provides.
type backend interface {
	chat.Store
	chat.RideRegistry
	db.RideWriter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	store, closeStore, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		rides      chat.RideRegistry = store
		seedTarget db.RideWriter     = store
		rideCache  *rediscache.Rides
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; ride cache will fall through")
		}
		rideCache = rediscache.NewRides(client, store, cfg.RideCacheTTL, log.With().Str("component", "ridecache").Logger())
		rides, seedTarget = rideCache, rideCache
	}

	if cfg.IsDev() && cfg.DemoSeed {
		if err := db.RunDevSeed(ctx, seedTarget); err != nil {
			log.Warn().Err(err).Msg("dev-seed failed")
		} else {
			log.Info().Msg("dev-seed: OK")
		}
	}

	authSvc, err := auth.NewService(ctx, cfg, log.With().Str("component", "auth").Logger())
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	chatLog := log.With().Str("component", "chat").Logger()
	gw := chat.NewGateway(store, rides, authSvc, chat.Options{
		AllowAnonymous:  cfg.Chat.AllowAnonymous,
		SendTimeout:     cfg.Chat.SendTimeout,
		MaxMessageRunes: cfg.Chat.MaxMessageRunes,
		OutboundBuffer:  cfg.Chat.OutboundBuffer,
		HistoryLimit:    cfg.Chat.HistoryLimit,
		RateLimit:       cfg.Chat.RateLimit,
		RateBurst:       cfg.Chat.RateBurst,
	}, chatLog)
	chatSvc := chat.NewService(gw, chat.SocketOptions{
		MaxFrameBytes: cfg.WS.MaxFrameBytes,
		PongWait:      cfg.WS.PongWait,
		WriteWait:     cfg.WS.WriteWait,
		CheckOrigin:   web.OriginChecker(cfg.AllowedOrigins),
	}, chatLog)

	handler := server.New(cfg, server.Deps{
		Chat:      chatSvc,
		Auth:      authSvc,
		RideCache: rideCache,
		Log:       log.With().Str("component", "http").Logger(),
	})

	addr := ":" + strconv.Itoa(cfg.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("storage", cfg.StorageBackend).Msg("rideshare chat listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked sockets are not tracked by Shutdown; close them first.
		gw.Close()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info().Msg("server stopped")
		return nil
	})
	return g.Wait()
}

func openBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (backend, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx, pool, log.With().Str("component", "migrations").Logger()); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations failed: %w", err)
		}
		return postgres.NewStore(pool), pool.Close, nil
	case config.BackendSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				log.Warn().Err(err).Msg("close sqlite")
			}
		}, nil
	default:
		log.Warn().Msg("memory storage: messages are lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}
