package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/adapters/events"
	server "stayfinder/internal/adapters/http_server"
	"stayfinder/internal/adapters/observability"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/shared"
	"stayfinder/internal/storage/breaker"
	"stayfinder/internal/storage/memory"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// store
	var store domain.InventoryStore
	switch cfg.Store {
	case "memory":
		mem := memory.New()
		seed := app.NewSeedingService(nil, mem, nil)
		ratings := shared.FixtureRatings()
		for _, h := range shared.FixtureHotels() {
			if err := seed.SeedHotel(ctx, h, ratings[h.ID]); err != nil {
				log.Fatal().Err(err).Str("hotel_id", h.ID).Msg("seed memory store failed")
			}
		}
		store = mem
		log.Warn().Msg("using in-memory store with fixture data")
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		store = breaker.New(mysqlrepo.New(db), breaker.Config{
			FailureThreshold: uint32(max(cfg.BreakerFailures, 1)),
			OpenTimeout:      cfg.BreakerOpenTimeout,
		})
	}

	// cache + lock
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	var cache domain.Cache
	redisErr := rdb.Ping(ctx).Err()
	if redisErr != nil {
		log.Warn().Err(redisErr).Str("addr", cfg.RedisAddr).Msg("redis unavailable, read cache disabled")
	} else {
		cache = redisad.New(rdb)
	}

	var locker domain.Locker = app.NewKeyedLocker()
	if cfg.LockBackend == "redis" {
		if redisErr != nil {
			log.Fatal().Err(redisErr).Msg("LOCK_BACKEND=redis needs a reachable redis")
		}
		locker = redisad.NewLocker(rdb, cfg.LockTTL)
		log.Info().Dur("ttl", cfg.LockTTL).Msg("using redis booking lock")
	}

	// events
	var publisher domain.EventPublisher = events.Noop{}
	if cfg.AMQPURL != "" {
		p, err := events.Dial(cfg.AMQPURL)
		if err != nil {
			log.Error().Err(err).Msg("rabbitmq unavailable, booking events disabled")
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// services
	avail := app.NewAvailabilityEngine(store, cfg.StoreTimeout)
	handlers := &server.Handlers{
		Q:      app.NewQueryService(store, cache, cfg.CacheTTL, cfg.StoreTimeout),
		Avail:  avail,
		Scores: app.NewScoringEngine(store, cache, cfg.CacheTTL, cfg.StoreTimeout),
		Bookings: app.NewBookingService(store, avail, locker, publisher, app.BookingOptions{
			StoreTimeout: cfg.StoreTimeout,
			LockWait:     cfg.LockTTL,
			MaxRetries:   cfg.BookingMaxRetries,
		}),
		Ratings: app.NewRatingService(store, cfg.StoreTimeout),
	}

	// http
	srv := server.New(server.Options{
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPM: cfg.RateLimitRPM,
		JWTSecret:    cfg.JWTSecret,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(handlers)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
