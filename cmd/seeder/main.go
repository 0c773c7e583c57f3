package main

import (
	"context"
	"database/sql"
	"flag"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"stayfinder/internal/adapters/catalog"
	"stayfinder/internal/adapters/observability"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/shared"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func main() {
	source := flag.String("source", "fixtures", "fixtures | catalog")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("source", *source).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	// cache eviction is best-effort; skip it when redis is down
	var cache domain.Cache
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, cached hotels will expire by TTL")
	} else {
		cache = redisad.New(rdb)
	}

	var client domain.CatalogClient
	if *source == "catalog" {
		c, err := catalog.New(cfg.CatalogBase, cfg.CatalogKey, cfg.CatalogRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize catalog client")
		}
		client = c
	}
	seed := app.NewSeedingService(client, repo, cache)

	// one job per hotel; a job either upserts a fixture or ingests a catalog id
	var jobs []func(context.Context) (string, error)
	switch *source {
	case "fixtures":
		ratings := shared.FixtureRatings()
		for _, h := range shared.FixtureHotels() {
			h := h
			jobs = append(jobs, func(ctx context.Context) (string, error) {
				return h.ID, seed.SeedHotel(ctx, h, ratings[h.ID])
			})
		}
	case "catalog":
		ids, err := seed.CatalogIDs(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("list catalog hotels failed")
		}
		for _, id := range ids {
			id := id
			jobs = append(jobs, func(ctx context.Context) (string, error) {
				return id, seed.IngestHotel(ctx, id)
			})
		}
	default:
		log.Fatal().Str("source", *source).Msg("unknown source")
	}

	sem := semaphore.NewWeighted(int64(max(cfg.SeedWorkers, 1)))
	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, job := range jobs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(job func(context.Context) (string, error)) {
			defer wg.Done()
			defer sem.Release(1)

			id, err := job(ctx)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("id", id).Err(err).Msg("seed failed")
				return
			}
			log.Info().Str("id", id).Msg("seed ok")
		}(job)
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		log.Fatal().Int32("failed", n).Int("total", len(jobs)).Msg("seeding finished with failures")
	}
	log.Info().Int("hotels", len(jobs)).Msg("seeding completed")
}
