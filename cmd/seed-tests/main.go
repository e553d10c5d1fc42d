package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mocktest/engine/internal/config"
	"github.com/mocktest/engine/internal/database"
	"github.com/mocktest/engine/internal/fixture"
	"github.com/mocktest/engine/internal/logger"
	"github.com/mocktest/engine/internal/repository"
	"github.com/mocktest/engine/internal/service"
)

func main() {
	file := flag.String("file", "fixtures/tests.yaml", "YAML file with test definitions")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing anything")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open fixture file")
	}
	tests, err := fixture.Load(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Invalid fixture file")
	}

	if *dryRun {
		fmt.Printf("%s: %d tests are valid\n", *file, len(tests))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Redis is only needed to warm the cache. Seeding still succeeds without it.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cache will be warmed on first read")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	testRepo := repository.NewTestRepository(pool)
	catalog := service.NewCatalogService(testRepo, rdb, cfg.CatalogCacheTTL, log)

	fmt.Printf("=== Seeding %d tests from %s ===\n", len(tests), *file)

	created := 0
	for i := range tests {
		t := &tests[i]
		if err := testRepo.Create(ctx, t); err != nil {
			log.Error().Err(err).Str("title", t.Title).Msg("Failed to create test")
			continue
		}
		if err := catalog.WarmTestCache(ctx, t); err != nil {
			log.Warn().Err(err).Str("test_id", t.ID.String()).Msg("Failed to warm cache")
		}
		created++
		fmt.Printf("  %s  %s (%d questions, %d min)\n", t.ID, t.Title, len(t.Questions), t.TimeLimitMinutes)
	}

	fmt.Printf("Seeding completed. %d/%d tests created.\n", created, len(tests))
	if created < len(tests) {
		os.Exit(1)
	}
}
