package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mocktest/engine/internal/config"
	"github.com/mocktest/engine/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TestSource is the read side of the test catalog.
type TestSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	ListSummaries(ctx context.Context) ([]model.TestSummary, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// CatalogService serves test definitions from Redis with PostgreSQL as the
// source of truth. A nil Redis client disables caching.
type CatalogService struct {
	repo TestSource
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo TestSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "catalog_service").Logger(),
	}
}

// GetTest returns the full definition including answer keys. Server-side use only.
func (s *CatalogService) GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, config.CacheKey.TestDefinitionKey(id.String())).Bytes()
		switch {
		case err == nil:
			var t model.Test
			if jsonErr := json.Unmarshal(data, &t); jsonErr == nil {
				return &t, nil
			}
			s.log.Warn().Str("test_id", id.String()).Msg("Corrupt cached definition, reloading")
		case !errors.Is(err, redis.Nil):
			// Redis is an accelerator only; fall through to PostgreSQL.
			s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Catalog cache read failed")
		}
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, storeErr("get test", err)
	}

	if err := s.WarmTestCache(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Catalog cache write failed")
	}
	return t, nil
}

// GetView returns the client-facing test without answer keys.
func (s *CatalogService) GetView(ctx context.Context, id uuid.UUID) (*model.TestView, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(id.String())).Bytes()
		if err == nil {
			var v model.TestView
			if json.Unmarshal(data, &v) == nil {
				return &v, nil
			}
		}
	}
	t, err := s.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.View(), nil
}

// ListSummaries returns the public test listing.
func (s *CatalogService) ListSummaries(ctx context.Context) ([]model.TestSummary, error) {
	summaries, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, storeErr("list tests", err)
	}
	return summaries, nil
}

// WarmTestCache stores both the definition and the stripped payload.
func (s *CatalogService) WarmTestCache(ctx context.Context, t *model.Test) error {
	if s.rdb == nil {
		return nil
	}

	definition, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	payload, err := json.Marshal(t.View())
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestDefinitionKey(t.ID.String()), definition, s.ttl)
	pipe.Set(ctx, config.CacheKey.TestPayloadKey(t.ID.String()), payload, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", t.ID.String()).
		Int("questions", len(t.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every test into Redis before the server accepts traffic.
func (s *CatalogService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info().Msg("No tests to prewarm")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		t, err := s.repo.GetByID(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to load test, skipping")
			continue
		}
		if err := s.WarmTestCache(ctx, t); err != nil {
			s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}
