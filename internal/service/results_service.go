package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mocktest/engine/internal/grading"
	"github.com/mocktest/engine/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ResultsSource lists the submitted attempts of a test.
type ResultsSource interface {
	ListSubmittedByTest(ctx context.Context, testID uuid.UUID) ([]model.SubmittedAttempt, error)
}

// EventSubscriber opens a live feed of a test's attempt events.
type EventSubscriber interface {
	Subscribe(ctx context.Context, testID uuid.UUID) *redis.PubSub
}

// ResultsService aggregates statistics for test owners.
type ResultsService struct {
	catalog TestCatalog
	results ResultsSource
	events  EventSubscriber
	log     zerolog.Logger
}

// NewResultsService creates a new ResultsService.
func NewResultsService(catalog TestCatalog, results ResultsSource, events EventSubscriber, log zerolog.Logger) *ResultsService {
	return &ResultsService{
		catalog: catalog,
		results: results,
		events:  events,
		log:     log.With().Str("component", "results_service").Logger(),
	}
}

// Authorize checks that the requester owns testID or may read all results.
func (s *ResultsService) Authorize(ctx context.Context, claims *Claims, testID uuid.UUID) error {
	if claims == nil || claims.UserID <= 0 {
		return ErrAuthentication
	}
	test, err := s.catalog.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	if test.OwnerID != claims.UserID && !claims.HasPermission(PermissionTestsReadAll) {
		return ErrNotTestOwner
	}
	return nil
}

// Summary returns the aggregate statistics of testID. Only submitted
// attempts are counted.
func (s *ResultsService) Summary(ctx context.Context, claims *Claims, testID uuid.UUID) (*model.ResultsSummary, error) {
	if err := s.Authorize(ctx, claims, testID); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.results.ListSubmittedByTest(ctx, testID)
	if err != nil {
		return nil, storeErr("list results", err)
	}

	summary := grading.Aggregate(rows)
	summary.TestID = testID

	s.log.Debug().
		Str("test_id", testID.String()).
		Int("attempts", summary.TotalAttempts).
		Dur("took", time.Since(start)).
		Msg("Results aggregated")
	return &summary, nil
}

// Watch authorizes the requester and subscribes to testID's attempt events.
// The caller must close the returned subscription.
func (s *ResultsService) Watch(ctx context.Context, claims *Claims, testID uuid.UUID) (*redis.PubSub, error) {
	if err := s.Authorize(ctx, claims, testID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, storeErr("watch results", redis.ErrClosed)
	}
	return s.events.Subscribe(ctx, testID), nil
}
