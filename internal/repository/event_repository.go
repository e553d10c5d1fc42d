package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mocktest/engine/internal/config"
	"github.com/mocktest/engine/internal/model"
	"github.com/redis/go-redis/v9"
)

// EventRepository fans attempt lifecycle events out over Redis Pub/Sub.
type EventRepository struct {
	rdb *redis.Client
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(rdb *redis.Client) *EventRepository {
	return &EventRepository{rdb: rdb}
}

// Publish sends an event on the test's results channel.
func (r *EventRepository) Publish(ctx context.Context, evt model.AttemptEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.rdb.Publish(ctx, config.CacheKey.TestResultsChannel(evt.TestID.String()), payload).Err()
}

// Subscribe listens on the test's results channel. Callers must Close it.
func (r *EventRepository) Subscribe(ctx context.Context, testID uuid.UUID) *redis.PubSub {
	return r.rdb.Subscribe(ctx, config.CacheKey.TestResultsChannel(testID.String()))
}
