package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mocktest/engine/internal/config"
	"github.com/mocktest/engine/internal/model"
	"github.com/redis/go-redis/v9"
)

// draftTTL bounds how long an abandoned draft hash survives.
const draftTTL = 48 * time.Hour

// DraftRepository buffers in-progress answers in a Redis hash keyed by
// question index.
type DraftRepository struct {
	rdb *redis.Client
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(rdb *redis.Client) *DraftRepository {
	return &DraftRepository{rdb: rdb}
}

// Save records one answer. Unanswered removes the slot.
func (r *DraftRepository) Save(ctx context.Context, testID uuid.UUID, userID, questionIndex int, ans model.Answer) error {
	key := config.CacheKey.DraftAnswersKey(testID.String(), userID)
	field := strconv.Itoa(questionIndex)

	pipe := r.rdb.TxPipeline()
	if ans.Answered {
		pipe.HSet(ctx, key, field, ans.Option)
	} else {
		pipe.HDel(ctx, key, field)
	}
	pipe.Expire(ctx, key, draftTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Load returns the sparse question-index → option map. Malformed fields are skipped.
func (r *DraftRepository) Load(ctx context.Context, testID uuid.UUID, userID int) (map[int]int, error) {
	raw, err := r.rdb.HGetAll(ctx, config.CacheKey.DraftAnswersKey(testID.String(), userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	draft := make(map[int]int, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		opt, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		draft[idx] = opt
	}
	return draft, nil
}

// Clear drops the draft once the attempt is submitted.
func (r *DraftRepository) Clear(ctx context.Context, testID uuid.UUID, userID int) error {
	return r.rdb.Del(ctx, config.CacheKey.DraftAnswersKey(testID.String(), userID)).Err()
}
