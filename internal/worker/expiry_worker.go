package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/config"
	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/service"
)

const (
	DefaultSweepInterval = 30 * time.Second
	DefaultSweepBatch    = 100
	finalizeTimeout      = 5 * time.Second
)

// ExpiredLister finds in-progress attempts whose deadline passed before cutoff.
type ExpiredLister interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Attempt, error)
}

// Finalizer submits an abandoned attempt with whatever was drafted.
type Finalizer interface {
	FinalizeExpired(ctx context.Context, attempt *model.Attempt) (*service.SubmitResult, error)
	Grace() time.Duration
}

// SweepLock serializes sweeps across replicas. Release must only free the
// lock while it is still held under token.
type SweepLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, token string) error
}

// ExpiryWorker resolves attempts whose taker never submitted, so every
// attempt eventually reaches SUBMITTED with a score.
type ExpiryWorker struct {
	store     ExpiredLister
	finalizer Finalizer
	lock      SweepLock
	interval  time.Duration
	batch     int
	now       func() time.Time
	log       zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker. A nil Redis client skips the
// cross-replica lock; the conditional submit keeps concurrent sweeps correct.
func NewExpiryWorker(store ExpiredLister, finalizer Finalizer, rdb *redis.Client, interval time.Duration, batch int, log zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	var lock SweepLock
	if rdb != nil {
		lock = NewRedisLock(rdb, config.WorkerKey.ExpirySweepLock)
	}
	return &ExpiryWorker{
		store:     store,
		finalizer: finalizer,
		lock:      lock,
		interval:  interval,
		batch:     batch,
		now:       time.Now,
		log:       log.With().Str("component", "expiry_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

// Start sweeps every interval until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if n, err := w.Sweep(ctx); err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Expiry sweep failed")
			}
		} else if n > 0 {
			w.log.Info().Int("finalized", n).Msg("Expired attempts finalized")
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep finalizes one batch of expired attempts and returns how many it
// submitted. Another replica holding the lock makes it a no-op.
func (w *ExpiryWorker) Sweep(ctx context.Context) (int, error) {
	token, acquired, err := w.acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !acquired {
		return 0, nil
	}
	defer w.release(token)

	cutoff := w.now().Add(-w.finalizer.Grace())
	expired, err := w.store.ListExpired(ctx, cutoff, w.batch)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for i := range expired {
		a := &expired[i]

		fctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
		res, err := w.finalizer.FinalizeExpired(fctx, a)
		cancel()

		if err != nil {
			w.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to finalize expired attempt")
			continue
		}
		if !res.Replayed {
			finalized++
		}
	}
	return finalized, nil
}

// ----------------------------------------------------------------
// Redis lock
// ----------------------------------------------------------------

func (w *ExpiryWorker) acquire(ctx context.Context) (string, bool, error) {
	if w.lock == nil {
		return "", true, nil
	}
	return w.lock.Acquire(ctx, w.interval)
}

func (w *ExpiryWorker) release(token string) {
	if w.lock == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.lock.Release(ctx, token); err != nil {
		w.log.Warn().Err(err).Msg("Failed to release sweep lock")
	}
}

// releaseScript deletes the lock key only while it still holds our token, so
// a sweep that outlived its TTL cannot free another replica's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a SweepLock on a single Redis key.
type RedisLock struct {
	rdb *redis.Client
	key string
}

// NewRedisLock creates a lock stored under key.
func NewRedisLock(rdb *redis.Client, key string) *RedisLock {
	return &RedisLock{rdb: rdb, key: key}
}

// Acquire sets the key to a fresh token if it is free.
func (l *RedisLock) Acquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false, err
	}
	return token, ok, nil
}

// Release frees the key if token still owns it.
func (l *RedisLock) Release(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
}
