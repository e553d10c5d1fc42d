package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mocktest/engine/internal/model"
)

// ErrAttemptNotInProgress is returned by Submit when the row exists but has
// already been submitted.
var ErrAttemptNotInProgress = errors.New("attempt is not in progress")

const attemptColumns = `id, user_id, test_id, status, started_at, deadline_at, answers,
	submitted_at, time_spent_minutes, score, max_score, percentage, passed, late, breakdown`

// AttemptRepository is the durable attempt store.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.UserID, &a.TestID, &a.Status, &a.StartedAt, &a.DeadlineAt, &a.Answers,
		&a.SubmittedAt, &a.TimeSpentMinutes, &a.Score, &a.MaxScore, &a.Percentage, &a.Passed, &a.Late, &a.Breakdown)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by id.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetByUserAndTest retrieves the attempt for a user-test pair.
func (r *AttemptRepository) GetByUserAndTest(ctx context.Context, userID int, testID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE user_id = $1 AND test_id = $2`, userID, testID))
}

// CreateIfAbsent inserts a new in-progress attempt. It reports false, without
// error, when another attempt for the same user and test already exists.
func (r *AttemptRepository) CreateIfAbsent(ctx context.Context, a *model.Attempt) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, test_id, status, started_at, deadline_at, answers)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, test_id) DO NOTHING
		 RETURNING id`,
		a.UserID, a.TestID, model.AttemptStatusInProgress, a.StartedAt, a.DeadlineAt, a.Answers,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a.Status = model.AttemptStatusInProgress
	return true, nil
}

// Submit writes the scored attempt and flips it to SUBMITTED in one
// conditional update. Only an IN_PROGRESS row is touched.
func (r *AttemptRepository) Submit(ctx context.Context, a *model.Attempt) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, answers = $2, submitted_at = $3, time_spent_minutes = $4,
		     score = $5, max_score = $6, percentage = $7, passed = $8, late = $9, breakdown = $10
		 WHERE id = $11 AND status = $12`,
		model.AttemptStatusSubmitted, a.Answers, a.SubmittedAt, a.TimeSpentMinutes,
		a.Score, a.MaxScore, a.Percentage, a.Passed, a.Late, a.Breakdown,
		a.ID, model.AttemptStatusInProgress,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var status model.AttemptStatus
	err = r.pool.QueryRow(ctx, `SELECT status FROM attempts WHERE id = $1`, a.ID).Scan(&status)
	if err != nil {
		return err
	}
	return ErrAttemptNotInProgress
}

// ListSubmittedByTest returns all submitted attempts for a test, best first.
func (r *AttemptRepository) ListSubmittedByTest(ctx context.Context, testID uuid.UUID) ([]model.SubmittedAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, score, max_score, percentage, passed, late,
		        started_at, submitted_at, COALESCE(time_spent_minutes, 0)
		 FROM attempts
		 WHERE test_id = $1 AND status = $2
		 ORDER BY percentage DESC, submitted_at ASC`,
		testID, model.AttemptStatusSubmitted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.SubmittedAttempt{}
	for rows.Next() {
		var s model.SubmittedAttempt
		if err := rows.Scan(&s.AttemptID, &s.UserID, &s.Score, &s.MaxScore, &s.Percentage, &s.Passed, &s.Late,
			&s.StartedAt, &s.SubmittedAt, &s.TimeSpentMinutes); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// ListExpired returns in-progress attempts whose deadline is before cutoff.
func (r *AttemptRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE status = $1 AND deadline_at < $2
		 ORDER BY deadline_at
		 LIMIT $3`,
		model.AttemptStatusInProgress, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
