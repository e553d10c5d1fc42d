package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mocktest/engine/internal/model"
)

// TestRepository reads test definitions. The engine never mutates them;
// Create exists for the seeding command.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test together with its questions ordered by order_num.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, owner_id, course_id, time_limit_minutes, passing_score_percent, created_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.OwnerID, &t.CourseID, &t.TimeLimitMinutes, &t.PassingScorePercent, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	t.Questions = questions
	return t, nil
}

func (r *TestRepository) listQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, text, options, correct_option_index, points, order_num
		 FROM questions WHERE test_id = $1
		 ORDER BY order_num, id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.Text, &q.Options, &q.CorrectOptionIndex, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListSummaries returns every test with its question count, newest first.
func (r *TestRepository) ListSummaries(ctx context.Context) ([]model.TestSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.title, t.course_id, t.time_limit_minutes, t.passing_score_percent,
		        COUNT(q.id) AS question_count
		 FROM tests t
		 LEFT JOIN questions q ON q.test_id = t.id
		 GROUP BY t.id
		 ORDER BY t.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.TestSummary{}
	for rows.Next() {
		var s model.TestSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.CourseID, &s.TimeLimitMinutes, &s.PassingScorePercent, &s.QuestionCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListIDs returns all test ids, used for cache prewarming.
func (r *TestRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tests ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Create inserts a test and its questions in one transaction.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, owner_id, course_id, time_limit_minutes, passing_score_percent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		t.Title, t.OwnerID, t.CourseID, t.TimeLimitMinutes, t.PassingScorePercent,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range t.Questions {
		q := &t.Questions[i]
		q.TestID = t.ID
		q.OrderNum = i
		if q.Points == 0 {
			q.Points = 1
		}
		batch.Queue(
			`INSERT INTO questions (test_id, text, options, correct_option_index, points, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			q.TestID, q.Text, q.Options, q.CorrectOptionIndex, q.Points, q.OrderNum,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&q.ID)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	return tx.Commit(ctx)
}
