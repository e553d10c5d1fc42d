package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mocktest/engine/internal/grading"
	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/repository"
	"github.com/rs/zerolog"
)

// TestCatalog resolves test definitions including answer keys.
type TestCatalog interface {
	GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error)
}

// AttemptStore is the durable attempt state. Implementations must enforce
// one attempt per (user, test) and make Submit a conditional transition out
// of IN_PROGRESS, returning repository.ErrAttemptNotInProgress otherwise.
type AttemptStore interface {
	CreateIfAbsent(ctx context.Context, a *model.Attempt) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetByUserAndTest(ctx context.Context, userID int, testID uuid.UUID) (*model.Attempt, error)
	Submit(ctx context.Context, a *model.Attempt) error
	ListSubmittedByTest(ctx context.Context, testID uuid.UUID) ([]model.SubmittedAttempt, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Attempt, error)
}

// DraftStore buffers answers of an attempt in progress.
type DraftStore interface {
	Save(ctx context.Context, testID uuid.UUID, userID, questionIndex int, ans model.Answer) error
	Load(ctx context.Context, testID uuid.UUID, userID int) (map[int]int, error)
	Clear(ctx context.Context, testID uuid.UUID, userID int) error
}

// EventPublisher broadcasts attempt transitions to results watchers.
type EventPublisher interface {
	Publish(ctx context.Context, evt model.AttemptEvent) error
}

// SubmitResult is the outcome of a submit call. Replayed is true when the
// attempt had already been submitted and the stored result is returned as-is.
type SubmitResult struct {
	Result   *model.AttemptResult `json:"results"`
	Replayed bool                 `json:"replayed"`
}

// AttemptService runs the attempt state machine:
// NOT_STARTED --start--> IN_PROGRESS --submit--> SUBMITTED.
type AttemptService struct {
	catalog TestCatalog
	store   AttemptStore
	drafts  DraftStore
	events  EventPublisher
	grace   time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	catalog TestCatalog,
	store AttemptStore,
	drafts DraftStore,
	events EventPublisher,
	grace time.Duration,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		catalog: catalog,
		store:   store,
		drafts:  drafts,
		events:  events,
		grace:   grace,
		now:     time.Now,
		log:     log.With().Str("component", "attempt_service").Logger(),
	}
}

// Grace returns the lateness tolerance applied past the deadline.
func (s *AttemptService) Grace() time.Duration {
	return s.grace
}

// Start begins or resumes userID's attempt at testID and returns the test
// without answer keys. A submitted attempt yields ErrAlreadyAttempted.
func (s *AttemptService) Start(ctx context.Context, userID int, testID uuid.UUID) (*model.TestView, *model.Attempt, error) {
	if userID <= 0 {
		return nil, nil, ErrAuthentication
	}

	test, err := s.catalog.GetTest(ctx, testID)
	if err != nil {
		return nil, nil, err
	}
	if len(test.Questions) == 0 {
		return nil, nil, ErrNoQuestions
	}

	existing, err := s.store.GetByUserAndTest(ctx, userID, testID)
	if err == nil {
		return s.resume(ctx, test, existing)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, storeErr("check existing attempt", err)
	}

	now := s.stamp()
	attempt := &model.Attempt{
		UserID:     userID,
		TestID:     testID,
		Status:     model.AttemptStatusInProgress,
		StartedAt:  now,
		DeadlineAt: grading.Deadline(now, test.TimeLimit()),
		Answers:    model.UnansweredSheet(len(test.Questions)),
	}

	created, err := s.store.CreateIfAbsent(ctx, attempt)
	if err != nil {
		return nil, nil, storeErr("create attempt", err)
	}
	if !created {
		// Concurrent start won the unique key; continue with its row.
		winner, err := s.store.GetByUserAndTest(ctx, userID, testID)
		if err != nil {
			return nil, nil, storeErr("concurrent start detected, but fetch failed", err)
		}
		return s.resume(ctx, test, winner)
	}

	s.publish(ctx, model.AttemptEvent{
		Type:      model.AttemptEventStarted,
		TestID:    testID,
		AttemptID: attempt.ID,
		UserID:    userID,
		At:        now,
	})

	s.log.Info().
		Int("user_id", userID).
		Str("test_id", testID.String()).
		Str("attempt_id", attempt.ID.String()).
		Time("deadline_at", attempt.DeadlineAt).
		Msg("Attempt started")

	return test.View(), attempt, nil
}

// resume returns an open attempt, or finalizes one whose time ran out.
func (s *AttemptService) resume(ctx context.Context, test *model.Test, a *model.Attempt) (*model.TestView, *model.Attempt, error) {
	if a.IsSubmitted() {
		return nil, nil, ErrAlreadyAttempted
	}
	if grading.Expired(a.DeadlineAt, s.now(), s.grace) {
		if _, err := s.finalize(ctx, test, a); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrAlreadyAttempted
	}
	return test.View(), a, nil
}

// Submit scores attemptID with the given answers. Submitting an already
// submitted attempt returns the stored result without rescoring.
func (s *AttemptService) Submit(ctx context.Context, userID int, attemptID uuid.UUID, answers []model.Answer, timeSpentMinutes float64) (*SubmitResult, error) {
	attempt, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, storeErr("get attempt", err)
	}
	if attempt.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	return s.submit(ctx, attempt, answers, timeSpentMinutes)
}

// SubmitForTest resolves userID's attempt for testID and submits it.
func (s *AttemptService) SubmitForTest(ctx context.Context, userID int, testID uuid.UUID, answers []model.Answer, timeSpentMinutes float64) (*SubmitResult, error) {
	attempt, err := s.attemptFor(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, attempt, answers, timeSpentMinutes)
}

// SubmitDraft submits whatever the server has buffered for the attempt.
// Used when the countdown stream reaches zero or the client asks the server
// to submit on its behalf.
func (s *AttemptService) SubmitDraft(ctx context.Context, userID int, testID uuid.UUID) (*SubmitResult, error) {
	attempt, err := s.attemptFor(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	if attempt.IsSubmitted() {
		return replay(attempt), nil
	}
	test, err := s.catalog.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, test, attempt)
}

// FinalizeExpired submits an abandoned attempt with its drafted answers.
func (s *AttemptService) FinalizeExpired(ctx context.Context, attempt *model.Attempt) (*SubmitResult, error) {
	test, err := s.catalog.GetTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, test, attempt)
}

func (s *AttemptService) finalize(ctx context.Context, test *model.Test, a *model.Attempt) (*SubmitResult, error) {
	draft, err := s.drafts.Load(ctx, a.TestID, a.UserID)
	if err != nil {
		// Losing drafts must not keep the attempt open forever.
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Draft load failed, submitting unanswered")
		draft = nil
	}
	answers := sanitize(test, grading.Collect(draft, len(test.Questions)))
	elapsed := s.now().Sub(a.StartedAt).Minutes()
	return s.score(ctx, test, a, answers, elapsed)
}

func (s *AttemptService) submit(ctx context.Context, a *model.Attempt, answers []model.Answer, timeSpentMinutes float64) (*SubmitResult, error) {
	if a.IsSubmitted() {
		return replay(a), nil
	}

	test, err := s.catalog.GetTest(ctx, a.TestID)
	if err != nil {
		return nil, err
	}
	if err := grading.Validate(test.Questions, answers); err != nil {
		return nil, err
	}
	if timeSpentMinutes < 0 {
		return nil, fmt.Errorf("%w: time_spent_minutes must not be negative", ErrValidation)
	}
	return s.score(ctx, test, a, answers, timeSpentMinutes)
}

// score performs the single IN_PROGRESS → SUBMITTED write.
func (s *AttemptService) score(ctx context.Context, test *model.Test, a *model.Attempt, answers []model.Answer, timeSpentMinutes float64) (*SubmitResult, error) {
	now := s.stamp()
	verdict := grading.Score(test.Questions, answers, test.PassingScorePercent)

	submitted := *a
	submitted.Status = model.AttemptStatusSubmitted
	submitted.Answers = answers
	submitted.SubmittedAt = &now
	submitted.TimeSpentMinutes = &timeSpentMinutes
	submitted.Score = &verdict.Score
	submitted.MaxScore = &verdict.MaxScore
	submitted.Percentage = &verdict.Percentage
	submitted.Passed = &verdict.Passed
	submitted.Late = grading.IsLate(a.StartedAt, now, test.TimeLimit(), s.grace)
	submitted.Breakdown = verdict.PerQuestion

	if err := s.store.Submit(ctx, &submitted); err != nil {
		switch {
		case errors.Is(err, repository.ErrAttemptNotInProgress):
			// A concurrent submit (timer vs. click) got there first.
			stored, getErr := s.store.GetByID(ctx, a.ID)
			if getErr != nil {
				return nil, storeErr("reload submitted attempt", getErr)
			}
			return replay(stored), nil
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrAttemptNotFound
		default:
			return nil, storeErr("submit attempt", err)
		}
	}

	if err := s.drafts.Clear(ctx, a.TestID, a.UserID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to clear draft")
	}

	s.publish(ctx, model.AttemptEvent{
		Type:       model.AttemptEventSubmitted,
		TestID:     a.TestID,
		AttemptID:  a.ID,
		UserID:     a.UserID,
		Percentage: submitted.Percentage,
		Passed:     submitted.Passed,
		Late:       submitted.Late,
		At:         now,
	})

	s.log.Info().
		Int("user_id", a.UserID).
		Str("attempt_id", a.ID.String()).
		Int("score", verdict.Score).
		Int("max_score", verdict.MaxScore).
		Int("percentage", verdict.Percentage).
		Bool("passed", verdict.Passed).
		Bool("late", submitted.Late).
		Msg("Attempt submitted and graded")

	return &SubmitResult{Result: submitted.Result()}, nil
}

// SaveDraft buffers one answer of an in-progress attempt.
func (s *AttemptService) SaveDraft(ctx context.Context, userID int, testID uuid.UUID, questionIndex int, ans model.Answer) error {
	attempt, err := s.attemptFor(ctx, userID, testID)
	if err != nil {
		return err
	}
	if attempt.IsSubmitted() {
		return ErrInvalidState
	}

	test, err := s.catalog.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex >= len(test.Questions) {
		return fmt.Errorf("%w: question index %d out of range", ErrValidation, questionIndex)
	}
	if ans.Answered && ans.Option >= len(test.Questions[questionIndex].Options) {
		return fmt.Errorf("%w: option %d out of range", ErrValidation, ans.Option)
	}

	if err := s.drafts.Save(ctx, testID, userID, questionIndex, ans); err != nil {
		return storeErr("save draft", err)
	}
	return nil
}

// State reports the authoritative remaining time and drafted answers.
func (s *AttemptService) State(ctx context.Context, userID int, testID uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.attemptFor(ctx, userID, testID)
	if err != nil {
		return nil, err
	}

	state := &model.AttemptState{
		AttemptID:    attempt.ID,
		TestID:       attempt.TestID,
		Status:       attempt.Status,
		DeadlineAt:   attempt.DeadlineAt,
		DraftAnswers: attempt.Answers,
	}
	if attempt.IsSubmitted() {
		return state, nil
	}

	state.RemainingSeconds = grading.Remaining(attempt.DeadlineAt, s.now()).Seconds()
	draft, err := s.drafts.Load(ctx, testID, userID)
	if err != nil {
		return nil, storeErr("load draft", err)
	}
	state.DraftAnswers = grading.Collect(draft, len(attempt.Answers))
	return state, nil
}

// Result returns the taker's own submitted result.
func (s *AttemptService) Result(ctx context.Context, userID int, testID uuid.UUID) (*model.AttemptResult, error) {
	attempt, err := s.attemptFor(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsSubmitted() {
		return nil, ErrInvalidState
	}
	return attempt.Result(), nil
}

// Attempt returns userID's attempt for testID.
func (s *AttemptService) Attempt(ctx context.Context, userID int, testID uuid.UUID) (*model.Attempt, error) {
	return s.attemptFor(ctx, userID, testID)
}

func (s *AttemptService) attemptFor(ctx context.Context, userID int, testID uuid.UUID) (*model.Attempt, error) {
	if userID <= 0 {
		return nil, ErrAuthentication
	}
	attempt, err := s.store.GetByUserAndTest(ctx, userID, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, storeErr("get attempt", err)
	}
	return attempt, nil
}

// stamp returns now at the precision PostgreSQL stores, so a fresh result and
// its later replay carry identical timestamps.
func (s *AttemptService) stamp() time.Time {
	return s.now().Truncate(time.Microsecond).UTC()
}

func (s *AttemptService) publish(ctx context.Context, evt model.AttemptEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("type", string(evt.Type)).Msg("Failed to publish attempt event")
	}
}

func replay(a *model.Attempt) *SubmitResult {
	return &SubmitResult{Result: a.Result(), Replayed: true}
}

// sanitize drops drafted options the question does not have.
func sanitize(test *model.Test, answers []model.Answer) []model.Answer {
	for i, a := range answers {
		if a.Answered && a.Option >= len(test.Questions[i].Options) {
			answers[i] = model.Unanswered
		}
	}
	return answers
}
