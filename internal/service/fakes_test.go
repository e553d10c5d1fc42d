package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/repository"
)

type fakeCatalog struct {
	tests map[uuid.UUID]*model.Test
}

func (f *fakeCatalog) GetTest(_ context.Context, id uuid.UUID) (*model.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	return t, nil
}

type userTest struct {
	userID int
	testID uuid.UUID
}

// fakeAttemptStore enforces the same uniqueness and conditional submit as
// the PostgreSQL store.
type fakeAttemptStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.Attempt
	byPair  map[userTest]uuid.UUID
	submits int
	failGet error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		byID:   make(map[uuid.UUID]*model.Attempt),
		byPair: make(map[userTest]uuid.UUID),
	}
}

func (f *fakeAttemptStore) CreateIfAbsent(_ context.Context, a *model.Attempt) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := userTest{a.UserID, a.TestID}
	if _, ok := f.byPair[key]; ok {
		return false, nil
	}
	a.ID = uuid.New()
	a.Status = model.AttemptStatusInProgress
	stored := *a
	f.byID[a.ID] = &stored
	f.byPair[key] = a.ID
	return true, nil
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) GetByUserAndTest(_ context.Context, userID int, testID uuid.UUID) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet != nil {
		return nil, f.failGet
	}
	id, ok := f.byPair[userTest{userID, testID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeAttemptStore) Submit(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.byID[a.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Status != model.AttemptStatusInProgress {
		return repository.ErrAttemptNotInProgress
	}
	cp := *a
	f.byID[a.ID] = &cp
	f.submits++
	return nil
}

func (f *fakeAttemptStore) ListSubmittedByTest(_ context.Context, testID uuid.UUID) ([]model.SubmittedAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []model.SubmittedAttempt
	for _, a := range f.byID {
		if a.TestID != testID || !a.IsSubmitted() {
			continue
		}
		rows = append(rows, model.SubmittedAttempt{
			AttemptID:   a.ID,
			UserID:      a.UserID,
			Score:       *a.Score,
			MaxScore:    *a.MaxScore,
			Percentage:  *a.Percentage,
			Passed:      *a.Passed,
			Late:        a.Late,
			StartedAt:   a.StartedAt,
			SubmittedAt: *a.SubmittedAt,
		})
	}
	return rows, nil
}

func (f *fakeAttemptStore) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []model.Attempt
	for _, a := range f.byID {
		if a.Status == model.AttemptStatusInProgress && a.DeadlineAt.Before(cutoff) && len(rows) < limit {
			rows = append(rows, *a)
		}
	}
	return rows, nil
}

func (f *fakeAttemptStore) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[userTest]map[int]int
	failed bool
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: make(map[userTest]map[int]int)}
}

func (f *fakeDrafts) Save(_ context.Context, testID uuid.UUID, userID, questionIndex int, ans model.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := userTest{userID, testID}
	if f.drafts[key] == nil {
		f.drafts[key] = make(map[int]int)
	}
	if ans.Answered {
		f.drafts[key][questionIndex] = ans.Option
	} else {
		delete(f.drafts[key], questionIndex)
	}
	return nil
}

func (f *fakeDrafts) Load(_ context.Context, testID uuid.UUID, userID int) (map[int]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failed {
		return nil, errors.New("redis: connection refused")
	}
	out := make(map[int]int)
	for k, v := range f.drafts[userTest{userID, testID}] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeDrafts) Clear(_ context.Context, testID uuid.UUID, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, userTest{userID, testID})
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []model.AttemptEvent
}

func (f *fakeEvents) Publish(_ context.Context, evt model.AttemptEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeEvents) ofType(typ model.AttemptEventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// fakeClock is advanced by tests to cross deadlines.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc     *AttemptService
	test    *model.Test
	catalog *fakeCatalog
	store   *fakeAttemptStore
	drafts  *fakeDrafts
	events  *fakeEvents
	clock   *fakeClock
}

// newFixture builds a 10-minute, two-question test worth 1 and 2 points
// with a 50% passing threshold.
func newFixture() *fixture {
	test := &model.Test{
		ID:                  uuid.New(),
		Title:               "Go basics",
		OwnerID:             7,
		TimeLimitMinutes:    10,
		PassingScorePercent: 50,
		Questions: []model.Question{
			{Text: "q1", Options: []string{"a", "b"}, CorrectOptionIndex: 0, Points: 1},
			{Text: "q2", Options: []string{"a", "b", "c"}, CorrectOptionIndex: 1, Points: 2},
		},
	}

	f := &fixture{
		test:    test,
		catalog: &fakeCatalog{tests: map[uuid.UUID]*model.Test{test.ID: test}},
		store:   newFakeAttemptStore(),
		drafts:  newFakeDrafts(),
		events:  &fakeEvents{},
		clock:   &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = NewAttemptService(f.catalog, f.store, f.drafts, f.events, 30*time.Second, zerolog.Nop())
	f.svc.now = f.clock.Now
	return f
}
