package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/service"
)

type mockAttempts struct {
	mock.Mock
}

func (m *mockAttempts) Start(ctx context.Context, userID int, testID uuid.UUID) (*model.TestView, *model.Attempt, error) {
	args := m.Called(ctx, userID, testID)
	view, _ := args.Get(0).(*model.TestView)
	attempt, _ := args.Get(1).(*model.Attempt)
	return view, attempt, args.Error(2)
}

func (m *mockAttempts) SubmitForTest(ctx context.Context, userID int, testID uuid.UUID, answers []model.Answer, timeSpentMinutes float64) (*service.SubmitResult, error) {
	args := m.Called(ctx, userID, testID, answers, timeSpentMinutes)
	res, _ := args.Get(0).(*service.SubmitResult)
	return res, args.Error(1)
}

func (m *mockAttempts) SubmitDraft(ctx context.Context, userID int, testID uuid.UUID) (*service.SubmitResult, error) {
	args := m.Called(ctx, userID, testID)
	res, _ := args.Get(0).(*service.SubmitResult)
	return res, args.Error(1)
}

func (m *mockAttempts) SaveDraft(ctx context.Context, userID int, testID uuid.UUID, questionIndex int, ans model.Answer) error {
	return m.Called(ctx, userID, testID, questionIndex, ans).Error(0)
}

func (m *mockAttempts) State(ctx context.Context, userID int, testID uuid.UUID) (*model.AttemptState, error) {
	args := m.Called(ctx, userID, testID)
	state, _ := args.Get(0).(*model.AttemptState)
	return state, args.Error(1)
}

func (m *mockAttempts) Result(ctx context.Context, userID int, testID uuid.UUID) (*model.AttemptResult, error) {
	args := m.Called(ctx, userID, testID)
	res, _ := args.Get(0).(*model.AttemptResult)
	return res, args.Error(1)
}

type mockResults struct {
	mock.Mock
}

func (m *mockResults) Summary(ctx context.Context, claims *service.Claims, testID uuid.UUID) (*model.ResultsSummary, error) {
	args := m.Called(ctx, claims, testID)
	sum, _ := args.Get(0).(*model.ResultsSummary)
	return sum, args.Error(1)
}

func (m *mockResults) Watch(ctx context.Context, claims *service.Claims, testID uuid.UUID) (*redis.PubSub, error) {
	args := m.Called(ctx, claims, testID)
	ps, _ := args.Get(0).(*redis.PubSub)
	return ps, args.Error(1)
}

type stubLister struct {
	tests []model.TestSummary
	err   error
}

func (s stubLister) ListSummaries(context.Context) ([]model.TestSummary, error) {
	return s.tests, s.err
}
