package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mocktest/engine/internal/middleware"
	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/response"
	"github.com/mocktest/engine/internal/service"
	"github.com/mocktest/engine/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

const takerID = 1

func withClaims(claims *service.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextKeyClaims, claims)
		}
		c.Next()
	}
}

func attemptRouter(attempts AttemptService, claims *service.Claims) *gin.Engine {
	h := NewAttemptHandler(attempts, zerolog.Nop())
	r := gin.New()
	g := r.Group("/api/v1/tests/:test_id", withClaims(claims))
	g.GET("/start", h.Start)
	g.POST("/submit", h.Submit)
	g.GET("/state", h.State)
	g.PUT("/draft", h.SaveDraft)
	g.GET("/attempt", h.Attempt)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error, w.Body.String())
	return body.Error.Code
}

func TestStartHandler(t *testing.T) {
	testID := uuid.New()
	attempts := &mockAttempts{}
	attempts.On("Start", mock.Anything, takerID, testID).Return(
		&model.TestView{ID: testID, Title: "Go basics"},
		&model.Attempt{ID: uuid.New(), TestID: testID, Status: model.AttemptStatusInProgress},
		nil,
	).Once()

	r := attemptRouter(attempts, &service.Claims{UserID: takerID})
	w := do(r, http.MethodGet, "/api/v1/tests/"+testID.String()+"/start", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Go basics"`)
	assert.NotContains(t, w.Body.String(), "correct_option_index")
	attempts.AssertExpectations(t)
}

func TestStartHandlerErrors(t *testing.T) {
	testID := uuid.New()

	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"already attempted", service.ErrAlreadyAttempted, http.StatusConflict, response.ErrAlreadyAttempted},
		{"unknown test", service.ErrTestNotFound, http.StatusNotFound, response.ErrTestNotFound},
		{"empty test", service.ErrNoQuestions, http.StatusConflict, response.ErrNoQuestions},
		{"store down", errors.Join(service.ErrTransientStore, errors.New("timeout")), http.StatusServiceUnavailable, response.ErrStoreUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := &mockAttempts{}
			attempts.On("Start", mock.Anything, takerID, testID).Return(nil, nil, tt.err)

			w := do(attemptRouter(attempts, &service.Claims{UserID: takerID}), http.MethodGet, "/api/v1/tests/"+testID.String()+"/start", "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestStartHandlerRejectsBadRequests(t *testing.T) {
	attempts := &mockAttempts{}

	w := do(attemptRouter(attempts, nil), http.MethodGet, "/api/v1/tests/"+uuid.NewString()+"/start", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(attemptRouter(attempts, &service.Claims{UserID: takerID}), http.MethodGet, "/api/v1/tests/not-a-uuid/start", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, errorCode(t, w))

	attempts.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitHandler(t *testing.T) {
	testID := uuid.New()
	path := "/api/v1/tests/" + testID.String() + "/submit"
	answers := []model.Answer{model.Choose(0), model.Unanswered, model.Unanswered}
	result := &model.AttemptResult{TestID: testID, Score: 1, MaxScore: 3, Percentage: 33}

	attempts := &mockAttempts{}
	attempts.On("SubmitForTest", mock.Anything, takerID, testID, answers, 7.5).
		Return(&service.SubmitResult{Result: result}, nil).Once()
	attempts.On("SubmitForTest", mock.Anything, takerID, testID, answers, 7.5).
		Return(&service.SubmitResult{Result: result, Replayed: true}, nil).Once()

	r := attemptRouter(attempts, &service.Claims{UserID: takerID})
	body := `{"answers":[0,null,-1],"time_spent_minutes":7.5}`

	w := do(r, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"percentage":33`)
	assert.Empty(t, w.Header().Get("X-Idempotent-Replay"))

	w = do(r, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Idempotent-Replay"))
	attempts.AssertExpectations(t)
}

func TestSubmitHandlerValidation(t *testing.T) {
	testID := uuid.New()
	path := "/api/v1/tests/" + testID.String() + "/submit"

	attempts := &mockAttempts{}
	attempts.On("SubmitForTest", mock.Anything, takerID, testID, []model.Answer{model.Choose(9)}, 0.0).
		Return(nil, errors.Join(service.ErrValidation, errors.New("answer 0 selects option 9 of 2")))

	r := attemptRouter(attempts, &service.Claims{UserID: takerID})

	w := do(r, http.MethodPost, path, `{"time_spent_minutes":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, errorCode(t, w))

	w = do(r, http.MethodPost, path, `{"answers":[-3]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, errorCode(t, w))

	w = do(r, http.MethodPost, path, `{"answers":[9]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidAnswers, errorCode(t, w))
	assert.Contains(t, w.Body.String(), "option 9 of 2")
}

func TestSubmitHandlerWithoutAttempt(t *testing.T) {
	testID := uuid.New()
	attempts := &mockAttempts{}
	attempts.On("SubmitForTest", mock.Anything, takerID, testID, mock.Anything, mock.Anything).
		Return(nil, service.ErrAttemptNotFound)

	w := do(attemptRouter(attempts, &service.Claims{UserID: takerID}), http.MethodPost,
		"/api/v1/tests/"+testID.String()+"/submit", `{"answers":[]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrAttemptNotFound, errorCode(t, w))
}

func TestSaveDraftHandler(t *testing.T) {
	testID := uuid.New()
	path := "/api/v1/tests/" + testID.String() + "/draft"

	attempts := &mockAttempts{}
	attempts.On("SaveDraft", mock.Anything, takerID, testID, 1, model.Choose(2)).Return(nil).Once()
	attempts.On("SaveDraft", mock.Anything, takerID, testID, 0, model.Unanswered).Return(service.ErrInvalidState).Once()

	r := attemptRouter(attempts, &service.Claims{UserID: takerID})

	w := do(r, http.MethodPut, path, `{"question_index":1,"option":2}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, path, `{"question_index":0,"option":null}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrAttemptClosed, errorCode(t, w))

	w = do(r, http.MethodPut, path, `{"option":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	attempts.AssertExpectations(t)
}

func TestStateHandler(t *testing.T) {
	testID := uuid.New()
	attempts := &mockAttempts{}
	attempts.On("State", mock.Anything, takerID, testID).Return(&model.AttemptState{
		TestID:           testID,
		Status:           model.AttemptStatusInProgress,
		RemainingSeconds: 360,
		DraftAnswers:     []model.Answer{model.Unanswered, model.Choose(2)},
	}, nil)

	w := do(attemptRouter(attempts, &service.Claims{UserID: takerID}), http.MethodGet, "/api/v1/tests/"+testID.String()+"/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining_seconds":360`)
	assert.Contains(t, w.Body.String(), `"draft_answers":[-1,2]`)
}

func TestAttemptHandlerBeforeSubmit(t *testing.T) {
	testID := uuid.New()
	attempts := &mockAttempts{}
	attempts.On("Result", mock.Anything, takerID, testID).Return(nil, service.ErrInvalidState)

	w := do(attemptRouter(attempts, &service.Claims{UserID: takerID}), http.MethodGet, "/api/v1/tests/"+testID.String()+"/attempt", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrAttemptNotSubmitted, errorCode(t, w))
}

func TestResultsHandler(t *testing.T) {
	testID := uuid.New()
	owner := &service.Claims{UserID: 7}
	stranger := &service.Claims{UserID: 8}

	results := &mockResults{}
	results.On("Summary", mock.Anything, owner, testID).Return(&model.ResultsSummary{
		TestID: testID, TotalAttempts: 3, AverageScorePercent: 56, PassRate: 67,
		HighestScore: 100, Attempts: []model.SubmittedAttempt{},
	}, nil)
	results.On("Summary", mock.Anything, stranger, testID).Return(nil, service.ErrNotTestOwner)

	route := func(claims *service.Claims) *gin.Engine {
		h := NewResultsHandler(results, zerolog.Nop())
		r := gin.New()
		r.GET("/api/v1/tests/:test_id/results", withClaims(claims), h.Results)
		return r
	}
	path := "/api/v1/tests/" + testID.String() + "/results"

	w := do(route(owner), http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"average_score_percent":56`)
	assert.Contains(t, w.Body.String(), `"pass_rate":67`)

	w = do(route(stranger), http.MethodGet, path, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrNotTestOwner, errorCode(t, w))
}

func TestResultsSSEForbidden(t *testing.T) {
	testID := uuid.New()
	claims := &service.Claims{UserID: 8}
	results := &mockResults{}
	results.On("Watch", mock.Anything, claims, testID).Return(nil, service.ErrNotTestOwner)

	h := NewResultsHandler(results, zerolog.Nop())
	r := gin.New()
	r.GET("/stream/:test_id", withClaims(claims), h.ResultsSSE)

	w := do(r, http.MethodGet, "/stream/"+testID.String(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	results.AssertNotCalled(t, "Summary", mock.Anything, mock.Anything, mock.Anything)
}

func TestListTestsHandler(t *testing.T) {
	h := NewTestHandler(stubLister{tests: []model.TestSummary{{Title: "Go basics", QuestionCount: 2}}}, zerolog.Nop())
	r := gin.New()
	r.GET("/tests", h.List)

	w := do(r, http.MethodGet, "/tests", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Go basics"`)

	h = NewTestHandler(stubLister{}, zerolog.Nop())
	r = gin.New()
	r.GET("/tests", h.List)
	w = do(r, http.MethodGet, "/tests", "")
	assert.Contains(t, w.Body.String(), `"tests":[]`)
}

func TestClassifyWrappedErrors(t *testing.T) {
	status, code := classify(errors.Join(errors.New("get attempt"), service.ErrTransientStore))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, response.ErrStoreUnavailable, code)

	status, _ = classify(service.ErrAuthentication)
	assert.Equal(t, http.StatusUnauthorized, status)
}
