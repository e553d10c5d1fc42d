package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/middleware"
	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/response"
	"github.com/mocktest/engine/internal/service"
	"github.com/mocktest/engine/internal/validator"
)

// AttemptService is the attempt lifecycle as seen by the HTTP and WebSocket layers.
type AttemptService interface {
	Start(ctx context.Context, userID int, testID uuid.UUID) (*model.TestView, *model.Attempt, error)
	SubmitForTest(ctx context.Context, userID int, testID uuid.UUID, answers []model.Answer, timeSpentMinutes float64) (*service.SubmitResult, error)
	SubmitDraft(ctx context.Context, userID int, testID uuid.UUID) (*service.SubmitResult, error)
	SaveDraft(ctx context.Context, userID int, testID uuid.UUID, questionIndex int, ans model.Answer) error
	State(ctx context.Context, userID int, testID uuid.UUID) (*model.AttemptState, error)
	Result(ctx context.Context, userID int, testID uuid.UUID) (*model.AttemptResult, error)
}

// AttemptHandler handles test-taker endpoints.
type AttemptHandler struct {
	attempts AttemptService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// Start godoc
// GET /api/v1/tests/:test_id/start
// Begins the caller's single attempt, or resumes it while time remains.
func (h *AttemptHandler) Start(c *gin.Context) {
	userID, testID, ok := h.parseRequest(c)
	if !ok {
		return
	}

	test, attempt, err := h.attempts.Start(c.Request.Context(), userID, testID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test, "attempt": attempt})
}

// Submit godoc
// POST /api/v1/tests/:test_id/submit
// Scores the attempt. Retries return the stored result.
func (h *AttemptHandler) Submit(c *gin.Context) {
	userID, testID, ok := h.parseRequest(c)
	if !ok {
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.attempts.SubmitForTest(c.Request.Context(), userID, testID, req.Answers, req.TimeSpentMinutes)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	if res.Replayed {
		response.Replayed(c, gin.H{"results": res.Result})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": res.Result})
}

// State godoc
// GET /api/v1/tests/:test_id/state
// Page-reload support: remaining time from the stored deadline plus drafted answers.
func (h *AttemptHandler) State(c *gin.Context) {
	userID, testID, ok := h.parseRequest(c)
	if !ok {
		return
	}

	state, err := h.attempts.State(c.Request.Context(), userID, testID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveDraft godoc
// PUT /api/v1/tests/:test_id/draft
func (h *AttemptHandler) SaveDraft(c *gin.Context) {
	userID, testID, ok := h.parseRequest(c)
	if !ok {
		return
	}

	var req model.SaveDraftRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.SaveDraft(c.Request.Context(), userID, testID, *req.QuestionIndex, req.Option); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_index": *req.QuestionIndex, "option": req.Option})
}

// Attempt godoc
// GET /api/v1/tests/:test_id/attempt
// The caller's own graded attempt, including correct answers.
func (h *AttemptHandler) Attempt(c *gin.Context) {
	userID, testID, ok := h.parseRequest(c)
	if !ok {
		return
	}

	result, err := h.attempts.Result(c.Request.Context(), userID, testID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotSubmitted)
			return
		}
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": result})
}

// parseRequest extracts the caller and :test_id, writing the error response itself.
func (h *AttemptHandler) parseRequest(c *gin.Context) (int, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrAuthentication)
		return 0, uuid.Nil, false
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, uuid.Nil, false
	}

	return claims.UserID, testID, true
}
