package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/middleware"
	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/response"
	"github.com/mocktest/engine/internal/service"
)

const (
	refreshInterval   = 5 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// ResultsReader serves owner-only statistics.
type ResultsReader interface {
	Summary(ctx context.Context, claims *service.Claims, testID uuid.UUID) (*model.ResultsSummary, error)
	Watch(ctx context.Context, claims *service.Claims, testID uuid.UUID) (*redis.PubSub, error)
}

// ResultsHandler serves a test's aggregated results to its owner.
type ResultsHandler struct {
	results ResultsReader
	log     zerolog.Logger
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(results ResultsReader, log zerolog.Logger) *ResultsHandler {
	return &ResultsHandler{
		results: results,
		log:     log.With().Str("component", "results_handler").Logger(),
	}
}

// Results godoc
// GET /api/v1/tests/:test_id/results
func (h *ResultsHandler) Results(c *gin.Context) {
	claims, testID, ok := h.parseRequest(c)
	if !ok {
		return
	}

	summary, err := h.results.Summary(c.Request.Context(), claims, testID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// ResultsSSE godoc
// GET /api/v1/tests/:test_id/results/stream
// Sends a snapshot, then forwards attempt events as they happen. The
// snapshot is recomputed at most every refreshInterval after a submission.
func (h *ResultsHandler) ResultsSSE(c *gin.Context) {
	claims, testID, ok := h.parseRequest(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	pubsub, err := h.results.Watch(reqCtx, claims, testID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	defer pubsub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, claims, testID)

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	dirty := false
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	h.log.Info().Str("test_id", testID.String()).Int("user_id", claims.UserID).Msg("Owner attached to results stream")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("test_id", testID.String()).Msg("Owner detached from results stream")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payload is already JSON.
			writeSSEData(c, []byte(msg.Payload))

			var evt model.AttemptEvent
			if json.Unmarshal([]byte(msg.Payload), &evt) == nil && evt.Type == model.AttemptEventSubmitted {
				dirty = true
			}

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendSnapshot(c, reqCtx, claims, testID)

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func (h *ResultsHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, claims *service.Claims, testID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	summary, err := h.results.Summary(ctx, claims, testID)
	if err != nil {
		h.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Failed to build results snapshot")
		return
	}

	c.SSEvent("message", gin.H{"type": "snapshot", "data": summary})
	c.Writer.Flush()
}

func writeSSEData(c *gin.Context, payload []byte) {
	_, _ = c.Writer.Write([]byte("data: "))
	_, _ = c.Writer.Write(payload)
	_, _ = c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *ResultsHandler) parseRequest(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrAuthentication)
		return nil, uuid.Nil, false
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, testID, true
}
