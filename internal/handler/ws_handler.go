package handler

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/grading"
	"github.com/mocktest/engine/internal/middleware"
	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/response"
	"github.com/mocktest/engine/internal/service"
	ws "github.com/mocktest/engine/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the attempt countdown and accepts autosave and submit actions.
type WSHandler struct {
	attempts AttemptService
	log      zerolog.Logger
	upgrader websocket.Upgrader
	grace    time.Duration
	tick     time.Duration
	now      func() time.Time
}

// NewWSHandler creates a new WSHandler. grace is how long after the deadline
// the client's own submit is awaited before the server submits the draft.
func NewWSHandler(attempts AttemptService, log zerolog.Logger, allowedOrigins []string, grace time.Duration) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		grace:    grace,
		tick:     time.Second,
		now:      time.Now,
	}
}

// AttemptStream godoc
// WS /ws/v1/tests/:test_id/stream?token=...
// Pushes a tick every second. At the deadline it sends expired and waits for
// the client's submit; once the grace period is over the server submits the
// drafted answers itself and sends the graded result.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrAuthentication)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	userID := claims.UserID
	wsLog := h.log.With().
		Int("user_id", userID).
		Str("test_id", testID.String()).
		Logger()

	state, err := h.attempts.State(ctx, userID, testID)
	if err != nil {
		h.writeServiceError(conn, err)
		return
	}
	if state.Status == model.AttemptStatusSubmitted {
		if result, err := h.attempts.Result(ctx, userID, testID); err == nil {
			_ = conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Replayed: true, Results: result})
		}
		_ = conn.CloseNormal("attempt already submitted")
		return
	}

	wsLog.Info().Time("deadline_at", state.DeadlineAt).Msg("Taker connected")

	go h.countdown(ctx, conn, wsLog, userID, testID, state.DeadlineAt)

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedClose(err) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		msg, err := ws.DecodeRequest(data)
		if err != nil {
			_ = conn.WriteError(string(response.ErrValidation), "malformed message")
			continue
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, userID, testID, msg)
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, conn, wsLog, userID, testID, msg) {
				_ = conn.CloseNormal("submitted")
				return
			}
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = conn.WriteError(string(response.ErrValidation), "unknown action: "+string(msg.Action))
		}
	}
}

// countdown ticks until the deadline, then gives the client the grace period
// to submit before submitting the draft on its behalf.
func (h *WSHandler) countdown(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, userID int, testID uuid.UUID, deadline time.Time) {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	expired := false
	for {
		now := h.now()
		if !expired {
			remaining := grading.Remaining(deadline, now)
			if err := conn.WriteTyped(ws.TickResponse{
				Event:            ws.EventTick,
				RemainingSeconds: int(math.Ceil(remaining.Seconds())),
				DeadlineAt:       deadline,
			}); err != nil {
				return
			}
			if remaining <= 0 {
				expired = true
				if err := conn.WriteTyped(ws.ExpiredResponse{
					Event:        ws.EventExpired,
					GraceSeconds: int(h.grace.Seconds()),
				}); err != nil {
					return
				}
			}
		}

		if expired && grading.Expired(deadline, now, h.grace) {
			h.submitOnExpiry(ctx, conn, wsLog, userID, testID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// submitOnExpiry submits the server-side draft. A client submit that already
// landed is returned as a replay.
func (h *WSHandler) submitOnExpiry(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, userID int, testID uuid.UUID) {
	if ctx.Err() != nil {
		return
	}

	res, err := h.attempts.SubmitDraft(ctx, userID, testID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Server-side submit on expiry failed")
		h.writeServiceError(conn, err)
	} else {
		wsLog.Info().Int("percentage", res.Result.Percentage).Bool("replayed", res.Replayed).Msg("Attempt submitted on expiry")
		_ = conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Replayed: res.Replayed, Results: res.Result})
	}
	_ = conn.CloseNormal("time is up")
}

// handleAutosave buffers one answer in the server-side draft.
func (h *WSHandler) handleAutosave(ctx context.Context, conn *ws.Conn, userID int, testID uuid.UUID, msg *ws.RequestPayload) {
	if msg.QuestionIndex == nil {
		_ = conn.WriteError(string(response.ErrValidation), "question_index is required")
		return
	}

	option, err := msg.DecodeOption()
	if err != nil {
		_ = conn.WriteError(string(response.ErrInvalidAnswers), err.Error())
		return
	}

	if err := h.attempts.SaveDraft(ctx, userID, testID, *msg.QuestionIndex, option); err != nil {
		h.writeServiceError(conn, err)
		return
	}

	_ = conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QuestionIndex: *msg.QuestionIndex})
}

// handleSubmit grades the attempt and reports whether the stream is finished.
// Without answers the server-side draft is submitted.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, userID int, testID uuid.UUID, msg *ws.RequestPayload) bool {
	answers, err := msg.DecodeAnswers()
	if err != nil {
		_ = conn.WriteError(string(response.ErrInvalidAnswers), err.Error())
		return false
	}

	var res *service.SubmitResult
	if answers != nil {
		res, err = h.attempts.SubmitForTest(ctx, userID, testID, answers, msg.TimeSpentMinutes)
	} else {
		res, err = h.attempts.SubmitDraft(ctx, userID, testID)
	}
	if err != nil {
		h.writeServiceError(conn, err)
		_, code := classify(err)
		// Invalid answers can be corrected and resent.
		return code != response.ErrInvalidAnswers && code != response.ErrStoreUnavailable
	}

	wsLog.Info().
		Int("score", res.Result.Score).
		Int("percentage", res.Result.Percentage).
		Bool("replayed", res.Replayed).
		Msg("Attempt submitted over stream")

	_ = conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Replayed: res.Replayed, Results: res.Result})
	return true
}

func (h *WSHandler) writeServiceError(conn *ws.Conn, err error) {
	status, code := classify(err)
	msg := response.GetMessage(code)
	if code == response.ErrInvalidAnswers {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.log.Error().Err(err).Msg("Stream action failed")
	}
	_ = conn.WriteError(string(code), msg)
}
