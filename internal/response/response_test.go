package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailUsesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		Fail(c, http.StatusConflict, ErrAlreadyAttempted)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrAlreadyAttempted, body.Error.Code)
	assert.Equal(t, "req-1", body.Metadata.RequestID)
	assert.Nil(t, body.Data)
}

func TestReplayedSetsHeader(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	Replayed(c, map[string]int{"score": 3})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Idempotent-Replay"))
	assert.NotEmpty(t, w.Header().Get("Content-Type"))
}

func TestEveryCodeHasMessage(t *testing.T) {
	codes := []ErrCode{
		ErrAuthentication, ErrTokenInvalid, ErrNotTestOwner, ErrValidation, ErrInvalidID,
		ErrInvalidAnswers, ErrAlreadyAttempted, ErrAttemptNotFound, ErrAttemptNotSubmitted,
		ErrAttemptClosed, ErrTestNotFound, ErrNoQuestions, ErrRateLimitExceeded,
		ErrStoreUnavailable, ErrInternal,
	}
	fallback := GetMessage("UNKNOWN")
	for _, code := range codes {
		assert.NotEqual(t, fallback, GetMessage(code), code)
	}
}
