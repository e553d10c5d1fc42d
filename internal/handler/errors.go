package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/response"
	"github.com/mocktest/engine/internal/service"
)

// classify maps a service error to its HTTP status and API code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrAuthentication):
		return http.StatusUnauthorized, response.ErrAuthentication
	case errors.Is(err, service.ErrAlreadyAttempted):
		return http.StatusConflict, response.ErrAlreadyAttempted
	case errors.Is(err, service.ErrTestNotFound):
		return http.StatusNotFound, response.ErrTestNotFound
	case errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusConflict, response.ErrNoQuestions
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, response.ErrInvalidAnswers
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, response.ErrAttemptClosed
	case errors.Is(err, service.ErrNotTestOwner):
		return http.StatusForbidden, response.ErrNotTestOwner
	case errors.Is(err, service.ErrTransientStore):
		return http.StatusServiceUnavailable, response.ErrStoreUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes err as an API error. Validation failures carry their reason;
// server-side failures are logged and never leak details.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	switch {
	case code == response.ErrInvalidAnswers:
		response.FailWithDetail(c, status, code, err.Error())
	case status == http.StatusServiceUnavailable:
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("Store unavailable")
		c.Header("Retry-After", "1")
		response.Fail(c, status, code)
	case status >= http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		response.Fail(c, status, code)
	default:
		response.Fail(c, status, code)
	}
}
