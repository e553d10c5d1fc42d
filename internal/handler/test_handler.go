package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/model"
	"github.com/mocktest/engine/internal/response"
)

// TestLister lists the public catalog.
type TestLister interface {
	ListSummaries(ctx context.Context) ([]model.TestSummary, error)
}

// TestHandler serves the public test catalog.
type TestHandler struct {
	catalog TestLister
	log     zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(catalog TestLister, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		catalog: catalog,
		log:     log.With().Str("component", "test_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/tests
func (h *TestHandler) List(c *gin.Context) {
	tests, err := h.catalog.ListSummaries(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if tests == nil {
		tests = []model.TestSummary{}
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}
