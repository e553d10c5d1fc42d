package service

import (
	"errors"
	"fmt"

	"github.com/mocktest/engine/internal/grading"
)

// Domain Errors
var (
	ErrAuthentication   = errors.New("missing or invalid identity")
	ErrAlreadyAttempted = errors.New("test already attempted")
	ErrTestNotFound     = errors.New("test not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrNoQuestions      = errors.New("test has no questions")
	ErrInvalidState     = errors.New("attempt is not in the required state")
	ErrTransientStore   = errors.New("store unavailable")
	ErrNotTestOwner     = errors.New("not the owner of this test")

	// ErrValidation is grading.ErrValidation so callers can match either.
	ErrValidation = grading.ErrValidation
)

// storeErr tags an unexpected storage failure as retryable.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientStore, err)
}
