package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Identity ──────────────────────────────────────────────────────
	ErrAuthentication ErrCode = "AUTHENTICATION_REQUIRED"
	ErrTokenInvalid   ErrCode = "TOKEN_INVALID"
	ErrNotTestOwner   ErrCode = "NOT_TEST_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidAnswers ErrCode = "INVALID_ANSWERS"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAlreadyAttempted    ErrCode = "ALREADY_ATTEMPTED"
	ErrAttemptNotFound     ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptNotSubmitted ErrCode = "ATTEMPT_NOT_SUBMITTED"
	ErrAttemptClosed       ErrCode = "ATTEMPT_CLOSED"
	ErrTestNotFound        ErrCode = "TEST_NOT_FOUND"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStoreUnavailable ErrCode = "STORE_UNAVAILABLE"
	ErrInternal         ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrAuthentication:
		return "Authentication is required."
	case ErrTokenInvalid:
		return "The identity token is invalid or expired."
	case ErrNotTestOwner:
		return "Only the test owner can view these results."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidAnswers:
		return "Answers do not match the test's questions."

	case ErrAlreadyAttempted:
		return "You have already attempted this test."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrAttemptNotSubmitted:
		return "The attempt has not been submitted yet."
	case ErrAttemptClosed:
		return "The attempt is no longer in progress."
	case ErrTestNotFound:
		return "Test not found."
	case ErrNoQuestions:
		return "This test has no questions."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrStoreUnavailable:
		return "The service is temporarily unavailable. Please retry."
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
