package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrUserAccessOnly  ErrCode = "USER_ACCESS_ONLY"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test session ──────────────────────────────────────────────────
	ErrNoActiveSession        ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionActiveElsewhere ErrCode = "SESSION_ACTIVE_ELSEWHERE"
	ErrSessionClosed          ErrCode = "SESSION_CLOSED"
	ErrAlreadyCompleted       ErrCode = "ALREADY_COMPLETED"
	ErrInvalidOption          ErrCode = "INVALID_OPTION"
	ErrUnknownQuestion        ErrCode = "UNKNOWN_QUESTION"
	ErrOutOfRange             ErrCode = "OUT_OF_RANGE"
	ErrInsufficientQuestions  ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrEmptyQuestionSource    ErrCode = "EMPTY_QUESTION_SOURCE"
	ErrPersistFailure         ErrCode = "PERSIST_FAILURE"
	ErrShuttingDown           ErrCode = "SHUTTING_DOWN"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrUserAccessOnly:
		return "This resource is only available to test takers."
	case ErrAdminAccessOnly:
		return "This resource is only available to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Test session ──────────────────────────────────────────────────
	case ErrNoActiveSession:
		return "You have no test in progress."
	case ErrSessionActiveElsewhere:
		return "Your test is running on another server. Please retry shortly."
	case ErrSessionClosed:
		return "This test is no longer accepting changes."
	case ErrAlreadyCompleted:
		return "You have already completed the assessment."
	case ErrInvalidOption:
		return "The selected option does not exist."
	case ErrUnknownQuestion:
		return "The question is not part of this test."
	case ErrOutOfRange:
		return "The question index is out of range."
	case ErrInsufficientQuestions:
		return "The question bank does not have enough questions for this test."
	case ErrEmptyQuestionSource:
		return "The question bank is empty."
	case ErrPersistFailure:
		return "Your result could not be saved yet. Please retry."
	case ErrShuttingDown:
		return "This server is restarting. Please retry shortly."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

// Retryable reports whether a client may repeat the failed request as-is.
func Retryable(code ErrCode) bool {
	switch code {
	case ErrPersistFailure, ErrSessionActiveElsewhere, ErrShuttingDown, ErrRateLimitExceeded:
		return true
	}
	return false
}
