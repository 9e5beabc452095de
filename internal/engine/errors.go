package engine

import "errors"

// Build-time errors. No session exists when one of these is returned.
var (
	ErrEmptyQuestionSource   = errors.New("question source is empty")
	ErrInsufficientQuestions = errors.New("not enough questions to build session")
	ErrInvalidQuestion       = errors.New("invalid question")
	ErrAlreadyCompleted      = errors.New("user already completed the assessment")
)

// Session operation errors. Session state is unchanged when one of these is
// returned.
var (
	ErrSessionClosed   = errors.New("session is closed")
	ErrInvalidOption   = errors.New("option index out of range")
	ErrUnknownQuestion = errors.New("question is not part of this session")
	ErrOutOfRange      = errors.New("question index out of range")
	ErrPersistFailure  = errors.New("failed to persist result")
)
