package engine

import "context"

// QuestionSource supplies the question pool a session is drawn from.
// The whole pool is expected to fit in memory.
type QuestionSource interface {
	ListQuestions(ctx context.Context) ([]Question, error)
}

// ResultSink durably records the outcome of a session. SaveResult is called
// at most once per successful submission; it must return ErrAlreadyCompleted
// (possibly wrapped) when a result for userID already exists.
type ResultSink interface {
	HasSubmittedResult(ctx context.Context, userID int) (bool, error)
	SaveResult(ctx context.Context, userID int, report ScoreReport, answers []Answer, questions []Question) error
}
