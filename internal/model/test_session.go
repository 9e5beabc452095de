package model

import "time"

// SelectAnswerRequest records a choice for one question. The option range
// is checked by the session itself.
type SelectAnswerRequest struct {
	QuestionID  string `json:"question_id" binding:"required,max=64"`
	OptionIndex *int   `json:"option_index" binding:"required"`
}

// ToggleMarkRequest flips the review mark on a question.
type ToggleMarkRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
}

// GoToRequest moves the cursor.
type GoToRequest struct {
	Index *int `json:"index" binding:"required"`
}

// AnswerAuditEvent is queued for every accepted selection and stored in
// session_answers by the audit worker.
type AnswerAuditEvent struct {
	UserID      int       `json:"user_id"`
	QuestionID  string    `json:"question_id"`
	OptionIndex int       `json:"option_index"`
	AnsweredAt  time.Time `json:"answered_at"`
}
