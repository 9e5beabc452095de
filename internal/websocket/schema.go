package websocket

import "github.com/stemsi/exstem-assessment/internal/engine"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionState    Action = "state"
	ActionSelect   Action = "select"
	ActionMark     Action = "mark"
	ActionGoTo     Action = "goto"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single client message shape. Fields unused by an
// action are ignored.
type RequestPayload struct {
	Action      Action `json:"action"`
	QuestionID  string `json:"question_id,omitempty"`
	OptionIndex *int   `json:"option_index,omitempty"`
	Index       *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventGraded  Event = "graded"
	EventTimeout Event = "timeout"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// StateResponse carries the test taker's view after any change.
type StateResponse struct {
	Event Event        `json:"event"`
	State *engine.View `json:"state"`
}

// GradedResponse is sent once the result is stored. EventTimeout marks a
// submission forced by the clock.
type GradedResponse struct {
	Event  Event               `json:"event"`
	Report *engine.ScoreReport `json:"report,omitempty"`
}

type ErrorResponse struct {
	Event     Event  `json:"event"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
