package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a Session.
type Status int

const (
	StatusNotStarted Status = iota
	StatusActive
	StatusSubmitted
)

var statusNames = map[Status]string{
	StatusNotStarted: "NOT_STARTED",
	StatusActive:     "ACTIVE",
	StatusSubmitted:  "SUBMITTED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for st, name := range statusNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session status %q", b)
}

// Answer is the test taker's state for one question of a session.
type Answer struct {
	QuestionID          string `json:"question_id"`
	SelectedOptionIndex *int   `json:"selected_option_index"`
	Marked              bool   `json:"marked"`
	TimeSpentSeconds    int    `json:"time_spent_seconds"`
}

func cloneAnswers(as []Answer) []Answer {
	out := make([]Answer, len(as))
	for i, a := range as {
		if a.SelectedOptionIndex != nil {
			v := *a.SelectedOptionIndex
			a.SelectedOptionIndex = &v
		}
		out[i] = a
	}
	return out
}

// Session is one timed attempt at the assessment.
//
// A Session holds no locks and no timers: callers serialize access and drive
// the clock through Tick. Submission is persist-first, so a failed write to
// the ResultSink leaves the session Active and the submission retryable.
type Session struct {
	userID       int
	questions    []Question
	answers      []Answer
	position     map[string]int
	currentIndex int
	remaining    int
	status       Status
	startedAt    time.Time
	submittedAt  time.Time
	report       *ScoreReport

	sink  ResultSink
	clock func() time.Time
}

func newSession(userID int, questions []Question, remaining int, startedAt time.Time, sink ResultSink, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	s := &Session{
		userID:    userID,
		questions: questions,
		answers:   make([]Answer, len(questions)),
		position:  make(map[string]int, len(questions)),
		remaining: remaining,
		status:    StatusActive,
		startedAt: startedAt,
		sink:      sink,
		clock:     clock,
	}
	for i, q := range questions {
		s.answers[i] = Answer{QuestionID: q.ID}
		s.position[q.ID] = i
	}
	return s
}

// UserID returns the test taker owning the session.
func (s *Session) UserID() int { return s.userID }

// Status returns the lifecycle state.
func (s *Session) Status() Status { return s.status }

// CurrentIndex returns the navigation cursor.
func (s *Session) CurrentIndex() int { return s.currentIndex }

// RemainingSeconds returns the time left on the clock.
func (s *Session) RemainingSeconds() int { return s.remaining }

// StartedAt returns the build time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Report returns the score report once submitted, nil before.
func (s *Session) Report() *ScoreReport {
	return cloneReport(s.report)
}

// Answer returns the answer state for questionID.
func (s *Session) Answer(questionID string) (Answer, bool) {
	i, ok := s.position[questionID]
	if !ok {
		return Answer{}, false
	}
	return cloneAnswers(s.answers[i : i+1])[0], true
}

// mutable reports whether answer and navigation state may still change.
// An Active session whose clock ran out is frozen while its forced
// submission is pending.
func (s *Session) mutable() bool {
	return s.status == StatusActive && s.remaining > 0
}

// SelectAnswer records option as the selection for questionID, replacing any
// earlier selection.
func (s *Session) SelectAnswer(questionID string, option int) error {
	if !s.mutable() {
		return ErrSessionClosed
	}
	i, ok := s.position[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if option < 0 || option >= OptionCount {
		return fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}
	s.answers[i].SelectedOptionIndex = &option
	return nil
}

// ToggleMark flips the review mark on questionID.
func (s *Session) ToggleMark(questionID string) error {
	if !s.mutable() {
		return ErrSessionClosed
	}
	i, ok := s.position[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	s.answers[i].Marked = !s.answers[i].Marked
	return nil
}

// GoTo moves the cursor to index.
func (s *Session) GoTo(index int) error {
	if !s.mutable() {
		return ErrSessionClosed
	}
	if index < 0 || index >= len(s.questions) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	s.currentIndex = index
	return nil
}

// Next advances the cursor, staying put on the last question.
func (s *Session) Next() {
	if s.mutable() && s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
	}
}

// Previous moves the cursor back, staying put on the first question.
func (s *Session) Previous() {
	if s.mutable() && s.currentIndex > 0 {
		s.currentIndex--
	}
}

// Tick consumes elapsed seconds of the clock. The time is also credited to
// the question under the cursor. When the clock reaches zero the session is
// submitted and the resulting report returned; a nil report means the
// session is still running.
//
// A session that already hit zero but failed to persist retries the
// submission on every Tick.
func (s *Session) Tick(ctx context.Context, elapsed int) (*ScoreReport, error) {
	if s.status != StatusActive {
		return nil, ErrSessionClosed
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > s.remaining {
		elapsed = s.remaining
	}
	if len(s.answers) > 0 {
		s.answers[s.currentIndex].TimeSpentSeconds += elapsed
	}
	s.remaining -= elapsed
	if s.remaining > 0 {
		return nil, nil
	}
	return s.submit(ctx)
}

// Submit grades the session and hands the report to the ResultSink.
// Only a successful write moves the session to Submitted; on failure the
// error wraps ErrPersistFailure and the call may be retried.
func (s *Session) Submit(ctx context.Context) (*ScoreReport, error) {
	if s.status != StatusActive {
		return nil, ErrSessionClosed
	}
	return s.submit(ctx)
}

func (s *Session) submit(ctx context.Context) (*ScoreReport, error) {
	now := s.clock()
	report := Score(s.questions, s.answers, s.startedAt, now)

	if s.sink != nil {
		err := s.sink.SaveResult(ctx, s.userID, report, cloneAnswers(s.answers), cloneQuestions(s.questions))
		if errors.Is(err, ErrAlreadyCompleted) {
			// The durable record wins; this copy can no longer be submitted.
			s.status = StatusSubmitted
			s.submittedAt = now
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistFailure, err)
		}
	}

	s.status = StatusSubmitted
	s.submittedAt = now
	s.report = &report
	return cloneReport(&report), nil
}
