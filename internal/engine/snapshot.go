package engine

import (
	"fmt"
	"time"
)

// Snapshot is a complete, detached copy of a session's state. It is what the
// service layer caches between requests and rehydrates after a restart.
type Snapshot struct {
	UserID           int          `json:"user_id"`
	Questions        []Question   `json:"questions"`
	Answers          []Answer     `json:"answers"`
	CurrentIndex     int          `json:"current_index"`
	RemainingSeconds int          `json:"remaining_seconds"`
	Status           Status       `json:"status"`
	StartedAt        time.Time    `json:"started_at"`
	SubmittedAt      *time.Time   `json:"submitted_at,omitempty"`
	Report           *ScoreReport `json:"report,omitempty"`
}

// Snapshot copies the current state. Nothing in the result aliases the
// session.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		UserID:           s.userID,
		Questions:        cloneQuestions(s.questions),
		Answers:          cloneAnswers(s.answers),
		CurrentIndex:     s.currentIndex,
		RemainingSeconds: s.remaining,
		Status:           s.status,
		StartedAt:        s.startedAt,
		Report:           cloneReport(s.report),
	}
	if s.status == StatusSubmitted {
		t := s.submittedAt
		snap.SubmittedAt = &t
	}
	return snap
}

// Restore rebuilds a session from a snapshot. Answers must be index-aligned
// with questions.
func Restore(snap Snapshot, sink ResultSink, clock func() time.Time) (*Session, error) {
	if len(snap.Answers) != len(snap.Questions) {
		return nil, fmt.Errorf("restore session: %d answers for %d questions", len(snap.Answers), len(snap.Questions))
	}
	for i, q := range snap.Questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("restore session: %w", err)
		}
		if snap.Answers[i].QuestionID != q.ID {
			return nil, fmt.Errorf("restore session: answer %d references %q, want %q", i, snap.Answers[i].QuestionID, q.ID)
		}
	}
	if len(snap.Questions) > 0 && (snap.CurrentIndex < 0 || snap.CurrentIndex >= len(snap.Questions)) {
		return nil, fmt.Errorf("restore session: %w: %d", ErrOutOfRange, snap.CurrentIndex)
	}

	s := newSession(snap.UserID, cloneQuestions(snap.Questions), snap.RemainingSeconds, snap.StartedAt, sink, clock)
	s.answers = cloneAnswers(snap.Answers)
	s.currentIndex = snap.CurrentIndex
	s.status = snap.Status
	s.report = cloneReport(snap.Report)
	if snap.SubmittedAt != nil {
		s.submittedAt = *snap.SubmittedAt
	}
	if len(s.position) != len(s.questions) {
		return nil, fmt.Errorf("restore session: %w: duplicate question id", ErrInvalidQuestion)
	}
	return s, nil
}

// View is the test taker's read model of a session. Answer keys are hidden.
type View struct {
	Questions        []PublicQuestion `json:"questions"`
	Answers          []Answer         `json:"answers"`
	CurrentIndex     int              `json:"current_index"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Status           Status           `json:"status"`
	StartedAt        time.Time        `json:"started_at"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	Report           *ScoreReport     `json:"report,omitempty"`
}

// View projects the snapshot for display.
func (snap Snapshot) View() View {
	qs := make([]PublicQuestion, len(snap.Questions))
	for i, q := range snap.Questions {
		qs[i] = q.Public()
	}
	return View{
		Questions:        qs,
		Answers:          cloneAnswers(snap.Answers),
		CurrentIndex:     snap.CurrentIndex,
		RemainingSeconds: snap.RemainingSeconds,
		Status:           snap.Status,
		StartedAt:        snap.StartedAt,
		SubmittedAt:      snap.SubmittedAt,
		Report:           cloneReport(snap.Report),
	}
}

func cloneReport(r *ScoreReport) *ScoreReport {
	if r == nil {
		return nil
	}
	out := *r
	out.PerSubject = make(map[string]int, len(r.PerSubject))
	for k, v := range r.PerSubject {
		out.PerSubject[k] = v
	}
	return &out
}
