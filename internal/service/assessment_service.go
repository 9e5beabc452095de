package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/model"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

// Assessment errors not covered by the engine.
var (
	ErrNoActiveSession        = errors.New("no test in progress")
	ErrSessionActiveElsewhere = errors.New("test is owned by another instance")
	ErrShuttingDown           = errors.New("instance is shutting down")
)

const (
	// claimGrace keeps the claim alive a little past the test clock so a
	// pending forced submission can still be retried by its owner.
	claimGrace = 5 * time.Minute
	// snapshotEvery is how many ticked seconds may pass between snapshots.
	snapshotEvery = 5
)

// SessionStore is the shared state that lets any instance find, claim and
// rehydrate a running test.
type SessionStore interface {
	Claim(ctx context.Context, userID int, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID int) error
	SaveSnapshot(ctx context.Context, snap engine.Snapshot, ttl time.Duration) error
	LoadSnapshot(ctx context.Context, userID int) (*engine.Snapshot, error)
	DeleteSnapshot(ctx context.Context, userID int) error
	Publish(ctx context.Context, userID int, payload []byte) error
	QueueAnswerAudit(ctx context.Context, event model.AnswerAuditEvent) error
}

// liveSession serializes every operation on one engine.Session.
type liveSession struct {
	mu            sync.Mutex
	sess          *engine.Session
	sinceSnapshot int
	// handedOff is set by Shutdown once the snapshot is saved and the
	// claim released; the session must not change here afterwards.
	handedOff bool
}

// AssessmentService owns the running tests of this instance. Sessions are
// keyed by user: each user takes the assessment at most once.
type AssessmentService struct {
	questions engine.QuestionSource
	results   engine.ResultSink
	store     SessionStore
	cfg       config.TestConfig
	log       zerolog.Logger
	clock     func() time.Time

	mu       sync.RWMutex
	sessions map[int]*liveSession
	closed   bool
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	questions engine.QuestionSource,
	results engine.ResultSink,
	store SessionStore,
	cfg config.TestConfig,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		questions: questions,
		results:   results,
		store:     store,
		cfg:       cfg,
		log:       log.With().Str("component", "assessment_service").Logger(),
		clock:     time.Now,
		sessions:  make(map[int]*liveSession),
	}
}

// Start begins the user's test, or resumes it if one is already running.
func (s *AssessmentService) Start(ctx context.Context, userID int) (*engine.View, error) {
	if s.isClosed() {
		return nil, ErrShuttingDown
	}
	if live := s.lookup(userID); live != nil {
		return s.view(live)
	}

	done, err := s.results.HasSubmittedResult(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check result: %w", err)
	}
	if done {
		return nil, engine.ErrAlreadyCompleted
	}

	live, err := s.restore(ctx, userID)
	if errors.Is(err, ErrNoActiveSession) {
		live, err = s.build(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return s.view(live)
}

// State returns the user's running test.
func (s *AssessmentService) State(ctx context.Context, userID int) (*engine.View, error) {
	live, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(live)
}

// SelectAnswer records a choice and queues it for the audit trail.
func (s *AssessmentService) SelectAnswer(ctx context.Context, userID int, questionID string, option int) (*engine.View, error) {
	view, err := s.mutate(ctx, userID, func(sess *engine.Session) error {
		return sess.SelectAnswer(questionID, option)
	})
	if err != nil {
		return nil, err
	}

	event := model.AnswerAuditEvent{
		UserID:      userID,
		QuestionID:  questionID,
		OptionIndex: option,
		AnsweredAt:  s.clock(),
	}
	if err := s.store.QueueAnswerAudit(ctx, event); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Queue answer audit failed")
	}
	return view, nil
}

// ToggleMark flips the review mark of a question.
func (s *AssessmentService) ToggleMark(ctx context.Context, userID int, questionID string) (*engine.View, error) {
	return s.mutate(ctx, userID, func(sess *engine.Session) error {
		return sess.ToggleMark(questionID)
	})
}

// GoTo moves the cursor to index.
func (s *AssessmentService) GoTo(ctx context.Context, userID, index int) (*engine.View, error) {
	return s.mutate(ctx, userID, func(sess *engine.Session) error {
		return sess.GoTo(index)
	})
}

// Next moves the cursor forward.
func (s *AssessmentService) Next(ctx context.Context, userID int) (*engine.View, error) {
	return s.mutate(ctx, userID, func(sess *engine.Session) error {
		sess.Next()
		return nil
	})
}

// Previous moves the cursor back.
func (s *AssessmentService) Previous(ctx context.Context, userID int) (*engine.View, error) {
	return s.mutate(ctx, userID, func(sess *engine.Session) error {
		sess.Previous()
		return nil
	})
}

// Submit grades and stores the test. On ErrPersistFailure the test keeps
// running and the call may be repeated.
func (s *AssessmentService) Submit(ctx context.Context, userID int) (*engine.ScoreReport, error) {
	live, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	if live.handedOff {
		return nil, ErrShuttingDown
	}

	report, err := live.sess.Submit(ctx)
	switch {
	case err == nil:
		s.finish(ctx, live, ws.EventGraded, report)
		s.log.Info().
			Int("user_id", userID).
			Int("overall", report.Overall).
			Int("correct", report.Correct).
			Int("total", report.Total).
			Msg("Test submitted and graded")
		return report, nil
	case errors.Is(err, engine.ErrAlreadyCompleted):
		s.finish(ctx, live, ws.EventGraded, nil)
		return nil, err
	case errors.Is(err, engine.ErrPersistFailure):
		s.log.Error().Err(err).Int("user_id", userID).Msg("Submit persist failed")
		return nil, err
	default:
		return nil, err
	}
}

// TickAll advances the clock of every running test by elapsed seconds.
// Tests whose clock runs out are submitted here.
func (s *AssessmentService) TickAll(ctx context.Context, elapsed int) {
	s.mu.RLock()
	lives := make([]*liveSession, 0, len(s.sessions))
	for _, live := range s.sessions {
		lives = append(lives, live)
	}
	s.mu.RUnlock()

	for _, live := range lives {
		s.tick(ctx, live, elapsed)
	}
}

func (s *AssessmentService) tick(ctx context.Context, live *liveSession, elapsed int) {
	live.mu.Lock()
	defer live.mu.Unlock()
	if live.handedOff {
		return
	}

	userID := live.sess.UserID()
	report, err := live.sess.Tick(ctx, elapsed)
	switch {
	case report != nil:
		s.finish(ctx, live, ws.EventTimeout, report)
		s.log.Info().
			Int("user_id", userID).
			Int("overall", report.Overall).
			Msg("Time expired, test submitted")
	case errors.Is(err, engine.ErrAlreadyCompleted), errors.Is(err, engine.ErrSessionClosed):
		s.finish(ctx, live, ws.EventTimeout, nil)
	case errors.Is(err, engine.ErrPersistFailure):
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Forced submit persist failed, retrying next tick")
	case err != nil:
		s.log.Error().Err(err).Int("user_id", userID).Msg("Tick failed")
	default:
		live.sinceSnapshot += elapsed
		if live.sinceSnapshot >= snapshotEvery {
			s.saveSnapshot(ctx, live)
		}
	}
}

// ActiveCount returns the number of tests running on this instance.
func (s *AssessmentService) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown snapshots every running test and gives up its claim so another
// instance can resume it. Afterwards every call that would start, resume or
// change a test fails with ErrShuttingDown.
func (s *AssessmentService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	lives := s.sessions
	s.sessions = make(map[int]*liveSession)
	s.mu.Unlock()

	for userID, live := range lives {
		live.mu.Lock()
		s.saveSnapshot(ctx, live)
		live.handedOff = true
		live.mu.Unlock()
		if err := s.store.Release(ctx, userID); err != nil {
			s.log.Warn().Err(err).Int("user_id", userID).Msg("Release claim failed")
		}
	}
	s.log.Info().Int("count", len(lives)).Msg("Running tests handed off")
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func (s *AssessmentService) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *AssessmentService) lookup(userID int) *liveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[userID]
}

// register stores live unless another request got there first, in which
// case the existing session wins. After Shutdown nothing is registered and
// the claim taken for live is given back.
func (s *AssessmentService) register(ctx context.Context, userID int, live *liveSession) (*liveSession, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err := s.store.Release(ctx, userID); err != nil {
			s.log.Warn().Err(err).Int("user_id", userID).Msg("Release claim failed")
		}
		return nil, ErrShuttingDown
	}
	defer s.mu.Unlock()
	if existing, ok := s.sessions[userID]; ok {
		return existing, nil
	}
	s.sessions[userID] = live
	return live, nil
}

// acquire returns the user's running test, rehydrating it from the
// session store when this instance does not hold it yet.
func (s *AssessmentService) acquire(ctx context.Context, userID int) (*liveSession, error) {
	if live := s.lookup(userID); live != nil {
		return live, nil
	}
	return s.restore(ctx, userID)
}

func (s *AssessmentService) restore(ctx context.Context, userID int) (*liveSession, error) {
	if s.isClosed() {
		return nil, ErrShuttingDown
	}
	snap, err := s.store.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.Status != engine.StatusActive {
		return nil, ErrNoActiveSession
	}

	if err := s.claim(ctx, userID, snap.RemainingSeconds); err != nil {
		return nil, err
	}

	sess, err := engine.Restore(*snap, s.results, s.clock)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	live, err := s.register(ctx, userID, &liveSession{sess: sess})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("user_id", userID).Int("remaining", sess.RemainingSeconds()).Msg("Test resumed from snapshot")
	return live, nil
}

func (s *AssessmentService) build(ctx context.Context, userID int) (*liveSession, error) {
	if err := s.claim(ctx, userID, s.cfg.DurationSeconds); err != nil {
		return nil, err
	}

	sess, err := engine.BuildFrom(ctx, s.questions, engine.BuildOptions{
		UserID:          userID,
		PerSubject:      s.cfg.QuestionsPerSubject,
		Total:           s.cfg.QuestionTotal,
		DurationSeconds: s.cfg.DurationSeconds,
		Clock:           s.clock,
	}, s.results)
	if err != nil {
		_ = s.store.Release(ctx, userID)
		return nil, err
	}

	live, err := s.register(ctx, userID, &liveSession{sess: sess})
	if err != nil {
		return nil, err
	}
	if live.sess == sess {
		live.mu.Lock()
		s.saveSnapshot(ctx, live)
		live.mu.Unlock()
		s.log.Info().
			Int("user_id", userID).
			Int("questions", len(sess.Snapshot().Questions)).
			Msg("Test started")
	}
	return live, nil
}

func (s *AssessmentService) claim(ctx context.Context, userID, remainingSeconds int) error {
	ok, err := s.store.Claim(ctx, userID, claimTTL(remainingSeconds))
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionActiveElsewhere
	}
	return nil
}

// mutate applies fn under the session lock, then snapshots and broadcasts
// the new state.
func (s *AssessmentService) mutate(ctx context.Context, userID int, fn func(*engine.Session) error) (*engine.View, error) {
	live, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	if live.handedOff {
		return nil, ErrShuttingDown
	}

	if err := fn(live.sess); err != nil {
		return nil, err
	}
	snap := s.saveSnapshot(ctx, live)
	view := snap.View()
	s.publish(ctx, userID, ws.StateResponse{Event: ws.EventState, State: &view})
	return &view, nil
}

func (s *AssessmentService) view(live *liveSession) (*engine.View, error) {
	live.mu.Lock()
	defer live.mu.Unlock()
	if live.handedOff {
		return nil, ErrShuttingDown
	}
	if live.sess.Status() == engine.StatusSubmitted {
		return nil, engine.ErrSessionClosed
	}
	view := live.sess.Snapshot().View()
	return &view, nil
}

// saveSnapshot must be called with live.mu held.
func (s *AssessmentService) saveSnapshot(ctx context.Context, live *liveSession) engine.Snapshot {
	snap := live.sess.Snapshot()
	live.sinceSnapshot = 0
	if err := s.store.SaveSnapshot(ctx, snap, claimTTL(snap.RemainingSeconds)); err != nil {
		s.log.Warn().Err(err).Int("user_id", snap.UserID).Msg("Save snapshot failed")
	}
	return snap
}

// finish drops a submitted test from this instance and the shared store.
// Must be called with live.mu held.
func (s *AssessmentService) finish(ctx context.Context, live *liveSession, event ws.Event, report *engine.ScoreReport) {
	userID := live.sess.UserID()

	s.mu.Lock()
	if s.sessions[userID] == live {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if err := s.store.DeleteSnapshot(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Delete snapshot failed")
	}
	if err := s.store.Release(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Release claim failed")
	}
	s.publish(ctx, userID, ws.GradedResponse{Event: event, Report: report})
}

func (s *AssessmentService) publish(ctx context.Context, userID int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("Encode session event failed")
		return
	}
	if err := s.store.Publish(ctx, userID, payload); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Publish session event failed")
	}
}

func claimTTL(remainingSeconds int) time.Duration {
	return time.Duration(remainingSeconds)*time.Second + claimGrace
}
