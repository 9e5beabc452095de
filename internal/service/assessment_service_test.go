package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/model"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type memStore struct {
	mu        sync.Mutex
	instance  string
	claims    map[int]string
	snapshots map[int][]byte
	events    map[int][][]byte
	audits    []model.AnswerAuditEvent
}

func newMemStore(instance string) *memStore {
	return &memStore{
		instance:  instance,
		claims:    map[int]string{},
		snapshots: map[int][]byte{},
		events:    map[int][][]byte{},
	}
}

// as returns a view of the same shared state acting for another instance.
func (m *memStore) as(instance string) *memStore {
	return &memStore{
		instance:  instance,
		claims:    m.claims,
		snapshots: m.snapshots,
		events:    m.events,
	}
}

func (m *memStore) Claim(_ context.Context, userID int, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.claims[userID]
	if ok && owner != m.instance {
		return false, nil
	}
	m.claims[userID] = m.instance
	return true, nil
}

func (m *memStore) Release(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[userID] == m.instance {
		delete(m.claims, userID)
	}
	return nil
}

func (m *memStore) SaveSnapshot(_ context.Context, snap engine.Snapshot, _ time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.UserID] = data
	return nil
}

func (m *memStore) LoadSnapshot(_ context.Context, userID int) (*engine.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.snapshots[userID]
	if !ok {
		return nil, nil
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (m *memStore) DeleteSnapshot(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, userID)
	return nil
}

func (m *memStore) Publish(_ context.Context, userID int, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[userID] = append(m.events[userID], payload)
	return nil
}

func (m *memStore) QueueAnswerAudit(_ context.Context, event model.AnswerAuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, event)
	return nil
}

func (m *memStore) lastEvent(t *testing.T, userID int) map[string]interface{} {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events[userID]
	require.NotEmpty(t, evs)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(evs[len(evs)-1], &out))
	return out
}

type memResults struct {
	mu       sync.Mutex
	saved    map[int]engine.ScoreReport
	failures int
}

func newMemResults() *memResults {
	return &memResults{saved: map[int]engine.ScoreReport{}}
}

func (r *memResults) HasSubmittedResult(_ context.Context, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.saved[userID]
	return ok, nil
}

func (r *memResults) SaveResult(_ context.Context, userID int, report engine.ScoreReport, _ []engine.Answer, _ []engine.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("database unavailable")
	}
	if _, ok := r.saved[userID]; ok {
		return engine.ErrAlreadyCompleted
	}
	r.saved[userID] = report
	return nil
}

type staticSource []engine.Question

func (s staticSource) ListQuestions(context.Context) ([]engine.Question, error) {
	return s, nil
}

func testBank() staticSource {
	var qs []engine.Question
	for _, subject := range []string{"Math", "Science"} {
		for i := 0; i < 2; i++ {
			qs = append(qs, engine.Question{
				ID:                 fmt.Sprintf("%s-%d", subject, i),
				Subject:            subject,
				Prompt:             "prompt",
				Options:            []engine.Option{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}},
				CorrectOptionIndex: i + 1,
				Difficulty:         engine.DifficultyMedium,
			})
		}
	}
	return qs
}

func newTestService(store *memStore, results *memResults) *AssessmentService {
	return NewAssessmentService(testBank(), results, store, config.TestConfig{
		DurationSeconds: 60,
		QuestionTotal:   4,
	}, zerolog.Nop())
}

func correctOption(questionID string) int {
	for _, q := range testBank() {
		if q.ID == questionID {
			return q.CorrectOptionIndex
		}
	}
	return -1
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestAssessment_StartBuildsAndResumes(t *testing.T) {
	store := newMemStore("a")
	svc := newTestService(store, newMemResults())
	ctx := context.Background()

	view, err := svc.Start(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, view.Questions, 4)
	assert.Equal(t, 60, view.RemainingSeconds)
	assert.Equal(t, engine.StatusActive, view.Status)
	assert.Equal(t, "a", store.claims[1])
	assert.Contains(t, store.snapshots, 1)

	again, err := svc.Start(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, view.Questions, again.Questions)
	assert.Equal(t, 1, svc.ActiveCount())
}

func TestAssessment_StartAfterCompletion(t *testing.T) {
	results := newMemResults()
	results.saved[1] = engine.ScoreReport{}
	svc := newTestService(newMemStore("a"), results)

	_, err := svc.Start(context.Background(), 1)
	assert.ErrorIs(t, err, engine.ErrAlreadyCompleted)
}

func TestAssessment_StartClaimedElsewhere(t *testing.T) {
	store := newMemStore("a")
	store.claims[1] = "b"
	svc := newTestService(store, newMemResults())

	_, err := svc.Start(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSessionActiveElsewhere)
	assert.Equal(t, 0, svc.ActiveCount())
}

func TestAssessment_StartWithInsufficientBank(t *testing.T) {
	store := newMemStore("a")
	svc := NewAssessmentService(testBank(), newMemResults(), store, config.TestConfig{
		DurationSeconds: 60,
		QuestionTotal:   10,
	}, zerolog.Nop())

	_, err := svc.Start(context.Background(), 1)
	assert.ErrorIs(t, err, engine.ErrInsufficientQuestions)
	assert.NotContains(t, store.claims, 1)
}

func TestAssessment_NoSessionYet(t *testing.T) {
	svc := newTestService(newMemStore("a"), newMemResults())

	_, err := svc.State(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	_, err = svc.SelectAnswer(context.Background(), 9, "Math-0", 1)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestAssessment_SelectAnswerAuditsAndPublishes(t *testing.T) {
	store := newMemStore("a")
	svc := newTestService(store, newMemResults())
	ctx := context.Background()
	view, err := svc.Start(ctx, 1)
	require.NoError(t, err)
	qid := view.Questions[0].ID

	view, err = svc.SelectAnswer(ctx, 1, qid, 2)
	require.NoError(t, err)
	require.NotNil(t, view.Answers[0].SelectedOptionIndex)
	assert.Equal(t, 2, *view.Answers[0].SelectedOptionIndex)

	require.Len(t, store.audits, 1)
	assert.Equal(t, qid, store.audits[0].QuestionID)
	assert.Equal(t, 2, store.audits[0].OptionIndex)
	assert.Equal(t, string(ws.EventState), store.lastEvent(t, 1)["event"])

	_, err = svc.SelectAnswer(ctx, 1, qid, 7)
	assert.ErrorIs(t, err, engine.ErrInvalidOption)
	_, err = svc.SelectAnswer(ctx, 1, "nope", 0)
	assert.ErrorIs(t, err, engine.ErrUnknownQuestion)
	assert.Len(t, store.audits, 1)
}

func TestAssessment_Navigation(t *testing.T) {
	svc := newTestService(newMemStore("a"), newMemResults())
	ctx := context.Background()
	_, err := svc.Start(ctx, 1)
	require.NoError(t, err)

	view, err := svc.Previous(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, view.CurrentIndex)

	view, err = svc.GoTo(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, view.CurrentIndex)

	view, err = svc.Next(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, view.CurrentIndex)

	_, err = svc.GoTo(ctx, 1, 4)
	assert.ErrorIs(t, err, engine.ErrOutOfRange)

	view, err = svc.ToggleMark(ctx, 1, view.Questions[3].ID)
	require.NoError(t, err)
	assert.True(t, view.Answers[3].Marked)
}

func TestAssessment_SubmitAllCorrect(t *testing.T) {
	store := newMemStore("a")
	results := newMemResults()
	svc := newTestService(store, results)
	ctx := context.Background()

	view, err := svc.Start(ctx, 1)
	require.NoError(t, err)
	for _, q := range view.Questions {
		_, err := svc.SelectAnswer(ctx, 1, q.ID, correctOption(q.ID))
		require.NoError(t, err)
	}

	report, err := svc.Submit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, report.Overall)
	assert.Equal(t, map[string]int{"Math": 100, "Science": 100}, report.PerSubject)

	assert.Len(t, results.saved, 1)
	assert.Equal(t, 0, svc.ActiveCount())
	assert.NotContains(t, store.claims, 1)
	assert.NotContains(t, store.snapshots, 1)
	assert.Equal(t, string(ws.EventGraded), store.lastEvent(t, 1)["event"])

	_, err = svc.Submit(ctx, 1)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	_, err = svc.Start(ctx, 1)
	assert.ErrorIs(t, err, engine.ErrAlreadyCompleted)
}

func TestAssessment_SubmitPersistFailureIsRetryable(t *testing.T) {
	store := newMemStore("a")
	results := newMemResults()
	results.failures = 1
	svc := newTestService(store, results)
	ctx := context.Background()
	_, err := svc.Start(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, 1)
	assert.ErrorIs(t, err, engine.ErrPersistFailure)
	view, err := svc.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusActive, view.Status)

	report, err := svc.Submit(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.Len(t, results.saved, 1)
}

func TestAssessment_TickAllForcesSubmission(t *testing.T) {
	store := newMemStore("a")
	results := newMemResults()
	results.failures = 1
	svc := newTestService(store, results)
	ctx := context.Background()
	_, err := svc.Start(ctx, 1)
	require.NoError(t, err)

	svc.TickAll(ctx, 30)
	view, err := svc.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, view.RemainingSeconds)

	// Clock runs out but the first write fails: answers freeze, test stays.
	svc.TickAll(ctx, 45)
	view, err = svc.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, view.RemainingSeconds)
	_, err = svc.SelectAnswer(ctx, 1, view.Questions[0].ID, 0)
	assert.ErrorIs(t, err, engine.ErrSessionClosed)

	svc.TickAll(ctx, 1)
	assert.Equal(t, 0, svc.ActiveCount())
	assert.Len(t, results.saved, 1)
	assert.Equal(t, string(ws.EventTimeout), store.lastEvent(t, 1)["event"])
}

func TestAssessment_ResumesAfterHandOff(t *testing.T) {
	store := newMemStore("a")
	results := newMemResults()
	first := newTestService(store, results)
	ctx := context.Background()

	view, err := first.Start(ctx, 1)
	require.NoError(t, err)
	qid := view.Questions[1].ID
	_, err = first.SelectAnswer(ctx, 1, qid, 3)
	require.NoError(t, err)
	first.TickAll(ctx, 10)
	first.Shutdown(ctx)

	second := newTestService(store.as("b"), results)
	view, err = second.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, view.RemainingSeconds)
	require.NotNil(t, view.Answers[1].SelectedOptionIndex)
	assert.Equal(t, 3, *view.Answers[1].SelectedOptionIndex)
	assert.Equal(t, "b", store.claims[1])
}

func TestAssessment_DrainingInstanceKeepsNoClaim(t *testing.T) {
	store := newMemStore("a")
	results := newMemResults()
	first := newTestService(store, results)
	ctx := context.Background()

	view, err := first.Start(ctx, 1)
	require.NoError(t, err)
	qid := view.Questions[0].ID
	first.Shutdown(ctx)
	assert.Empty(t, store.claims[1])

	// Late calls on the stopped instance neither resume nor re-claim.
	_, err = first.Next(ctx, 1)
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = first.SelectAnswer(ctx, 1, qid, 0)
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = first.State(ctx, 1)
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = first.Start(ctx, 2)
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = first.Submit(ctx, 1)
	assert.ErrorIs(t, err, ErrShuttingDown)
	first.TickAll(ctx, 30)

	assert.Empty(t, store.claims)
	assert.Equal(t, 0, first.ActiveCount())
	assert.Empty(t, results.saved)

	second := newTestService(store.as("b"), results)
	view, err = second.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 60, view.RemainingSeconds)
	assert.Nil(t, view.Answers[0].SelectedOptionIndex)
	assert.Equal(t, "b", store.claims[1])
}

func TestAssessment_HandedOffSessionRejectsChanges(t *testing.T) {
	store := newMemStore("a")
	svc := newTestService(store, newMemResults())
	ctx := context.Background()

	_, err := svc.Start(ctx, 1)
	require.NoError(t, err)
	live := svc.lookup(1)
	require.NotNil(t, live)
	svc.Shutdown(ctx)

	// A request that looked the session up before Shutdown finds it
	// handed off once it gets the lock.
	_, err = svc.mutate(ctx, 1, func(*engine.Session) error { return nil })
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = svc.view(live)
	assert.ErrorIs(t, err, ErrShuttingDown)
	svc.tick(ctx, live, 10)
	assert.Equal(t, 60, live.sess.RemainingSeconds())
}

func TestAssessment_ConcurrentAccess(t *testing.T) {
	svc := newTestService(newMemStore("a"), newMemResults())
	ctx := context.Background()
	view, err := svc.Start(ctx, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.SelectAnswer(ctx, 1, view.Questions[i%4].ID, i%4)
		}(i)
		go func() {
			defer wg.Done()
			svc.TickAll(ctx, 1)
		}()
	}
	wg.Wait()

	got, err := svc.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 52, got.RemainingSeconds)
}
