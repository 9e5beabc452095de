package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(v int64) *int64 { return &v }

func pool(perSubject int, subjects ...string) []Question {
	var out []Question
	for _, s := range subjects {
		for i := 0; i < perSubject; i++ {
			out = append(out, q(fmt.Sprintf("%s_%d", s, i), s, i%OptionCount))
		}
	}
	return out
}

func ids(qs []Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestBuild_InitialState(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sess, err := Build(pool(3, "Math", "Science"), BuildOptions{
		UserID:          7,
		Total:           4,
		DurationSeconds: 1200,
		Seed:            seed(1),
		Clock:           func() time.Time { return start },
	}, nil)
	require.NoError(t, err)

	snap := sess.Snapshot()
	assert.Equal(t, StatusActive, snap.Status)
	assert.Equal(t, 7, snap.UserID)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Equal(t, 1200, snap.RemainingSeconds)
	assert.Equal(t, start, snap.StartedAt)
	require.Len(t, snap.Questions, 4)
	require.Len(t, snap.Answers, 4)

	unique := map[string]bool{}
	for i, a := range snap.Answers {
		assert.Equal(t, snap.Questions[i].ID, a.QuestionID)
		assert.Nil(t, a.SelectedOptionIndex)
		assert.False(t, a.Marked)
		unique[a.QuestionID] = true
	}
	assert.Len(t, unique, 4)
}

func TestBuild_DefaultDuration(t *testing.T) {
	sess, err := Build(pool(1, "Math"), BuildOptions{Total: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDurationSeconds, sess.RemainingSeconds())
}

func TestBuild_SeedIsReproducible(t *testing.T) {
	p := pool(5, "Math", "Science", "Reasoning")

	a, err := Build(p, BuildOptions{PerSubject: 2, Seed: seed(42)}, nil)
	require.NoError(t, err)
	b, err := Build(p, BuildOptions{PerSubject: 2, Seed: seed(42)}, nil)
	require.NoError(t, err)

	assert.Equal(t, ids(a.Snapshot().Questions), ids(b.Snapshot().Questions))
}

func TestBuild_DoesNotMutatePool(t *testing.T) {
	p := pool(4, "Math")
	before := ids(p)

	_, err := Build(p, BuildOptions{Total: 4, Seed: seed(3)}, nil)
	require.NoError(t, err)

	assert.Equal(t, before, ids(p))
}

func TestBuild_PerSubjectCounts(t *testing.T) {
	sess, err := Build(pool(4, "Math", "Science", "Reasoning"), BuildOptions{PerSubject: 2, Seed: seed(9)}, nil)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, q := range sess.Snapshot().Questions {
		counts[q.Subject]++
	}
	assert.Equal(t, map[string]int{"Math": 2, "Science": 2, "Reasoning": 2}, counts)
}

func TestBuild_Errors(t *testing.T) {
	broken := q("bad", "Math", 0)
	broken.Options = broken.Options[:3]

	tests := []struct {
		name string
		pool []Question
		opts BuildOptions
		want error
	}{
		{name: "empty pool", pool: nil, opts: BuildOptions{Total: 1}, want: ErrEmptyQuestionSource},
		{name: "total exceeds pool", pool: pool(2, "Math"), opts: BuildOptions{Total: 3}, want: ErrInsufficientQuestions},
		{name: "zero total", pool: pool(2, "Math"), opts: BuildOptions{}, want: ErrInsufficientQuestions},
		{name: "subject partition too small", pool: append(pool(3, "Math"), pool(1, "Science")...), opts: BuildOptions{PerSubject: 2}, want: ErrInsufficientQuestions},
		{name: "three options", pool: []Question{broken}, opts: BuildOptions{Total: 1}, want: ErrInvalidQuestion},
		{name: "duplicate ids", pool: []Question{q("x", "Math", 0), q("x", "Math", 1)}, opts: BuildOptions{Total: 1}, want: ErrInvalidQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := Build(tt.pool, tt.opts, nil)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type sourceFunc func(ctx context.Context) ([]Question, error)

func (f sourceFunc) ListQuestions(ctx context.Context) ([]Question, error) { return f(ctx) }

func TestBuildFrom(t *testing.T) {
	src := sourceFunc(func(context.Context) ([]Question, error) { return pool(2, "Math"), nil })
	sess, err := BuildFrom(context.Background(), src, BuildOptions{Total: 2, Seed: seed(1)}, nil)
	require.NoError(t, err)
	assert.Len(t, sess.Snapshot().Questions, 2)

	boom := errors.New("db down")
	failing := sourceFunc(func(context.Context) ([]Question, error) { return nil, boom })
	_, err = BuildFrom(context.Background(), failing, BuildOptions{Total: 2}, nil)
	assert.ErrorIs(t, err, boom)
}
