package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memResultStore struct {
	details map[int]*model.ResultDetail
}

func (m *memResultStore) List(_ context.Context, _ model.ResultFilter) ([]model.ResultSummary, int, error) {
	var out []model.ResultSummary
	for _, d := range m.details {
		out = append(out, d.ResultSummary)
	}
	return out, len(out), nil
}

func (m *memResultStore) GetByID(_ context.Context, id int) (*model.ResultDetail, error) {
	d, ok := m.details[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (m *memResultStore) GetByUser(_ context.Context, userID int) (*model.ResultDetail, error) {
	for _, d := range m.details {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memResultStore) Stats(context.Context) (*model.DashboardStats, error) {
	return &model.DashboardStats{SubmittedResults: len(m.details)}, nil
}

type countFunc func() (int, error)

func (f countFunc) CountActive(context.Context) (int, error) { return f() }

func testResultStore() *memResultStore {
	return &memResultStore{details: map[int]*model.ResultDetail{
		10: {ResultSummary: model.ResultSummary{ID: 10, UserID: 4, Overall: 75}},
	}}
}

func TestResult_GetAndForUser(t *testing.T) {
	svc := NewResultService(testResultStore(), countFunc(func() (int, error) { return 0, nil }), nil, zerolog.Nop())
	ctx := context.Background()

	detail, err := svc.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 75, detail.Overall)

	summary, err := svc.ForUser(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.ID)

	_, err = svc.Get(ctx, 11)
	assert.ErrorIs(t, err, ErrResultNotFound)
	_, err = svc.ForUser(ctx, 5)
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestResult_DashboardCountsActive(t *testing.T) {
	svc := NewResultService(testResultStore(), countFunc(func() (int, error) { return 3, nil }), nil, zerolog.Nop())

	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SubmittedResults)
	assert.Equal(t, 3, stats.ActiveSessions)
}

func TestResult_DashboardFallsBackToLocalCount(t *testing.T) {
	local := newTestService(newMemStore("a"), newMemResults())
	_, err := local.Start(context.Background(), 1)
	require.NoError(t, err)

	svc := NewResultService(testResultStore(), countFunc(func() (int, error) {
		return 0, errors.New("redis down")
	}), local, zerolog.Nop())

	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
}
