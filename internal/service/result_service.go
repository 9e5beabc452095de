package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// ErrResultNotFound is returned when no stored result matches.
var ErrResultNotFound = errors.New("result not found")

// ResultStore is the read side of stored results.
type ResultStore interface {
	List(ctx context.Context, f model.ResultFilter) ([]model.ResultSummary, int, error)
	GetByID(ctx context.Context, id int) (*model.ResultDetail, error)
	GetByUser(ctx context.Context, userID int) (*model.ResultDetail, error)
	Stats(ctx context.Context) (*model.DashboardStats, error)
}

// ActiveCounter counts running tests across all instances.
type ActiveCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// ResultService serves stored results and dashboard figures.
type ResultService struct {
	store  ResultStore
	active ActiveCounter
	local  *AssessmentService
	log    zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(store ResultStore, active ActiveCounter, local *AssessmentService, log zerolog.Logger) *ResultService {
	return &ResultService{
		store:  store,
		active: active,
		local:  local,
		log:    log.With().Str("component", "result_service").Logger(),
	}
}

// List pages through stored results, newest first.
func (s *ResultService) List(ctx context.Context, f model.ResultFilter) ([]model.ResultSummary, int, error) {
	f.Normalize()
	return s.store.List(ctx, f)
}

// Get returns a result with its audit snapshot.
func (s *ResultService) Get(ctx context.Context, id int) (*model.ResultDetail, error) {
	detail, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	return detail, err
}

// ForUser returns the caller's own result without the answer keys.
func (s *ResultService) ForUser(ctx context.Context, userID int) (*model.ResultSummary, error) {
	detail, err := s.store.GetByUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return &detail.ResultSummary, nil
}

// Dashboard aggregates stored results and running tests.
func (s *ResultService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("result stats: %w", err)
	}

	active, err := s.active.CountActive(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Count active sessions failed, using local count")
		active = s.local.ActiveCount()
	}
	stats.ActiveSessions = active
	return stats, nil
}
