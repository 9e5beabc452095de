package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// ErrQuestionNotFound is returned for unknown question IDs.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionStore is the question bank persistence.
type QuestionStore interface {
	List(ctx context.Context, f model.QuestionFilter) ([]model.QuestionRecord, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionRecord, error)
	Create(ctx context.Context, q engine.Question) (*model.QuestionRecord, error)
	Update(ctx context.Context, id uuid.UUID, q engine.Question) (*model.QuestionRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListSubjects(ctx context.Context) ([]string, error)
}

// QuestionService manages the question bank. Running tests keep the
// questions they were built with; edits apply to tests started later.
type QuestionService struct {
	store QuestionStore
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(store QuestionStore) *QuestionService {
	return &QuestionService{store: store}
}

func (s *QuestionService) List(ctx context.Context, f model.QuestionFilter) ([]model.QuestionRecord, int, error) {
	f.Normalize()
	return s.store.List(ctx, f)
}

func (s *QuestionService) Get(ctx context.Context, id uuid.UUID) (*model.QuestionRecord, error) {
	q, err := s.store.GetByID(ctx, id)
	return q, notFound(err)
}

// Create validates and stores a new question.
func (s *QuestionService) Create(ctx context.Context, req *model.QuestionRequest) (*model.QuestionRecord, error) {
	// The placeholder ID only satisfies Validate; the database assigns the real one.
	q := req.ToQuestion("new")
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, q)
}

// Update validates and replaces question id.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req *model.QuestionRequest) (*model.QuestionRecord, error) {
	q := req.ToQuestion(id.String())
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.store.Update(ctx, id, q)
	return rec, notFound(err)
}

func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	return notFound(s.store.Delete(ctx, id))
}

// Subjects lists the distinct subjects of the bank.
func (s *QuestionService) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	if subjects == nil {
		subjects = []string{}
	}
	return subjects, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrQuestionNotFound
	}
	return err
}
