package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const questionColumns = `id::text, subject, prompt, image_url, options, correct_option_index, difficulty, created_at, updated_at`

// QuestionRepository handles question bank data access. It is the
// engine's QuestionSource.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

var _ engine.QuestionSource = (*QuestionRepository)(nil)

func scanQuestion(row pgx.Row) (*model.QuestionRecord, error) {
	q := &model.QuestionRecord{}
	err := row.Scan(&q.ID, &q.Subject, &q.Prompt, &q.ImageURL, &q.Options, &q.CorrectOptionIndex,
		&q.Difficulty, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListQuestions returns the whole bank as the pool for session building.
func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]engine.Question, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY subject, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []engine.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q.Question)
	}
	return questions, rows.Err()
}

// List retrieves questions with filters and pagination.
func (r *QuestionRepository) List(ctx context.Context, f model.QuestionFilter) ([]model.QuestionRecord, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	argIdx := 1

	if f.Subject != "" {
		where += ` AND subject = $` + strconv.Itoa(argIdx)
		args = append(args, f.Subject)
		argIdx++
	}
	if f.Difficulty != "" {
		where += ` AND difficulty = $` + strconv.Itoa(argIdx)
		args = append(args, f.Difficulty)
		argIdx++
	}
	if f.Search != "" {
		where += ` AND prompt ILIKE $` + strconv.Itoa(argIdx)
		args = append(args, "%"+f.Search+"%")
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + questionColumns + ` FROM questions` + where +
		` ORDER BY subject, created_at LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := []model.QuestionRecord{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *q)
	}
	return records, total, rows.Err()
}

// GetByID retrieves one question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionRecord, error) {
	return scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
}

// Create inserts q and returns the stored row. q.ID is ignored.
func (r *QuestionRepository) Create(ctx context.Context, q engine.Question) (*model.QuestionRecord, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`INSERT INTO questions (subject, prompt, image_url, options, correct_option_index, difficulty)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+questionColumns,
		q.Subject, q.Prompt, q.ImageURL, q.Options, q.CorrectOptionIndex, q.Difficulty,
	))
}

// Update replaces the content of question id.
func (r *QuestionRepository) Update(ctx context.Context, id uuid.UUID, q engine.Question) (*model.QuestionRecord, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`UPDATE questions
		 SET subject = $1, prompt = $2, image_url = $3, options = $4, correct_option_index = $5,
		     difficulty = $6, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $7
		 RETURNING `+questionColumns,
		q.Subject, q.Prompt, q.ImageURL, q.Options, q.CorrectOptionIndex, q.Difficulty, id,
	))
}

// Delete removes a question. Results keep their own snapshot of it.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListSubjects returns the distinct subjects in the bank.
func (r *QuestionRepository) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT subject FROM questions ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Count returns the bank size.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}
