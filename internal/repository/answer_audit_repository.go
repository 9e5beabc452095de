package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AnswerAuditRepository stores the latest selection per user and question.
// Rows are only replaced by selections made at the same time or later, so
// requeued events cannot overwrite newer ones.
type AnswerAuditRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerAuditRepository creates a new AnswerAuditRepository.
func NewAnswerAuditRepository(pool *pgxpool.Pool) *AnswerAuditRepository {
	return &AnswerAuditRepository{pool: pool}
}

const upsertAnswerSQL = `
	ON CONFLICT (user_id, question_id) DO UPDATE
	SET option_index = EXCLUDED.option_index,
	    answered_at  = EXCLUDED.answered_at,
	    updated_at   = NOW()
	WHERE session_answers.answered_at <= EXCLUDED.answered_at`

// UpsertAnswers writes a batch with a single UNNEST statement. The batch
// must not repeat a (user, question) pair.
func (r *AnswerAuditRepository) UpsertAnswers(ctx context.Context, events []model.AnswerAuditEvent) error {
	n := len(events)
	users := make([]int, 0, n)
	questions := make([]string, 0, n)
	options := make([]int, 0, n)
	answeredAts := make([]time.Time, 0, n)
	for _, e := range events {
		users = append(users, e.UserID)
		questions = append(questions, e.QuestionID)
		options = append(options, e.OptionIndex)
		answeredAts = append(answeredAts, e.AnsweredAt)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_answers (user_id, question_id, option_index, answered_at)
		SELECT u.user_id, u.question_id, u.option_index, u.answered_at
		FROM UNNEST(
			$1::int[],
			$2::varchar[],
			$3::smallint[],
			$4::timestamptz[]
		) AS u (user_id, question_id, option_index, answered_at)`+upsertAnswerSQL,
		users, questions, options, answeredAts,
	)
	return err
}

// UpsertAnswer writes one selection.
func (r *AnswerAuditRepository) UpsertAnswer(ctx context.Context, e model.AnswerAuditEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_answers (user_id, question_id, option_index, answered_at)
		VALUES ($1, $2, $3, $4)`+upsertAnswerSQL,
		e.UserID, e.QuestionID, e.OptionIndex, e.AnsweredAt,
	)
	return err
}
