package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// ResultRepository stores graded assessments. It is the engine's ResultSink.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

var _ engine.ResultSink = (*ResultRepository)(nil)

const resultSummaryQuery = `
	SELECT tr.id, tr.user_id, u.email, u.first_name || CASE WHEN u.last_name = '' THEN '' ELSE ' ' || u.last_name END,
	       COALESCE(jsonb_object_agg(s.subject, s.score) FILTER (WHERE s.subject IS NOT NULL), '{}'::jsonb),
	       tr.overall, tr.correct, tr.total, tr.duration_seconds, tr.started_at, tr.submitted_at
	FROM test_results tr
	JOIN users u ON u.id = tr.user_id
	LEFT JOIN test_result_subjects s ON s.result_id = tr.id`

const resultSummaryGroup = ` GROUP BY tr.id, u.email, u.first_name, u.last_name`

func scanSummary(row pgx.Row) (*model.ResultSummary, error) {
	s := &model.ResultSummary{}
	err := row.Scan(&s.ID, &s.UserID, &s.Email, &s.Name, &s.Subjects,
		&s.Overall, &s.Correct, &s.Total, &s.DurationSeconds, &s.StartedAt, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	s.DurationMinutes = model.DurationMinutes(s.DurationSeconds)
	return s, nil
}

// HasSubmittedResult reports whether userID already has a stored result.
func (r *ResultRepository) HasSubmittedResult(ctx context.Context, userID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM test_results WHERE user_id = $1)`, userID,
	).Scan(&exists)
	return exists, err
}

// SaveResult writes the report, the per-subject scores and the audit
// snapshot in one transaction. A second result for the same user fails
// with engine.ErrAlreadyCompleted and writes nothing.
func (r *ResultRepository) SaveResult(ctx context.Context, userID int, report engine.ScoreReport, answers []engine.Answer, questions []engine.Question) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var resultID int
		err := tx.QueryRow(ctx,
			`INSERT INTO test_results (user_id, overall, correct, total, duration_seconds, questions, answers, started_at, submitted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (user_id) DO NOTHING
			 RETURNING id`,
			userID, report.Overall, report.Correct, report.Total, report.DurationSeconds, questions, answers,
			report.StartedAt, report.SubmittedAt,
		).Scan(&resultID)
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.ErrAlreadyCompleted
		}
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}

		rows := make([][]interface{}, 0, len(report.PerSubject))
		for subject, score := range report.PerSubject {
			rows = append(rows, []interface{}{resultID, subject, score})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"test_result_subjects"},
			[]string{"result_id", "subject", "score"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("insert subject scores: %w", err)
		}
		return nil
	})
}

// List retrieves results, newest first, with an optional name/email search.
func (r *ResultRepository) List(ctx context.Context, f model.ResultFilter) ([]model.ResultSummary, int, error) {
	where := ""
	var args []interface{}
	argIdx := 1
	if f.Search != "" {
		where = ` WHERE (u.email ILIKE $1 OR u.first_name ILIKE $1 OR u.last_name ILIKE $1)`
		args = append(args, "%"+f.Search+"%")
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_results tr JOIN users u ON u.id = tr.user_id`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := resultSummaryQuery + where + resultSummaryGroup +
		` ORDER BY tr.submitted_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []model.ResultSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *s)
	}
	return results, total, rows.Err()
}

// GetByID returns a result with its audit snapshot.
func (r *ResultRepository) GetByID(ctx context.Context, id int) (*model.ResultDetail, error) {
	return r.getDetail(ctx, `tr.id = $1`, id)
}

// GetByUser returns the result of userID, if any.
func (r *ResultRepository) GetByUser(ctx context.Context, userID int) (*model.ResultDetail, error) {
	return r.getDetail(ctx, `tr.user_id = $1`, userID)
}

func (r *ResultRepository) getDetail(ctx context.Context, cond string, arg int) (*model.ResultDetail, error) {
	summary, err := scanSummary(r.pool.QueryRow(ctx,
		resultSummaryQuery+` WHERE `+cond+resultSummaryGroup, arg))
	if err != nil {
		return nil, err
	}

	detail := &model.ResultDetail{ResultSummary: *summary}
	err = r.pool.QueryRow(ctx,
		`SELECT questions, answers FROM test_results WHERE id = $1`, summary.ID,
	).Scan(&detail.Questions, &detail.Answers)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Stats aggregates results for the admin dashboard. ActiveSessions is left
// for the caller, which knows about live sessions.
func (r *ResultRepository) Stats(ctx context.Context) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{SubjectAverages: map[string]float64{}}

	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'user'),
			(SELECT COUNT(*) FROM test_results),
			(SELECT COALESCE(AVG(overall), 0)::float8 FROM test_results)`,
	).Scan(&stats.RegisteredUsers, &stats.SubmittedResults, &stats.AverageOverall)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT subject, AVG(score)::float8 FROM test_result_subjects GROUP BY subject ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var subject string
		var avg float64
		if err := rows.Scan(&subject, &avg); err != nil {
			return nil, err
		}
		stats.SubjectAverages[subject] = avg
	}
	return stats, rows.Err()
}
