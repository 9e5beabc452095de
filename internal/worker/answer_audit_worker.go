package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	AuditBatchSize    = 100
	AuditBatchTimeout = 2 * time.Second
	AuditPollTimeout  = 1 * time.Second
	auditRetryBackoff = 5 * time.Second
)

// AuditQueue is the Redis list fed by AssessmentService.SelectAnswer.
type AuditQueue interface {
	PopAnswerAudit(ctx context.Context, wait time.Duration) (*model.AnswerAuditEvent, error)
	QueueAnswerAudit(ctx context.Context, event model.AnswerAuditEvent) error
}

// AuditWriter persists answer audit rows.
type AuditWriter interface {
	UpsertAnswers(ctx context.Context, events []model.AnswerAuditEvent) error
	UpsertAnswer(ctx context.Context, event model.AnswerAuditEvent) error
}

// AnswerAuditWorker consumes persist_answers_queue and upserts the latest
// selection per question into session_answers.
type AnswerAuditWorker struct {
	queue  AuditQueue
	writer AuditWriter
	log    zerolog.Logger
	sleep  func(context.Context, time.Duration)
}

// NewAnswerAuditWorker creates a new AnswerAuditWorker.
func NewAnswerAuditWorker(queue AuditQueue, writer AuditWriter, log zerolog.Logger) *AnswerAuditWorker {
	return &AnswerAuditWorker{
		queue:  queue,
		writer: writer,
		log:    log.With().Str("component", "answer_audit_worker").Logger(),
		sleep:  sleepCtx,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is done, then flushes the batch and drains the
// queue. Call in a goroutine.
func (w *AnswerAuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AnswerAuditWorker started")

	batch := make([]model.AnswerAuditEvent, 0, AuditBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AuditBatchSize || time.Since(lastFlush) >= AuditBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("AnswerAuditWorker stopped")
			return

		default:
			event, err := w.queue.PopAnswerAudit(ctx, AuditPollTimeout)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Pop error")
				}
				continue
			}
			if event != nil {
				batch = append(batch, *event)
			}
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert with single-row fallback
// ----------------------------------------------------------------

// flushSafe writes batch. On a failed bulk write each row is retried alone
// and rows that still fail go back on the queue.
func (w *AnswerAuditWorker) flushSafe(ctx context.Context, batch []model.AnswerAuditEvent) {
	if len(batch) == 0 {
		return
	}

	events := latestPerQuestion(batch)
	err := w.writer.UpsertAnswers(ctx, events)
	if err == nil {
		w.log.Debug().Int("count", len(events)).Msg("Answer audit batch stored")
		return
	}
	w.log.Warn().Err(err).Msg("Bulk answer upsert failed, using fallback")

	requeued := 0
	for _, e := range events {
		if err := w.writer.UpsertAnswer(ctx, e); err != nil {
			w.log.Error().Err(err).
				Int("user_id", e.UserID).
				Str("question_id", e.QuestionID).
				Msg("Single answer upsert failed, requeueing")
			if err := w.queue.QueueAnswerAudit(ctx, e); err != nil {
				w.log.Error().Err(err).Msg("Requeue failed, answer audit lost")
			}
			requeued++
		}
	}
	if requeued > 0 {
		w.sleep(ctx, auditRetryBackoff)
	}
}

// drain stores everything left in the queue before shutdown. It stops at the
// first write failure so the remaining items wait for the next start.
func (w *AnswerAuditWorker) drain(ctx context.Context) {
	drained := 0
	for {
		event, err := w.queue.PopAnswerAudit(ctx, 0)
		if err != nil {
			w.log.Error().Err(err).Msg("Drain pop error")
			break
		}
		if event == nil {
			break
		}

		if err := w.writer.UpsertAnswer(ctx, *event); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			_ = w.queue.QueueAnswerAudit(ctx, *event)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

// latestPerQuestion keeps the newest event per (user, question). A single
// upsert statement cannot touch the same row twice.
func latestPerQuestion(batch []model.AnswerAuditEvent) []model.AnswerAuditEvent {
	type key struct {
		user     int
		question string
	}
	pos := make(map[key]int, len(batch))
	out := make([]model.AnswerAuditEvent, 0, len(batch))
	for _, e := range batch {
		k := key{e.UserID, e.QuestionID}
		if i, ok := pos[k]; ok {
			if !e.AnsweredAt.Before(out[i].AnsweredAt) {
				out[i] = e
			}
			continue
		}
		pos[k] = len(out)
		out = append(out, e)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
