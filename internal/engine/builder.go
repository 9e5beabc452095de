package engine

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// DefaultDurationSeconds is the session length used when none is configured.
const DefaultDurationSeconds = 3600

// BuildOptions controls how a session is drawn from the question pool.
type BuildOptions struct {
	UserID int

	// PerSubject, when positive, draws that many questions from every
	// subject in the pool. Otherwise Total questions are drawn from the
	// whole pool.
	PerSubject int
	Total      int

	// DurationSeconds is the initial clock. Zero means DefaultDurationSeconds.
	DurationSeconds int

	// Seed makes the draw reproducible. Nil draws from a non-deterministic
	// source.
	Seed *int64

	// Clock supplies the start and submission timestamps. Nil means time.Now.
	Clock func() time.Time
}

// Build assembles a new Active session from pool.
//
// Requests larger than the pool, or than any subject partition, fail with
// ErrInsufficientQuestions instead of being clamped.
func Build(pool []Question, opts BuildOptions, sink ResultSink) (*Session, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyQuestionSource
	}

	seen := make(map[string]bool, len(pool))
	for _, q := range pool {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = true
	}

	rng := newRand(opts.Seed)

	var selected []Question
	if opts.PerSubject > 0 {
		bySubject := make(map[string][]Question)
		for _, q := range pool {
			bySubject[q.Subject] = append(bySubject[q.Subject], q)
		}
		subjects := make([]string, 0, len(bySubject))
		for subject := range bySubject {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)

		for _, subject := range subjects {
			part := bySubject[subject]
			if opts.PerSubject > len(part) {
				return nil, fmt.Errorf("%w: subject %s has %d, want %d",
					ErrInsufficientQuestions, subject, len(part), opts.PerSubject)
			}
			selected = append(selected, draw(rng, part, opts.PerSubject)...)
		}
	} else {
		if opts.Total <= 0 {
			return nil, fmt.Errorf("%w: requested %d questions", ErrInsufficientQuestions, opts.Total)
		}
		if opts.Total > len(pool) {
			return nil, fmt.Errorf("%w: pool has %d, want %d",
				ErrInsufficientQuestions, len(pool), opts.Total)
		}
		selected = draw(rng, pool, opts.Total)
	}
	shuffle(rng, selected)

	duration := opts.DurationSeconds
	if duration <= 0 {
		duration = DefaultDurationSeconds
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return newSession(opts.UserID, cloneQuestions(selected), duration, clock(), sink, clock), nil
}

// BuildFrom reads the pool from src and builds a session from it.
func BuildFrom(ctx context.Context, src QuestionSource, opts BuildOptions, sink ResultSink) (*Session, error) {
	pool, err := src.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return Build(pool, opts, sink)
}

// draw returns n questions picked uniformly without replacement. The input
// slice is left untouched.
func draw(rng *rand.Rand, qs []Question, n int) []Question {
	out := append([]Question(nil), qs...)
	shuffle(rng, out)
	return out[:n]
}

// shuffle is an in-place Fisher-Yates shuffle.
func shuffle(rng *rand.Rand, qs []Question) {
	for i := len(qs) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}

func newRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}
