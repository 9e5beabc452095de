package engine

import (
	"time"
)

// ScoreReport is the outcome of a submitted session. It is never mutated
// after Score returns it.
type ScoreReport struct {
	PerSubject      map[string]int `json:"per_subject"`
	Overall         int            `json:"overall"`
	Correct         int            `json:"correct"`
	Total           int            `json:"total"`
	DurationSeconds int64          `json:"duration_seconds"`
	StartedAt       time.Time      `json:"started_at"`
	SubmittedAt     time.Time      `json:"submitted_at"`
}

// Score grades answers against the answer key of questions.
//
// Totals come from the question set, so an unanswered question counts as
// wrong. Answers that reference a question outside the set are ignored, and
// a repeated answer for the same question counts once.
func Score(questions []Question, answers []Answer, startedAt, submittedAt time.Time) ScoreReport {
	key := NewAnswerKey(questions)

	type tally struct{ correct, total int }
	bySubject := make(map[string]*tally)
	subjectOf := make(map[string]string, len(questions))
	for _, q := range questions {
		t, ok := bySubject[q.Subject]
		if !ok {
			t = &tally{}
			bySubject[q.Subject] = t
		}
		t.total++
		subjectOf[q.ID] = q.Subject
	}

	seen := make(map[string]bool, len(answers))
	correct := 0
	for _, a := range answers {
		subject, ok := subjectOf[a.QuestionID]
		if !ok || seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true
		if key.IsCorrect(a) {
			bySubject[subject].correct++
			correct++
		}
	}

	perSubject := make(map[string]int, len(bySubject))
	for subject, t := range bySubject {
		perSubject[subject] = percent(t.correct, t.total)
	}

	duration := int64(submittedAt.Sub(startedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}

	return ScoreReport{
		PerSubject:      perSubject,
		Overall:         percent(correct, len(questions)),
		Correct:         correct,
		Total:           len(questions),
		DurationSeconds: duration,
		StartedAt:       startedAt,
		SubmittedAt:     submittedAt,
	}
}

// percent is round-half-up of 100*correct/total in integer arithmetic.
// Zero total yields 0.
func percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
