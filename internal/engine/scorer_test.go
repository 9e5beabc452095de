package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func q(id, subject string, correct int) Question {
	return Question{
		ID:                 id,
		Subject:            subject,
		Prompt:             "prompt " + id,
		Options:            []Option{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}},
		CorrectOptionIndex: correct,
		Difficulty:         DifficultyEasy,
	}
}

func TestScore_HalfCorrect(t *testing.T) {
	questions := []Question{q("q1", "Math", 0), q("q2", "Math", 1)}
	answers := []Answer{
		{QuestionID: "q1", SelectedOptionIndex: intPtr(0)},
		{QuestionID: "q2", SelectedOptionIndex: intPtr(0)},
	}

	got := Score(questions, answers, time.Time{}, time.Time{})

	assert.Equal(t, 50, got.Overall)
	assert.Equal(t, map[string]int{"Math": 50}, got.PerSubject)
	assert.Equal(t, 1, got.Correct)
	assert.Equal(t, 2, got.Total)
}

func TestScore_NoQuestions(t *testing.T) {
	got := Score(nil, nil, time.Time{}, time.Time{})

	assert.Equal(t, 0, got.Overall)
	assert.Empty(t, got.PerSubject)
}

func TestScore_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		total   int
		want    int
	}{
		{name: "two of three", correct: 2, total: 3, want: 67},
		{name: "one of three", correct: 1, total: 3, want: 33},
		{name: "one of eight", correct: 1, total: 8, want: 13},
		{name: "none", correct: 0, total: 5, want: 0},
		{name: "all", correct: 7, total: 7, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var questions []Question
			var answers []Answer
			for i := 0; i < tt.total; i++ {
				id := string(rune('a' + i))
				questions = append(questions, q(id, "Reasoning", 2))
				sel := 1
				if i < tt.correct {
					sel = 2
				}
				answers = append(answers, Answer{QuestionID: id, SelectedOptionIndex: intPtr(sel)})
			}

			got := Score(questions, answers, time.Time{}, time.Time{})

			assert.Equal(t, tt.want, got.Overall)
			assert.Equal(t, tt.want, got.PerSubject["Reasoning"])
		})
	}
}

func TestScore_UnansweredAndForeignAnswers(t *testing.T) {
	questions := []Question{q("m1", "Math", 0), q("s1", "Science", 3)}
	answers := []Answer{
		{QuestionID: "m1"},
		{QuestionID: "s1", SelectedOptionIndex: intPtr(3)},
		{QuestionID: "ghost", SelectedOptionIndex: intPtr(0)},
		{QuestionID: "s1", SelectedOptionIndex: intPtr(3)},
	}

	got := Score(questions, answers, time.Time{}, time.Time{})

	assert.Equal(t, map[string]int{"Math": 0, "Science": 100}, got.PerSubject)
	assert.Equal(t, 50, got.Overall)
	assert.Equal(t, 1, got.Correct)
}

func TestScore_Duration(t *testing.T) {
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	got := Score(nil, nil, start, start.Add(90*time.Second+900*time.Millisecond))
	assert.EqualValues(t, 90, got.DurationSeconds)
	assert.Equal(t, start, got.StartedAt)
	assert.Equal(t, start.Add(90*time.Second+900*time.Millisecond), got.SubmittedAt)

	got = Score(nil, nil, start, start.Add(-time.Minute))
	assert.EqualValues(t, 0, got.DurationSeconds)
}

func TestAnswerKey_Resolve(t *testing.T) {
	key := NewAnswerKey([]Question{q("q1", "Math", 2)})

	idx, ok := key.Resolve("q1")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = key.Resolve("nope")
	assert.False(t, ok)

	assert.True(t, key.IsCorrect(Answer{QuestionID: "q1", SelectedOptionIndex: intPtr(2)}))
	assert.False(t, key.IsCorrect(Answer{QuestionID: "q1"}))
	assert.False(t, key.IsCorrect(Answer{QuestionID: "nope", SelectedOptionIndex: intPtr(2)}))
}
