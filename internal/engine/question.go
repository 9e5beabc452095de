package engine

import (
	"fmt"
)

// OptionCount is the fixed number of choices every question carries.
const OptionCount = 4

// Difficulty enumerates question difficulty levels. Reported, never scored.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Option is a single answer choice. Its position in Question.Options is the
// index the answer key refers to.
type Option struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// Question is a multiple-choice item from the question bank.
type Question struct {
	ID                 string     `json:"id"`
	Subject            string     `json:"subject"`
	Prompt             string     `json:"prompt"`
	ImageURL           string     `json:"image_url,omitempty"`
	Options            []Option   `json:"options"`
	CorrectOptionIndex int        `json:"correct_option_index"`
	Difficulty         Difficulty `json:"difficulty"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w: question %s has %d options", ErrInvalidQuestion, q.ID, len(q.Options))
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return fmt.Errorf("%w: question %s has key %d", ErrInvalidQuestion, q.ID, q.CorrectOptionIndex)
	}
	return nil
}

// PublicQuestion is a question as shown to a test taker: no answer key.
type PublicQuestion struct {
	ID         string     `json:"id"`
	Subject    string     `json:"subject"`
	Prompt     string     `json:"prompt"`
	ImageURL   string     `json:"image_url,omitempty"`
	Options    []Option   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Subject:    q.Subject,
		Prompt:     q.Prompt,
		ImageURL:   q.ImageURL,
		Options:    append([]Option(nil), q.Options...),
		Difficulty: q.Difficulty,
	}
}

func cloneQuestions(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		q.Options = append([]Option(nil), q.Options...)
		out[i] = q
	}
	return out
}
