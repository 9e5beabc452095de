package model

import (
	"time"

	"github.com/stemsi/exstem-assessment/internal/engine"
)

// QuestionRecord is a question bank row as administrators see it,
// answer key included.
type QuestionRecord struct {
	engine.Question
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OptionInput is one answer choice in a question payload.
type OptionInput struct {
	Text     string `json:"text" binding:"required,min=1,max=1000"`
	ImageURL string `json:"image_url" binding:"omitempty,url,max=500"`
}

// QuestionRequest is the payload for creating or replacing a question.
type QuestionRequest struct {
	Subject            string        `json:"subject" binding:"required,min=1,max=100"`
	Prompt             string        `json:"prompt" binding:"required,min=1,max=4000"`
	ImageURL           string        `json:"image_url" binding:"omitempty,url,max=500"`
	Options            []OptionInput `json:"options" binding:"required,len=4,dive"`
	CorrectOptionIndex *int          `json:"correct_option_index" binding:"required,min=0,max=3"`
	Difficulty         string        `json:"difficulty" binding:"required,difficulty"`
}

// ToQuestion converts the payload into an engine question with the given id.
func (r *QuestionRequest) ToQuestion(id string) engine.Question {
	opts := make([]engine.Option, len(r.Options))
	for i, o := range r.Options {
		opts[i] = engine.Option{Text: o.Text, ImageURL: o.ImageURL}
	}
	q := engine.Question{
		ID:         id,
		Subject:    r.Subject,
		Prompt:     r.Prompt,
		ImageURL:   r.ImageURL,
		Options:    opts,
		Difficulty: engine.Difficulty(r.Difficulty),
	}
	if r.CorrectOptionIndex != nil {
		q.CorrectOptionIndex = *r.CorrectOptionIndex
	}
	return q
}

// QuestionFilter narrows the admin question list.
type QuestionFilter struct {
	Subject    string `form:"subject" binding:"omitempty,max=100"`
	Difficulty string `form:"difficulty" binding:"omitempty,difficulty"`
	Search     string `form:"search" binding:"omitempty,max=200"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PerPage    int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Normalize fills paging defaults.
func (f *QuestionFilter) Normalize() {
	f.Page, f.PerPage = normalizePage(f.Page, f.PerPage)
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return page, perPage
}
