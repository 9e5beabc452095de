package model

import (
	"time"

	"github.com/stemsi/exstem-assessment/internal/engine"
)

// ResultSummary is one submitted assessment in the admin results list.
type ResultSummary struct {
	ID              int            `json:"id"`
	UserID          int            `json:"user_id"`
	Email           string         `json:"email"`
	Name            string         `json:"name"`
	Subjects        map[string]int `json:"subjects"`
	Overall         int            `json:"overall"`
	Correct         int            `json:"correct"`
	Total           int            `json:"total"`
	DurationSeconds int64          `json:"duration_seconds"`
	DurationMinutes int64          `json:"duration_minutes"`
	StartedAt       time.Time      `json:"started_at"`
	SubmittedAt     time.Time      `json:"submitted_at"`
}

// ResultDetail adds the audit snapshot stored with a result: the questions
// as served, answer keys included, and the final answers.
type ResultDetail struct {
	ResultSummary
	Questions []engine.Question `json:"questions"`
	Answers   []engine.Answer   `json:"answers"`
}

// ResultFilter pages and searches the results list.
type ResultFilter struct {
	Search  string `form:"search" binding:"omitempty,max=200"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Normalize fills paging defaults.
func (f *ResultFilter) Normalize() {
	f.Page, f.PerPage = normalizePage(f.Page, f.PerPage)
}

// DashboardStats summarises platform activity for administrators.
type DashboardStats struct {
	RegisteredUsers  int                `json:"registered_users"`
	SubmittedResults int                `json:"submitted_results"`
	ActiveSessions   int                `json:"active_sessions"`
	AverageOverall   float64            `json:"average_overall"`
	SubjectAverages  map[string]float64 `json:"subject_averages"`
}

// DurationMinutes rounds seconds to the nearest minute.
func DurationMinutes(seconds int64) int64 {
	return (seconds + 30) / 60
}
