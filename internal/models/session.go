package models

import "time"

// ReviewSession is one run of the interactive review loop.
//
// A session without CompletedAt was interrupted and can be resumed: OutputDir
// and RemainingProblems record the original selection so resume never
// re-randomizes or re-prompts already-reviewed problems.
type ReviewSession struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ProblemsReviewed  int        `json:"problems_reviewed"`
	SuggestionsMade   int        `json:"suggestions_made"`
	ApprovedCount     int        `json:"approved_count"`
	RejectedCount     int        `json:"rejected_count"`
	SkippedCount      int        `json:"skipped_count"`
	OutputDir         string     `json:"output_dir,omitempty"`
	RemainingProblems []string   `json:"remaining_problems,omitempty"`
}

// Complete reports whether the session finished normally.
func (s *ReviewSession) Complete() bool {
	return s.CompletedAt != nil
}
