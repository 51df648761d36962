package models

import "time"

// SuggestionStatus tracks a stored suggestion through the review workflow.
type SuggestionStatus string

const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusRejected SuggestionStatus = "rejected"
)

// Terminal reports whether the status can no longer transition.
func (s SuggestionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// StoredSuggestion is a Suggestion persisted in the version store.
//
// Version is scoped to the (ProblemID, FilePath) pair: the first record for a
// pair gets version 1 and each later record increments by one. The field names
// here match the database schema, which is a stable contract for external
// tooling that inspects the store directly.
type StoredSuggestion struct {
	ID               int64            `json:"id" yaml:"id"`
	Version          int              `json:"version" yaml:"version"`
	ProblemID        string           `json:"problem_id" yaml:"problem_id"`
	FilePath         string           `json:"file_path" yaml:"file_path"`
	IssueType        IssueType        `json:"issue_type" yaml:"issue_type"`
	Description      string           `json:"description" yaml:"description"`
	Reasoning        string           `json:"reasoning" yaml:"reasoning"`
	Confidence       float64          `json:"confidence" yaml:"confidence"`
	OriginalContent  string           `json:"original_content" yaml:"original_content"`
	SuggestedContent string           `json:"suggested_content" yaml:"suggested_content"`
	Diff             string           `json:"diff" yaml:"diff"`
	Status           SuggestionStatus `json:"status" yaml:"status"`
	SessionID        string           `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at" yaml:"created_at"`
}

// Suggestion reconstructs the transient form, e.g. for re-applying a
// previously rejected edit.
func (ss *StoredSuggestion) Suggestion() Suggestion {
	return Suggestion{
		IssueType:        ss.IssueType,
		FilePath:         ss.FilePath,
		Description:      ss.Description,
		Reasoning:        ss.Reasoning,
		Confidence:       ss.Confidence,
		OriginalContent:  ss.OriginalContent,
		SuggestedContent: ss.SuggestedContent,
		Diff:             ss.Diff,
	}
}
