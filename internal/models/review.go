package models

import "fmt"

// IssueType categorizes what kind of problem a suggestion addresses.
type IssueType string

const (
	IssueSyntaxError          IssueType = "syntax-error"
	IssueDomainError          IssueType = "domain-error"
	IssueSolutionError        IssueType = "solution-error"
	IssueVariantInconsistency IssueType = "variant-inconsistency"
	IssueFormatting           IssueType = "formatting"
	IssueOther                IssueType = "other"
)

// AllIssueTypes lists every valid issue type, in display order.
var AllIssueTypes = []IssueType{
	IssueSyntaxError,
	IssueDomainError,
	IssueSolutionError,
	IssueVariantInconsistency,
	IssueFormatting,
	IssueOther,
}

// ParseIssueType normalizes a model-supplied issue type string. Unknown
// values map to IssueOther so a sloppy response never fails validation.
func ParseIssueType(s string) IssueType {
	for _, it := range AllIssueTypes {
		if string(it) == s {
			return it
		}
	}
	return IssueOther
}

// Suggestion is a single proposed edit to one file, produced by the reviewer.
//
// Invariants, checked by Validate: confidence lies in [0, 1], the target file
// path is set, and a change (original != suggested) carries a non-empty diff.
type Suggestion struct {
	IssueType        IssueType `json:"issue_type" yaml:"issue_type"`
	FilePath         string    `json:"file_path" yaml:"file_path"`
	Description      string    `json:"description" yaml:"description"`
	Reasoning        string    `json:"reasoning" yaml:"reasoning"`
	Confidence       float64   `json:"confidence" yaml:"confidence"`
	OriginalContent  string    `json:"original_content" yaml:"original_content"`
	SuggestedContent string    `json:"suggested_content" yaml:"suggested_content"`
	Diff             string    `json:"diff" yaml:"diff"`
}

// Validate checks the Suggestion invariants.
func (s *Suggestion) Validate() error {
	if s.FilePath == "" {
		return fmt.Errorf("suggestion has no target file path")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("suggestion confidence %v out of range [0, 1]", s.Confidence)
	}
	if s.OriginalContent != s.SuggestedContent && s.Diff == "" {
		return fmt.Errorf("suggestion for %s changes content but has no diff", s.FilePath)
	}
	return nil
}

// ReviewResult is the reviewer's verdict on one problem.
type ReviewResult struct {
	ProblemID   string       `json:"problem_id"`
	Passed      bool         `json:"passed"`
	Suggestions []Suggestion `json:"suggestions"`
	Summary     string       `json:"summary"`
}

// ReviewStats aggregates review outcomes across sessions.
type ReviewStats struct {
	TotalReviewed    int               `json:"total_reviewed"`
	TotalSuggestions int               `json:"total_suggestions"`
	ApprovedCount    int               `json:"approved_count"`
	RejectedCount    int               `json:"rejected_count"`
	SkippedCount     int               `json:"skipped_count"`
	PendingCount     int               `json:"pending_count"`
	ApprovalRate     float64           `json:"approval_rate"`
	IssuesByType     map[IssueType]int `json:"issues_by_type"`
}
