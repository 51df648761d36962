package models

import (
	"strings"
	"time"
)

// CheckStatus tracks a problem through a systematic checking pass over an
// output directory.
type CheckStatus string

const (
	// CheckPending means the problem is initialized but not yet reviewed.
	CheckPending CheckStatus = "pending"
	// CheckPassed means the reviewer found nothing to change.
	CheckPassed CheckStatus = "passed"
	// CheckFailed means the reviewer raised issues and none were approved.
	CheckFailed CheckStatus = "failed"
	// CheckChecked means the reviewer raised issues and at least one
	// suggested edit was approved.
	CheckChecked CheckStatus = "checked"
	// CheckSkipped means the problem could not be reviewed.
	CheckSkipped CheckStatus = "skipped"
)

// AllCheckStatuses lists every check status in display order.
var AllCheckStatuses = []CheckStatus{CheckPending, CheckPassed, CheckFailed, CheckChecked, CheckSkipped}

// ParseCheckStatus maps user input onto a CheckStatus. The second return is
// false for anything unrecognized.
func ParseCheckStatus(s string) (CheckStatus, bool) {
	status := CheckStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCheckStatuses {
		if status == known {
			return known, true
		}
	}
	return "", false
}

// ProblemCheck is one problem's row in the checking ledger.
type ProblemCheck struct {
	ID              int64       `json:"id" yaml:"id"`
	ProblemID       string      `json:"problem_id" yaml:"problem_id"`
	OutputDir       string      `json:"output_dir" yaml:"output_dir"`
	Status          CheckStatus `json:"status" yaml:"status"`
	SuggestionCount int         `json:"suggestion_count" yaml:"suggestion_count"`
	CheckedAt       *time.Time  `json:"checked_at,omitempty" yaml:"checked_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at" yaml:"created_at"`
}

// CheckStats aggregates the checking ledger for one output directory.
type CheckStats struct {
	Pending int
	Passed  int
	Failed  int
	Checked int
	Skipped int
	Total   int
}

// Done counts problems that are past pending.
func (cs CheckStats) Done() int { return cs.Total - cs.Pending }

// ByStatus returns the count for one status.
func (cs CheckStats) ByStatus(status CheckStatus) int {
	switch status {
	case CheckPending:
		return cs.Pending
	case CheckPassed:
		return cs.Passed
	case CheckFailed:
		return cs.Failed
	case CheckChecked:
		return cs.Checked
	case CheckSkipped:
		return cs.Skipped
	default:
		return 0
	}
}
