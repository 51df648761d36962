// Package session drives the interactive review loop: select problems,
// review each, present suggestions, record decisions, and checkpoint after
// every problem so an interrupted run can resume.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qacheck/qacheck/internal/diff"
	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/reviewer"
	"github.com/qacheck/qacheck/internal/selector"
	"github.com/qacheck/qacheck/internal/store"
)

// Action is the user's decision on a presented suggestion.
type Action int

const (
	ActionApprove Action = iota
	ActionReject
	ActionSkip
	ActionEdit
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionSkip:
		return "skip"
	case ActionEdit:
		return "edit"
	case ActionQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Prompter is the interactive UI boundary. The runner never reads the
// terminal directly, so tests (and headless runs) supply their own.
type Prompter interface {
	// StartProblem announces the problem about to be reviewed.
	StartProblem(problemID string, index, total int)
	// ShowResult shows the review verdict before suggestions are presented.
	ShowResult(result *models.ReviewResult)
	// Decide presents one suggestion and returns the user's action.
	Decide(sug *models.Suggestion, index, total int) (Action, error)
	// Notify reports progress and recoverable failures.
	Notify(format string, args ...any)
}

// Editor hands a file to an external editing collaborator.
type Editor interface {
	Edit(path string) error
}

// Runner orchestrates one review session.
type Runner struct {
	Store    store.Store
	Reviewer reviewer.Reviewer
	Prompter Prompter
	Editor   Editor

	OutputDir string

	// TrackChecks records each problem's outcome in the checking ledger.
	// Set by "check continue"; ad-hoc reviews leave the ledger alone.
	TrackChecks bool
}

// Summary is returned when a run ends, normally or by quit/cancellation.
type Summary struct {
	Session     *models.ReviewSession
	Interrupted bool
}

// Run reviews problemIDs in order under the given session. The session's
// counters are updated and checkpointed after each problem; decisions are
// persisted before the checkpoint, so resume never replays a recorded
// decision. A quit or context cancellation leaves the session incomplete
// with its remaining problem set saved.
func (r *Runner) Run(ctx context.Context, session *models.ReviewSession, problemIDs []string) (*Summary, error) {
	if err := r.Store.SaveSessionState(ctx, session.ID, r.OutputDir, problemIDs); err != nil {
		return nil, fmt.Errorf("persist selection set: %w", err)
	}

	remaining := append([]string(nil), problemIDs...)
	interrupted := false

	for idx, problemID := range problemIDs {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		r.Prompter.StartProblem(problemID, idx+1, len(problemIDs))

		pc, warnings, err := selector.LoadContext(r.OutputDir, problemID)
		if err != nil {
			r.Prompter.Notify("cannot load %s: %v; continuing with next problem", problemID, err)
			r.trackCheck(ctx, problemID, models.CheckSkipped, 0)
			remaining = remaining[1:]
			continue
		}
		for _, w := range warnings {
			r.Prompter.Notify("warning: %s", w)
		}

		result, err := r.Reviewer.Review(ctx, pc)
		if err != nil {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			r.Prompter.Notify("review failed for %s: %v; continuing with next problem", problemID, err)
			r.trackCheck(ctx, problemID, models.CheckSkipped, 0)
			remaining = remaining[1:]
			continue
		}

		session.ProblemsReviewed++
		session.SuggestionsMade += len(result.Suggestions)
		r.Prompter.ShowResult(result)

		approvedBefore := session.ApprovedCount
		quit := r.presentSuggestions(ctx, session, pc, result)

		if !quit {
			switch {
			case len(result.Suggestions) == 0:
				r.trackCheck(ctx, problemID, models.CheckPassed, 0)
			case session.ApprovedCount > approvedBefore:
				r.trackCheck(ctx, problemID, models.CheckChecked, len(result.Suggestions))
			default:
				r.trackCheck(ctx, problemID, models.CheckFailed, len(result.Suggestions))
			}
			remaining = remaining[1:]
		}
		if err := r.checkpoint(ctx, session, remaining); err != nil {
			return nil, err
		}
		if quit {
			interrupted = true
			break
		}
	}

	if interrupted {
		return &Summary{Session: session, Interrupted: true}, nil
	}

	if err := r.Store.CompleteSession(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	return &Summary{Session: session}, nil
}

// presentSuggestions walks one problem's suggestions in order. Returns true
// when the user quit.
func (r *Runner) presentSuggestions(ctx context.Context, session *models.ReviewSession, pc *selector.ProblemContext, result *models.ReviewResult) bool {
	for i := range result.Suggestions {
		sug := &result.Suggestions[i]

		// Edit and a recoverable apply failure re-prompt the same
		// suggestion until a terminal choice is made.
		for {
			if ctx.Err() != nil {
				return true
			}

			action, err := r.Prompter.Decide(sug, i+1, len(result.Suggestions))
			if err != nil {
				r.Prompter.Notify("prompt failed: %v; quitting", err)
				return true
			}

			switch action {
			case ActionApprove:
				if r.approve(ctx, session, pc, sug) {
					break
				}
				continue // conflict: re-prompt so the user can reject or skip

			case ActionReject:
				if _, err := r.Store.SaveSuggestion(ctx, *sug, pc.ProblemID, models.StatusRejected, session.ID); err != nil {
					r.Prompter.Notify("record rejection for %s: %v", pc.ProblemID, err)
				} else {
					session.RejectedCount++
					r.Prompter.Notify("suggestion stored for later")
				}

			case ActionSkip:
				session.SkippedCount++

			case ActionEdit:
				path := r.resolveTarget(pc, sug.FilePath)
				if err := r.Editor.Edit(path); err != nil {
					r.Prompter.Notify("editor failed for %s: %v", path, err)
				}
				continue // re-prompt after editing

			case ActionQuit:
				return true
			}
			break
		}
	}
	return false
}

// approve applies the suggestion's diff and records the approval. Returns
// false when the apply hit a conflict and the suggestion should be
// re-presented; other failures are reported and treated as resolved without
// recording a decision.
func (r *Runner) approve(ctx context.Context, session *models.ReviewSession, pc *selector.ProblemContext, sug *models.Suggestion) bool {
	path := r.resolveTarget(pc, sug.FilePath)

	if err := diff.Apply(path, sug.Diff); err != nil {
		if errors.Is(err, diff.ErrConflict) {
			r.Prompter.Notify("cannot apply to %s in problem %s: file changed since the diff was generated; file left untouched", path, pc.ProblemID)
			return false
		}
		r.Prompter.Notify("cannot apply to %s in problem %s: %v; file left untouched", path, pc.ProblemID, err)
		return true
	}

	if _, err := r.Store.SaveSuggestion(ctx, *sug, pc.ProblemID, models.StatusApproved, session.ID); err != nil {
		r.Prompter.Notify("change applied but recording approval failed: %v", err)
		return true
	}
	session.ApprovedCount++
	r.Prompter.Notify("change applied")
	return true
}

// trackCheck records the problem's outcome in the ledger when tracking is
// on. A missing ledger row is reported, not fatal: ad-hoc picks may review
// problems that were never initialized.
func (r *Runner) trackCheck(ctx context.Context, problemID string, status models.CheckStatus, suggestionCount int) {
	if !r.TrackChecks {
		return
	}
	if err := r.Store.UpdateCheck(ctx, problemID, r.OutputDir, status, suggestionCount); err != nil {
		r.Prompter.Notify("record check outcome for %s: %v", problemID, err)
	}
}

// checkpoint persists the session counters and remaining problem set.
// Called only after the problem's decisions are durably recorded.
func (r *Runner) checkpoint(ctx context.Context, session *models.ReviewSession, remaining []string) error {
	if err := r.Store.UpdateSessionCounters(ctx, session); err != nil {
		return fmt.Errorf("checkpoint counters: %w", err)
	}
	if err := r.Store.SaveSessionState(ctx, session.ID, r.OutputDir, remaining); err != nil {
		return fmt.Errorf("checkpoint state: %w", err)
	}
	return nil
}

// resolveTarget maps a model-supplied file path onto a real file in the
// problem context. The model sometimes returns bare file names or paths
// rooted differently from the output directory.
func (r *Runner) resolveTarget(pc *selector.ProblemContext, path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}

	// Primary and variant files share a basename (<problem>.tex), so match
	// on path suffix first: "variants/numerical/P1.tex" must not resolve to
	// the primary document.
	for _, known := range append([]string{pc.DocPath}, variantPaths(pc)...) {
		if suffixMatch(known, path) {
			return known
		}
	}

	joined := filepath.Join(pc.BasePath, path)
	if _, err := os.Stat(joined); err == nil {
		return joined
	}
	if filepath.Base(path) == filepath.Base(pc.DocPath) {
		return pc.DocPath
	}
	return path
}

func variantPaths(pc *selector.ProblemContext) []string {
	out := make([]string, 0, len(pc.VariantPaths))
	for _, vpath := range pc.VariantPaths {
		out = append(out, vpath)
	}
	sort.Strings(out)
	return out
}

// suffixMatch reports whether the shorter of the two paths is a
// path-component suffix of the longer.
func suffixMatch(known, given string) bool {
	k := filepath.ToSlash(known)
	g := filepath.ToSlash(given)
	if len(g) > len(k) {
		k, g = g, k
	}
	return k == g || strings.HasSuffix(k, "/"+g)
}
