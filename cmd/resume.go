package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/session"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [SESSION_ID]",
	Short: "Resume an interrupted review session",
	Long: `Continue an interrupted review session where it left off. Problems
that were fully reviewed keep their recorded decisions; the remaining
problems are reviewed again from scratch.

Without an argument the most recently started incomplete session is
resumed. A session ID prefix is enough to identify one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: resumeRun,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func resumeRun(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return err
	}

	incomplete, err := st.ListSessions(cmd.Context(), true)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(incomplete) == 0 {
		ui.Info("No incomplete sessions to resume")
		return nil
	}

	var sess *models.ReviewSession
	if len(args) == 1 {
		sess, err = matchSession(incomplete, args[0])
		if err != nil {
			return err
		}
	} else {
		// ListSessions returns newest first.
		sess = incomplete[0]
	}

	if len(sess.RemainingProblems) == 0 {
		ui.Info("Session %s has no remaining problems, marking complete", shortID(sess.ID))
		return st.CompleteSession(cmd.Context(), sess.ID)
	}

	rev, err := newReviewer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ui.Info("Resuming session %s: %d problem(s) remaining", shortID(sess.ID), len(sess.RemainingProblems))

	runner := &session.Runner{
		Store:     st,
		Reviewer:  rev,
		Prompter:  newTerminalPrompter(ui),
		Editor:    newShellEditor(),
		OutputDir: sess.OutputDir,
	}

	summary, err := runner.Run(ctx, sess, sess.RemainingProblems)
	if err != nil {
		return fmt.Errorf("review session: %w", err)
	}

	if summary.Interrupted {
		ui.Warning("Session %s interrupted again, resume with: qacheck resume %s", sess.ID, shortID(sess.ID))
	}
	ui.SessionSummary(summary.Session)
	return nil
}

// matchSession finds the single session whose ID starts with the given
// prefix.
func matchSession(sessions []*models.ReviewSession, prefix string) (*models.ReviewSession, error) {
	var matched []*models.ReviewSession
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, prefix) {
			matched = append(matched, s)
		}
	}
	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("no session matches %q", prefix)
	case 1:
		return matched[0], nil
	default:
		return nil, fmt.Errorf("session prefix %q is ambiguous (%d matches)", prefix, len(matched))
	}
}
