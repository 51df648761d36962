package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qacheck/qacheck/internal/store"
)

var sessionsAll bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List review sessions",
	RunE:  sessionsListRun,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete SESSION_ID",
	Short: "Delete a session and its recorded suggestions",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionsDeleteRun,
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsAll, "all", false, "Include completed sessions")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func sessionsListRun(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return err
	}

	sessions, err := st.ListSessions(cmd.Context(), !sessionsAll)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(sessions) == 0 {
		if sessionsAll {
			ui.Info("No sessions recorded")
		} else {
			ui.Info("No incomplete sessions (use --all to include completed ones)")
		}
		return nil
	}

	table := ui.Table([]string{"ID", "Started", "Status", "Reviewed", "Suggestions", "Approved", "Rejected", "Remaining"})
	for _, s := range sessions {
		status := "incomplete"
		if s.CompletedAt != nil {
			status = "complete"
		}
		table.Append([]string{
			shortID(s.ID),
			s.StartedAt.Format("2006-01-02 15:04"),
			status,
			fmt.Sprintf("%d", s.ProblemsReviewed),
			fmt.Sprintf("%d", s.SuggestionsMade),
			fmt.Sprintf("%d", s.ApprovedCount),
			fmt.Sprintf("%d", s.RejectedCount),
			fmt.Sprintf("%d", len(s.RemainingProblems)),
		})
	}
	table.Render()
	return nil
}

func sessionsDeleteRun(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return err
	}

	all, err := st.ListSessions(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	sess, err := matchSession(all, args[0])
	if err != nil {
		return err
	}

	if err := st.DeleteSession(cmd.Context(), sess.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %s not found", args[0])
		}
		return fmt.Errorf("delete session: %w", err)
	}

	ui.Success("Deleted session %s", sess.ID)
	return nil
}
