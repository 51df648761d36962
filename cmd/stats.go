package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qacheck/qacheck/internal/models"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review statistics",
	RunE:  statsRun,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 0, "Only count activity from the last N days (0 = all time)")
	rootCmd.AddCommand(statsCmd)
}

func statsRun(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return err
	}

	stats, err := st.GetStats(cmd.Context(), statsDays)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if statsDays > 0 {
		ui.Info("Review statistics (last %d days)", statsDays)
	} else {
		ui.Info("Review statistics (all time)")
	}

	table := ui.Table([]string{"Metric", "Value"})
	table.Append([]string{"Problems reviewed", fmt.Sprintf("%d", stats.TotalReviewed)})
	table.Append([]string{"Suggestions", fmt.Sprintf("%d", stats.TotalSuggestions)})
	table.Append([]string{"Approved", fmt.Sprintf("%d", stats.ApprovedCount)})
	table.Append([]string{"Rejected", fmt.Sprintf("%d", stats.RejectedCount)})
	table.Append([]string{"Skipped", fmt.Sprintf("%d", stats.SkippedCount)})
	table.Append([]string{"Pending", fmt.Sprintf("%d", stats.PendingCount)})
	table.Append([]string{"Approval rate", fmt.Sprintf("%.0f%%", stats.ApprovalRate*100)})
	table.Render()

	if len(stats.IssuesByType) > 0 {
		fmt.Fprintln(ui.Out)
		ui.Info("Issues by type")
		typeTable := ui.Table([]string{"Type", "Count"})
		for _, it := range models.AllIssueTypes {
			if n := stats.IssuesByType[it]; n > 0 {
				typeTable.Append([]string{string(it), fmt.Sprintf("%d", n)})
			}
		}
		typeTable.Render()
	}
	return nil
}
