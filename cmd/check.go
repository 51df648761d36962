package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/selector"
	"github.com/qacheck/qacheck/internal/session"
)

var (
	checkCount int
	checkID    string
	checkDir   string

	checkInitRange []int
	checkInitReset bool

	checkContinueCount int

	checkStatusShow string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Review randomly selected problems interactively",
	Long: `Select problems from the output directory, run the AI reviewer on
each one, and walk through the resulting suggestions interactively.

Each suggestion is shown as a unified diff. Approve applies the edit to
the file and records it; reject records the suggestion without touching
the file; skip leaves no record. Quit checkpoints the session so it can
be picked up later with "qacheck resume".

For a systematic pass over every problem, initialize a checking ledger
with "check init" and work through it in batches with "check continue";
"check status" shows the progress.`,
	RunE: checkRun,
}

var checkInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the checking ledger for an output directory",
	Long: `Register every problem in the output directory as pending in the
checking ledger. Problems already in the ledger keep their status unless
--reset is given. Use --range to initialize only a slice of the
naturally sorted problem list (1-based, inclusive).`,
	Args: cobra.NoArgs,
	RunE: checkInitRun,
}

var checkContinueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Review the next batch of pending problems from the ledger",
	Args:  cobra.NoArgs,
	RunE:  checkContinueRun,
}

var checkStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checking progress for an output directory",
	Args:  cobra.NoArgs,
	RunE:  checkStatusRun,
}

func init() {
	checkCmd.Flags().IntVarP(&checkCount, "count", "n", 5, "Number of problems to review")
	checkCmd.Flags().StringVar(&checkID, "id", "", "Review a specific problem instead of a random selection")
	checkCmd.PersistentFlags().StringVar(&checkDir, "dir", "", "Output directory to review (default from config)")

	checkInitCmd.Flags().IntSliceVarP(&checkInitRange, "range", "r", nil, "Initialize only problems FROM,TO of the sorted list (1-based, inclusive)")
	checkInitCmd.Flags().BoolVar(&checkInitReset, "reset", false, "Clear the ledger for this directory before initializing")

	checkContinueCmd.Flags().IntVarP(&checkContinueCount, "count", "n", 5, "Number of pending problems to review this batch")

	checkStatusCmd.Flags().StringVarP(&checkStatusShow, "show", "s", "", "List problems with this status (pending, passed, failed, checked, skipped, or all)")

	checkCmd.AddCommand(checkInitCmd, checkContinueCmd, checkStatusCmd)
	rootCmd.AddCommand(checkCmd)
}

func checkRun(cmd *cobra.Command, args []string) error {
	outputDir := checkDir
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}

	var problemIDs []string
	if checkID != "" {
		id, err := selector.SelectByID(outputDir, checkID)
		if err != nil {
			return fmt.Errorf("select problem: %w", err)
		}
		problemIDs = []string{id}
	} else {
		ids, err := selector.SelectRandom(outputDir, checkCount)
		if err != nil {
			return fmt.Errorf("select problems: %w", err)
		}
		problemIDs = ids
	}

	if len(problemIDs) == 0 {
		ui.Warning("No problems found in %s", outputDir)
		return nil
	}
	if checkID == "" && len(problemIDs) < checkCount {
		ui.Warning("Only %d problem(s) available, reviewing all of them", len(problemIDs))
	}

	return runReviewSession(cmd, outputDir, problemIDs, false)
}

// runReviewSession drives one interactive session over problemIDs. With
// trackChecks, each problem's outcome lands in the checking ledger.
func runReviewSession(cmd *cobra.Command, outputDir string, problemIDs []string, trackChecks bool) error {
	rev, err := newReviewer()
	if err != nil {
		return err
	}

	st, err := getStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sess, err := st.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	runner := &session.Runner{
		Store:       st,
		Reviewer:    rev,
		Prompter:    newTerminalPrompter(ui),
		Editor:      newShellEditor(),
		OutputDir:   outputDir,
		TrackChecks: trackChecks,
	}

	summary, err := runner.Run(ctx, sess, problemIDs)
	if err != nil {
		return fmt.Errorf("review session: %w", err)
	}

	if summary.Interrupted {
		ui.Warning("Session %s interrupted, resume with: qacheck resume %s", sess.ID, shortID(sess.ID))
	}
	ui.SessionSummary(summary.Session)
	return nil
}

func checkInitRun(cmd *cobra.Command, args []string) error {
	outputDir := checkDir
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}

	ids, err := selector.Discover(outputDir)
	if err != nil {
		return fmt.Errorf("discover problems: %w", err)
	}
	if len(ids) == 0 {
		ui.Warning("No problems found in %s", outputDir)
		return nil
	}
	selector.SortNatural(ids)

	if len(checkInitRange) > 0 {
		if len(checkInitRange) != 2 {
			return fmt.Errorf("--range takes exactly two values, e.g. --range 1,50")
		}
		from, to := checkInitRange[0], checkInitRange[1]
		if from < 1 || to < from {
			return fmt.Errorf("invalid range %d,%d", from, to)
		}
		if from > len(ids) {
			ui.Warning("Range starts past the last problem (%d available)", len(ids))
			return nil
		}
		if to > len(ids) {
			to = len(ids)
		}
		ids = ids[from-1 : to]
	}

	st, err := getStore()
	if err != nil {
		return err
	}

	inserted, err := st.InitChecks(cmd.Context(), outputDir, ids, checkInitReset)
	if err != nil {
		return fmt.Errorf("initialize checks: %w", err)
	}
	ui.Success("Initialized %d problem(s) for checking in %s", inserted, outputDir)

	stats, err := st.CheckStats(cmd.Context(), outputDir)
	if err != nil {
		return fmt.Errorf("check stats: %w", err)
	}
	printCheckStats(stats)
	ui.Info("Run \"qacheck check continue\" to start checking")
	return nil
}

func checkContinueRun(cmd *cobra.Command, args []string) error {
	outputDir := checkDir
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}

	st, err := getStore()
	if err != nil {
		return err
	}

	pending, err := st.PendingChecks(cmd.Context(), outputDir, checkContinueCount)
	if err != nil {
		return fmt.Errorf("pending checks: %w", err)
	}

	stats, err := st.CheckStats(cmd.Context(), outputDir)
	if err != nil {
		return fmt.Errorf("check stats: %w", err)
	}

	if len(pending) == 0 {
		if stats.Total == 0 {
			ui.Warning("No problems initialized for %s", outputDir)
			ui.Info("Run \"qacheck check init\" first")
			return nil
		}
		ui.Success("All problems in %s have been checked", outputDir)
		printCheckStats(stats)
		return nil
	}

	ui.Info("Progress: %d/%d checked (%d%%)", stats.Done(), stats.Total, percent(stats.Done(), stats.Total))

	if err := runReviewSession(cmd, outputDir, pending, true); err != nil {
		return err
	}

	final, err := st.CheckStats(cmd.Context(), outputDir)
	if err != nil {
		return fmt.Errorf("check stats: %w", err)
	}
	if final.Pending > 0 {
		ui.Info("%d problem(s) remaining, run \"qacheck check continue\" to keep going", final.Pending)
	} else {
		ui.Success("All problems checked")
	}
	return nil
}

func checkStatusRun(cmd *cobra.Command, args []string) error {
	outputDir := checkDir
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}

	st, err := getStore()
	if err != nil {
		return err
	}

	stats, err := st.CheckStats(cmd.Context(), outputDir)
	if err != nil {
		return fmt.Errorf("check stats: %w", err)
	}
	if stats.Total == 0 {
		ui.Warning("No problems initialized for %s", outputDir)
		ui.Info("Run \"qacheck check init\" first")
		return nil
	}

	ui.Info("Check progress for %s: %d/%d (%d%%)", outputDir, stats.Done(), stats.Total, percent(stats.Done(), stats.Total))
	printCheckStats(stats)

	if checkStatusShow == "" {
		if stats.Pending > 0 {
			ui.Info("Run \"qacheck check continue\" to check pending problems")
		}
		return nil
	}

	statuses := []models.CheckStatus{}
	if checkStatusShow == "all" {
		statuses = models.AllCheckStatuses
	} else {
		status, ok := models.ParseCheckStatus(checkStatusShow)
		if !ok {
			return fmt.Errorf("unknown status %q (want pending, passed, failed, checked, skipped, or all)", checkStatusShow)
		}
		statuses = append(statuses, status)
	}

	for _, status := range statuses {
		ids, err := st.ChecksByStatus(cmd.Context(), outputDir, status)
		if err != nil {
			return fmt.Errorf("list %s problems: %w", status, err)
		}
		if len(ids) == 0 {
			if checkStatusShow != "all" {
				ui.Info("No %s problems", status)
			}
			continue
		}
		ui.Info("%s (%d):", status, len(ids))
		for _, id := range ids {
			fmt.Fprintf(ui.Out, "  %s\n", id)
		}
	}
	return nil
}

func printCheckStats(stats *models.CheckStats) {
	table := ui.Table([]string{"Status", "Count"})
	table.Append([]string{"Pending", fmt.Sprintf("%d", stats.Pending)})
	table.Append([]string{"Passed", fmt.Sprintf("%d", stats.Passed)})
	table.Append([]string{"Failed", fmt.Sprintf("%d", stats.Failed)})
	table.Append([]string{"Checked", fmt.Sprintf("%d", stats.Checked)})
	table.Append([]string{"Skipped", fmt.Sprintf("%d", stats.Skipped)})
	table.Append([]string{"Total", fmt.Sprintf("%d", stats.Total)})
	table.Render()
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return done * 100 / total
}

// shortID returns an abbreviated session ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
