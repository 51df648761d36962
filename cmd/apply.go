package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qacheck/qacheck/internal/diff"
	"github.com/qacheck/qacheck/internal/store"
)

var (
	applyDir  string
	applyEdit bool
)

var applyCmd = &cobra.Command{
	Use:   "apply ID",
	Short: "Apply a recorded suggestion's diff to its file",
	Long: `Apply the diff of a recorded suggestion to the file it targets.
Useful for re-applying a rejected suggestion after reconsidering, or for
replaying an approved edit on a fresh copy of the files.

The recorded suggestion itself is not modified; use the status in
"qacheck history" to track decisions.`,
	Args: cobra.ExactArgs(1),
	RunE: applyRun,
}

func init() {
	applyCmd.Flags().StringVar(&applyDir, "dir", "", "Output directory the file lives in (default from config)")
	applyCmd.Flags().BoolVarP(&applyEdit, "edit", "e", false, "Open the file in your editor after applying")
	rootCmd.AddCommand(applyCmd)
}

func applyRun(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid suggestion ID %q", args[0])
	}

	st, err := getStore()
	if err != nil {
		return err
	}

	sug, err := st.GetSuggestion(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no suggestion with ID %d", id)
		}
		return fmt.Errorf("get suggestion: %w", err)
	}

	if sug.Diff == "" {
		ui.Info("Suggestion %d has no diff to apply", id)
		return nil
	}

	outputDir := applyDir
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}

	target := sug.FilePath
	if _, statErr := os.Stat(target); statErr != nil {
		target = filepath.Join(outputDir, sug.FilePath)
	}
	if _, statErr := os.Stat(target); statErr != nil {
		return fmt.Errorf("file %s not found (tried %s)", sug.FilePath, target)
	}

	if err := diff.Apply(target, sug.Diff); err != nil {
		if errors.Is(err, diff.ErrConflict) {
			return fmt.Errorf("diff no longer applies to %s (file changed since review)", target)
		}
		return fmt.Errorf("apply diff: %w", err)
	}

	ui.Success("Applied suggestion %d to %s", id, target)

	if applyEdit {
		if err := newShellEditor().Edit(target); err != nil {
			ui.Warning("Could not open editor: %v", err)
		}
	}
	return nil
}
