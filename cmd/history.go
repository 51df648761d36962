package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qacheck/qacheck/internal/output"
	"github.com/qacheck/qacheck/internal/store"
)

var (
	historyProblem string
	historyFile    string
	historyLimit   int
	historyExport  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded suggestion versions",
	Long: `List recorded suggestions with their per-file version numbers,
optionally filtered by problem or file. Use --export to write the full
records (including file contents and diffs) to a YAML file.`,
	RunE: historyRun,
}

func init() {
	historyCmd.Flags().StringVar(&historyProblem, "problem", "", "Filter by problem ID")
	historyCmd.Flags().StringVar(&historyFile, "file", "", "Filter by file path")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Limit number of rows (0 = all)")
	historyCmd.Flags().StringVar(&historyExport, "export", "", "Write full records to a YAML file")
	rootCmd.AddCommand(historyCmd)
}

func historyRun(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return err
	}

	versions, err := st.GetVersions(cmd.Context(), store.VersionFilter{
		ProblemID: historyProblem,
		FilePath:  historyFile,
		Limit:     historyLimit,
	})
	if err != nil {
		return fmt.Errorf("get versions: %w", err)
	}

	if len(versions) == 0 {
		ui.Info("No recorded suggestions")
		return nil
	}

	if historyExport != "" {
		data, err := yaml.Marshal(versions)
		if err != nil {
			return fmt.Errorf("marshal history: %w", err)
		}
		if err := os.WriteFile(historyExport, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		ui.Success("Exported %d record(s) to %s", len(versions), historyExport)
		return nil
	}

	table := ui.Table([]string{"ID", "Problem", "File", "Ver", "Type", "Conf", "Status", "Created"})
	for _, v := range versions {
		table.Append([]string{
			fmt.Sprintf("%d", v.ID),
			v.ProblemID,
			v.FilePath,
			fmt.Sprintf("%d", v.Version),
			string(v.IssueType),
			output.ConfidenceColor(v.Confidence),
			output.StatusColor(v.Status),
			v.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}
