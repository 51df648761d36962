package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configTemplate = `# qacheck configuration
#
# Values can also be set via QACHECK_* environment variables, e.g.
# QACHECK_OUTPUT_DIR or QACHECK_ANTHROPIC_MODEL.

# Path to the SQLite database holding suggestions and sessions.
# db_path: ~/.config/qacheck/qacheck.db

# Directory containing generated problems to review.
# output_dir: agentic

# Editor used by the review loop's edit action ($EDITOR if unset).
# editor: ""

anthropic:
  # API key for the reviewer (ANTHROPIC_API_KEY env var also works).
  # api_key: ""

  # Model used for reviews.
  # model: claude-sonnet-4-5-20250929

review:
  # Retry policy for reviewer API calls.
  # max_retries: 3
  # base_delay: 1s
  # max_delay: 30s
`

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	RunE:  configInitRun,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration and where each value comes from",
	RunE:  configShowRun,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in your editor",
	RunE:  configEditRun,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".config", "qacheck", "config.yaml"), nil
}

func configInitRun(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Wrote %s", path)
	return nil
}

func configShowRun(cmd *cobra.Command, args []string) error {
	keys := []string{
		"db_path",
		"output_dir",
		"editor",
		"anthropic.api_key",
		"anthropic.model",
		"review.max_retries",
		"review.base_delay",
		"review.max_delay",
	}

	fileKeys := map[string]bool{}
	if used := viper.ConfigFileUsed(); used != "" {
		if data, err := os.ReadFile(used); err == nil {
			var raw map[string]any
			if yaml.Unmarshal(data, &raw) == nil {
				flattenKeys("", raw, fileKeys)
			}
		}
	}

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, key := range keys {
		value := fmt.Sprintf("%v", viper.Get(key))
		if key == "anthropic.api_key" && value != "" {
			value = redact(value)
		}
		table.Append([]string{key, value, detectSource(key, fileKeys)})
	}
	table.Render()

	if used := viper.ConfigFileUsed(); used != "" {
		ui.Info("Config file: %s", used)
	} else {
		ui.Info("No config file found (run: qacheck config init)")
	}
	return nil
}

func configEditRun(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s does not exist (run: qacheck config init)", path)
	}
	return newShellEditor().Edit(path)
}

// detectSource reports where a config value comes from: environment,
// config file, or built-in default.
func detectSource(key string, fileKeys map[string]bool) string {
	envKey := "QACHECK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if _, ok := os.LookupEnv(envKey); ok {
		return "env"
	}
	if fileKeys[key] {
		return "file"
	}
	return "default"
}

// flattenKeys records every dotted key path present in a parsed YAML map.
func flattenKeys(prefix string, m map[string]any, out map[string]bool) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenKeys(key, nested, out)
			continue
		}
		out[key] = true
	}
}

func redact(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
