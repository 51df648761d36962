package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/viper"
)

// shellEditor opens files in the user's configured editor.
type shellEditor struct{}

func newShellEditor() *shellEditor {
	return &shellEditor{}
}

func (e *shellEditor) Edit(path string) error {
	editor := viper.GetString("editor")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("no editor configured (set editor in config or $EDITOR)")
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %s: %w", editor, err)
	}
	return nil
}
