package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/output"
	"github.com/qacheck/qacheck/internal/session"
)

// terminalPrompter drives the interactive review loop on stdin/stdout.
type terminalPrompter struct {
	ui *output.UI
	in *bufio.Reader
}

func newTerminalPrompter(ui *output.UI) *terminalPrompter {
	return &terminalPrompter{ui: ui, in: bufio.NewReader(os.Stdin)}
}

func (p *terminalPrompter) StartProblem(problemID string, index, total int) {
	fmt.Fprintln(p.ui.Out)
	p.ui.Info("[%d/%d] Reviewing %s", index, total, problemID)
}

func (p *terminalPrompter) ShowResult(result *models.ReviewResult) {
	if result.Passed {
		p.ui.Success("%s passed review", result.ProblemID)
		if result.Summary != "" {
			fmt.Fprintf(p.ui.Out, "  %s\n", result.Summary)
		}
		return
	}

	p.ui.Warning("%s: %d suggestion(s)", result.ProblemID, len(result.Suggestions))
	if result.Summary != "" {
		fmt.Fprintf(p.ui.Out, "  %s\n", result.Summary)
	}
}

func (p *terminalPrompter) Decide(sug *models.Suggestion, index, total int) (session.Action, error) {
	p.ui.Suggestion(sug, index, total)

	for {
		fmt.Fprintf(p.ui.Out, "\n  [a]pprove / [r]eject / [s]kip / [e]dit / [q]uit: ")

		line, err := p.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return session.ActionQuit, nil
			}
			return session.ActionSkip, fmt.Errorf("read input: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "approve", "y", "yes":
			return session.ActionApprove, nil
		case "r", "reject", "n", "no":
			return session.ActionReject, nil
		case "s", "skip", "":
			return session.ActionSkip, nil
		case "e", "edit":
			return session.ActionEdit, nil
		case "q", "quit":
			return session.ActionQuit, nil
		default:
			p.ui.Warning("Unrecognized choice %q", strings.TrimSpace(line))
		}
	}
}

func (p *terminalPrompter) Notify(format string, args ...any) {
	p.ui.Warning(format, args...)
}
