package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/qacheck/qacheck/internal/models"
)

// UI provides colored output and respects verbose mode.
type UI struct {
	Verbose bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	dim           = color.New(color.Faint).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// Dim returns a faint string.
func Dim(s string) string { return dim(s) }

// StatusColor returns the string colored by suggestion status.
func StatusColor(status models.SuggestionStatus) string {
	switch status {
	case models.StatusApproved:
		return green(string(status))
	case models.StatusRejected:
		return red(string(status))
	case models.StatusPending:
		return yellow(string(status))
	default:
		return string(status)
	}
}

// ConfidenceColor renders a confidence score colored by how sure the
// reviewer was.
func ConfidenceColor(c float64) string {
	s := fmt.Sprintf("%.2f", c)
	switch {
	case c >= 0.8:
		return green(s)
	case c >= 0.5:
		return yellow(s)
	default:
		return red(s)
	}
}

// Diff colorizes a unified diff line by line: additions green, removals
// red, hunk headers cyan.
func Diff(diffText string) string {
	lines := strings.Split(diffText, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = dim(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = cyan(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = green(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

// Suggestion renders one suggestion for review: metadata, reasoning, and
// the colorized diff.
func (u *UI) Suggestion(sug *models.Suggestion, index, total int) {
	fmt.Fprintf(u.Out, "\n%s\n", cyan(fmt.Sprintf("Suggestion %d/%d", index, total)))
	fmt.Fprintf(u.Out, "  File:       %s\n", sug.FilePath)
	fmt.Fprintf(u.Out, "  Issue:      %s\n", string(sug.IssueType))
	fmt.Fprintf(u.Out, "  Confidence: %s\n", ConfidenceColor(sug.Confidence))
	fmt.Fprintf(u.Out, "  %s\n", sug.Description)
	if sug.Reasoning != "" {
		fmt.Fprintf(u.Out, "  %s\n", dim(sug.Reasoning))
	}
	if sug.Diff != "" {
		fmt.Fprintf(u.Out, "\n%s\n", Diff(sug.Diff))
	}
}

// SessionSummary renders the final counters of a review session.
func (u *UI) SessionSummary(session *models.ReviewSession) {
	fmt.Fprintf(u.Out, "\n%s\n", cyan("Session summary"))
	fmt.Fprintf(u.Out, "  Problems reviewed: %d\n", session.ProblemsReviewed)
	fmt.Fprintf(u.Out, "  Suggestions:       %d\n", session.SuggestionsMade)
	fmt.Fprintf(u.Out, "  Approved:          %s\n", green(fmt.Sprintf("%d", session.ApprovedCount)))
	fmt.Fprintf(u.Out, "  Rejected:          %s\n", red(fmt.Sprintf("%d", session.RejectedCount)))
	fmt.Fprintf(u.Out, "  Skipped:           %s\n", yellow(fmt.Sprintf("%d", session.SkippedCount)))
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
