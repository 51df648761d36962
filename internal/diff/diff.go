// Package diff generates, parses, and applies unified diffs over document
// content. Generation and parsing compose: Parse(Generate(a, b)) reconstructs
// the content covered by the emitted hunks.
package diff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultContextLines is the number of unchanged lines shown around each hunk.
const DefaultContextLines = 3

var (
	// ErrConflict means the target file no longer matches the content the
	// diff was generated against. The file is left untouched.
	ErrConflict = errors.New("diff conflict: file content does not match diff")

	// ErrNotFound means the target file does not exist.
	ErrNotFound = errors.New("file not found")
)

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

type lineOp struct {
	kind opKind
	text string
}

// Generate produces a unified diff from original to modified content. The
// label names the file in the ---/+++ headers. Identical inputs yield an
// empty string. Output is deterministic for identical inputs.
func Generate(original, modified, label string, contextLines int) string {
	if original == modified {
		return ""
	}
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}

	a := splitKeepEnds(original)
	b := splitKeepEnds(modified)
	ops := diffLines(a, b)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n", label)
	fmt.Fprintf(&sb, "+++ b/%s\n", label)

	for _, h := range groupHunks(ops, contextLines) {
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n", formatRange(h.aStart, h.aLen), formatRange(h.bStart, h.bLen))
		for _, op := range h.ops {
			switch op.kind {
			case opEqual:
				sb.WriteString(" " + op.text)
			case opDelete:
				sb.WriteString("-" + op.text)
			case opInsert:
				sb.WriteString("+" + op.text)
			}
		}
	}
	return sb.String()
}

// Parse reconstructs the original and modified content covered by a unified
// diff. The second return is false for an empty or whitespace-only diff.
func Parse(diffText string) (original, modified string, ok bool) {
	if strings.TrimSpace(diffText) == "" {
		return "", "", false
	}

	var origLines, modLines []string
	for _, line := range splitKeepEnds(diffText) {
		switch {
		// Header lines have a space after the marker; a removed line that
		// itself begins with "--" does not.
		case strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ "):
			continue
		case strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, " "):
			origLines = append(origLines, line[1:])
			modLines = append(modLines, line[1:])
		case strings.HasPrefix(line, "-"):
			origLines = append(origLines, line[1:])
		case strings.HasPrefix(line, "+"):
			modLines = append(modLines, line[1:])
		}
	}

	original = strings.TrimSuffix(strings.Join(origLines, ""), "\n")
	modified = strings.TrimSuffix(strings.Join(modLines, ""), "\n")
	return original, modified, true
}

// hunkPatch is one hunk's view of the file: the lines it expects to find
// and the lines that replace them.
type hunkPatch struct {
	original string
	modified string
}

// parseHunkContents splits a unified diff into per-hunk original and
// modified content. A diff with no @@ markers yields a single hunk. The
// slice is empty for an empty or whitespace-only diff.
func parseHunkContents(diffText string) []hunkPatch {
	if strings.TrimSpace(diffText) == "" {
		return nil
	}

	var (
		patches             []hunkPatch
		origLines, modLines []string
	)
	flush := func() {
		if len(origLines) == 0 && len(modLines) == 0 {
			return
		}
		patches = append(patches, hunkPatch{
			original: strings.TrimSuffix(strings.Join(origLines, ""), "\n"),
			modified: strings.TrimSuffix(strings.Join(modLines, ""), "\n"),
		})
		origLines, modLines = nil, nil
	}

	for _, line := range splitKeepEnds(diffText) {
		switch {
		// Header lines have a space after the marker; a removed line that
		// itself begins with "--" does not.
		case strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ "):
			continue
		case strings.HasPrefix(line, "@@"):
			flush()
		case strings.HasPrefix(line, " "):
			origLines = append(origLines, line[1:])
			modLines = append(modLines, line[1:])
		case strings.HasPrefix(line, "-"):
			origLines = append(origLines, line[1:])
		case strings.HasPrefix(line, "+"):
			modLines = append(modLines, line[1:])
		}
	}
	flush()
	return patches
}

// ApplyToContent applies a diff to in-memory content. Each hunk is located
// and replaced independently, so hunks separated by untouched lines do not
// have to be contiguous in the file. It returns ErrConflict when any hunk's
// recorded original cannot be located. An empty diff returns the content
// unchanged.
func ApplyToContent(content, diffText string) (string, error) {
	patches := parseHunkContents(diffText)
	if len(patches) == 0 {
		return content, nil
	}

	for _, p := range patches {
		patched, err := applyHunk(content, p)
		if err != nil {
			return "", err
		}
		content = patched
	}
	return content, nil
}

// applyHunk applies one hunk, preferring an exact substring match over a
// whitespace-tolerant line-window match.
func applyHunk(content string, p hunkPatch) (string, error) {
	expected := strings.TrimSpace(p.original)
	replacement := strings.TrimSpace(p.modified)

	if strings.Contains(content, expected) {
		return strings.Replace(content, expected, replacement, 1), nil
	}

	contentLines := strings.Split(content, "\n")
	expectedLines := strings.Split(expected, "\n")
	replacementLines := strings.Split(replacement, "\n")

	start := matchWindow(contentLines, expectedLines)
	if start < 0 {
		return "", ErrConflict
	}

	patched := make([]string, 0, len(contentLines)-len(expectedLines)+len(replacementLines))
	patched = append(patched, contentLines[:start]...)
	patched = append(patched, replacementLines...)
	patched = append(patched, contentLines[start+len(expectedLines):]...)
	return strings.Join(patched, "\n"), nil
}

// Apply patches the file at path with the given diff. On any failure the
// file is left byte-for-byte unchanged: the patched content is written to a
// temp file in the same directory and renamed over the original, so a
// partial write is never observable. A no-op diff succeeds without touching
// the file.
func Apply(path, diffText string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if strings.TrimSpace(diffText) == "" {
		return nil
	}

	content := string(raw)
	patched, err := ApplyToContent(content, diffText)
	if err != nil {
		return fmt.Errorf("apply to %s: %w", path, err)
	}
	if patched == content {
		return nil
	}

	return writeAtomic(path, patched)
}

// writeAtomic replaces path's content via a temp file and rename.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode())
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// matchWindow finds the first index where needle matches haystack line by
// line, comparing with surrounding whitespace stripped. Returns -1 when no
// window matches.
func matchWindow(haystack, needle []string) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		matched := true
		for j := range needle {
			if strings.TrimSpace(haystack[i+j]) != strings.TrimSpace(needle[j]) {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

// splitKeepEnds splits s into lines, each retaining its trailing newline.
// The final line gains a newline if it lacks one so diff lines stay aligned.
func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	lines := strings.SplitAfter(s, "\n")
	// SplitAfter leaves a trailing empty element.
	return lines[:len(lines)-1]
}

// diffLines computes a line-level edit script using longest-common-
// subsequence alignment. Equal runs are preserved so hunk grouping can
// carve out context.
func diffLines(a, b []string) []lineOp {
	n, m := len(a), len(b)
	// lcs[i][j] = LCS length of a[i:], b[j:]
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []lineOp
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, lineOp{opEqual, a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, lineOp{opDelete, a[i]})
			i++
		default:
			ops = append(ops, lineOp{opInsert, b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, lineOp{opDelete, a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, lineOp{opInsert, b[j]})
	}
	return ops
}

type hunk struct {
	aStart, aLen int
	bStart, bLen int
	ops          []lineOp
}

// groupHunks splits an edit script into hunks, keeping at most contextLines
// of unchanged lines on each side of a change and merging changes whose
// context overlaps.
func groupHunks(ops []lineOp, contextLines int) []hunk {
	var hunks []hunk

	aLine, bLine := 0, 0 // 0-based position in a and b
	i := 0
	for i < len(ops) {
		// Skip equal runs until the next change.
		if ops[i].kind == opEqual {
			aLine++
			bLine++
			i++
			continue
		}

		// Rewind to include leading context.
		start := i
		lead := 0
		for start > 0 && ops[start-1].kind == opEqual && lead < contextLines {
			start--
			lead++
		}

		h := hunk{
			aStart: aLine - lead,
			bStart: bLine - lead,
		}

		// Consume ops until an equal run longer than 2*contextLines
		// separates this change from the next, or ops run out.
		end := i
		aPos, bPos := aLine, bLine
		for end < len(ops) {
			if ops[end].kind == opEqual {
				runEnd := end
				for runEnd < len(ops) && ops[runEnd].kind == opEqual {
					runEnd++
				}
				if runEnd == len(ops) || runEnd-end > 2*contextLines {
					// Trailing context only.
					trail := runEnd - end
					if trail > contextLines {
						trail = contextLines
					}
					for k := 0; k < trail; k++ {
						h.ops = append(h.ops, ops[end+k])
					}
					aPos += trail
					bPos += trail
					end += trail
					break
				}
				// Short equal run joins adjacent changes.
				for ; end < runEnd; end++ {
					h.ops = append(h.ops, ops[end])
					aPos++
					bPos++
				}
				continue
			}
			switch ops[end].kind {
			case opDelete:
				aPos++
			case opInsert:
				bPos++
			}
			h.ops = append(h.ops, ops[end])
			end++
		}

		// Prepend the leading context.
		if lead > 0 {
			leadOps := make([]lineOp, 0, lead+len(h.ops))
			leadOps = append(leadOps, ops[start:i]...)
			h.ops = append(leadOps, h.ops...)
		}

		h.aLen = aPos - h.aStart
		h.bLen = bPos - h.bStart
		hunks = append(hunks, h)

		// Advance past everything consumed.
		for ; i < end; i++ {
			switch ops[i].kind {
			case opEqual:
				aLine++
				bLine++
			case opDelete:
				aLine++
			case opInsert:
				bLine++
			}
		}
	}
	return hunks
}

// formatRange renders a hunk range the way unified diff headers expect:
// "start,length" with a 1-based start, collapsing to "start" for
// single-line ranges and using the 0-based position for empty ones.
func formatRange(start, length int) string {
	if length == 1 {
		return fmt.Sprintf("%d", start+1)
	}
	if length == 0 {
		return fmt.Sprintf("%d,0", start)
	}
	return fmt.Sprintf("%d,%d", start+1, length)
}
