package reviewer

import (
	"fmt"
	"sort"
	"strings"
)

// promptContext is the subset of a problem context the prompt needs.
type promptContext struct {
	ProblemID    string
	DocPath      string
	DocContent   string
	Variants     map[string]string
	VariantPaths map[string]string
	HasImage     bool
}

// buildPrompt constructs the system and user prompts for a QA review pass.
func buildPrompt(pc promptContext) (system string, user string) {
	system = `You are a meticulous QA reviewer for generated physics problems written in LaTeX. You check a problem statement, its worked solution, and any variants for correctness and consistency. Return ONLY a JSON object with these fields:
- "passed": boolean, true only when you found no issues at all
- "summary": one or two sentences summarizing the review
- "suggestions": array of objects, empty when passed, each with:
  - "issue_type": one of "syntax-error", "domain-error", "solution-error", "variant-inconsistency", "formatting", "other"
  - "file_path": the path of the file containing the issue, exactly as given in the input
  - "description": brief description of the issue
  - "reasoning": detailed explanation of the issue and the fix
  - "confidence": number between 0.0 and 1.0
  - "original_content": the problematic lines, verbatim from the file
  - "suggested_content": the corrected lines

Rules:
- "original_content" must be copied exactly from the input so the edit can be located; include a line or two of surrounding context when the change is short
- Each suggestion targets exactly one file
- Flag physics mistakes (wrong formula, wrong units, impossible values) as "domain-error" and incorrect worked solutions as "solution-error"
- Flag variants that contradict the primary problem as "variant-inconsistency"
- Do not rewrite style; only propose changes that fix real issues
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Review problem %s.\n\n", pc.ProblemID)
	fmt.Fprintf(&sb, "Primary document (%s):\n%s\n", pc.DocPath, pc.DocContent)

	if len(pc.Variants) > 0 {
		kinds := make([]string, 0, len(pc.Variants))
		for kind := range pc.Variants {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&sb, "\nVariant %q (%s):\n%s\n", kind, pc.VariantPaths[kind], pc.Variants[kind])
		}
	}

	if pc.HasImage {
		sb.WriteString("\nA source image exists for this problem; the LaTeX was transcribed from it.\n")
	}

	user = sb.String()
	return
}
