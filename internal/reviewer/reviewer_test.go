package reviewer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qacheck/qacheck/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{"rate limit", errors.New("429 rate limit exceeded"), ErrRateLimit, true},
		{"timeout", errors.New("request timed out"), ErrTimeout, true},
		{"parse failure", errors.New("parse review response as JSON: unexpected token"), ErrInvalidResponse, false},
		{"server error", errors.New("502 bad gateway"), ErrAPI, true},
		{"connection refused", errors.New("connection refused"), ErrAPI, true},
		{"unknown", errors.New("something odd"), ErrUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestRunWithRetry(t *testing.T) {
	ctx := context.Background()
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond}

	t.Run("non-retryable error stops after one attempt", func(t *testing.T) {
		calls := 0
		_, err := runWithRetry(ctx, cfg, "problem_3", func() (*models.ReviewResult, error) {
			calls++
			return nil, &Error{Kind: ErrInvalidResponse, Retryable: false, Err: errors.New("bad shape")}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Contains(t, err.Error(), "after 1 attempt(s)")
	})

	t.Run("retryable error exhausts the budget", func(t *testing.T) {
		calls := 0
		_, err := runWithRetry(ctx, cfg, "problem_3", func() (*models.ReviewResult, error) {
			calls++
			return nil, &Error{Kind: ErrAPI, Retryable: true, Err: errors.New("502 bad gateway")}
		})
		require.Error(t, err)
		assert.Equal(t, cfg.MaxRetries+1, calls)
		assert.Contains(t, err.Error(), "after 4 attempt(s)")

		var reviewErr *Error
		require.ErrorAs(t, err, &reviewErr)
		assert.Equal(t, ErrAPI, reviewErr.Kind)
	})

	t.Run("success after transient failure", func(t *testing.T) {
		calls := 0
		want := &models.ReviewResult{ProblemID: "problem_3", Passed: true}
		got, err := runWithRetry(ctx, cfg, "problem_3", func() (*models.ReviewResult, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			return want, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Same(t, want, got)
	})

	t.Run("cancelled context aborts between attempts", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runWithRetry(cancelled, cfg, "problem_3", func() (*models.ReviewResult, error) {
			return nil, errors.New("connection reset")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBackoffDelay(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	t.Run("grows with attempt within jitter bounds", func(t *testing.T) {
		for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
			for i := 0; i < 20; i++ {
				d := backoffDelay(attempt, cfg)
				assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.75))
				assert.LessOrEqual(t, d, time.Duration(float64(base)*1.25))
			}
		}
	})

	t.Run("capped at max delay", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			d := backoffDelay(10, cfg)
			assert.LessOrEqual(t, d, cfg.MaxDelay)
		}
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("bare JSON", func(t *testing.T) {
		raw, err := parseResponse(`{"passed": true, "summary": "all good", "suggestions": []}`)
		require.NoError(t, err)
		assert.True(t, raw.Passed)
		assert.Equal(t, "all good", raw.Summary)
		assert.Empty(t, raw.Suggestions)
	})

	t.Run("fenced JSON", func(t *testing.T) {
		raw, err := parseResponse("```json\n{\"passed\": false, \"summary\": \"issues\", \"suggestions\": []}\n```")
		require.NoError(t, err)
		assert.False(t, raw.Passed)
		assert.Equal(t, "issues", raw.Summary)
	})

	t.Run("fenced without language tag", func(t *testing.T) {
		raw, err := parseResponse("```\n{\"passed\": true}\n```")
		require.NoError(t, err)
		assert.True(t, raw.Passed)
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := parseResponse("I think the problem looks fine.")
		assert.Error(t, err)
	})
}

func TestBuildResult(t *testing.T) {
	t.Run("generates diff and parses issue type", func(t *testing.T) {
		raw := &rawResult{
			Passed:  false,
			Summary: "solution uses the wrong velocity",
			Suggestions: []rawSuggestion{{
				IssueType:        "solution-error",
				FilePath:         "problem_7/solution.tex",
				Description:      "wrong velocity",
				Reasoning:        "statement says 7 m/s",
				Confidence:       0.9,
				OriginalContent:  "v = 5 m/s",
				SuggestedContent: "v = 7 m/s",
			}},
		}

		result, err := buildResult("problem_7", raw)
		require.NoError(t, err)

		assert.Equal(t, "problem_7", result.ProblemID)
		assert.False(t, result.Passed)
		require.Len(t, result.Suggestions, 1)

		sug := result.Suggestions[0]
		assert.Equal(t, models.IssueSolutionError, sug.IssueType)
		assert.Contains(t, sug.Diff, "-v = 5 m/s")
		assert.Contains(t, sug.Diff, "+v = 7 m/s")
	})

	t.Run("unknown issue type maps to other", func(t *testing.T) {
		raw := &rawResult{Suggestions: []rawSuggestion{{
			IssueType:        "made-up-kind",
			FilePath:         "f.tex",
			Confidence:       0.5,
			OriginalContent:  "a",
			SuggestedContent: "b",
		}}}

		result, err := buildResult("p", raw)
		require.NoError(t, err)
		assert.Equal(t, models.IssueOther, result.Suggestions[0].IssueType)
	})

	t.Run("passed is derived from suggestion count", func(t *testing.T) {
		// The model claims failure but offers no suggestions.
		result, err := buildResult("p", &rawResult{Passed: false})
		require.NoError(t, err)
		assert.True(t, result.Passed)
	})

	t.Run("invalid suggestion is rejected without retry", func(t *testing.T) {
		raw := &rawResult{Suggestions: []rawSuggestion{{
			IssueType:        "formatting",
			FilePath:         "", // missing target file
			Confidence:       0.5,
			OriginalContent:  "a",
			SuggestedContent: "b",
		}}}

		_, err := buildResult("p", raw)
		require.Error(t, err)

		var reviewErr *Error
		require.ErrorAs(t, err, &reviewErr)
		assert.Equal(t, ErrInvalidResponse, reviewErr.Kind)
		assert.False(t, reviewErr.Retryable)
	})

	t.Run("out of range confidence is rejected", func(t *testing.T) {
		raw := &rawResult{Suggestions: []rawSuggestion{{
			IssueType:        "formatting",
			FilePath:         "f.tex",
			Confidence:       1.5,
			OriginalContent:  "a",
			SuggestedContent: "b",
		}}}

		_, err := buildResult("p", raw)
		assert.Error(t, err)
	})
}

func TestBuildPrompt(t *testing.T) {
	pc := promptContext{
		ProblemID:  "problem_7",
		DocPath:    "agentic/scans/problem_7.tex",
		DocContent: "\\section{Problem}\nA cart moves at 7 m/s.",
		Variants: map[string]string{
			"hard": "hard variant body",
			"easy": "easy variant body",
		},
		VariantPaths: map[string]string{
			"hard": "agentic/variants/hard/problem_7.tex",
			"easy": "agentic/variants/easy/problem_7.tex",
		},
		HasImage: true,
	}

	system, user := buildPrompt(pc)

	assert.Contains(t, system, "JSON")
	assert.Contains(t, system, "issue_type")
	assert.Contains(t, system, "confidence")

	assert.Contains(t, user, "problem_7")
	assert.Contains(t, user, "agentic/scans/problem_7.tex")
	assert.Contains(t, user, "A cart moves at 7 m/s.")
	assert.Contains(t, user, "hard variant body")
	assert.Contains(t, user, "easy variant body")
	assert.Contains(t, user, "source image")

	// Variants are emitted in sorted order for prompt stability.
	assert.Less(t, strings.Index(user, "easy variant body"), strings.Index(user, "hard variant body"))
}
