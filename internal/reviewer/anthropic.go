package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/qacheck/qacheck/internal/diff"
	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/selector"
)

// rawSuggestion is a suggestion as the model returns it, before issue-type
// normalization and diff generation.
type rawSuggestion struct {
	IssueType        string  `json:"issue_type"`
	FilePath         string  `json:"file_path"`
	Description      string  `json:"description"`
	Reasoning        string  `json:"reasoning"`
	Confidence       float64 `json:"confidence"`
	OriginalContent  string  `json:"original_content"`
	SuggestedContent string  `json:"suggested_content"`
}

type rawResult struct {
	Passed      bool            `json:"passed"`
	Summary     string          `json:"summary"`
	Suggestions []rawSuggestion `json:"suggestions"`
}

// Client reviews problems through the Anthropic API. All configuration is
// passed in at construction; there is no ambient client state.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
	retry RetryConfig
}

// NewClient creates a reviewer backed by the Anthropic API.
func NewClient(apiKey, model string, retry RetryConfig) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
		retry: retry,
	}
}

// Review runs one review pass over the problem, retrying transient backend
// failures with exponential backoff. A response that fails shape validation
// is not retried.
func (c *Client) Review(ctx context.Context, pc *selector.ProblemContext) (*models.ReviewResult, error) {
	system, user := buildPrompt(promptContext{
		ProblemID:    pc.ProblemID,
		DocPath:      pc.DocPath,
		DocContent:   pc.DocContent,
		Variants:     pc.Variants,
		VariantPaths: pc.VariantPaths,
		HasImage:     pc.ImagePath != "",
	})

	return runWithRetry(ctx, c.retry, pc.ProblemID, func() (*models.ReviewResult, error) {
		return c.reviewOnce(ctx, pc.ProblemID, system, user)
	})
}

func (c *Client) reviewOnce(ctx context.Context, problemID, system, user string) (*models.ReviewResult, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("anthropic API call: %w", err))
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, &Error{Kind: ErrInvalidResponse, Retryable: false,
			Err: fmt.Errorf("no text content in API response")}
	}

	raw, err := parseResponse(text)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidResponse, Retryable: false, Err: err}
	}

	return buildResult(problemID, raw)
}

// parseResponse decodes the model's JSON, tolerating markdown fencing.
func parseResponse(text string) (*rawResult, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse review response as JSON: %w", err)
	}
	return &raw, nil
}

// buildResult converts raw suggestions into validated Suggestions with
// generated diffs and enforces that passed matches the suggestion count.
func buildResult(problemID string, raw *rawResult) (*models.ReviewResult, error) {
	result := &models.ReviewResult{
		ProblemID: problemID,
		Summary:   raw.Summary,
	}

	for i, rs := range raw.Suggestions {
		sug := models.Suggestion{
			IssueType:        models.ParseIssueType(rs.IssueType),
			FilePath:         rs.FilePath,
			Description:      rs.Description,
			Reasoning:        rs.Reasoning,
			Confidence:       rs.Confidence,
			OriginalContent:  rs.OriginalContent,
			SuggestedContent: rs.SuggestedContent,
			Diff:             diff.Generate(rs.OriginalContent, rs.SuggestedContent, rs.FilePath, diff.DefaultContextLines),
		}
		if err := sug.Validate(); err != nil {
			return nil, &Error{Kind: ErrInvalidResponse, Retryable: false,
				Err: fmt.Errorf("suggestion %d: %w", i+1, err)}
		}
		result.Suggestions = append(result.Suggestions, sug)
	}

	// passed is derived, not trusted: no suggestions means passed.
	result.Passed = len(result.Suggestions) == 0
	return result, nil
}
