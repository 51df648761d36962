package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return NewServer(st), st
}

// callToolReq builds a CallToolRequest with the given arguments.
func callToolReq(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{Arguments: args},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "failed to parse result JSON: %s", text)
}

func seedSuggestion(t *testing.T, st store.Store, problemID, filePath string, status models.SuggestionStatus) int64 {
	t.Helper()
	id, err := st.SaveSuggestion(context.Background(), models.Suggestion{
		IssueType:        models.IssueSolutionError,
		FilePath:         filePath,
		Description:      "wrong velocity",
		Reasoning:        "statement gives 7 m/s",
		Confidence:       0.9,
		OriginalContent:  "v = 5 m/s",
		SuggestedContent: "v = 7 m/s",
		Diff:             "-v = 5 m/s\n+v = 7 m/s\n",
	}, problemID, status, "")
	require.NoError(t, err)
	return id
}

func TestMCPServerRegisters(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
}

func TestHandleGetVersions(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	seedSuggestion(t, st, "problem_7", "solution.tex", models.StatusApproved)
	seedSuggestion(t, st, "problem_7", "solution.tex", models.StatusRejected)
	seedSuggestion(t, st, "problem_8", "solution.tex", models.StatusApproved)

	t.Run("filter by problem", func(t *testing.T) {
		result, err := srv.handleGetVersions(ctx, callToolReq(map[string]any{"problem_id": "problem_7"}))
		require.NoError(t, err)

		var out []suggestionOut
		resultJSON(t, result, &out)
		require.Len(t, out, 2)
		assert.Equal(t, 1, out[0].Version)
		assert.Equal(t, 2, out[1].Version)
		// List output omits bulky fields.
		assert.Empty(t, out[0].Diff)
	})

	t.Run("no filter returns everything", func(t *testing.T) {
		result, err := srv.handleGetVersions(ctx, callToolReq(nil))
		require.NoError(t, err)

		var out []suggestionOut
		resultJSON(t, result, &out)
		assert.Len(t, out, 3)
	})
}

func TestHandleGetSuggestion(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	id := seedSuggestion(t, st, "problem_7", "solution.tex", models.StatusApproved)

	t.Run("found with full content", func(t *testing.T) {
		result, err := srv.handleGetSuggestion(ctx, callToolReq(map[string]any{"id": float64(id)}))
		require.NoError(t, err)

		var out suggestionOut
		resultJSON(t, result, &out)
		assert.Equal(t, id, out.ID)
		assert.Equal(t, "v = 5 m/s", out.OriginalContent)
		assert.NotEmpty(t, out.Diff)
	})

	t.Run("missing id parameter", func(t *testing.T) {
		result, err := srv.handleGetSuggestion(ctx, callToolReq(nil))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("unknown id", func(t *testing.T) {
		result, err := srv.handleGetSuggestion(ctx, callToolReq(map[string]any{"id": float64(99999)}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandleGetStats(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	seedSuggestion(t, st, "problem_7", "solution.tex", models.StatusApproved)
	seedSuggestion(t, st, "problem_7", "statement.tex", models.StatusRejected)

	result, err := srv.handleGetStats(ctx, callToolReq(nil))
	require.NoError(t, err)

	var stats models.ReviewStats
	resultJSON(t, result, &stats)
	assert.Equal(t, 2, stats.TotalSuggestions)
	assert.Equal(t, 1, stats.ApprovedCount)
	assert.Equal(t, 1, stats.RejectedCount)
}

func TestHandleListSessions(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	a, err := st.CreateSession(ctx)
	require.NoError(t, err)
	_, err = st.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, st.CompleteSession(ctx, a.ID))

	t.Run("all sessions", func(t *testing.T) {
		result, err := srv.handleListSessions(ctx, callToolReq(nil))
		require.NoError(t, err)

		var sessions []*models.ReviewSession
		resultJSON(t, result, &sessions)
		assert.Len(t, sessions, 2)
	})

	t.Run("incomplete only", func(t *testing.T) {
		result, err := srv.handleListSessions(ctx, callToolReq(map[string]any{"incomplete_only": true}))
		require.NoError(t, err)

		var sessions []*models.ReviewSession
		resultJSON(t, result, &sessions)
		require.Len(t, sessions, 1)
		assert.Nil(t, sessions[0].CompletedAt)
	})
}
