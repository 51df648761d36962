// Package mcp exposes the version store over the Model Context Protocol so
// external tooling can inspect review history without opening the database
// directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/store"
)

// Server wraps the version store and exposes it as MCP tools.
type Server struct {
	store store.Store
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store) *Server {
	return &Server{store: s}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("qacheck", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.getVersionsTool())
	srv.AddTool(s.getSuggestionTool())
	srv.AddTool(s.getStatsTool())
	srv.AddTool(s.listSessionsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// suggestionOut is the wire form of a stored suggestion. Full content and
// diff are included: the point of the tool is external inspection.
type suggestionOut struct {
	ID               int64   `json:"id"`
	Version          int     `json:"version"`
	ProblemID        string  `json:"problem_id"`
	FilePath         string  `json:"file_path"`
	IssueType        string  `json:"issue_type"`
	Description      string  `json:"description"`
	Confidence       float64 `json:"confidence"`
	Status           string  `json:"status"`
	SessionID        string  `json:"session_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
	Reasoning        string  `json:"reasoning,omitempty"`
	OriginalContent  string  `json:"original_content,omitempty"`
	SuggestedContent string  `json:"suggested_content,omitempty"`
	Diff             string  `json:"diff,omitempty"`
}

func toSuggestionOut(ss *models.StoredSuggestion, full bool) suggestionOut {
	out := suggestionOut{
		ID:          ss.ID,
		Version:     ss.Version,
		ProblemID:   ss.ProblemID,
		FilePath:    ss.FilePath,
		IssueType:   string(ss.IssueType),
		Description: ss.Description,
		Confidence:  ss.Confidence,
		Status:      string(ss.Status),
		SessionID:   ss.SessionID,
		CreatedAt:   ss.CreatedAt.Format(time.RFC3339),
	}
	if full {
		out.Reasoning = ss.Reasoning
		out.OriginalContent = ss.OriginalContent
		out.SuggestedContent = ss.SuggestedContent
		out.Diff = ss.Diff
	}
	return out
}

// qacheck_get_versions
func (s *Server) getVersionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qacheck_get_versions",
		mcp.WithDescription("List stored suggestions filtered by problem ID and/or file path, ordered by ascending version. Returns a JSON array."),
		mcp.WithString("problem_id", mcp.Description("Filter by problem identifier")),
		mcp.WithString("file_path", mcp.Description("Filter by target file path")),
	)
	return tool, s.handleGetVersions
}

func (s *Server) handleGetVersions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.VersionFilter{
		ProblemID: request.GetString("problem_id", ""),
		FilePath:  request.GetString("file_path", ""),
	}
	versions, err := s.store.GetVersions(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get versions: %v", err)), nil
	}

	out := make([]suggestionOut, len(versions))
	for i, ss := range versions {
		out[i] = toSuggestionOut(ss, false)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal versions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// qacheck_get_suggestion
func (s *Server) getSuggestionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qacheck_get_suggestion",
		mcp.WithDescription("Get one stored suggestion by ID, including reasoning, original/suggested content, and the unified diff."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Suggestion ID")),
	)
	return tool, s.handleGetSuggestion
}

func (s *Server) handleGetSuggestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireFloat("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	ss, err := s.store.GetSuggestion(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("suggestion not found: %v", err)), nil
	}

	data, err := json.Marshal(toSuggestionOut(ss, true))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal suggestion: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// qacheck_get_stats
func (s *Server) getStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qacheck_get_stats",
		mcp.WithDescription("Get aggregate review statistics: totals, approval rate, and issue-type breakdown."),
		mcp.WithNumber("days", mcp.Description("Restrict to records created within the trailing N days")),
	)
	return tool, s.handleGetStats
}

func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := request.GetFloat("days", 0)

	stats, err := s.store.GetStats(ctx, int(days))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// qacheck_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qacheck_list_sessions",
		mcp.WithDescription("List review sessions with their counters. Incomplete sessions (resumable) have no completed_at."),
		mcp.WithBoolean("incomplete_only", mcp.Description("Only return sessions that can be resumed")),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	incompleteOnly := request.GetBool("incomplete_only", false)

	sessions, err := s.store.ListSessions(ctx, incompleteOnly)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
