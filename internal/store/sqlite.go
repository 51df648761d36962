package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/qacheck/qacheck/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and verifies its
// integrity. On a failed integrity check it makes one recovery attempt
// (checkpointing the WAL); if the database still fails the check, the open
// fails with ErrCorrupt rather than risking silent history loss.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's pool, which also makes version
	// allocation race-free.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := checkIntegrity(db); err != nil {
		// Recovery attempt: flush the WAL and re-check.
		_, _ = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		if err := checkIntegrity(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, dbPath, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func checkIntegrity(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Suggestions ---

func (s *SQLiteStore) SaveSuggestion(ctx context.Context, sug models.Suggestion, problemID string, status models.SuggestionStatus, sessionID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Version allocation and insert share the transaction so concurrent
	// saves for the same (problem, file) pair cannot collide.
	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM suggestions WHERE problem_id = ? AND file_path = ?`,
		problemID, sug.FilePath,
	).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("next version for %s/%s: %w", problemID, sug.FilePath, err)
	}
	version := maxVersion.Int64 + 1

	var sessionArg any
	if sessionID != "" {
		sessionArg = sessionID
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO suggestions (
			version, problem_id, file_path, issue_type, description,
			reasoning, confidence, original_content, suggested_content,
			diff, status, session_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		version, problemID, sug.FilePath, string(sug.IssueType), sug.Description,
		sug.Reasoning, sug.Confidence, sug.OriginalContent, sug.SuggestedContent,
		sug.Diff, string(status), sessionArg, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("save suggestion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save suggestion id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit suggestion: %w", err)
	}
	return id, nil
}

const suggestionColumns = `id, version, problem_id, file_path, issue_type, description,
	reasoning, confidence, original_content, suggested_content, diff, status, session_id, created_at`

func (s *SQLiteStore) GetVersions(ctx context.Context, filter VersionFilter) ([]*models.StoredSuggestion, error) {
	query := "SELECT " + suggestionColumns + " FROM suggestions"
	var conditions []string
	var args []any

	if filter.ProblemID != "" {
		conditions = append(conditions, "problem_id = ?")
		args = append(args, filter.ProblemID)
	}
	if filter.FilePath != "" {
		conditions = append(conditions, "file_path = ?")
		args = append(args, filter.FilePath)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY problem_id, file_path, version"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.StoredSuggestion
	for rows.Next() {
		ss, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSuggestion(ctx context.Context, id int64) (*models.StoredSuggestion, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+suggestionColumns+" FROM suggestions WHERE id = ?", id)
	ss, err := scanSuggestion(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: suggestion %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get suggestion %d: %w", id, err)
	}
	return ss, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status models.SuggestionStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM suggestions WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: suggestion %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("read status for %d: %w", id, err)
	}

	cur := models.SuggestionStatus(current)
	if cur == status {
		return nil // idempotent retry of the same transition
	}
	if cur.Terminal() || status == models.StatusPending {
		return fmt.Errorf("%w: suggestion %d is %s, cannot become %s", ErrInvalidTransition, id, cur, status)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE suggestions SET status = ? WHERE id = ?", string(status), id); err != nil {
		return fmt.Errorf("update status for %d: %w", id, err)
	}
	return tx.Commit()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSuggestion(row scanner) (*models.StoredSuggestion, error) {
	ss := &models.StoredSuggestion{}
	var issueType, status string
	var sessionID sql.NullString
	err := row.Scan(&ss.ID, &ss.Version, &ss.ProblemID, &ss.FilePath, &issueType,
		&ss.Description, &ss.Reasoning, &ss.Confidence, &ss.OriginalContent,
		&ss.SuggestedContent, &ss.Diff, &status, &sessionID, &ss.CreatedAt)
	if err != nil {
		return nil, err
	}
	ss.IssueType = models.IssueType(issueType)
	ss.Status = models.SuggestionStatus(status)
	if sessionID.Valid {
		ss.SessionID = sessionID.String
	}
	return ss, nil
}

// --- Stats ---

func (s *SQLiteStore) GetStats(ctx context.Context, days int) (*models.ReviewStats, error) {
	stats := &models.ReviewStats{IssuesByType: map[models.IssueType]int{}}

	dateFilter := ""
	var args []any
	if days > 0 {
		dateFilter = " WHERE created_at >= ?"
		args = append(args, time.Now().UTC().AddDate(0, 0, -days))
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM suggestions"+dateFilter, args...,
	).Scan(&stats.TotalSuggestions); err != nil {
		return nil, fmt.Errorf("count suggestions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM suggestions"+dateFilter+" GROUP BY status", args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		switch models.SuggestionStatus(status) {
		case models.StatusApproved:
			stats.ApprovedCount = count
		case models.StatusRejected:
			stats.RejectedCount = count
		case models.StatusPending:
			stats.PendingCount = count
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx,
		"SELECT issue_type, COUNT(*) FROM suggestions"+dateFilter+" GROUP BY issue_type", args...)
	if err != nil {
		return nil, fmt.Errorf("count by issue type: %w", err)
	}
	for rows.Next() {
		var issueType string
		var count int
		if err := rows.Scan(&issueType, &count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan issue type count: %w", err)
		}
		stats.IssuesByType[models.IssueType(issueType)] = count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// Problems reviewed and skips are session-level counters.
	sessionFilter := ""
	var sessionArgs []any
	if days > 0 {
		sessionFilter = " WHERE started_at >= ?"
		sessionArgs = append(sessionArgs, time.Now().UTC().AddDate(0, 0, -days))
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(problems_reviewed), 0), COALESCE(SUM(skipped_count), 0)
		FROM review_sessions`+sessionFilter, sessionArgs...,
	).Scan(&stats.TotalReviewed, &stats.SkippedCount); err != nil {
		return nil, fmt.Errorf("session totals: %w", err)
	}

	if decided := stats.ApprovedCount + stats.RejectedCount; decided > 0 {
		stats.ApprovalRate = float64(stats.ApprovedCount) / float64(decided)
	}
	return stats, nil
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context) (*models.ReviewSession, error) {
	session := &models.ReviewSession{
		ID:        newULID(),
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO review_sessions (id, started_at) VALUES (?, ?)",
		session.ID, session.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

const sessionColumns = `id, started_at, completed_at, problems_reviewed, suggestions_made,
	approved_count, rejected_count, skipped_count, output_dir, remaining_problems`

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.ReviewSession, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM review_sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return session, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, incompleteOnly bool) ([]*models.ReviewSession, error) {
	query := "SELECT " + sessionColumns + " FROM review_sessions"
	if incompleteOnly {
		query += " WHERE completed_at IS NULL"
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.ReviewSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) UpdateSessionCounters(ctx context.Context, session *models.ReviewSession) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE review_sessions
		SET problems_reviewed=?, suggestions_made=?, approved_count=?, rejected_count=?, skipped_count=?
		WHERE id=?`,
		session.ProblemsReviewed, session.SuggestionsMade,
		session.ApprovedCount, session.RejectedCount, session.SkippedCount,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session counters: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, session.ID)
	}
	return nil
}

func (s *SQLiteStore) SaveSessionState(ctx context.Context, id, outputDir string, remaining []string) error {
	if remaining == nil {
		remaining = []string{}
	}
	data, err := json.Marshal(remaining)
	if err != nil {
		return fmt.Errorf("marshal remaining problems: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE review_sessions SET output_dir=?, remaining_problems=? WHERE id=?",
		outputDir, string(data), id)
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) CompleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE review_sessions SET completed_at=?, remaining_problems='[]' WHERE id=?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM suggestions WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete session suggestions: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM review_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func scanSession(row scanner) (*models.ReviewSession, error) {
	session := &models.ReviewSession{}
	var completedAt sql.NullTime
	var remaining string
	err := row.Scan(&session.ID, &session.StartedAt, &completedAt,
		&session.ProblemsReviewed, &session.SuggestionsMade,
		&session.ApprovedCount, &session.RejectedCount, &session.SkippedCount,
		&session.OutputDir, &remaining)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}
	if remaining != "" {
		if err := json.Unmarshal([]byte(remaining), &session.RemainingProblems); err != nil {
			return nil, fmt.Errorf("decode remaining problems: %w", err)
		}
	}
	return session, nil
}
