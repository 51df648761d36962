package store

import (
	"context"
	"fmt"
	"time"

	"github.com/qacheck/qacheck/internal/models"
)

func (s *SQLiteStore) InitChecks(ctx context.Context, outputDir string, problemIDs []string, reset bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if reset {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM problem_checks WHERE output_dir = ?", outputDir); err != nil {
			return 0, fmt.Errorf("reset checks for %s: %w", outputDir, err)
		}
	}

	now := time.Now().UTC()
	inserted := 0
	for _, problemID := range problemIDs {
		// INSERT OR IGNORE keeps the status of problems already in the
		// ledger; row order fixes the checking order.
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO problem_checks (problem_id, output_dir, created_at)
			VALUES (?, ?, ?)`,
			problemID, outputDir, now)
		if err != nil {
			return 0, fmt.Errorf("init check for %s: %w", problemID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit check init: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) UpdateCheck(ctx context.Context, problemID, outputDir string, status models.CheckStatus, suggestionCount int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE problem_checks SET status=?, suggestion_count=?, checked_at=?
		WHERE problem_id=? AND output_dir=?`,
		string(status), suggestionCount, time.Now().UTC(), problemID, outputDir)
	if err != nil {
		return fmt.Errorf("update check for %s: %w", problemID, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: check for %s in %s", ErrNotFound, problemID, outputDir)
	}
	return nil
}

func (s *SQLiteStore) PendingChecks(ctx context.Context, outputDir string, limit int) ([]string, error) {
	return s.checkIDs(ctx, outputDir, models.CheckPending, limit)
}

func (s *SQLiteStore) ChecksByStatus(ctx context.Context, outputDir string, status models.CheckStatus) ([]string, error) {
	return s.checkIDs(ctx, outputDir, status, 0)
}

func (s *SQLiteStore) checkIDs(ctx context.Context, outputDir string, status models.CheckStatus, limit int) ([]string, error) {
	query := "SELECT problem_id FROM problem_checks WHERE output_dir = ? AND status = ? ORDER BY id"
	args := []any{outputDir, string(status)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s checks: %w", status, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) CheckStats(ctx context.Context, outputDir string) (*models.CheckStats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM problem_checks WHERE output_dir = ? GROUP BY status",
		outputDir)
	if err != nil {
		return nil, fmt.Errorf("check stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &models.CheckStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan check stats: %w", err)
		}
		switch models.CheckStatus(status) {
		case models.CheckPending:
			stats.Pending = count
		case models.CheckPassed:
			stats.Passed = count
		case models.CheckFailed:
			stats.Failed = count
		case models.CheckChecked:
			stats.Checked = count
		case models.CheckSkipped:
			stats.Skipped = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}
