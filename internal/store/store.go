package store

import (
	"context"
	"errors"

	"github.com/qacheck/qacheck/internal/models"
)

var (
	// ErrNotFound means no record matched the given key.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition means a status change was attempted on a record
	// that already reached a different terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCorrupt means the database failed its integrity check and could
	// not be recovered.
	ErrCorrupt = errors.New("store corrupt")
)

// VersionFilter narrows GetVersions. Zero-value fields are ignored; at least
// one is expected in practice.
type VersionFilter struct {
	ProblemID string
	FilePath  string
	Limit     int
}

// Store is the durable log of suggestions and review sessions.
type Store interface {
	// SaveSuggestion inserts an immutable record, atomically assigning the
	// next version number for the (problemID, suggestion.FilePath) pair.
	// sessionID may be empty for suggestions recorded outside a session.
	SaveSuggestion(ctx context.Context, s models.Suggestion, problemID string, status models.SuggestionStatus, sessionID string) (int64, error)

	// GetVersions returns records matching the filter, ordered by file path
	// then ascending version.
	GetVersions(ctx context.Context, filter VersionFilter) ([]*models.StoredSuggestion, error)

	GetSuggestion(ctx context.Context, id int64) (*models.StoredSuggestion, error)

	// UpdateStatus transitions pending records to approved or rejected.
	// Re-asserting a terminal record's current status is a no-op; any other
	// change to a terminal record fails with ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id int64, status models.SuggestionStatus) error

	// GetStats aggregates review outcomes. days > 0 restricts to records
	// created within that trailing window.
	GetStats(ctx context.Context, days int) (*models.ReviewStats, error)

	// Sessions
	CreateSession(ctx context.Context) (*models.ReviewSession, error)
	GetSession(ctx context.Context, id string) (*models.ReviewSession, error)
	ListSessions(ctx context.Context, incompleteOnly bool) ([]*models.ReviewSession, error)
	UpdateSessionCounters(ctx context.Context, session *models.ReviewSession) error
	SaveSessionState(ctx context.Context, id, outputDir string, remaining []string) error
	CompleteSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error

	// Checks: the ledger behind systematic passes over an output directory.

	// InitChecks registers problemIDs as pending for outputDir, preserving
	// the given order. With reset, existing rows for outputDir are cleared
	// first; otherwise problems already in the ledger keep their status.
	// Returns the number of rows inserted.
	InitChecks(ctx context.Context, outputDir string, problemIDs []string, reset bool) (int, error)

	// UpdateCheck records a problem's outcome and stamps checked_at.
	UpdateCheck(ctx context.Context, problemID, outputDir string, status models.CheckStatus, suggestionCount int) error

	// PendingChecks returns pending problem IDs for outputDir in ledger
	// order. limit <= 0 returns all of them.
	PendingChecks(ctx context.Context, outputDir string, limit int) ([]string, error)

	// ChecksByStatus returns problem IDs currently in the given status.
	ChecksByStatus(ctx context.Context, outputDir string, status models.CheckStatus) ([]string, error)

	// CheckStats aggregates the ledger for outputDir.
	CheckStats(ctx context.Context, outputDir string) (*models.CheckStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
