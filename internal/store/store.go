// Package store provides the vector store adapter: one shared collection,
// partitioned by session through mandatory payload filters.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mizushina/docvault/internal/models"
)

// ErrDimensionMismatch is returned by EnsureReady when the collection exists
// with a different vector dimensionality than configured. It is the one fatal
// error in the system: writes are blocked until the collection is dropped and
// recreated.
var ErrDimensionMismatch = errors.New("collection dimensionality does not match configuration")

// VectorStore is the uniform CRUD/search interface over the shared collection.
// Every session-scoped call applies the session filter internally; callers
// never see another session's records.
type VectorStore interface {
	// EnsureReady creates the collection (cosine metric, configured
	// dimensionality) and its payload indexes if absent. Idempotent.
	// Returns ErrDimensionMismatch if the collection exists with a
	// different dimensionality.
	EnsureReady(ctx context.Context) error

	// Upsert inserts or replaces records by id in one batch call.
	Upsert(ctx context.Context, records []models.Record) error

	// Search returns up to limit data records for the session, ranked by
	// similarity descending. Activity markers are never returned.
	Search(ctx context.Context, vector []float32, sessionID string, limit int) ([]models.ScoredRecord, error)

	// DeleteBySession removes every record (marker included) for the
	// session. Deleting an empty session is a no-op success.
	DeleteBySession(ctx context.Context, sessionID string) error

	// ListFilenames scans up to limit document records for the session and
	// returns the sorted set of distinct filenames. Best effort: records
	// beyond the page limit are not seen.
	ListFilenames(ctx context.Context, sessionID string, limit int) ([]string, error)

	// GetMarker returns the session's activity marker, or nil when no
	// marker exists.
	GetMarker(ctx context.Context, sessionID string) (*models.Record, error)

	// PutMarker writes the session's activity marker with the given
	// last-activity timestamp.
	PutMarker(ctx context.Context, sessionID string, lastActivity time.Time) error

	// ScrollMarkers returns up to limit activity markers across all
	// sessions, for the global sweep.
	ScrollMarkers(ctx context.Context, limit int) ([]models.Record, error)

	// Drop deletes the entire collection. Dropping a missing collection is
	// a no-op success. EnsureReady recreates it.
	Drop(ctx context.Context) error

	// Dimensions returns the configured vector dimensionality D.
	Dimensions() int

	Close() error
}
