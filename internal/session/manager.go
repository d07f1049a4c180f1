// Package session manages per-session activity markers and TTL expiry.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/store"
)

// Manager tracks session activity and reclaims expired sessions. A session is
// expired when its marker is older than the TTL; expiry deletes every record
// the session owns, marker included, so a revisited session starts fresh.
type Manager struct {
	store         store.VectorStore
	ttl           time.Duration
	sweepPageSize int
	logger        *zap.Logger
	now           func() time.Time
}

// NewManager creates a lifecycle manager from the session config.
func NewManager(st store.VectorStore, cfg *config.SessionConfig, logger *zap.Logger) *Manager {
	return &Manager{
		store:         st,
		ttl:           cfg.TTL(),
		sweepPageSize: cfg.SweepPageSize,
		logger:        logger,
		now:           time.Now,
	}
}

// Refresh writes the session's activity marker with the current timestamp.
// Concurrent refreshes race benignly: both write approximately now and only
// the latest write matters.
func (m *Manager) Refresh(ctx context.Context, sessionID string) error {
	if err := m.store.PutMarker(ctx, sessionID, m.now()); err != nil {
		return fmt.Errorf("refresh session %s: %w", sessionID, err)
	}
	return nil
}

// CheckAndExpire deletes the session's data if its marker is older than the
// TTL. A missing marker means no recorded activity and expires nothing.
// Returns whether the session was expired. Age exactly equal to the TTL is
// not yet expired.
func (m *Manager) CheckAndExpire(ctx context.Context, sessionID string) (bool, error) {
	marker, err := m.store.GetMarker(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", sessionID, err)
	}
	if marker == nil {
		return false, nil
	}
	if !m.stale(marker.Payload.LastActivityTime()) {
		return false, nil
	}
	if err := m.store.DeleteBySession(ctx, sessionID); err != nil {
		return false, fmt.Errorf("expire session %s: %w", sessionID, err)
	}
	m.logger.Info("expired session",
		zap.String("session_id", sessionID),
		zap.Duration("ttl", m.ttl))
	return true, nil
}

// Sweep scans one bounded page of activity markers across all sessions and
// expires each stale one. It is a coarse reclamation pass invoked
// opportunistically, not a precise real-time expiry. Returns the number of
// sessions expired; per-session delete failures are logged and skipped.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	markers, err := m.store.ScrollMarkers(ctx, m.sweepPageSize)
	if err != nil {
		return 0, fmt.Errorf("sweep markers: %w", err)
	}
	expired := 0
	for _, marker := range markers {
		if !m.stale(marker.Payload.LastActivityTime()) {
			continue
		}
		if err := m.store.DeleteBySession(ctx, marker.ID); err != nil {
			m.logger.Error("sweep: failed to delete expired session",
				zap.String("session_id", marker.ID),
				zap.Error(err))
			continue
		}
		expired++
	}
	if expired > 0 {
		m.logger.Info("sweep complete",
			zap.Int("scanned", len(markers)),
			zap.Int("expired", expired))
	}
	return expired, nil
}

func (m *Manager) stale(lastActivity time.Time) bool {
	return m.now().Sub(lastActivity) > m.ttl
}
