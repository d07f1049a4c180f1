package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/models"
	"github.com/mizushina/docvault/internal/store"
)

const dims = 4

func newTestManager(ttlMinutes int) (*Manager, *store.MemoryStore, *time.Time) {
	m := store.NewMemoryStore(dims)
	mgr := NewManager(m, &config.SessionConfig{TTLMinutes: ttlMinutes, SweepPageSize: 100}, zap.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }
	return mgr, m, &now
}

func addDocument(t *testing.T, m *store.MemoryStore, sessionID string) {
	t.Helper()
	vec := make([]float32, dims)
	vec[0] = 1
	err := m.Upsert(context.Background(), []models.Record{
		models.NewDocumentRecord(sessionID, sessionID+".txt", "text", vec),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRefresh_writesMarker(t *testing.T) {
	mgr, m, now := newTestManager(60)
	ctx := context.Background()

	if err := mgr.Refresh(ctx, "s1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	marker, err := m.GetMarker(ctx, "s1")
	if err != nil || marker == nil {
		t.Fatalf("marker = %v, err = %v", marker, err)
	}
	if got := marker.Payload.LastActivityTime(); !got.Equal(*now) {
		t.Errorf("last activity = %v, want %v", got, *now)
	}

	// Refreshing again overwrites the same marker.
	*now = now.Add(10 * time.Minute)
	if err := mgr.Refresh(ctx, "s1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	marker, _ = m.GetMarker(ctx, "s1")
	if got := marker.Payload.LastActivityTime(); !got.Equal(*now) {
		t.Errorf("last activity after refresh = %v, want %v", got, *now)
	}
}

func TestCheckAndExpire_ttlBoundary(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		expired bool
	}{
		{"fresh", time.Minute, false},
		{"just under", 60*time.Minute - time.Second, false},
		{"exactly ttl", 60 * time.Minute, false},
		{"just over", 60*time.Minute + time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, m, now := newTestManager(60)
			ctx := context.Background()
			addDocument(t, m, "s1")
			if err := m.PutMarker(ctx, "s1", now.Add(-tt.age)); err != nil {
				t.Fatal(err)
			}

			expired, err := mgr.CheckAndExpire(ctx, "s1")
			if err != nil {
				t.Fatalf("CheckAndExpire: %v", err)
			}
			if expired != tt.expired {
				t.Errorf("expired = %v, want %v", expired, tt.expired)
			}
			names, _ := m.ListFilenames(ctx, "s1", 1000)
			if tt.expired && len(names) != 0 {
				t.Errorf("expired session still lists %v", names)
			}
			if !tt.expired && len(names) != 1 {
				t.Errorf("active session lost its data: %v", names)
			}
		})
	}
}

func TestCheckAndExpire_noMarker(t *testing.T) {
	mgr, m, _ := newTestManager(60)
	ctx := context.Background()
	addDocument(t, m, "s1")

	expired, err := mgr.CheckAndExpire(ctx, "s1")
	if err != nil {
		t.Fatalf("CheckAndExpire: %v", err)
	}
	if expired {
		t.Error("session without marker must not be expired")
	}
	if names, _ := m.ListFilenames(ctx, "s1", 1000); len(names) != 1 {
		t.Errorf("data touched: %v", names)
	}
}

func TestCheckAndExpire_deletesMarkerItself(t *testing.T) {
	mgr, m, now := newTestManager(30)
	ctx := context.Background()
	if err := m.PutMarker(ctx, "s1", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	expired, err := mgr.CheckAndExpire(ctx, "s1")
	if err != nil || !expired {
		t.Fatalf("expired = %v, err = %v", expired, err)
	}
	if marker, _ := m.GetMarker(ctx, "s1"); marker != nil {
		t.Error("marker must be deleted on expiry")
	}
	// Revisited session has no memory of the old timestamp.
	if expired, _ := mgr.CheckAndExpire(ctx, "s1"); expired {
		t.Error("freshly cleared session must not expire again")
	}
}

func TestSweep(t *testing.T) {
	mgr, m, now := newTestManager(60)
	ctx := context.Background()

	for _, s := range []string{"old1", "old2", "active"} {
		addDocument(t, m, s)
	}
	_ = m.PutMarker(ctx, "old1", now.Add(-2*time.Hour))
	_ = m.PutMarker(ctx, "old2", now.Add(-90*time.Minute))
	_ = m.PutMarker(ctx, "active", now.Add(-5*time.Minute))

	expired, err := mgr.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if expired != 2 {
		t.Errorf("expired = %d, want 2", expired)
	}
	for _, s := range []string{"old1", "old2"} {
		if names, _ := m.ListFilenames(ctx, s, 1000); len(names) != 0 {
			t.Errorf("session %s still lists %v", s, names)
		}
	}
	if names, _ := m.ListFilenames(ctx, "active", 1000); len(names) != 1 {
		t.Errorf("active session touched: %v", names)
	}
	if marker, _ := m.GetMarker(ctx, "active"); marker == nil {
		t.Error("active marker deleted")
	}
}

func TestSweep_empty(t *testing.T) {
	mgr, _, _ := newTestManager(60)
	expired, err := mgr.Sweep(context.Background())
	if err != nil || expired != 0 {
		t.Errorf("expired = %d, err = %v", expired, err)
	}
}
