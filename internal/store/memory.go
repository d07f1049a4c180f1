package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mizushina/docvault/internal/models"
)

// MemoryStore is an in-memory VectorStore using brute-force cosine search.
// Used by tests and as a fallback when no Qdrant endpoint is configured.
type MemoryStore struct {
	dimensions int
	records    map[string]models.Record
	mu         sync.RWMutex
}

// NewMemoryStore creates an in-memory store with the given dimensionality.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		dimensions: dimensions,
		records:    make(map[string]models.Record),
	}
}

// Dimensions returns the configured vector dimensionality.
func (m *MemoryStore) Dimensions() int {
	return m.dimensions
}

// EnsureReady is a no-op for the in-memory store; the "collection" always
// matches the configured dimensionality.
func (m *MemoryStore) EnsureReady(ctx context.Context) error {
	return nil
}

// Upsert inserts or replaces records by id.
func (m *MemoryStore) Upsert(ctx context.Context, records []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if len(rec.Vector) != m.dimensions {
			return fmt.Errorf("record %s: vector length %d, collection expects %d",
				rec.ID, len(rec.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, rec.Vector)
		rec.Vector = vec
		m.records[rec.ID] = rec
	}
	return nil
}

// Search returns the session's data records ranked by cosine similarity.
func (m *MemoryStore) Search(ctx context.Context, vector []float32, sessionID string, limit int) ([]models.ScoredRecord, error) {
	if limit < 1 {
		return nil, nil
	}
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("query vector length %d, collection expects %d", len(vector), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]models.ScoredRecord, 0)
	for _, rec := range m.records {
		if rec.Payload.SessionID != sessionID || rec.Payload.SourceType == models.SourceActivityMarker {
			continue
		}
		results = append(results, models.ScoredRecord{Record: rec, Score: cosine(vector, rec.Vector)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteBySession removes every record for the session, marker included.
func (m *MemoryStore) DeleteBySession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if rec.Payload.SessionID == sessionID {
			delete(m.records, id)
		}
	}
	return nil
}

// ListFilenames returns the sorted distinct filenames of up to limit document
// records for the session.
func (m *MemoryStore) ListFilenames(ctx context.Context, sessionID string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	scanned := 0
	for _, rec := range m.records {
		if rec.Payload.SessionID != sessionID || rec.Payload.SourceType != models.SourceDocument {
			continue
		}
		if scanned >= limit {
			break
		}
		scanned++
		if rec.Payload.Filename != "" {
			seen[rec.Payload.Filename] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetMarker returns the session's marker, or nil when absent.
func (m *MemoryStore) GetMarker(ctx context.Context, sessionID string) (*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[sessionID]
	if !ok || rec.Payload.SourceType != models.SourceActivityMarker {
		return nil, nil
	}
	return &rec, nil
}

// PutMarker writes the session's activity marker.
func (m *MemoryStore) PutMarker(ctx context.Context, sessionID string, lastActivity time.Time) error {
	marker := models.NewActivityMarker(sessionID, lastActivity, m.dimensions)
	return m.Upsert(ctx, []models.Record{marker})
}

// ScrollMarkers returns up to limit activity markers.
func (m *MemoryStore) ScrollMarkers(ctx context.Context, limit int) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	markers := make([]models.Record, 0)
	for _, rec := range m.records {
		if rec.Payload.SourceType != models.SourceActivityMarker {
			continue
		}
		if len(markers) >= limit {
			break
		}
		markers = append(markers, rec)
	}
	return markers, nil
}

// Drop discards all records.
func (m *MemoryStore) Drop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]models.Record)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the total number of stored records, markers included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
