package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/models"
	"go.uber.org/zap"
)

// QdrantStore talks to a Qdrant instance over its HTTP API.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client
	logger     *zap.Logger
}

// NewQdrantStore creates a store handle from config. It performs no network
// calls; call EnsureReady before first use.
func NewQdrantStore(cfg *config.StorageConfig, logger *zap.Logger) *QdrantStore {
	return &QdrantStore{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
	}
}

// Dimensions returns the configured vector dimensionality.
func (s *QdrantStore) Dimensions() int {
	return s.dimensions
}

// EnsureReady creates the collection with cosine distance and the payload
// indexes on session_id and source_type if absent. If the collection exists
// with a different dimensionality it returns ErrDimensionMismatch and touches
// nothing.
func (s *QdrantStore) EnsureReady(ctx context.Context) error {
	var info qdrantEnvelope[qdrantCollectionInfo]
	err := s.do(ctx, http.MethodGet, s.collectionPath(), nil, &info)
	switch {
	case err == nil:
		existing := info.Result.Config.Params.Vectors.Size
		if existing != s.dimensions {
			return fmt.Errorf("%w: collection %q has %d, config expects %d",
				ErrDimensionMismatch, s.collection, existing, s.dimensions)
		}
	case isNotFound(err):
		req := map[string]any{
			"vectors": map[string]any{
				"size":     s.dimensions,
				"distance": "Cosine",
			},
		}
		var rsp qdrantEnvelope[json.RawMessage]
		if err := s.do(ctx, http.MethodPut, s.collectionPath(), req, &rsp); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		s.logger.Info("created collection",
			zap.String("collection", s.collection),
			zap.Int("dimensions", s.dimensions))
	default:
		return fmt.Errorf("check collection: %w", err)
	}

	for _, field := range []string{"session_id", "source_type"} {
		req := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		var rsp qdrantEnvelope[json.RawMessage]
		if err := s.do(ctx, http.MethodPut, s.collectionPath()+"/index?wait=true", req, &rsp); err != nil {
			return fmt.Errorf("create payload index %q: %w", field, err)
		}
	}
	return nil
}

// Upsert writes the batch in one call. Every vector must have the configured
// dimensionality; markers carry a zero vector of full length.
func (s *QdrantStore) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != s.dimensions {
			return fmt.Errorf("record %s: vector length %d, collection expects %d",
				rec.ID, len(rec.Vector), s.dimensions)
		}
		points = append(points, map[string]any{
			"id":      rec.ID,
			"vector":  rec.Vector,
			"payload": rec.Payload,
		})
	}
	req := map[string]any{"points": points}
	var rsp qdrantEnvelope[json.RawMessage]
	if err := s.do(ctx, http.MethodPut, s.pointsPath()+"?wait=true", req, &rsp); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	if !rsp.Status.ok() && rsp.Status.Error != "" {
		return fmt.Errorf("upsert %d points: %s", len(points), rsp.Status.Error)
	}
	s.logger.Debug("upserted points", zap.Int("count", len(points)))
	return nil
}

// Search returns the session's data records ranked by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, sessionID string, limit int) ([]models.ScoredRecord, error) {
	if limit < 1 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter":       sessionDataFilter(sessionID),
	}
	var rsp qdrantEnvelope[[]qdrantPoint]
	if err := s.do(ctx, http.MethodPost, s.pointsPath()+"/search", req, &rsp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	results := make([]models.ScoredRecord, 0, len(rsp.Result))
	for _, p := range rsp.Result {
		results = append(results, models.ScoredRecord{
			Record: models.Record{ID: p.ID, Vector: p.Vector, Payload: p.Payload},
			Score:  p.Score,
		})
	}
	return results, nil
}

// DeleteBySession removes every record matching the session, marker included.
func (s *QdrantStore) DeleteBySession(ctx context.Context, sessionID string) error {
	req := map[string]any{"filter": sessionFilter(sessionID)}
	var rsp qdrantEnvelope[json.RawMessage]
	if err := s.do(ctx, http.MethodPost, s.pointsPath()+"/delete?wait=true", req, &rsp); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// ListFilenames scans up to limit document records for the session and returns
// the sorted distinct filenames.
func (s *QdrantStore) ListFilenames(ctx context.Context, sessionID string, limit int) ([]string, error) {
	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				mustMatch("session_id", sessionID),
				mustMatch("source_type", string(models.SourceDocument)),
			},
		},
		"limit":        limit,
		"with_payload": true,
	}
	var rsp qdrantEnvelope[qdrantScrollResult]
	if err := s.do(ctx, http.MethodPost, s.pointsPath()+"/scroll", req, &rsp); err != nil {
		return nil, fmt.Errorf("scroll filenames: %w", err)
	}
	seen := make(map[string]struct{})
	for _, p := range rsp.Result.Points {
		if p.Payload.Filename != "" {
			seen[p.Payload.Filename] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetMarker retrieves the session's activity marker by id (marker id equals
// session id). Returns nil when no marker exists.
func (s *QdrantStore) GetMarker(ctx context.Context, sessionID string) (*models.Record, error) {
	req := map[string]any{
		"ids":          []string{sessionID},
		"with_payload": true,
	}
	var rsp qdrantEnvelope[[]qdrantPoint]
	if err := s.do(ctx, http.MethodPost, s.pointsPath(), req, &rsp); err != nil {
		return nil, fmt.Errorf("get marker: %w", err)
	}
	for _, p := range rsp.Result {
		if p.Payload.SourceType == models.SourceActivityMarker {
			rec := models.Record{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
			return &rec, nil
		}
	}
	return nil, nil
}

// PutMarker writes the session's activity marker.
func (s *QdrantStore) PutMarker(ctx context.Context, sessionID string, lastActivity time.Time) error {
	marker := models.NewActivityMarker(sessionID, lastActivity, s.dimensions)
	return s.Upsert(ctx, []models.Record{marker})
}

// ScrollMarkers returns up to limit activity markers across all sessions.
func (s *QdrantStore) ScrollMarkers(ctx context.Context, limit int) ([]models.Record, error) {
	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				mustMatch("source_type", string(models.SourceActivityMarker)),
			},
		},
		"limit":        limit,
		"with_payload": true,
	}
	var rsp qdrantEnvelope[qdrantScrollResult]
	if err := s.do(ctx, http.MethodPost, s.pointsPath()+"/scroll", req, &rsp); err != nil {
		return nil, fmt.Errorf("scroll markers: %w", err)
	}
	markers := make([]models.Record, 0, len(rsp.Result.Points))
	for _, p := range rsp.Result.Points {
		markers = append(markers, models.Record{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}
	return markers, nil
}

// Drop deletes the collection. Missing collection is a no-op success.
func (s *QdrantStore) Drop(ctx context.Context) error {
	var rsp qdrantEnvelope[json.RawMessage]
	err := s.do(ctx, http.MethodDelete, s.collectionPath(), nil, &rsp)
	if err != nil {
		if isNotFound(err) {
			s.logger.Debug("drop skipped, collection absent", zap.String("collection", s.collection))
			return nil
		}
		return fmt.Errorf("drop collection: %w", err)
	}
	s.logger.Info("dropped collection", zap.String("collection", s.collection))
	return nil
}

// Close releases idle connections.
func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *QdrantStore) collectionPath() string {
	return "/collections/" + url.PathEscape(s.collection)
}

func (s *QdrantStore) pointsPath() string {
	return s.collectionPath() + "/points"
}

// httpError carries the status code so callers can distinguish 404.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("qdrant http %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var he *httpError
	return errors.As(err, &he) && he.status == http.StatusNotFound
}

func (s *QdrantStore) do(ctx context.Context, method, path string, req, rsp any) error {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		request.Header.Set("api-key", s.apiKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return &httpError{status: response.StatusCode, body: string(payload)}
	}
	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}
	return nil
}
