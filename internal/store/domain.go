package store

import (
	"encoding/json"
	"strings"

	"github.com/mizushina/docvault/internal/models"
)

// qdrantEnvelope is the common wrapper around every Qdrant HTTP response.
type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

type qdrantStatus struct {
	State string
	Error string
}

// Qdrant encodes status either as the string "ok" or as {"error": "..."}.
func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}

	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

func (s qdrantStatus) ok() bool {
	return strings.EqualFold(s.State, "ok")
}

// qdrantPoint is a point as returned by search and retrieve calls.
type qdrantPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload models.Payload `json:"payload"`
	Vector  []float32      `json:"vector"`
}

// qdrantScrollResult is the result of a points/scroll call.
type qdrantScrollResult struct {
	Points []qdrantPoint `json:"points"`
}

// qdrantCollectionInfo is the subset of collection metadata we inspect.
type qdrantCollectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// mustMatch builds a Qdrant equality condition on a payload key.
func mustMatch(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

// sessionFilter restricts a call to one session's records. Every
// session-scoped operation goes through this; there is deliberately no way to
// build an unscoped data query in this package.
func sessionFilter(sessionID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{mustMatch("session_id", sessionID)},
	}
}

// sessionDataFilter is sessionFilter minus control records, for search.
func sessionDataFilter(sessionID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{mustMatch("session_id", sessionID)},
		"must_not": []map[string]any{
			mustMatch("source_type", string(models.SourceActivityMarker)),
		},
	}
}
