// Package models defines the stored record types shared by the pipelines and the vector store.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType discriminates what a stored record represents.
type SourceType string

const (
	// SourceDocument is a chunk of extracted document text.
	SourceDocument SourceType = "document"
	// SourceImageDescription is a vision-model description of a PDF page image.
	SourceImageDescription SourceType = "image_description"
	// SourceActivityMarker is the per-session control record holding the last-activity timestamp.
	SourceActivityMarker SourceType = "activity_marker"
)

// Payload is the metadata stored alongside a vector. Which fields are set is
// determined by SourceType; use the record constructors below rather than
// filling this in by hand.
type Payload struct {
	SourceType   SourceType `json:"source_type"`
	SessionID    string     `json:"session_id,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	Document     string     `json:"document,omitempty"`
	Page         int        `json:"page,omitempty"`
	Dimensions   string     `json:"dimensions,omitempty"`
	LastActivity float64    `json:"last_activity,omitempty"`
}

// Record is one stored (id, vector, payload) triple.
type Record struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredRecord is a Record with its similarity score from a search.
type ScoredRecord struct {
	Record
	Score float64 `json:"score"`
}

// NewDocumentRecord builds a document-chunk record with a fresh id.
func NewDocumentRecord(sessionID, filename, chunk string, vector []float32) Record {
	return Record{
		ID:     uuid.New().String(),
		Vector: vector,
		Payload: Payload{
			SourceType: SourceDocument,
			SessionID:  sessionID,
			Filename:   filename,
			Document:   chunk,
		},
	}
}

// NewImageDescriptionRecord builds an image-description record with a fresh id.
// filename should already carry the page suffix; dimensions is "WxH" in pixels.
func NewImageDescriptionRecord(sessionID, filename, description string, page int, dimensions string, vector []float32) Record {
	return Record{
		ID:     uuid.New().String(),
		Vector: vector,
		Payload: Payload{
			SourceType: SourceImageDescription,
			SessionID:  sessionID,
			Filename:   filename,
			Document:   description,
			Page:       page,
			Dimensions: dimensions,
		},
	}
}

// NewActivityMarker builds the activity-marker record for a session. The record
// id equals the session id so each session has exactly one marker, and the
// vector is a zero placeholder of the collection's dimensionality.
func NewActivityMarker(sessionID string, lastActivity time.Time, dimensions int) Record {
	return Record{
		ID:     sessionID,
		Vector: make([]float32, dimensions),
		Payload: Payload{
			SourceType:   SourceActivityMarker,
			SessionID:    sessionID,
			LastActivity: float64(lastActivity.UnixNano()) / float64(time.Second),
		},
	}
}

// LastActivityTime converts the marker's float Unix timestamp back to a time.Time.
func (p Payload) LastActivityTime() time.Time {
	sec := int64(p.LastActivity)
	nsec := int64((p.LastActivity - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
