package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/extract"
)

const uploadField = "files"

type uploadFileResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
	Images   int    `json:"images,omitempty"`
	Error    string `json:"error,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()
	s.touchSession(ctx, sessionID)

	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("no %q parts in request", uploadField))
		return
	}

	results := make([]uploadFileResult, 0, len(files))
	for _, fh := range files {
		results = append(results, s.indexUpload(ctx, sessionID, fh))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"files":      results,
	})
}

func (s *Server) indexUpload(ctx context.Context, sessionID string, fh *multipart.FileHeader) uploadFileResult {
	res := uploadFileResult{Filename: fh.Filename}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
	if !extract.Supported(ext) {
		res.Status = "skipped"
		res.Error = fmt.Sprintf("unsupported file type %q", ext)
		return res
	}

	src, err := fh.Open()
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}
	defer src.Close()

	// Spooled to disk so the extractor and the PDF renderer share one path.
	tmp, err := os.CreateTemp("", "docvault-upload-*."+ext)
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, src); err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}

	chunks, err := s.ingest.IndexFile(ctx, sessionID, tmp.Name(), fh.Filename)
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}
	res.Chunks = chunks
	if ext == "pdf" && s.images != nil {
		res.Images = s.images.ProcessPDF(ctx, sessionID, fh.Filename, tmp.Name())
	}
	res.Status = "indexed"
	return res
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	ctx := r.Context()
	s.touchSession(ctx, sessionID)
	s.respondJSON(w, http.StatusOK, s.rag.Answer(ctx, sessionID, req.Query))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	names, err := s.store.ListFilenames(r.Context(), sessionID, s.config.Session.FilenamePageSize)
	if err != nil {
		s.logger.Error("list files failed", zap.String("session_id", sessionID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"files": names})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s.logger.Debug("delete session request", zap.String("session_id", sessionID))
	if err := s.store.DeleteBySession(r.Context(), sessionID); err != nil {
		s.logger.Error("session deletion failed", zap.String("session_id", sessionID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "deleted"})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	expired, err := s.sessions.Sweep(r.Context())
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

func (s *Server) handleResetStorage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.Drop(ctx); err != nil {
		s.logger.Error("storage drop failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.EnsureReady(ctx); err != nil {
		s.logger.Error("storage recreate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// touchSession expires the session if its idle window has passed, then marks
// it active again. Either failure is logged and ignored so activity tracking
// never blocks the request itself.
func (s *Server) touchSession(ctx context.Context, sessionID string) {
	expired, err := s.sessions.CheckAndExpire(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session expiry check failed", zap.String("session_id", sessionID), zap.Error(err))
	} else if expired {
		s.logger.Info("expired session cleared on access", zap.String("session_id", sessionID))
	}
	if err := s.sessions.Refresh(ctx, sessionID); err != nil {
		s.logger.Warn("session refresh failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
