package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type scanResponse struct {
	TagID  string `json:"tag_id"`
	Queued int    `json:"queued"`
}

type learnRequest struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// maxLearnTimeout bounds client-requested learn windows.
const maxLearnTimeout = 10 * time.Minute

// handleTagScan queues a scan on every entry. Resolution happens
// asynchronously, so the response only says how many entries accepted it.
func (s *Server) handleTagScan(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	queued := s.service.TagScanned(tag)
	writeJSON(w, http.StatusAccepted, scanResponse{TagID: tag, Queued: queued})
}

func (s *Server) handleStartLearn(w http.ResponseWriter, r *http.Request) {
	learner := s.service.Learner()
	if learner == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "tag learning is not enabled")
		return
	}

	var req learnRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}
	if req.TimeoutSeconds < 0 {
		writeBadRequest(w, "timeout_seconds must not be negative")
		return
	}
	timeout := min(time.Duration(req.TimeoutSeconds)*time.Second, maxLearnTimeout)

	session := learner.Start(timeout)
	s.logger.Info("tag learn session started", "session_id", session.ID, "expires_at", session.ExpiresAt)
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetLearn(w http.ResponseWriter, r *http.Request) {
	learner := s.service.Learner()
	if learner == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "tag learning is not enabled")
		return
	}
	session, err := learner.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleCancelLearn(w http.ResponseWriter, r *http.Request) {
	learner := s.service.Learner()
	if learner == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "tag learning is not enabled")
		return
	}
	session, err := learner.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.version,
		"entries": s.service.Diagnostics(),
	})
}
