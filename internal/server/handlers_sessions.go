package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/repcoach/internal/analysis"
	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/profile"
	"github.com/ayusman/repcoach/internal/source"
)

type createSessionRequest struct {
	Exercise string `json:"exercise"`
}

type createSessionResponse struct {
	ID       string `json:"id"`
	Exercise string `json:"exercise"`
	Known    bool   `json:"known"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Exercise == "" {
		writeError(w, http.StatusBadRequest, "exercise is required")
		return
	}

	p, known := s.registry.Lookup(req.Exercise)
	if known && !s.offered(req.Exercise) {
		p, known = profile.Neutral(req.Exercise), false
	}

	ls, err := s.sessions.create(req.Exercise, p, known)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !known {
		s.log.Warn("unknown exercise, using neutral profile", "exercise", req.Exercise, "session", ls.id)
	}
	s.log.Info("session created", "session", ls.id, "exercise", req.Exercise)

	writeJSON(w, http.StatusCreated, createSessionResponse{
		ID:       ls.id,
		Exercise: req.Exercise,
		Known:    known,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ls.status())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.remove(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Info("session closed", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	ls.reset(s.sessions.now())
	writeJSON(w, http.StatusOK, ls.status())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var frame source.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		s.metrics.FrameErrors.WithLabelValues("invalid_json").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := s.analyze(ls, frame)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// analyze runs one frame through a session and records its metrics.
func (s *Server) analyze(ls *liveSession, frame source.Frame) (analysis.Result, error) {
	start := time.Now()
	result, err := ls.process(frame, s.sessions.now())
	if err != nil {
		reason := "internal"
		if errors.Is(err, pose.ErrInputShape) {
			reason = "input_shape"
		}
		s.metrics.FrameErrors.WithLabelValues(reason).Inc()
		return result, err
	}

	kinds := make([]string, len(result.Violations))
	for i, v := range result.Violations {
		kinds[i] = string(v.Kind)
	}
	s.metrics.Observe(ls.metricLabel(), result.RepCompleted, kinds, time.Since(start))

	if result.RepCompleted {
		s.log.Debug("rep completed", "session", ls.id, "exercise", ls.exercise, "count", result.Count)
	}
	return result, nil
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	ls, err := s.sessions.get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return ls, true
}

// ExpireIdle closes sessions that stop receiving frames until ctx is done.
// It returns immediately when no idle timeout is configured.
func (s *Server) ExpireIdle(ctx context.Context) {
	if s.sessions.idle <= 0 {
		return
	}

	interval := s.sessions.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.sessions.expire() {
				s.log.Info("session expired", "session", id)
			}
		}
	}
}
