package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jmgilman/go/errors"
)

const responseNotFound = "response not found or expired"

func (s *Server) handleCacheKeys(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("activeOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, errors.New(errors.CodeInvalidInput, "activeOnly must be a boolean"))
			return
		}
		activeOnly = v
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"keys": newKeyViews(s.cache.ListKeys(activeOnly))})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"stats": newStatsView(s.cache.Stats())})
}

type configureRequest struct {
	Config *settingsPatch `json:"config"`
}

func (s *Server) handleCacheConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Config == nil {
		s.writeError(w, r, errors.New(errors.CodeInvalidInput, "config object is required"))
		return
	}

	settings, err := s.cache.Configure(req.Config.update())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"config": newSettingsView(settings)})
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	removed := s.cache.Cleanup()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"removedCount": removed,
		"stats":        newStatsView(s.cache.Stats()),
	})
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.cache.Remove(id) {
		s.writeError(w, r, errors.Newf(errors.CodeNotFound, "cache entry %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"removed": true, "id": id})
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, ok := s.cache.GetCachedResponse(id)
	if !ok {
		s.writeError(w, r, errors.New(errors.CodeNotFound, responseNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"response": text})
}

type renewRequest struct {
	TTL *int64 `json:"ttl"`
}

func (s *Server) handleRenewResponse(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	var ttl time.Duration
	if req.TTL != nil {
		if *req.TTL <= 0 {
			s.writeError(w, r, errors.New(errors.CodeInvalidInput, "ttl must be positive"))
			return
		}
		ttl = time.Duration(*req.TTL) * time.Millisecond
	}

	id := r.PathValue("id")
	expiresAt, ok := s.cache.RenewExpiry(id, ttl)
	if !ok {
		s.writeError(w, r, errors.New(errors.CodeNotFound, responseNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"renewed":   true,
		"id":        id,
		"expiresAt": expiresAt.UnixMilli(),
	})
}
