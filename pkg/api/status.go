package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	dbStatus := "not configured"
	if s.db != nil {
		dbStatus = "connected"
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.log.Warn("database ping failed", zap.Error(err))
			dbStatus = "error"
		}
	}

	llm := map[string]any{"configured": false}
	if s.llm != nil {
		llm["configured"] = s.llm.Configured()
		llm["model"] = s.llm.Model()
	}

	stats := s.cache.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    int64(time.Since(s.started).Seconds()),
		"database":  dbStatus,
		"llm":       llm,
		"cache": map[string]any{
			"entries":       stats.CurrentEntries,
			"activeEntries": stats.ActiveEntries,
		},
	})
}
