package api

import (
	"net/http"
	"strconv"

	"github.com/jmgilman/go/errors"

	"github.com/pario-ai/fcagent/pkg/auth"
)

type executeRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s *Server) handleExecuteTask(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Type == "" {
		s.writeError(w, r, errors.New(errors.CodeInvalidInput, "task type is required"))
		return
	}

	res, err := s.tasks.Execute(r.Context(), auth.PrincipalFromContext(r.Context()), req.Type, req.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTaskResultView(res))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	list, total, err := s.tasks.List(r.Context(), auth.PrincipalFromContext(r.Context()), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tasks":  list,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, errors.New(errors.CodeInvalidInput, "invalid task id"))
		return
	}

	task, err := s.tasks.Get(r.Context(), id, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.CodeInvalidInput, "invalid %s", name)
	}
	return n, nil
}
