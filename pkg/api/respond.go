package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var validCallback = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

type envelope struct {
	Success bool                  `json:"success"`
	Data    any                   `json:"data,omitempty"`
	Error   *errors.ErrorResponse `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}

// writeError renders err with a status derived from its code. Errors without
// a known code are logged and hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(errors.GetCode(err))
	if status == http.StatusInternalServerError {
		s.log.Error("internal error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
		)
		if errors.GetCode(err) == errors.CodeUnknown {
			err = errors.New(errors.CodeInternal, "internal server error")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(envelope{Error: errors.ToJSON(err)}); encErr != nil {
		s.log.Warn("encode error response", zap.Error(encErr))
	}
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeInvalidConfig, errors.CodeSchemaFailed:
		return http.StatusBadRequest
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeForbidden:
		return http.StatusForbidden
	case errors.CodeConflict, errors.CodeAlreadyExists:
		return http.StatusConflict
	case errors.CodeRateLimit:
		return http.StatusTooManyRequests
	case errors.CodeNetwork:
		return http.StatusBadGateway
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case errors.CodeNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF && optional {
			return nil
		}
		return errors.Wrap(err, errors.CodeInvalidInput, "invalid request body")
	}
	return nil
}

// callbackName returns the JSONP callback from the query, or def.
func callbackName(r *http.Request, def string) (string, error) {
	cb := r.URL.Query().Get("callback")
	if cb == "" {
		return def, nil
	}
	if len(cb) > 128 || !validCallback.MatchString(cb) {
		return "", errors.New(errors.CodeInvalidInput, "invalid callback name")
	}
	return cb, nil
}

// writeJSONP wraps payload in a call to callback. encoding/json escapes
// U+2028, U+2029 and HTML characters, so the output is a valid script.
func (s *Server) writeJSONP(w http.ResponseWriter, callback string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("encode jsonp payload", zap.Error(err))
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	fmt.Fprintf(w, "/**/%s(%s);", callback, body)
}
