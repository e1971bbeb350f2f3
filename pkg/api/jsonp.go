package api

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

var iframePage = template.Must(template.New("iframe").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>FCA-Agent response</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; line-height: 1.6; }
pre { white-space: pre-wrap; word-wrap: break-word; background-color: #f5f5f5; padding: 15px; border-radius: 5px; border: 1px solid #ddd; }
</style>
</head>
<body>
<h2>Full response</h2>
<pre>{{.Text}}</pre>
<p><small>ID: {{.ID}}</small></p>
</body>
</html>
`))

// JSONP failures are reported inside the callback with a 200 status, since a
// script tag cannot observe the HTTP status.
func (s *Server) handleJSONPResponse(w http.ResponseWriter, r *http.Request) {
	callback, err := callbackName(r, "handleResponse")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := r.PathValue("id")
	text, ok := s.cache.GetCachedResponse(id)
	if !ok {
		s.writeJSONP(w, callback, map[string]string{"error": responseNotFound})
		return
	}
	s.log.Debug("jsonp response served", zap.String("id", id), zap.Int("bytes", len(text)))
	s.writeJSONP(w, callback, map[string]string{"response": text})
}

func (s *Server) handleJSONPStatus(w http.ResponseWriter, r *http.Request) {
	callback, err := callbackName(r, "handleStatus")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSONP(w, callback, map[string]any{
		"status":    "ok",
		"cacheSize": s.cache.Stats().CurrentEntries,
	})
}

func (s *Server) handleJSONPCacheKeys(w http.ResponseWriter, r *http.Request) {
	callback, err := callbackName(r, "handleCacheKeys")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	keys := s.cache.ListKeys(true)
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.ID)
	}
	s.writeJSONP(w, callback, map[string]any{"keys": ids})
}

func (s *Server) handleDirectText(w http.ResponseWriter, r *http.Request) {
	text, ok := s.cache.GetCachedResponse(r.PathValue("id"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(responseNotFound))
		return
	}
	w.Write([]byte(text))
}

func (s *Server) handleIframe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, ok := s.cache.GetCachedResponse(id)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(template.HTMLEscapeString(responseNotFound)))
		return
	}
	if err := iframePage.Execute(w, struct{ ID, Text string }{id, text}); err != nil {
		s.log.Warn("render iframe page", zap.Error(err))
	}
}
