package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/fcagent/pkg/auth"
	"github.com/pario-ai/fcagent/pkg/cache/memory"
	"github.com/pario-ai/fcagent/pkg/config"
	"github.com/pario-ai/fcagent/pkg/metrics"
	"github.com/pario-ai/fcagent/pkg/models"
)

type fakeTasks struct {
	result  models.TaskResult
	err     error
	tasks   []models.Task
	gotUser string
	gotType string
}

func (f *fakeTasks) Execute(_ context.Context, userID, taskType string, _ map[string]any) (models.TaskResult, error) {
	f.gotUser, f.gotType = userID, taskType
	return f.result, f.err
}

func (f *fakeTasks) List(_ context.Context, userID string, limit, offset int) ([]models.Task, int, error) {
	f.gotUser = userID
	return f.tasks, len(f.tasks), nil
}

func (f *fakeTasks) Get(_ context.Context, id int64, _ string) (models.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, errors.Newf(errors.CodeNotFound, "task %d not found", id)
}

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeLLM struct{}

func (fakeLLM) Configured() bool { return true }
func (fakeLLM) Model() string    { return "claude-test" }

type testServer struct {
	*Server
	cache *memory.Cache
	tasks *fakeTasks
	token string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.Password = "hunter2"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.APIKeys = []string{"test-key"}
	cfg.RateLimit.Enabled = false
	cfg.CORS.AllowedOrigins = []string{"chrome-extension://abc"}
	if mutate != nil {
		mutate(cfg)
	}

	cache, err := memory.New(cfg.Cache, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	m := metrics.New()
	require.NoError(t, m.RegisterCache(cache))

	authn := auth.New(cfg.Auth)
	token, _, err := authn.Issue(auth.Subject)
	require.NoError(t, err)

	tasks := &fakeTasks{}
	srv := New(Deps{
		Config:  cfg,
		Cache:   cache,
		Tasks:   tasks,
		DB:      fakeDB{},
		LLM:     fakeLLM{},
		Auth:    authn,
		Metrics: m,
	})
	return &testServer{Server: srv, cache: cache, tasks: tasks, token: token}
}

func (ts *testServer) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool                  `json:"success"`
	Data    map[string]any        `json:"data"`
	Error   *errors.ErrorResponse `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestStatusIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cache.Set("v", memory.Options{})

	rec := ts.do(t, http.MethodGet, "/api/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "ok", env.Data["status"])
	assert.Equal(t, "connected", env.Data["database"])
	assert.Equal(t, float64(1), env.Data["cache"].(map[string]any)["entries"])
	assert.Equal(t, "claude-test", env.Data["llm"].(map[string]any)["model"])
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/cache/stats", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, string(errors.CodeUnauthorized), env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	req.Header.Set("X-API-Key", "test-key")
	rec = httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/cache/stats", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", `{"password":"hunter2"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.NotEmpty(t, env.Data["token"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fca-agent-auth", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	assert.Equal(t, true, decode(t, rec).Data["authenticated"])

	rec = ts.do(t, http.MethodGet, "/api/auth/check", "", false)
	assert.Equal(t, false, decode(t, rec).Data["authenticated"])

	rec = ts.do(t, http.MethodPost, "/api/auth/logout", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestCacheConfigure(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/cache/configure", `{"config":{"defaultTTL":60000,"previewSize":50}}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode(t, rec).Data["config"].(map[string]any)
	assert.Equal(t, float64(60000), cfg["defaultTTL"])
	assert.Equal(t, float64(50), cfg["previewSize"])
	assert.Equal(t, float64(500), cfg["largeResponseThreshold"])

	rec = ts.do(t, http.MethodPost, "/api/cache/configure", `{"config":{"previewSize":-5,"defaultTTL":1000}}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(errors.CodeInvalidConfig), decode(t, rec).Error.Code)
	assert.Equal(t, time.Minute, ts.cache.Settings().DefaultTTL)
	assert.Equal(t, 50, ts.cache.Settings().PreviewSize)

	rec = ts.do(t, http.MethodPost, "/api/cache/configure", `{"config":{"previewSize":"big"}}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/cache/configure", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheKeysStatsAndCleanup(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cache.CacheResponse(strings.Repeat("x", 600), models.ResponseMeta{TaskID: 7, TaskType: "gmail-summary"}, 0)

	rec := ts.do(t, http.MethodGet, "/api/cache/keys?activeOnly=false", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	keys := decode(t, rec).Data["keys"].([]any)
	require.Len(t, keys, 1)
	key := keys[0].(map[string]any)
	assert.True(t, strings.HasPrefix(key["id"].(string), "cache_7_"))
	assert.Equal(t, "response", key["type"])
	assert.Equal(t, float64(600), key["size"])

	rec = ts.do(t, http.MethodGet, "/api/cache/keys?activeOnly=maybe", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/cache/stats", "", true)
	stats := decode(t, rec).Data["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["totalEntries"])
	assert.Equal(t, float64(600000), stats["config"].(map[string]any)["defaultTTL"])

	rec = ts.do(t, http.MethodPost, "/api/cache/cleanup", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec).Data["removedCount"])
}

func TestResponseLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	desc := ts.cache.CacheResponse(strings.Repeat("y", 700), models.ResponseMeta{TaskID: 1}, 0)

	rec := ts.do(t, http.MethodGet, "/api/response/"+desc.ResponseID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, strings.Repeat("y", 700), decode(t, rec).Data["response"])

	rec = ts.do(t, http.MethodPost, "/api/response/renew/"+desc.ResponseID, `{"ttl":3600000}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, true, env.Data["renewed"])
	expiresAt := time.UnixMilli(int64(env.Data["expiresAt"].(float64)))
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	rec = ts.do(t, http.MethodPost, "/api/response/renew/"+desc.ResponseID, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/response/renew/"+desc.ResponseID, `{"ttl":-1}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/cache/"+desc.ResponseID, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/cache/"+desc.ResponseID, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/response/"+desc.ResponseID, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(errors.CodeNotFound), decode(t, rec).Error.Code)

	rec = ts.do(t, http.MethodPost, "/api/response/renew/missing", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenericEntryIsNotAResponse(t *testing.T) {
	ts := newTestServer(t, nil)
	res := ts.cache.Set("plain", memory.Options{Metadata: map[string]any{"type": "response"}})

	rec := ts.do(t, http.MethodGet, "/api/response/"+res.ID, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJSONP(t *testing.T) {
	ts := newTestServer(t, nil)
	text := "line one\nline two </script> & more"
	desc := ts.cache.CacheResponse(text, models.ResponseMeta{}, 0)

	rec := ts.do(t, http.MethodGet, "/api/jsonp/response/"+desc.ResponseID+"?callback=app.onResponse", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "/**/app.onResponse("), body)
	require.True(t, strings.HasSuffix(body, ");"), body)
	assert.NotContains(t, body, "\n")
	assert.Contains(t, body, `\u003c/script\u003e`)
	assert.NotContains(t, body, "</script>")

	payload := strings.TrimSuffix(strings.TrimPrefix(body, "/**/app.onResponse("), ");")
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	assert.Equal(t, text, got["response"])

	rec = ts.do(t, http.MethodGet, "/api/jsonp/response/missing", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `/**/handleResponse({"error":"response not found or expired"});`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/jsonp/response/x?callback=alert(1)", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJSONPStatusIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cache.Set("a", memory.Options{})

	rec := ts.do(t, http.MethodGet, "/api/jsonp/status?callback=cb", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `/**/cb({"cacheSize":1,"status":"ok"});`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/jsonp/cache-keys", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDirectTextAndIframe(t *testing.T) {
	ts := newTestServer(t, nil)
	desc := ts.cache.CacheResponse("<b>bold</b> & more", models.ResponseMeta{}, 0)

	rec := ts.do(t, http.MethodGet, "/api/jsonp/direct-text/"+desc.ResponseID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<b>bold</b> & more", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = ts.do(t, http.MethodGet, "/api/jsonp/iframe/"+desc.ResponseID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;bold&lt;/b&gt; &amp; more")
	assert.NotContains(t, rec.Body.String(), "<b>bold")

	rec = ts.do(t, http.MethodGet, "/api/jsonp/direct-text/missing", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/jsonp/iframe/missing", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasksRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	preview := strings.Repeat("z", 100) + "..."
	exp := time.Now().Add(10 * time.Minute)
	ts.tasks.result = models.TaskResult{
		TaskID:                3,
		Status:                models.TaskCompleted,
		ResponseID:            "cache_3_1_abc",
		Preview:               &preview,
		FullResponseAvailable: true,
		ExpiresAt:             &exp,
	}
	ts.tasks.tasks = []models.Task{{ID: 3, UserID: auth.Subject, Type: models.TaskGmailSummary, Status: models.TaskCompleted}}

	rec := ts.do(t, http.MethodPost, "/api/tasks", `{"type":"gmail-summary","data":{"emails":[]}}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data
	assert.Equal(t, "cache_3_1_abc", data["responseId"])
	assert.Nil(t, data["result"])
	assert.Equal(t, float64(exp.UnixMilli()), data["expiresAt"])
	assert.Equal(t, auth.Subject, ts.tasks.gotUser)
	assert.Equal(t, models.TaskGmailSummary, ts.tasks.gotType)

	rec = ts.do(t, http.MethodPost, "/api/tasks", `{"data":{}}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/tasks", `not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/tasks?limit=5", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec).Data
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(5), data["limit"])

	rec = ts.do(t, http.MethodGet, "/api/tasks?offset=-1", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/tasks/3", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/tasks/99", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/tasks/abc", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.tasks.err = errors.New(errors.CodeNetwork, "llm returned status 529")

	rec := ts.do(t, http.MethodPost, "/api/tasks", `{"type":"processUserInput","data":{"input":"hi"}}`, true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	ts.tasks.err = assert.AnError
	rec = ts.do(t, http.MethodPost, "/api/tasks", `{"type":"processUserInput","data":{"input":"hi"}}`, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, string(errors.CodeInternal), env.Error.Code)
	assert.NotContains(t, env.Error.Message, assert.AnError.Error())
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/status", "", false).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/status", "", false).Code)

	rec := ts.do(t, http.MethodGet, "/api/status", "", false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(errors.CodeRateLimit), decode(t, rec).Error.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/status", "", false)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "client-supplied-1")
	rec = httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied-1", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodGet, "/api/status", "", false)

	rec := ts.do(t, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "fcagent_cache_entries")
	assert.Contains(t, body, `fcagent_http_requests_total{code="200",route="GET /api/status"} 1`)
}
