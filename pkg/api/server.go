// Package api serves the HTTP surface used by the browser extension.
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pario-ai/fcagent/pkg/auth"
	"github.com/pario-ai/fcagent/pkg/cache/memory"
	"github.com/pario-ai/fcagent/pkg/config"
	"github.com/pario-ai/fcagent/pkg/metrics"
	"github.com/pario-ai/fcagent/pkg/models"
)

// TaskService runs and reads tasks.
type TaskService interface {
	Execute(ctx context.Context, userID, taskType string, data map[string]any) (models.TaskResult, error)
	List(ctx context.Context, userID string, limit, offset int) ([]models.Task, int, error)
	Get(ctx context.Context, id int64, userID string) (models.Task, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LLMInfo describes the configured model for the status page.
type LLMInfo interface {
	Configured() bool
	Model() string
}

// Deps are the collaborators a Server needs. Metrics and Logger are optional.
type Deps struct {
	Config  *config.Config
	Cache   *memory.Cache
	Tasks   TaskService
	DB      Pinger
	LLM     LLMInfo
	Auth    *auth.Authenticator
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Server is the fcagent HTTP API.
type Server struct {
	cfg     *config.Config
	cache   *memory.Cache
	tasks   TaskService
	db      Pinger
	llm     LLMInfo
	auth    *auth.Authenticator
	metrics *metrics.Collector
	log     *zap.Logger
	limiter *rate.Limiter
	mux     *http.ServeMux
	handler http.Handler
	started time.Time
}

// New creates a Server wired with all dependencies.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     d.Config,
		cache:   d.Cache,
		tasks:   d.Tasks,
		db:      d.DB,
		llm:     d.LLM,
		auth:    d.Auth,
		metrics: d.Metrics,
		log:     logger,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	if rl := d.Config.RateLimit; rl.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)
	}

	s.routes()
	s.handler = s.recoverPanics(s.requestID(s.accessLog(s.cors(s.rateLimit(s.authenticate(s.mux))))))
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/check", s.handleAuthCheck)

	s.mux.HandleFunc("POST /api/tasks", s.handleExecuteTask)
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)

	s.mux.HandleFunc("GET /api/cache/keys", s.handleCacheKeys)
	s.mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("POST /api/cache/configure", s.handleCacheConfigure)
	s.mux.HandleFunc("POST /api/cache/cleanup", s.handleCacheCleanup)
	s.mux.HandleFunc("DELETE /api/cache/{id}", s.handleCacheDelete)

	s.mux.HandleFunc("GET /api/response/{id}", s.handleGetResponse)
	s.mux.HandleFunc("POST /api/response/renew/{id}", s.handleRenewResponse)

	s.mux.HandleFunc("GET /api/jsonp/response/{id}", s.handleJSONPResponse)
	s.mux.HandleFunc("GET /api/jsonp/status", s.handleJSONPStatus)
	s.mux.HandleFunc("GET /api/jsonp/cache-keys", s.handleJSONPCacheKeys)
	s.mux.HandleFunc("GET /api/jsonp/direct-text/{id}", s.handleDirectText)
	s.mux.HandleFunc("GET /api/jsonp/iframe/{id}", s.handleIframe)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("fcagent listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}
