package httpx

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/auth"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checklog"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checks"
	"github.com/rikouu/serdo-v2-sub001/internal/service/inventory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/notify"
	"github.com/rikouu/serdo-v2-sub001/internal/service/secrets"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
)

// WhoisTester performs a one-off lookup with caller-supplied settings.
type WhoisTester interface {
	Lookup(ctx context.Context, name string, cfg domain.WhoisSettings) whois.Result
}

// NotifyTester sends a test message over every configured channel.
type NotifyTester interface {
	Test(ctx context.Context, cfg domain.NotificationSettings) ([]notify.ChannelResult, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	Logger    *slog.Logger
	Auth      auth.Service
	Inventory inventory.Service
	Checks    *checks.Service
	CheckLogs checklog.Service
	Revealer  *secrets.Revealer
	Whois     WhoisTester
	Notifier  NotifyTester
	Limiter   RateLimiter
	DBHealth  func(context.Context) error
	Metrics   bool
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *chi.Mux
	logger    *slog.Logger
	auth      auth.Service
	inventory inventory.Service
	checks    *checks.Service
	checkLogs checklog.Service
	revealer  *secrets.Revealer
	whois     WhoisTester
	notifier  NotifyTester
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	dbHealth  func(context.Context) error
	metrics   *routerMetrics
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitRevealKey = 5
	rateLimitReveal    = 30
	rateLimitChecks    = 10
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitStream    = 30
	healthCheckTimeout = 2 * time.Second
	whoisProbeDomain   = "example.com"
	sseHeartbeat       = 25 * time.Second
)

const (
	routeWSCheckLogs  = "/ws/check-logs"
	routeSSECheckLogs = "/events/check-logs"
)

// NewRouter assembles routes with dependencies.
func NewRouter(deps Deps) *Router {
	r := &Router{
		mux:       chi.NewRouter(),
		logger:    deps.Logger.With("component", "http"),
		auth:      deps.Auth,
		inventory: deps.Inventory,
		checks:    deps.Checks,
		checkLogs: deps.CheckLogs,
		revealer:  deps.Revealer,
		whois:     deps.Whois,
		notifier:  deps.Notifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  deps.Limiter,
		dbHealth: deps.DBHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if deps.Metrics {
		r.metrics = newRouterMetrics()
	}
	r.register(deps.Metrics)
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register(withMetrics bool) {
	m := r.mux
	m.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "not found")
	})
	m.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	m.Get("/healthz", r.audit(r.handleHealthz))
	if withMetrics {
		m.Handle("/metrics", promhttp.Handler())
	}

	m.Post("/auth/signup", r.audit(r.withRateLimit("signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	m.Post("/auth/login", r.audit(r.withRateLimit("login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	m.Post("/auth/reveal-key", r.audit(r.handlerAuthRate("reveal_key", rateLimitRevealKey, rateWindowDefault, r.handleRevealKey)))
	m.Get("/secrets/{kind}/{id}/{field}", r.audit(r.handlerAuthRate("reveal", rateLimitReveal, rateWindowDefault, r.handleReveal)))

	read := func(h http.HandlerFunc) http.HandlerFunc {
		return r.audit(r.handlerAuthRate("read", rateLimitUserRead, rateWindowDefault, h))
	}
	write := func(h http.HandlerFunc) http.HandlerFunc {
		return r.audit(r.handlerAuthRate("write", rateLimitUserWrite, rateWindowDefault, h))
	}

	m.Get("/servers", read(r.handleListServers))
	m.Post("/servers", write(r.handleCreateServer))
	m.Get("/servers/{id}", read(r.handleGetServer))
	m.Patch("/servers/{id}", write(r.handleUpdateServer))
	m.Delete("/servers/{id}", write(r.handleDeleteServer))

	m.Get("/providers", read(r.handleListProviders))
	m.Post("/providers", write(r.handleCreateProvider))
	m.Patch("/providers/{id}", write(r.handleUpdateProvider))
	m.Delete("/providers/{id}", write(r.handleDeleteProvider))

	m.Get("/domains", read(r.handleListDomains))
	m.Post("/domains", write(r.handleCreateDomain))
	m.Get("/domains/{id}", read(r.handleGetDomain))
	m.Patch("/domains/{id}", write(r.handleUpdateDomain))
	m.Delete("/domains/{id}", write(r.handleDeleteDomain))
	m.Post("/domains/{id}/sync", r.audit(r.handlerAuthRate("checks", rateLimitChecks, rateWindowDefault, r.handleSyncDomain)))

	m.Post("/checks/servers", r.audit(r.handlerAuthRate("checks", rateLimitChecks, rateWindowDefault, r.handleCheckServers)))
	m.Post("/checks/domains", r.audit(r.handlerAuthRate("checks", rateLimitChecks, rateWindowDefault, r.handleCheckDomains)))
	m.Get("/checks/status", read(r.handleCheckStatus))
	m.Get("/checks/logs", read(r.handleCheckLogs))

	m.Get("/settings", read(r.handleGetSettings))
	m.Patch("/settings", write(r.handleUpdateSettings))
	m.Post("/settings/whois/test", r.audit(r.handlerAuthRate("checks", rateLimitChecks, rateWindowDefault, r.handleWhoisTest)))
	m.Post("/notifications/test", r.audit(r.handlerAuthRate("checks", rateLimitChecks, rateWindowDefault, r.handleNotifyTest)))

	m.Get(routeWSCheckLogs, r.audit(r.handlerAuthRate("stream", rateLimitStream, rateWindowRealtime, r.handleCheckLogsWS)))
	m.Get(routeSSECheckLogs, r.audit(r.handlerAuthRate("stream", rateLimitStream, rateWindowRealtime, r.handleCheckLogsSSE)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// tenant returns the caller's tenant. requireAuth guarantees it is present.
func (r *Router) tenant(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok || info.TenantID == "" {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, CodeInternal, "authorization context missing")
		return authInfo{}, false
	}
	return info, true
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		route := req.URL.Path
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		if sr.status == 0 {
			sr.status = http.StatusSwitchingProtocols
		}
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
