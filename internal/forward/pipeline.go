// Package forward implements the Forwarding Pipeline (C5): the
// per-request state machine that resolves a backend through the
// session mapper and strategy engine, rewrites and forwards the
// request, relays the response, and installs the session cookie.
package forward

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shoreline-labs/lb/config"
	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
	"github.com/shoreline-labs/lb/internal/session"
	"github.com/shoreline-labs/lb/internal/strategy"
	"github.com/shoreline-labs/lb/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	backendCtxKey ctxKey = iota
	sessionCtxKey
	clientIPCtxKey
)

// Pipeline is the per-request orchestrator wiring C1-C4 together and
// driving a single shared httputil.ReverseProxy.
type Pipeline struct {
	strat       strategy.Strategy
	sessions    *session.Mapper
	persistence config.PersistenceType
	tracer      trace.Tracer
	proxy       *httputil.ReverseProxy
}

// New builds a forwarding pipeline. sessions may be nil when
// persistence is config.PersistenceNone.
func New(strat strategy.Strategy, sessions *session.Mapper, persistence config.PersistenceType, tracer trace.Tracer) *Pipeline {
	p := &Pipeline{
		strat:       strat,
		sessions:    sessions,
		persistence: persistence,
		tracer:      tracer,
	}
	p.proxy = &httputil.ReverseProxy{
		Director:       p.direct,
		ErrorHandler:   p.handleProxyError,
		ModifyResponse: p.installSessionCookie,
	}
	return p
}

// ServeHTTP runs the full per-request state machine: AwaitRequest ->
// ExtractSession -> ResolveBackend -> RewriteRequest -> Forward ->
// RelayResponse. Panics anywhere below are converted to 500 without
// tearing down the listener.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(r.Context(), "forward.panic", "recovered panic in request handling", "error", fmt.Sprint(rec))
			if !rw.headerWritten {
				http.Error(rw, "internal proxy error", http.StatusInternalServerError)
			}
		}
	}()

	if r.Host == "" {
		http.Error(rw, "malformed request", http.StatusBadRequest)
		return
	}

	ctx, span := p.tracer.Start(r.Context(), "forward_request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.path", r.URL.Path),
		attribute.String("strategy.name", p.strat.Name()),
	)

	clientHost := clientHostOf(r)
	backend, sid, ok := p.resolveBackend(ctx, r, clientHost)
	if !ok {
		metrics.NoBackendTotal.Inc()
		logger.WarnContext(ctx, "forward.no_backend", "no alive backend available", "path", r.URL.Path)
		http.Error(rw, "no backend available", http.StatusServiceUnavailable)
		p.recordMetrics("", r.Method, rw.status, start)
		return
	}
	span.SetAttributes(attribute.String("backend.name", backend.Name))

	backend.IncConn()
	metrics.ActiveConnections.WithLabelValues(backend.Name).Inc()
	defer func() {
		backend.DecConn()
		metrics.ActiveConnections.WithLabelValues(backend.Name).Dec()
	}()

	ctx = context.WithValue(ctx, backendCtxKey, backend)
	ctx = context.WithValue(ctx, clientIPCtxKey, clientHost)
	if p.persistence == config.PersistenceCookie {
		ctx = context.WithValue(ctx, sessionCtxKey, sid)
	}

	p.proxy.ServeHTTP(rw, r.WithContext(ctx))
	p.recordMetrics(backend.Name, r.Method, rw.status, start)
}

// resolveBackend implements ExtractSession and ResolveBackend: consult
// the session mapper when persistence is enabled, falling through to
// the strategy engine on a miss; bypass the mapper entirely otherwise.
func (p *Pipeline) resolveBackend(ctx context.Context, r *http.Request, clientHost string) (backend *registry.Backend, sessionID string, ok bool) {
	stratReq := strategy.Request{Path: r.URL.Path, ClientHost: clientHost}

	if p.persistence == config.PersistenceNone || p.sessions == nil {
		b, ok := p.strat.Select(ctx, stratReq)
		return b, "", ok
	}

	sid := session.ID(session.Request{
		ClientHost: clientHost,
		ServerHost: r.Host,
		Cookie:     cookieValue(r),
	}, p.persistence)

	b, ok := p.sessions.Resolve(sid, func() (*registry.Backend, bool) {
		return p.strat.Select(ctx, stratReq)
	})
	return b, sid, ok
}

func cookieValue(r *http.Request) string {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func clientHostOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// direct rewrites the outbound request's scheme/authority/path and
// appends the Forwarded header.
func (p *Pipeline) direct(req *http.Request) {
	backend, _ := req.Context().Value(backendCtxKey).(*registry.Backend)
	target := backend.BaseURL()

	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	req.URL.Path, req.URL.RawPath = joinURLPath(target, req.URL)
	req.URL.RawQuery = joinQuery(target.RawQuery, req.URL.RawQuery)

	if clientIP, _ := req.Context().Value(clientIPCtxKey).(string); clientIP != "" {
		req.Header.Add("Forwarded", fmt.Sprintf("for=%s", clientIP))
	}
}

func joinQuery(a, b string) string {
	if a == "" || b == "" {
		return a + b
	}
	return a + "&" + b
}

// joinURLPath concatenates the backend's base path with the request's
// path, avoiding a doubled or missing slash at the seam. This mirrors
// the join net/http/httputil.NewSingleHostReverseProxy performs
// internally for the same purpose.
func joinURLPath(target, req *url.URL) (path, rawPath string) {
	if target.RawPath == "" && req.RawPath == "" {
		return singleJoiningSlash(target.Path, req.Path), ""
	}
	// Same special case as net/http/httputil: fall back to EscapedPath
	// when either side carries a raw (percent-encoded) path.
	apath := target.EscapedPath()
	bpath := req.EscapedPath()

	aslash := strings.HasSuffix(apath, "/")
	bslash := strings.HasPrefix(bpath, "/")

	switch {
	case aslash && bslash:
		return singleJoiningSlash(target.Path, req.Path), apath + bpath[1:]
	case !aslash && !bslash:
		return singleJoiningSlash(target.Path, req.Path), apath + "/" + bpath
	default:
		return singleJoiningSlash(target.Path, req.Path), apath + bpath
	}
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	default:
		return a + b
	}
}

// handleProxyError handles the Forward failure branch: transport-level
// errors to the upstream yield 502.
func (p *Pipeline) handleProxyError(w http.ResponseWriter, r *http.Request, err error) {
	logger.ErrorContext(r.Context(), "forward.upstream_error", "upstream forwarding failed", "error", err.Error())
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte("upstream unavailable"))
}

// installSessionCookie runs the RelayResponse step: a response that
// already sets the session cookie passes through unchanged, otherwise
// exactly one Set-Cookie is appended. Only relevant when persistence
// is Cookie: sessionCtxKey is left unset for IP/None persistence.
func (p *Pipeline) installSessionCookie(resp *http.Response) error {
	sid, _ := resp.Request.Context().Value(sessionCtxKey).(string)
	if sid == "" {
		return nil
	}

	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return nil
		}
	}

	cookie := &http.Cookie{
		Name:     session.CookieName,
		Value:    sid,
		MaxAge:   30,
		HttpOnly: true,
	}
	resp.Header.Add("Set-Cookie", cookie.String())
	return nil
}

func (p *Pipeline) recordMetrics(backendName, method string, status int, start time.Time) {
	code := strconv.Itoa(status)
	metrics.HTTPRequestsTotal.WithLabelValues(backendName, method, code).Inc()
	metrics.HTTPRequestDurationSeconds.WithLabelValues(backendName, method, code).Observe(time.Since(start).Seconds())
}

// statusWriter captures the status code written to the client so it
// can be recorded as a metric label.
type statusWriter struct {
	http.ResponseWriter
	status        int
	headerWritten bool
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.headerWritten = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.headerWritten = true
	return w.ResponseWriter.Write(b)
}
