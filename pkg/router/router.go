package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method  string
	pattern string
	handler HandlerFunc
}

type mount struct {
	prefix  string
	handler http.Handler
}

// Router dispatches on method and path. Patterns may use "*" for one segment,
// or a trailing "/*" for any remainder. Routes are tried in registration order.
type Router struct {
	routes   []route
	paths    map[string]bool
	mounts   []mount
	fallback http.Handler
	log      *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Router{paths: make(map[string]bool), log: log}
}

type paramsKey struct{}

// Params returns the path segments matched by wildcards, in order
func Params(r *http.Request) []string {
	p, _ := r.Context().Value(paramsKey{}).([]string)
	return p
}

// Param returns the i-th wildcard segment, or "" when there is none
func Param(r *http.Request, i int) string {
	p := Params(r)
	if i < 0 || i >= len(p) {
		return ""
	}
	return p[i]
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	requestID := req.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	lrw.Header().Set("X-Request-Id", requestID)

	r.dispatch(lrw, req)

	r.log.Infow("HTTP request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", lrw.statusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	pathMatched := false
	for _, rt := range r.routes {
		params, ok := matchWildcardRoute(req.URL.Path, rt.pattern)
		if !ok {
			continue
		}
		if rt.method != req.Method {
			pathMatched = true
			continue
		}
		if len(params) > 0 {
			req = req.WithContext(context.WithValue(req.Context(), paramsKey{}, params))
		}
		rt.handler(w, req)
		return
	}
	if pathMatched {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	for _, m := range r.mounts {
		if req.URL.Path == strings.TrimSuffix(m.prefix, "/") || strings.HasPrefix(req.URL.Path, m.prefix) {
			m.handler.ServeHTTP(w, req)
			return
		}
	}
	if r.fallback != nil {
		r.fallback.ServeHTTP(w, req)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern and
// returns the segments the wildcards stood for
func matchWildcardRoute(requestPath, routePattern string) ([]string, bool) {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")
	var params []string

	// a trailing wildcard swallows any number of remaining segments
	if n := len(routeSegments); n > 0 && routeSegments[n-1] == "*" {
		if len(requestSegments) < n {
			return nil, false
		}
		for i := 0; i < n-1; i++ {
			if routeSegments[i] == "*" {
				params = append(params, requestSegments[i])
				continue
			}
			if requestSegments[i] != routeSegments[i] {
				return nil, false
			}
		}
		return append(params, strings.Join(requestSegments[n-1:], "/")), true
	}

	if len(requestSegments) != len(routeSegments) {
		return nil, false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return nil, false
			}
			params = append(params, requestSegments[i])
			continue
		}
		if requestSegments[i] != routeSegment {
			return nil, false
		}
	}
	return params, true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes = append(r.routes, route{method: method, pattern: path, handler: handler})
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Mount hands every request under prefix to h, for any method.
// Registered routes win over mounts.
func (r *Router) Mount(prefix string, h http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	r.mounts = append(r.mounts, mount{prefix: prefix, handler: h})
}

// Fallback serves requests no route or mount matched
func (r *Router) Fallback(h http.Handler) {
	r.fallback = h
}

// Getter methods for testing
func (r *Router) Paths() map[string]bool {
	return r.paths
}

// --- Start server ---

// Start serves on addr until ctx is done, then shuts down gracefully
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.log.Infow("Server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	r.log.Infow("Server stopped", "addr", addr)
	return nil
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}
