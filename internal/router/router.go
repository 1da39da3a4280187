package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/auth"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

const (
	prefix          = "/bookcrossing-api"
	requestIDHeader = "X-Request-ID"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware tags every request with a KSUID, reusing an incoming
// X-Request-ID when the caller supplied one.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 64 {
				id = utilities.NewKSUID()
				r.Header.Set(requestIDHeader, id)
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", r.Header.Get(requestIDHeader),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Users    *user.Handler
	Books    *book.Handler
	Requests *request.Handler
	Tokens   *auth.TokenService
	Metrics  http.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers) http.Handler {
	mux := http.NewServeMux()
	authed := auth.RequireBearer(h.Tokens, logger)
	protect := func(fn http.HandlerFunc) http.Handler { return authed(fn) }

	mux.HandleFunc("GET "+prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	mux.HandleFunc("POST "+prefix+"/users/signup", h.Users.Signup)
	mux.HandleFunc("POST "+prefix+"/users/login", h.Users.Login)
	mux.HandleFunc("GET "+prefix+"/users/{id}", h.Users.Get)

	mux.Handle("POST "+prefix+"/books", protect(h.Books.Create))
	mux.HandleFunc("GET "+prefix+"/books", h.Books.List)
	mux.HandleFunc("GET "+prefix+"/books/{id}", h.Books.Get)

	mux.Handle("POST "+prefix+"/requests", protect(h.Requests.Create))
	mux.Handle("GET "+prefix+"/requests", protect(h.Requests.List))
	mux.Handle("GET "+prefix+"/requests/{id}", protect(h.Requests.Get))
	mux.Handle("PATCH "+prefix+"/requests/{id}", protect(h.Requests.Update))
	mux.Handle("DELETE "+prefix+"/requests/{id}", protect(h.Requests.Delete))

	// request id first so the logging middleware sees it
	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
