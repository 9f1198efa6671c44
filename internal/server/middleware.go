package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/nao1215/backlinkscan/internal/apikey"
	"github.com/nao1215/backlinkscan/internal/database"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/pipeline"
)

type callerKey struct{}

// CallerFrom returns the caller resolved by the caller middleware.
// Requests that did not pass through it are anonymous.
func CallerFrom(ctx context.Context) model.Caller {
	caller, _ := ctx.Value(callerKey{}).(model.Caller)
	return caller
}

// callerMiddleware resolves "Authorization: Bearer <api key>" to a caller.
// Missing or unknown keys yield an anonymous caller keyed by client IP.
func (s *Server) callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := model.Caller{ClientIP: s.clientIP(r)}

		if key := apikey.FromHeader(r.Header.Get("Authorization")); key != "" {
			found, err := s.deps.Store.LookupAPIKey(r.Context(), apikey.Hash(key))
			switch {
			case err == nil:
				caller.UserID = found.UserID
				caller.IsAdmin = found.IsAdmin
			case errors.Is(err, database.ErrNotFound):
				s.logger.DebugContext(r.Context(), "unknown api key, continuing as anonymous")
			default:
				s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// cronAuthMiddleware requires "Authorization: Bearer <cron secret>".
func (s *Server) cronAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := apikey.FromHeader(r.Header.Get("Authorization"))
		if s.cfg.CronSecret == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.CronSecret)) != 1 {
			s.writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "Missing or invalid cron secret.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies the per-client token bucket.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(s.clientIP(r)) {
			if s.observer != nil {
				s.observer.ObserveRateLimited()
			}
			w.Header().Set("Retry-After", "1")
			s.writeFailure(w, http.StatusTooManyRequests, codeRateLimited, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observeMiddleware logs and measures every matched request.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		if s.observer != nil {
			s.observer.ObserveRequest(route, r.Method, rec.status, elapsed)
		}
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"elapsed", elapsed,
		)
	})
}

// recoverMiddleware turns a handler panic into a 500 response.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(v)
				}
				s.logger.ErrorContext(r.Context(), "handler panicked", "path", r.URL.Path, "panic", v)
				s.writeError(w, r, pipeline.ErrStorage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's client address without port.
func (s *Server) clientIP(r *http.Request) string {
	if s.cfg.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limiterIdleTTL is how long an idle client bucket is kept.
const limiterIdleTTL = 10 * time.Minute

// limiterSweepSize is the bucket count above which idle buckets are swept.
const limiterSweepSize = 1024

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client key.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	now     func() time.Time
	clients map[string]*limiterEntry
}

func newClientLimiter(limit rate.Limit, burst int, now func() time.Time) *clientLimiter {
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		now:     now,
		clients: make(map[string]*limiterEntry),
	}
}

// allow reports whether key may make a request now.
func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.clients) >= limiterSweepSize {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
	}

	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
