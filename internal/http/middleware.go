package http

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/gov-agenda/internal/application"
	"github.com/example/gov-agenda/internal/authz"
)

// Principal headers. Identity is asserted by the fronting gateway.
const (
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderDivisionID = "X-Division-ID"
	HeaderRequestID  = "X-Request-ID"
)

// RequirePrincipal resolves the principal from the identity headers and rejects
// the request with 401 when they are missing or malformed.
func RequirePrincipal(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := principalFromHeaders(r.Header)
			if !ok {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal_id", principal.UserID, "role", string(principal.Role)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromHeaders(h http.Header) (application.Principal, bool) {
	userID, err := strconv.ParseInt(strings.TrimSpace(h.Get(HeaderUserID)), 10, 64)
	if err != nil || userID <= 0 {
		return application.Principal{}, false
	}
	role, ok := authz.ParseRole(h.Get(HeaderUserRole))
	if !ok {
		return application.Principal{}, false
	}

	principal := application.Principal{UserID: userID, Role: role}
	if raw := strings.TrimSpace(h.Get(HeaderDivisionID)); raw != "" {
		divisionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || divisionID <= 0 {
			return application.Principal{}, false
		}
		principal.DivisionID = &divisionID
	}
	return principal, true
}

// RequestID reuses an incoming X-Request-ID or assigns a random UUID, and
// echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), id)))
	})
}

// RequestLogger attaches a request scoped logger to the context and logs the
// start and completion of every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed in a burst.
	Burst int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 5 * time.Minute
)

// RateLimiter enforces a per-client token bucket keyed on the remote address.
// Rejected requests get 429 with a Retry-After header.
func RateLimiter(cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)
	var (
		mu        sync.Mutex
		clients   = make(map[string]*clientLimiter)
		lastSweep = time.Now()
	)

	limiterFor := func(ip string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if now.Sub(lastSweep) > limiterSweepEvery {
			for key, cl := range clients {
				if now.Sub(cl.lastSeen) > limiterIdleTTL {
					delete(clients, key)
				}
			}
			lastSweep = now
		}

		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		return cl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			limiter := limiterFor(clientIP(r), now)

			reservation := limiter.ReserveN(now, 1)
			if !reservation.OK() {
				responder.writeError(r.Context(), w, http.StatusTooManyRequests, nil)
				return
			}
			if delay := reservation.DelayFrom(now); delay > 0 {
				reservation.CancelAt(now)
				w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
				responder.writeError(r.Context(), w, http.StatusTooManyRequests, nil)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr only; forwarding headers are client controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
