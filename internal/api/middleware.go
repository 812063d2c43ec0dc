/**
 * @description
 * Middleware for the dashboard API: browser session resolution and per-client
 * rate limiting.
 *
 * @dependencies
 * - github.com/google/uuid: session id validation.
 * - golang.org/x/time/rate: token bucket per client address.
 * - github.com/patrickmn/go-cache: expiring limiter storage.
 */
package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/session"
)

const (
	// SessionCookie carries the browser session id.
	SessionCookie = "subsentry_session"
	// SessionHeader may carry the session id instead of the cookie, and echoes it on responses.
	SessionHeader = "X-Session-ID"
)

// SessionContextKey is a custom type for the context key to avoid collisions.
type SessionContextKey string

const (
	sessionIDKey SessionContextKey = "sessionID"
	workspaceKey SessionContextKey = "workspace"
)

// requestSessionID reads the session id from the header, then the cookie.
// Anything that is not a UUID is ignored.
func requestSessionID(r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

// SessionMiddleware resolves the browser session, issuing a new one when the request
// carries none.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestSessionID(r)
		if id == "" {
			id = session.NewID()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDKey, id)))
	})
}

// GetSessionIDFromContext returns the session id set by SessionMiddleware.
func GetSessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// workspaceMiddleware opens the session's workspace for the handlers below it.
func (s *Server) workspaceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.manager.Open(r.Context(), GetSessionIDFromContext(r.Context()))
		if err != nil {
			s.respondWithError(w, r, nil, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), workspaceKey, ws)))
	})
}

func workspaceFrom(ctx context.Context) *app.Workspace {
	ws, _ := ctx.Value(workspaceKey).(*app.Workspace)
	return ws
}

// RateLimiter keeps one token bucket per client address. Idle buckets expire.
// Session ids are chosen by the client, so they are never used as the key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *gocache.Cache
	rate     rate.Limit
	burst    int

	// TrustProxy reads the client address from X-Forwarded-For and X-Real-IP.
	TrustProxy bool
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: gocache.New(10*time.Minute, 20*time.Minute),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters.SetDefault(key, limiter)
	return limiter
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool { return rl.getLimiter(key).Allow() }

// Handler rejects requests over the client's budget.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(getClientIP(r, rl.TrustProxy)) {
			w.Header().Set("Retry-After", "1")
			respondWithJSON(w, http.StatusTooManyRequests, errorBody{Error: "Rate limit exceeded. Please try again later."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client address. Forwarding headers are only read when the
// service sits behind a proxy that sets them.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
