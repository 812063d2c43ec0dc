/**
 * @description
 * This file sets up the HTTP router for the dashboard service using the go-chi/chi router.
 * It applies middleware for logging, recovery, CORS, metrics, sessions and rate limiting,
 * and maps the dashboard API and the view websocket to their handlers.
 */
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/metrics"
)

// Options wires the router.
type Options struct {
	Manager        *app.Manager
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxyHeaders keys rate limits on X-Forwarded-For and X-Real-IP.
	TrustProxyHeaders bool
}

// Server holds the handler dependencies.
type Server struct {
	manager  *app.Manager
	metrics  *metrics.Metrics
	logger   *slog.Logger
	limiter  *RateLimiter
	origins  []string
	upgrader websocket.Upgrader

	hubsMu sync.Mutex
	hubs   map[*app.Workspace]*hub
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		manager: opts.Manager,
		metrics: opts.Metrics,
		logger:  logger,
		limiter: NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		origins: opts.AllowedOrigins,
		hubs:    map[*app.Workspace]*hub{},
	}
	s.limiter.TrustProxy = opts.TrustProxyHeaders
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// NewRouter creates a new Chi router and registers the dashboard routes.
func NewRouter(opts Options) *chi.Mux {
	return NewServer(opts).Routes()
}

func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{SessionHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Dashboard service is healthy"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Handler)
		r.Use(SessionMiddleware)

		// The socket outlives any request timeout.
		r.Get("/ws", s.handleSocket)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/demo", s.handleDemoStatus)
			r.Post("/demo/setup", s.handleDemoSetup)
			r.Post("/demo/reset", s.handleDemoReset)

			r.Group(func(r chi.Router) {
				r.Use(s.workspaceMiddleware)

				r.Route("/auth", func(r chi.Router) {
					r.Post("/login", s.handleLogin)
					r.Post("/signup", s.handleSignup)
					r.Post("/logout", s.handleLogout)
					r.Post("/forgot-password", s.handleForgotPassword)
					r.Post("/reset-password/{token}", s.handleResetPassword)
					r.Get("/me", s.handleMe)
					r.Put("/profile", s.handleUpdateProfile)
					r.Put("/password", s.handleChangePassword)
				})

				r.Get("/views/{view}", s.handleView)

				r.Route("/subscriptions", func(r chi.Router) {
					r.Post("/", s.handleCreateSubscription)
					r.Put("/bulk", s.handleBulkUpdate)
					r.Delete("/bulk", s.handleBulkDelete)
					r.Post("/import", s.handleImport)
					r.Get("/export", s.handleExport)
					r.Put("/{id}", s.handleUpdateSubscription)
					r.Delete("/{id}", s.handleDeleteSubscription)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", s.handleListNotifications)
					r.Put("/read-all", s.handleMarkAllRead)
					r.Put("/preferences", s.handleNotificationPreferences)
					r.Post("/test", s.handleTestNotification)
					r.Post("/enable", s.handleEnableNotification)
					r.Put("/{id}/read", s.handleMarkRead)
					r.Delete("/{id}", s.handleDeleteNotification)
				})

				r.Route("/reports", func(r chi.Router) {
					r.Post("/wizard", s.handleWizard)
					r.Put("/schedule/{id}", s.handleUpdateSchedule)
					r.Delete("/schedule/{id}", s.handleDeleteSchedule)
					r.Get("/{id}/download", s.handleDownloadReport)
					r.Delete("/{id}", s.handleDeleteReport)
				})

				r.Route("/settings", func(r chi.Router) {
					r.Put("/", s.handleUpdateSettings)
					r.Put("/currency", s.handleUpdateCurrency)
					r.Post("/categories", s.handleAddCategory)
					r.Put("/categories/{id}", s.handleUpdateCategory)
					r.Delete("/categories/{id}", s.handleDeleteCategory)
				})

				r.Put("/theme", s.handleToggleTheme)
				r.Post("/onboarding/{action}", s.handleOnboarding)
			})
		})
	})

	return r
}

// checkOrigin accepts same-origin requests, requests without an Origin header and the
// configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
