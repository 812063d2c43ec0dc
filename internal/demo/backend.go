/**
 * @description
 * In-process implementation of the SubSentry REST backend over the seeded demo
 * dataset. The dashboard reaches it through Transport, so the HTTP client and
 * every view run exactly as they do against the real backend.
 *
 * Key features:
 * - bcrypt credential check for the demo account.
 * - Login issues short-lived HS256 tokens; the fixed demo token is also accepted.
 * - Analytics are computed with the same aggregation functions the domain package exposes.
 */
package demo

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is the lifetime of tokens issued by the demo login.
const TokenTTL = 24 * time.Hour

// Backend serves the demo REST API for one account.
type Backend struct {
	mu     sync.Mutex
	data   *Dataset
	userID string
	secret []byte
	now    func() time.Time
	logger *slog.Logger
	router *chi.Mux
}

// Option customizes a Backend.
type Option func(*Backend)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithUserID sets the id of the seeded account.
func WithUserID(id string) Option {
	return func(b *Backend) { b.userID = id }
}

// NewBackend seeds the dataset and builds the router.
func NewBackend(logger *slog.Logger, opts ...Option) (*Backend, error) {
	b := &Backend{
		userID: UserID,
		secret: []byte(uuid.NewString()),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	data, err := Seed(b.now(), b.userID)
	if err != nil {
		return nil, err
	}
	b.data = data
	b.router = b.routes()
	return b, nil
}

// AccountID returns the id of the account currently signed up on the backend.
func (b *Backend) AccountID() string { return b.accountID() }

func (b *Backend) accountID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data.User.ID
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

func (b *Backend) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", b.handleLogin)
			r.Post("/signup", b.handleSignup)
			r.Post("/forgot-password", b.handleForgotPassword)
			r.Post("/reset-password/{token}", b.handleResetPassword)
			r.With(b.requireToken).Get("/verify", b.handleVerify)
			r.With(b.requireToken).Put("/profile", b.handleUpdateProfile)
			r.With(b.requireToken).Put("/change-password", b.handleChangePassword)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(b.requireToken)
			r.Get("/", b.handleListSubscriptions)
			r.Post("/", b.handleCreateSubscription)
			r.Get("/upcoming", b.handleUpcoming)
			r.Get("/date-range", b.handleDateRange)
			r.Get("/export", b.handleExport)
			r.Post("/import", b.handleImport)
			r.Put("/bulk", b.handleBulkUpdate)
			r.Delete("/bulk", b.handleBulkDelete)
			r.Get("/{id}", b.handleGetSubscription)
			r.Put("/{id}", b.handleUpdateSubscription)
			r.Delete("/{id}", b.handleDeleteSubscription)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Use(b.requireToken)
			r.Get("/overview", b.handleOverview)
			r.Get("/spending-trend", b.handleSpendingTrend)
			r.Get("/category-breakdown", b.handleCategoryBreakdown)
			r.Get("/billing-cycle", b.handleBillingCycle)
			r.Get("/top-subscriptions", b.handleTopSubscriptions)
			r.Get("/projections", b.handleProjections)
			r.Get("/insights", b.handleInsights)
			r.Post("/compare", b.handleCompare)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/templates", b.handleTemplates)
			r.Group(func(r chi.Router) {
				r.Use(b.requireToken)
				r.Get("/", b.handleListReports)
				r.Post("/generate", b.handleGenerateReport)
				r.Get("/scheduled", b.handleScheduledReports)
				r.Post("/schedule", b.handleScheduleReport)
				r.Put("/schedule/{id}", b.handleUpdateSchedule)
				r.Delete("/schedule/{id}", b.handleDeleteSchedule)
				r.Get("/{id}", b.handleGetReport)
				r.Delete("/{id}", b.handleDeleteReport)
				r.Get("/{id}/download", b.handleDownloadReport)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(b.requireToken)
			r.Get("/", b.handleListNotifications)
			r.Put("/read-all", b.handleMarkAllRead)
			r.Get("/preferences", b.handleGetNotificationPreferences)
			r.Put("/preferences", b.handleUpdateNotificationPreferences)
			r.Post("/test", b.handleTestNotification)
			r.Put("/{id}/read", b.handleMarkRead)
			r.Delete("/{id}", b.handleDeleteNotification)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/currencies", b.handleCurrencies)
			r.Group(func(r chi.Router) {
				r.Use(b.requireToken)
				r.Get("/", b.handleGetSettings)
				r.Put("/", b.handleUpdateSettings)
				r.Put("/currency", b.handleUpdateCurrency)
				r.Get("/categories", b.handleListCategories)
				r.Post("/categories", b.handleAddCategory)
				r.Put("/categories/{id}", b.handleUpdateCategory)
				r.Delete("/categories/{id}", b.handleDeleteCategory)
			})
		})
	})
	return r
}

// issueToken signs a demo session token for the account.
func (b *Backend) issueToken(userID string) (string, error) {
	now := b.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		Issuer:    "subsentry-demo",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

// userForToken accepts the fixed demo token or a token issued by issueToken.
func (b *Backend) userForToken(token string) (string, error) {
	if token == Token {
		return b.accountID(), nil
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization required")
			return
		}
		userID, err := b.userForToken(strings.TrimSpace(token))
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if requested := r.URL.Query().Get("userId"); requested != "" && requested != userID {
			respondWithError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithData(w http.ResponseWriter, code int, data interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"data": data})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"message": message})
}

func respondWithSuccess(w http.ResponseWriter) {
	respondWithData(w, http.StatusOK, map[string]bool{"success": true})
}

func decodeBody(r *http.Request, target interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(target)
}
