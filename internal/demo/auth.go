package demo

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/subsentry/dashboard-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeBody(r, &creds); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	user := b.data.User
	hash := b.data.PasswordHash
	b.mu.Unlock()

	if !strings.EqualFold(strings.TrimSpace(creds.Email), user.Email) ||
		bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)) != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	token, err := b.issueToken(user.ID)
	if err != nil {
		b.logger.Error("failed to sign demo token", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	respondWithData(w, http.StatusOK, domain.AuthResult{User: user, Token: token})
}

// handleSignup replaces the backend's account with a new, empty one.
func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in domain.SignupInput
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	b.mu.Lock()
	prev := b.data.User
	b.data.User = domain.User{
		ID:              "user-" + uuid.NewString(),
		Name:            in.Name,
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		DefaultCurrency: prev.DefaultCurrency,
		Timezone:        prev.Timezone,
		DateFormat:      prev.DateFormat,
	}
	b.data.PasswordHash = hash
	b.data.Subscriptions = nil
	b.data.Notifications = nil
	b.data.Reports = nil
	b.data.Schedules = []domain.ReportSchedule{}
	user := b.data.User
	b.mu.Unlock()

	token, err := b.issueToken(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	respondWithData(w, http.StatusCreated, domain.AuthResult{User: user, Token: token})
}

func (b *Backend) handleVerify(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	user := b.data.User
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, map[string]domain.User{"user": user})
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in domain.User
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	u := &b.data.User
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	u.Bio = in.Bio
	u.Location = in.Location
	u.Website = in.Website
	if in.Avatar != "" {
		u.Avatar = in.Avatar
	}
	if in.DefaultCurrency != "" {
		u.DefaultCurrency = in.DefaultCurrency
	}
	if in.Timezone != "" {
		u.Timezone = in.Timezone
	}
	if in.DateFormat != "" {
		u.DateFormat = in.DateFormat
	}
	user := *u
	b.mu.Unlock()

	respondWithData(w, http.StatusOK, map[string]domain.User{"user": user})
}

func (b *Backend) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in domain.PasswordChange
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if bcrypt.CompareHashAndPassword(b.data.PasswordHash, []byte(in.CurrentPassword)) != nil {
		respondWithError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Password change failed")
		return
	}
	b.data.PasswordHash = hash
	respondWithSuccess(w)
}

func (b *Backend) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &in); err != nil || strings.TrimSpace(in.Email) == "" {
		respondWithError(w, http.StatusBadRequest, "Email is required")
		return
	}
	b.logger.Info("demo password reset requested", "email", in.Email)
	respondWithSuccess(w)
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &in); err != nil || len(in.Password) < 6 {
		respondWithError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Password reset failed")
		return
	}
	b.mu.Lock()
	b.data.PasswordHash = hash
	b.mu.Unlock()
	respondWithSuccess(w)
}
