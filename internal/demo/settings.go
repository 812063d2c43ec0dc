package demo

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/subsentry/dashboard-service/internal/domain"
)

func (b *Backend) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, domain.SupportedCurrencies)
}

func supportedCurrency(code string) bool {
	for _, c := range domain.SupportedCurrencies {
		if c.Code == code {
			return true
		}
	}
	return false
}

func (b *Backend) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	s := b.data.Settings
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, s)
}

// handleUpdateSettings also mirrors the profile fields onto the account.
func (b *Backend) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in domain.Settings
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.DefaultCurrency != "" && !supportedCurrency(in.DefaultCurrency) {
		respondWithError(w, http.StatusBadRequest, "Unsupported currency")
		return
	}

	b.mu.Lock()
	b.data.Settings = in
	u := &b.data.User
	if in.Name != "" {
		u.Name = in.Name
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
	u.Bio, u.Location, u.Website = in.Bio, in.Location, in.Website
	b.mu.Unlock()

	respondWithData(w, http.StatusOK, in)
}

func (b *Backend) handleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Currency string `json:"currency"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(in.Currency))
	if !supportedCurrency(code) {
		respondWithError(w, http.StatusBadRequest, "Unsupported currency")
		return
	}
	b.mu.Lock()
	b.data.Settings.DefaultCurrency = code
	b.data.User.DefaultCurrency = code
	b.mu.Unlock()
	respondWithSuccess(w)
}

func (b *Backend) handleListCategories(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]domain.Category{}, b.data.Categories...)
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, out)
}

func (b *Backend) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var in domain.Category
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Category name is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.data.Categories {
		if strings.EqualFold(c.Name, in.Name) {
			respondWithError(w, http.StatusConflict, "Category already exists")
			return
		}
	}
	in.ID = "cat-" + uuid.NewString()
	b.data.Categories = append(b.data.Categories, in)
	respondWithData(w, http.StatusCreated, in)
}

func (b *Backend) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in domain.Category
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.data.Categories {
		if b.data.Categories[i].ID == id {
			if name := strings.TrimSpace(in.Name); name != "" {
				b.data.Categories[i].Name = name
			}
			if in.Color != "" {
				b.data.Categories[i].Color = in.Color
			}
			respondWithData(w, http.StatusOK, b.data.Categories[i])
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "Category not found")
}

func (b *Backend) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.data.Categories {
		if c.ID == id {
			b.data.Categories = append(b.data.Categories[:i], b.data.Categories[i+1:]...)
			respondWithSuccess(w)
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "Category not found")
}
