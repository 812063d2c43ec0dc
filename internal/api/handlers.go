/**
 * @description
 * HTTP handlers for the dashboard API. Handlers parse the request, call the session's
 * workspace and write the `{data, toasts}` envelope. The workspace publishes change
 * events itself, so mounted views refetch without any work here.
 */
package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// viewParams reads the client-controlled view inputs from the query string.
func viewParams(r *http.Request) app.ViewParams {
	q := r.URL.Query()
	params := app.ViewParams{
		Month:     q.Get("month"),
		Selected:  q.Get("selected"),
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		DateRange: q.Get("dateRange"),
	}
	for _, v := range q["compare"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				params.Compare = append(params.Compare, id)
			}
		}
	}
	return params
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	view, err := app.ParseViewName(chi.URLParam(r, "view"))
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	data, err := ws.Render(r.Context(), view, viewParams(r))
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, data)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var in domain.SubscriptionInput
	if err := decodeBody(w, r, &in); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	sub, err := ws.CreateSubscription(r.Context(), in)
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusCreated, sub)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var in domain.SubscriptionInput
	if err := decodeBody(w, r, &in); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	sub, err := ws.UpdateSubscription(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, sub)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.DeleteSubscription(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		Updates []domain.BulkUpdate `json:"updates"`
	}
	if err := decodeBody(w, r, &req); err != nil || len(req.Updates) == 0 {
		badRequest(w, "At least one update is required")
		return
	}
	if err := ws.BulkUpdateSubscriptions(r.Context(), req.Updates); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(w, r, &req); err != nil || len(req.IDs) == 0 {
		badRequest(w, "At least one id is required")
		return
	}
	if err := ws.BulkDeleteSubscriptions(r.Context(), req.IDs); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

// handleImport accepts a multipart "file" field, or a raw body named by ?filename=.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var filename string
	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "A file is required")
			return
		}
		defer file.Close()
		if data, err = io.ReadAll(file); err != nil {
			badRequest(w, "Failed to read the uploaded file")
			return
		}
		filename = header.Filename
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			badRequest(w, "Failed to read the request body")
			return
		}
		filename = r.URL.Query().Get("filename")
	}
	if len(data) == 0 || filename == "" {
		badRequest(w, "A named, non-empty file is required")
		return
	}

	imported, err := ws.ImportSubscriptions(r.Context(), filename, data)
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, map[string]int{"imported": imported})
}

// writeBlob streams a downloaded file. Toasts stay queued for the next response.
func writeBlob(w http.ResponseWriter, blob *subsentryclient.Blob) {
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(blob.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

// contentDisposition quotes or encodes filename as needed. A name that cannot be
// encoded is dropped.
func contentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	blob, err := ws.ExportSubscriptions(r.Context(), format, r.URL.Query().Get("category"))
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	writeBlob(w, blob)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	list, err := ws.NotificationList(domain.ParseNotificationFilter(r.URL.Query().Get("filter")))
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, list)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.MarkAllNotificationsRead(r.Context()); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.DeleteNotification(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var prefs domain.NotificationPreferences
	if err := decodeBody(w, r, &prefs); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := ws.UpdateNotificationPreferences(r.Context(), prefs); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, prefs)
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		Type domain.NotificationType `json:"type"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = domain.NotificationInfo
	}
	if err := ws.SendTestNotification(r.Context(), req.Type); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleEnableNotification(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		Channel string `json:"channel"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Channel == "" {
		badRequest(w, "Channel is required")
		return
	}
	added, err := ws.EnableNotification(r.Context(), req.Channel)
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, map[string]bool{"added": added})
}

// wizardRequest drives the report wizard. Action is one of open, update, next, prev,
// submit or close.
type wizardRequest struct {
	Action     string             `json:"action"`
	TemplateID string             `json:"templateId,omitempty"`
	Form       *domain.ReportForm `json:"form,omitempty"`
}

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req wizardRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	var view *app.WizardView
	var err error
	switch req.Action {
	case "open":
		view, err = ws.OpenWizard(r.Context(), req.TemplateID)
	case "update":
		if req.Form == nil {
			badRequest(w, "Form is required")
			return
		}
		view, err = ws.UpdateWizard(*req.Form)
	case "next", "prev":
		if req.Form != nil {
			if _, err := ws.UpdateWizard(*req.Form); err != nil {
				s.respondWithError(w, r, ws, err)
				return
			}
		}
		if req.Action == "next" {
			view, err = ws.WizardNext()
		} else {
			view, err = ws.WizardPrev()
		}
	case "submit":
		if req.Form != nil {
			if _, err := ws.UpdateWizard(*req.Form); err != nil {
				s.respondWithError(w, r, ws, err)
				return
			}
		}
		report, err := ws.SubmitWizard(r.Context())
		if err != nil {
			s.respondWithError(w, r, ws, err)
			return
		}
		respond(w, ws, http.StatusCreated, report)
		return
	case "close":
		ws.CloseWizard()
		respond(w, ws, http.StatusOK, nil)
		return
	default:
		badRequest(w, "Unknown wizard action")
		return
	}

	if err != nil {
		// A step validation failure still returns the wizard so the form keeps its values.
		code, body := classify(err)
		if view != nil {
			respondWithJSON(w, code, struct {
				errorBody
				Wizard *app.WizardView `json:"wizard"`
			}{body, view})
			return
		}
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, view)
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	blob, err := ws.DownloadReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	writeBlob(w, blob)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.DeleteReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var sched domain.ReportSchedule
	if err := decodeBody(w, r, &sched); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := ws.UpdateSchedule(r.Context(), chi.URLParam(r, "id"), sched); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var settings domain.Settings
	if err := decodeBody(w, r, &settings); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := ws.UpdateSettings(r.Context(), settings); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, settings)
}

func (s *Server) handleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		Currency string `json:"currency"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Currency == "" {
		badRequest(w, "Currency is required")
		return
	}
	if err := ws.UpdateCurrency(r.Context(), req.Currency); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var cat domain.Category
	if err := decodeBody(w, r, &cat); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	created, err := ws.AddCategory(r.Context(), cat)
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var cat domain.Category
	if err := decodeBody(w, r, &cat); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := ws.UpdateCategory(r.Context(), chi.URLParam(r, "id"), cat); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, nil)
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	respond(w, ws, http.StatusOK, map[string]domain.Theme{"theme": ws.ToggleTheme(r.Context())})
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var view *app.OnboardingView
	var err error
	switch chi.URLParam(r, "action") {
	case "next":
		view, err = ws.OnboardingNext()
	case "prev":
		view, err = ws.OnboardingPrev()
	case "toggle-goal":
		var req struct {
			Goal string `json:"goal"`
		}
		if decodeErr := decodeBody(w, r, &req); decodeErr != nil || req.Goal == "" {
			badRequest(w, "Goal is required")
			return
		}
		view, err = ws.OnboardingToggleGoal(req.Goal)
	case "complete":
		view, err = ws.OnboardingComplete()
	default:
		respondWithJSON(w, http.StatusNotFound, errorBody{Error: "Unknown onboarding action"})
		return
	}
	if err != nil {
		s.respondWithError(w, r, ws, err)
		return
	}
	respond(w, ws, http.StatusOK, view)
}
