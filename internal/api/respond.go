package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 5 << 20
	loginRedirect  = "/login"
)

// envelope wraps every successful response.
type envelope struct {
	Data   interface{} `json:"data"`
	Toasts []app.Toast `json:"toasts"`
}

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
	Toasts   []app.Toast       `json:"toasts,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func drain(ws *app.Workspace) []app.Toast {
	if ws == nil {
		return []app.Toast{}
	}
	return ws.Toasts.Drain()
}

// respond writes data with the workspace's pending toasts.
func respond(w http.ResponseWriter, ws *app.Workspace, code int, data interface{}) {
	respondWithJSON(w, code, envelope{Data: data, Toasts: drain(ws)})
}

// classify maps an error onto a status and an error body.
func classify(err error) (int, errorBody) {
	var verr *domain.ValidationError
	var apiErr *subsentryclient.APIError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errorBody{Error: "Please check the highlighted fields", Fields: verr.Fields}
	case errors.Is(err, subsentryclient.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Error: subsentryclient.ErrUnauthorized.Error(), Redirect: loginRedirect}
	case errors.Is(err, domain.ErrMissingUserID), errors.Is(err, query.ErrDisabled):
		return http.StatusBadRequest, errorBody{Error: domain.ErrMissingUserID.Error(), Redirect: loginRedirect}
	case errors.Is(err, app.ErrNoWizard), errors.Is(err, domain.ErrWizardNotFinal), errors.Is(err, domain.ErrWizardBounds),
		errors.Is(err, domain.ErrNotFinalStep), errors.Is(err, domain.ErrOnboardingEnd):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrSelectGoal), errors.Is(err, domain.ErrUnknownGoal):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, app.ErrUnknownView), errors.Is(err, app.ErrDemoDisabled):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, subsentryclient.ErrTransport):
		return http.StatusBadGateway, errorBody{Error: "Unable to reach the SubSentry backend. Please try again."}
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, errorBody{Error: subsentryclient.MessageOr(err, "Upstream request failed")}
	default:
		return http.StatusInternalServerError, errorBody{Error: "Internal server error"}
	}
}

// respondWithError writes err in the error shape, carrying any toasts the failure queued.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, ws *app.Workspace, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	if toasts := drain(ws); len(toasts) > 0 {
		body.Toasts = toasts
	}
	respondWithJSON(w, code, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	respondWithJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// decodeBody reads a JSON body into target. An empty body leaves target untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// resultStatus picks the status of an auth operation result.
func resultStatus(res app.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case len(res.Fields) > 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func respondWithResult(w http.ResponseWriter, ws *app.Workspace, res app.Result, data interface{}) {
	if res.Success {
		respond(w, ws, http.StatusOK, data)
		return
	}
	respondWithJSON(w, resultStatus(res), errorBody{Error: res.Error, Fields: res.Fields, Toasts: drain(ws)})
}
