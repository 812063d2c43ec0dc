package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/domain"
)

// authPayload is returned by every auth endpoint that succeeds.
type authPayload struct {
	User          *domain.User `json:"user"`
	Authenticated bool         `json:"isAuthenticated"`
	Demo          bool         `json:"demoMode"`
}

func authData(ws *app.Workspace) authPayload {
	st := ws.Auth.State()
	return authPayload{User: st.User, Authenticated: st.Authenticated, Demo: ws.Demo()}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var creds domain.Credentials
	if err := decodeBody(w, r, &creds); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	res := ws.Auth.Login(r.Context(), creds)
	respondWithResult(w, ws, res, authData(ws))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var in domain.SignupInput
	if err := decodeBody(w, r, &in); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	res := ws.Auth.Signup(r.Context(), in)
	respondWithResult(w, ws, res, authData(ws))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	res := ws.Auth.Logout(r.Context())
	respondWithResult(w, ws, res, authData(ws))
}

// handleMe reports the signed-in user, or 401 with a login redirect.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if !ws.Auth.State().Authenticated {
		respondWithJSON(w, http.StatusUnauthorized, errorBody{Error: "Not signed in", Redirect: loginRedirect, Toasts: drain(ws)})
		return
	}
	respond(w, ws, http.StatusOK, authData(ws))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var profile domain.User
	if err := decodeBody(w, r, &profile); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	res := ws.UpdateProfile(r.Context(), profile)
	respondWithResult(w, ws, res, authData(ws))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var in domain.PasswordChange
	if err := decodeBody(w, r, &in); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	respondWithResult(w, ws, ws.Auth.ChangePassword(r.Context(), in), nil)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Email == "" {
		badRequest(w, "Email is required")
		return
	}
	respondWithResult(w, ws, ws.Auth.ForgotPassword(r.Context(), req.Email), nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Password == "" {
		badRequest(w, "Password is required")
		return
	}
	res := ws.Auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	respondWithResult(w, ws, res, nil)
}

// demoStatus is returned by the demo endpoints.
type demoStatus struct {
	Available bool         `json:"available"`
	Active    bool         `json:"active"`
	Auth      *authPayload `json:"auth,omitempty"`
}

func (s *Server) handleDemoStatus(w http.ResponseWriter, r *http.Request) {
	ws, err := s.manager.Open(r.Context(), GetSessionIDFromContext(r.Context()))
	if err != nil {
		s.respondWithError(w, r, nil, err)
		return
	}
	respond(w, ws, http.StatusOK, demoStatus{Available: s.manager.DemoAvailable(), Active: ws.Demo()})
}

// handleDemoSetup signs the session in against the demo backend.
func (s *Server) handleDemoSetup(w http.ResponseWriter, r *http.Request) {
	ws, err := s.manager.EnableDemo(r.Context(), GetSessionIDFromContext(r.Context()))
	if err != nil {
		s.respondWithError(w, r, nil, err)
		return
	}
	auth := authData(ws)
	respond(w, ws, http.StatusOK, demoStatus{Available: true, Active: true, Auth: &auth})
}

// handleDemoReset reseeds the demo data and signs the session out of demo mode.
func (s *Server) handleDemoReset(w http.ResponseWriter, r *http.Request) {
	ws, err := s.manager.ResetDemo(r.Context(), GetSessionIDFromContext(r.Context()))
	if err != nil {
		s.respondWithError(w, r, nil, err)
		return
	}
	ws.Toasts.Info("Demo data reset")
	auth := authData(ws)
	respond(w, ws, http.StatusOK, demoStatus{Available: true, Active: false, Auth: &auth})
}
