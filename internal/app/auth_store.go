/**
 * @description
 * Authentication state for one session. State moves only through reduce, so every
 * transition is one of a fixed set of actions and listeners see the before and after.
 *
 * Key features:
 * - Restore verifies a stored token without credentials and drops expired JWTs locally.
 * - Every operation clears the previous error, toasts its outcome and returns a Result.
 * - Token and user are persisted together in session storage.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

// AuthAPI is the slice of the backend client the auth store calls.
type AuthAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Signup(ctx context.Context, in domain.SignupInput) (*domain.AuthResult, error)
	VerifyToken(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, profile domain.User) (*domain.User, error)
	ChangePassword(ctx context.Context, in domain.PasswordChange) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// AuthState is the observable auth state.
type AuthState struct {
	User          *domain.User `json:"user"`
	Token         string       `json:"-"`
	Loading       bool         `json:"loading"`
	Error         string       `json:"error,omitempty"`
	Authenticated bool         `json:"isAuthenticated"`
}

type authActionKind int

const (
	authStart authActionKind = iota
	authSuccess
	authFailure
	authLogout
	authUpdateUser
	authClearError
)

type authAction struct {
	kind  authActionKind
	user  *domain.User
	token string
	err   string
}

func reduce(s AuthState, a authAction) AuthState {
	switch a.kind {
	case authStart:
		s.Loading = true
		s.Error = ""
	case authSuccess:
		s = AuthState{User: a.user, Token: a.token, Authenticated: true}
	case authFailure:
		s = AuthState{Error: a.err}
	case authLogout:
		s = AuthState{}
	case authUpdateUser:
		s.User = a.user
	case authClearError:
		s.Error = ""
	}
	return s
}

// Result is returned by every auth operation.
type Result struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func failed(msg string, err error) Result {
	res := Result{Error: msg}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		res.Fields = verr.Fields
	}
	return res
}

// AuthListener observes transitions.
type AuthListener func(prev, next AuthState)

// AuthStore owns the auth state of one session.
type AuthStore struct {
	mu        sync.Mutex
	state     AuthState
	listeners []AuthListener

	api     AuthAPI
	session *SessionState
	toasts  *Toasts
	logger  *slog.Logger
	now     func() time.Time
}

func NewAuthStore(api AuthAPI, session *SessionState, toasts *Toasts, logger *slog.Logger) *AuthStore {
	return &AuthStore{api: api, session: session, toasts: toasts, logger: logger, now: time.Now}
}

// State returns a copy of the current state.
func (a *AuthStore) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// OnChange registers a listener. Listeners run after the state changed, outside the lock.
func (a *AuthStore) OnChange(l AuthListener) {
	a.mu.Lock()
	a.listeners = append(a.listeners, l)
	a.mu.Unlock()
}

func (a *AuthStore) dispatch(act authAction) {
	a.mu.Lock()
	prev := a.state
	next := reduce(prev, act)
	a.state = next
	listeners := append([]AuthListener(nil), a.listeners...)
	a.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
}

type claimsView struct {
	subject string
	expires time.Time
}

// tokenClaims reads claims without verifying the signature. Opaque tokens yield zero values.
func tokenClaims(token string) claimsView {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return claimsView{}
	}
	view := claimsView{subject: claims.Subject}
	if claims.ExpiresAt != nil {
		view.expires = claims.ExpiresAt.Time
	}
	return view
}

func (a *AuthStore) tokenExpired(token string) bool {
	exp := tokenClaims(token).expires
	return !exp.IsZero() && !a.now().Before(exp)
}

// Restore re-establishes the session from stored credentials.
func (a *AuthStore) Restore(ctx context.Context) error {
	token := a.session.Token()
	if token == "" {
		return nil
	}
	if a.tokenExpired(token) {
		a.logger.Info("stored token expired", "session_id", a.session.ID())
		a.dispatch(authAction{kind: authLogout})
		return a.session.Clear(ctx)
	}

	a.dispatch(authAction{kind: authStart})
	user, err := a.api.VerifyToken(ctx)
	if err != nil {
		a.logger.Info("stored token rejected", "session_id", a.session.ID(), "error", err)
		a.dispatch(authAction{kind: authLogout})
		if clearErr := a.session.Clear(ctx); clearErr != nil {
			return clearErr
		}
		if errors.Is(err, subsentryclient.ErrUnauthorized) {
			return nil
		}
		return err
	}
	if err := a.session.Persist(ctx, token, user); err != nil {
		a.logger.Warn("failed to persist restored user", "error", err)
	}
	a.dispatch(authAction{kind: authSuccess, user: user, token: token})
	return nil
}

func (a *AuthStore) establish(ctx context.Context, res *domain.AuthResult) error {
	user := res.User
	if err := a.session.Persist(ctx, res.Token, &user); err != nil {
		return err
	}
	a.dispatch(authAction{kind: authSuccess, user: &user, token: res.Token})
	return nil
}

func (a *AuthStore) fail(msg string, err error) Result {
	a.dispatch(authAction{kind: authFailure, err: msg})
	a.toasts.Error(msg)
	return failed(msg, err)
}

func (a *AuthStore) Login(ctx context.Context, creds domain.Credentials) Result {
	a.dispatch(authAction{kind: authStart})
	if err := creds.Validate(); err != nil {
		return a.fail("Please check the highlighted fields", err)
	}
	res, err := a.api.Login(ctx, creds)
	if err != nil {
		return a.fail(subsentryclient.MessageOr(err, "Login failed"), err)
	}
	if err := a.establish(ctx, res); err != nil {
		a.logger.Error("failed to persist session after login", "error", err)
		return a.fail("Login failed", err)
	}
	a.toasts.Success("Welcome back, " + res.User.Name + "!")
	return Result{Success: true}
}

func (a *AuthStore) Signup(ctx context.Context, in domain.SignupInput) Result {
	a.dispatch(authAction{kind: authStart})
	if err := in.Validate(); err != nil {
		return a.fail("Please check the highlighted fields", err)
	}
	res, err := a.api.Signup(ctx, in)
	if err != nil {
		return a.fail(subsentryclient.MessageOr(err, "Signup failed"), err)
	}
	if err := a.establish(ctx, res); err != nil {
		a.logger.Error("failed to persist session after signup", "error", err)
		return a.fail("Signup failed", err)
	}
	a.toasts.Success("Welcome to SubSentry, " + res.User.Name + "!")
	return Result{Success: true}
}

// Logout clears session storage and resets the state.
func (a *AuthStore) Logout(ctx context.Context) Result {
	if err := a.session.Clear(ctx); err != nil {
		a.logger.Warn("failed to clear session on logout", "error", err)
	}
	a.dispatch(authAction{kind: authLogout})
	a.toasts.Success("Logged out successfully")
	return Result{Success: true}
}

// ForceLogout handles a 401 from the backend; the client already cleared the token.
func (a *AuthStore) ForceLogout() {
	if !a.State().Authenticated {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionWriteTimeout)
	defer cancel()
	if err := a.session.Clear(ctx); err != nil {
		a.logger.Warn("failed to clear session after 401", "error", err)
	}
	a.dispatch(authAction{kind: authLogout})
	a.toasts.Error(subsentryclient.ErrUnauthorized.Error())
}

func (a *AuthStore) UpdateProfile(ctx context.Context, profile domain.User) Result {
	a.dispatch(authAction{kind: authClearError})
	user, err := a.api.UpdateProfile(ctx, profile)
	if err != nil {
		msg := subsentryclient.MessageOr(err, "Profile update failed")
		a.toasts.Error(msg)
		return failed(msg, err)
	}
	if err := a.session.SetUser(ctx, *user); err != nil {
		a.logger.Warn("failed to persist updated user", "error", err)
	}
	a.dispatch(authAction{kind: authUpdateUser, user: user})
	a.toasts.Success("Profile updated successfully")
	return Result{Success: true}
}

func (a *AuthStore) ChangePassword(ctx context.Context, in domain.PasswordChange) Result {
	a.dispatch(authAction{kind: authClearError})
	if err := in.Validate(); err != nil {
		return failed("Please check the highlighted fields", err)
	}
	if err := a.api.ChangePassword(ctx, in); err != nil {
		msg := subsentryclient.MessageOr(err, "Password change failed")
		a.toasts.Error(msg)
		return failed(msg, err)
	}
	a.toasts.Success("Password changed successfully")
	return Result{Success: true}
}

func (a *AuthStore) ForgotPassword(ctx context.Context, email string) Result {
	a.dispatch(authAction{kind: authClearError})
	if err := a.api.ForgotPassword(ctx, email); err != nil {
		msg := subsentryclient.MessageOr(err, "Failed to send reset email")
		a.toasts.Error(msg)
		return failed(msg, err)
	}
	a.toasts.Success("Password reset email sent")
	return Result{Success: true}
}

func (a *AuthStore) ResetPassword(ctx context.Context, token, password string) Result {
	a.dispatch(authAction{kind: authClearError})
	if err := a.api.ResetPassword(ctx, token, password); err != nil {
		msg := subsentryclient.MessageOr(err, "Password reset failed")
		a.toasts.Error(msg)
		return failed(msg, err)
	}
	a.toasts.Success("Password reset successfully")
	return Result{Success: true}
}
