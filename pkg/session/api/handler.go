// Package api exposes the session lifecycle over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-session/pkg/authn"
	"github.com/tendant/simple-session/pkg/client"
	"github.com/tendant/simple-session/pkg/directory"
	"github.com/tendant/simple-session/pkg/errors"
	"github.com/tendant/simple-session/pkg/session"
)

// Handler handles HTTP requests for the session lifecycle
type Handler struct {
	sessionService   *session.Service
	directoryService *directory.Service
	cookieSetter     CookieSetter
}

// NewHandler creates a new session handler
func NewHandler(sessionService *session.Service, directoryService *directory.Service, cookieSetter CookieSetter) *Handler {
	return &Handler{
		sessionService:   sessionService,
		directoryService: directoryService,
		cookieSetter:     cookieSetter,
	}
}

// RegisterRoutes registers the auth routes. Everything except login sits
// behind the session middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(client.AuthMiddleware(h.sessionService))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Post("/impersonate", h.Impersonate)
		r.Post("/stop_impersonation", h.StopImpersonation)
		r.Get("/session", h.Session)
		r.Get("/sessions", h.ListSessions)
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

type ImpersonateRequest struct {
	ImpersonatorID string `json:"impersonator_id"`
	TargetUserID   string `json:"target_user_id"`
}

type SessionResponse struct {
	ImpersonatorName *string `json:"impersonator_name"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// renderError maps a structured error code to its HTTP status. Only the
// code and a generic message leave the server; detail stays in the logs.
func renderError(w http.ResponseWriter, r *http.Request, err error, message string) {
	code := errors.GetCode(err)
	status := errors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "code", code, "err", err)
	} else {
		slog.Debug("Request rejected", "code", code, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: string(code), Message: message})
}

func (h *Handler) writeToken(w http.ResponseWriter, r *http.Request, token *session.IssuedToken) {
	h.cookieSetter.SetCookie(w, client.ACCESS_TOKEN_NAME, token.Token, token.ExpiresAt)
	render.JSON(w, r, TokenResponse{
		Status:    "success",
		UserID:    token.UserID.String(),
		ExpiresAt: token.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse body"), "unable to parse body")
		return
	}

	token, err := h.sessionService.Login(r.Context(), authn.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		renderError(w, r, err, "authentication failed")
		return
	}

	slog.Info("User logged in", "userID", token.UserID)
	h.writeToken(w, r, token)
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.AuthUserFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.Unauthenticated("not authenticated"), "not authenticated")
		return
	}

	if err := h.sessionService.Logout(r.Context(), authUser.UserID, authUser.JTI); err != nil {
		renderError(w, r, err, "logout failed")
		return
	}

	h.cookieSetter.ClearCookie(w, client.ACCESS_TOKEN_NAME)
	render.JSON(w, r, MessageResponse{Message: "logged out"})
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.AuthUserFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.Unauthenticated("not authenticated"), "not authenticated")
		return
	}

	profile, err := h.directoryService.GetProfile(r.Context(), authUser.UserID)
	if err != nil {
		renderError(w, r, err, "user not found")
		return
	}

	render.JSON(w, r, profile)
}

// Impersonate handles POST /auth/impersonate
func (h *Handler) Impersonate(w http.ResponseWriter, r *http.Request) {
	var req ImpersonateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse body"), "unable to parse body")
		return
	}

	impersonatorID, err := uuid.Parse(req.ImpersonatorID)
	if err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid impersonator_id"), "invalid impersonator_id")
		return
	}
	targetUserID, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid target_user_id"), "invalid target_user_id")
		return
	}

	token, err := h.sessionService.Impersonate(r.Context(), impersonatorID, targetUserID)
	if err != nil {
		renderError(w, r, err, "impersonation failed")
		return
	}

	h.writeToken(w, r, token)
}

// StopImpersonation handles POST /auth/stop_impersonation
func (h *Handler) StopImpersonation(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.AuthUserFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.Unauthenticated("not authenticated"), "not authenticated")
		return
	}

	token, err := h.sessionService.StopImpersonation(r.Context(), authUser.UserID)
	if err != nil {
		renderError(w, r, err, "no active impersonation")
		return
	}

	h.writeToken(w, r, token)
}

// ListSessions handles GET /auth/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.AuthUserFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.Unauthenticated("not authenticated"), "not authenticated")
		return
	}

	summaries, err := h.sessionService.ListActiveSessions(r.Context(), authUser.UserID, authUser.JTI)
	if err != nil {
		renderError(w, r, err, "failed to list sessions")
		return
	}

	render.JSON(w, r, summaries)
}

// Session handles GET /auth/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.AuthUserFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.Unauthenticated("not authenticated"), "not authenticated")
		return
	}

	info, err := h.sessionService.SessionInfo(r.Context(), authUser.UserID)
	if err != nil {
		renderError(w, r, err, "failed to load session")
		return
	}

	render.JSON(w, r, SessionResponse{ImpersonatorName: info.ImpersonatorName})
}
