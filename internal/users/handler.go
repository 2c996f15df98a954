package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/platform/httpx"
	"github.com/medistock/medistock/internal/shared"
)

// RefreshCookie carries the refresh token between login and token renewal.
const RefreshCookie = "refreshToken"

// Handler exposes registration and session endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	authenticate func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. authenticate guards the registration route.
func NewHandler(logger *slog.Logger, service *Service, authenticate func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, authenticate: authenticate}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.authenticate != nil {
			r.Use(h.authenticate)
		}
		r.Post("/register-user", h.register)
	})
	r.Post("/auth-user-login", h.login)
	r.Get("/auth-manage-token", h.refresh)
	r.Post("/auth-user-logout", h.logout)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, fmt.Errorf("%w: please login first", shared.ErrUnauthorized))
		return
	}
	var input RegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed request body", shared.ErrInvalidInput))
		return
	}
	if _, err := h.service.Register(r.Context(), caller, input); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Registration successful"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed request body", shared.ErrInvalidInput))
		return
	}
	session, err := h.service.Login(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    session.RefreshToken,
		Path:     "/",
		MaxAge:   int(h.service.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	httpx.JSON(w, http.StatusOK, httpx.Envelope{
		Success:     true,
		Message:     "Login successful",
		Data:        session.User,
		AccessToken: session.AccessToken,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		token = cookie.Value
	}
	access, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Access token refreshed", AccessToken: access})
}

func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Logout successful"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("users request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
