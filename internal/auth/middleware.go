package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/medistock/medistock/internal/platform/httpx"
	"github.com/medistock/medistock/internal/shared"
)

// Verifier resolves a bearer token into a Subject.
type Verifier interface {
	Verify(token string) (Subject, error)
}

// Middleware guards routes with bearer-token authentication.
type Middleware struct {
	Verifier Verifier
	Logger   *slog.Logger
}

// Authenticate requires a valid bearer token and stores the Subject in context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		subject, err := m.Verifier.Verify(token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
	})
}

// RequireRole rejects authenticated subjects that lack role.
func (m Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, fmt.Errorf("%w: please login first", shared.ErrUnauthorized))
				return
			}
			if err := RequireRole(subject, role); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", fmt.Errorf("%w: key not found. Please Login First", shared.ErrUnauthorized)
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: token not found. Please Login First", shared.ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}
