package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/expenses"
	"github.com/medistock/medistock/internal/observability"
	"github.com/medistock/medistock/internal/shared"
	_ "github.com/medistock/medistock/internal/testing/guard"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type emptyExpenses struct{}

func (emptyExpenses) Insert(ctx context.Context, e expenses.Expense) (expenses.Expense, error) {
	return e, nil
}

func (emptyExpenses) List(ctx context.Context, pharmacyID string, window *shared.TimeWindow) ([]expenses.Expense, error) {
	return nil, nil
}

func (emptyExpenses) Delete(ctx context.Context, pharmacyID, code string) error {
	return shared.ErrNotFound
}

func testRouter(t *testing.T, db Pinger) (http.Handler, *auth.TokenService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("router-secret")
	require.NoError(t, err)
	mw := auth.Middleware{Verifier: tokens, Logger: logger}
	cfg := &Config{AppRequestTimeout: time.Second, RateLimitPerMinute: 1000}
	return NewRouter(RouterParams{
		Logger:          logger,
		Config:          cfg,
		Authenticate:    mw.Authenticate,
		ExpensesHandler: expenses.NewHandler(logger, expenses.NewService(emptyExpenses{}, logger)),
		Metrics:         observability.NewMetrics(),
		Database:        db,
	}), tokens
}

func TestGuardEnablesTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestRootAndHealth(t *testing.T) {
	router, _ := testRouter(t, stubPinger{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthReportsDatabaseFailure(t *testing.T) {
	router, _ := testRouter(t, stubPinger{err: errors.New("down")})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, tokens := testRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/expenses", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := tokens.Issue(auth.Subject{UserID: 1, PharmacyID: "ph-a", Role: auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/expenses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	router, _ := testRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}
