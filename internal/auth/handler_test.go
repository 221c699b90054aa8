package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-clinic/meridian/internal/auth"
	_ "github.com/meridian-clinic/meridian/testing"
)

func newTestRouter(t *testing.T) (http.Handler, *fakeRepo, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := auth.NewTokenSigner([]byte("test-secret"), time.Hour)
	svc := auth.NewService(logger, repo, signer, notifier, auth.ServiceConfig{})
	handler := auth.NewHandler(logger, svc, nil)
	mw := auth.Middleware{Logger: logger, Service: svc}

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r)
		r.With(mw.RequireAuth).Get("/me", handler.HandleMe)
	})
	return r, repo, notifier
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func decodeSession(t *testing.T, res *httptest.ResponseRecorder) auth.Session {
	t.Helper()
	var session auth.Session
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &session))
	return session
}

func TestRegisterAndLoginScenario(t *testing.T) {
	router, _, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.Code)
	reg := decodeSession(t, res)
	require.NotEmpty(t, reg.Token)
	assert.Equal(t, "jane@x.com", reg.Account.Email)

	res = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, res.Code)
	login := decodeSession(t, res)
	require.NotEmpty(t, login.Token)

	res = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": "jane@x.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid Credentials")
}

func TestRegisterDuplicateEmailEndpoint(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.Code)

	res = doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Imposter", "email": "jane@x.com", "password": "secret2",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Email Taken")
	assert.Len(t, repo.accounts, 1)
}

func TestRegisterValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "not-an-email", "password": "secret1",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Email")

	res = doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestForgotAndResetPasswordScenario(t *testing.T) {
	router, _, notifier := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "secret1",
	})

	known := doJSON(t, router, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "jane@x.com"})
	unknown := doJSON(t, router, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "nobody@x.com"})
	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	// Anti-enumeration: both acknowledgement bodies are identical.
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	token := notifier.last().token
	res := doJSON(t, router, http.MethodPost, "/auth/reset-password", map[string]string{
		"token": token, "newPassword": "newpass123",
	})
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": "jane@x.com", "password": "newpass123",
	})
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, router, http.MethodPost, "/auth/reset-password", map[string]string{
		"token": token, "newPassword": "again1234",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid Reset Token")
}

func TestRefreshTokenEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "secret1",
	})
	reg := decodeSession(t, res)

	res = doJSON(t, router, http.MethodPost, "/auth/refresh-token", map[string]string{"token": reg.Token})
	require.Equal(t, http.StatusOK, res.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.NotEmpty(t, payload["token"])

	res = doJSON(t, router, http.MethodPost, "/auth/refresh-token", map[string]string{"token": "garbage"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestVerifyEmailEndpoint(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "secret1",
	})
	reg := decodeSession(t, res)
	token := repo.get(reg.Account.ID).VerificationToken

	res = doJSON(t, router, http.MethodGet, "/auth/verify-email/"+token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, repo.get(reg.Account.ID).EmailVerified)

	res = doJSON(t, router, http.MethodGet, "/auth/verify-email/"+token, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutAcknowledges(t *testing.T) {
	router, _, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "logged out")
}

func TestMeEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "secret1",
	})
	reg := decodeSession(t, res)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jane@x.com")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
