package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-clinic/meridian/internal/platform/httpx"
	"github.com/meridian-clinic/meridian/internal/shared"
)

// Observer receives auth operation outcomes for metrics.
type Observer interface {
	ObserveAuth(operation, result string)
}

// Handler wires the JSON endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	observer  Observer
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. observer may be nil.
func NewHandler(logger *slog.Logger, service *Service, observer Observer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		observer:  observer,
		validator: validator.New(),
	}
}

func (h *Handler) observe(operation, result string) {
	if h.observer != nil {
		h.observer.ObserveAuth(operation, result)
	}
}

// MountRoutes registers auth routes on the provided router. Credential
// endpoints get a tighter per-IP rate limit than the rest of the app.
func (h *Handler) MountRoutes(r chi.Router) {
	credentialLimit := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))

	r.With(credentialLimit).Post("/login", h.handleLogin)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
	r.Post("/refresh-token", h.handleRefreshToken)
	r.With(credentialLimit).Post("/forgot-password", h.handleForgotPassword)
	r.With(credentialLimit).Post("/reset-password", h.handleResetPassword)
	r.Get("/verify-email/{token}", h.handleVerifyEmail)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	session, err := h.service.Login(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.observe("login", "failure")
		h.respondError(w, r, "login", err)
		return
	}
	h.observe("login", "success")
	httpx.JSON(w, http.StatusOK, session)
}

type registerRequest struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=6"`
	Phone             string `json:"phone" validate:"omitempty,e164|numeric"`
	Address           string `json:"address"`
	InsuranceProvider string `json:"insuranceProvider"`
	InsurancePolicy   string `json:"insurancePolicy"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	session, err := h.service.Register(r.Context(), RegisterInput{
		Name:              req.Name,
		Email:             req.Email,
		Password:          req.Password,
		Phone:             req.Phone,
		Address:           req.Address,
		InsuranceProvider: req.InsuranceProvider,
		InsurancePolicy:   req.InsurancePolicy,
	})
	if err != nil {
		h.observe("register", "failure")
		h.respondError(w, r, "register", err)
		return
	}
	h.observe("register", "success")
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless; invalidation is the client discarding its
	// copy. The endpoint exists so clients get a uniform acknowledgement.
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type refreshRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	token, err := h.service.Refresh(r.Context(), req.Token)
	if err != nil {
		h.observe("refresh", "failure")
		h.respondError(w, r, "refresh token", err)
		return
	}
	h.observe("refresh", "success")
	httpx.JSON(w, http.StatusOK, map[string]string{"token": token})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

const forgotPasswordAck = "If the email exists, a reset link has been sent"

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondError(w, r, "forgot password", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": forgotPasswordAck})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.observe("reset_password", "failure")
		h.respondError(w, r, "reset password", err)
		return
	}
	h.observe("reset_password", "success")
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "password reset successfully"})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		h.respondError(w, r, "verify email", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "email verified successfully"})
}

// HandleMe returns the authenticated account. Mounted behind RequireAuth.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account := AccountFromContext(r.Context())
	if account == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	httpx.JSON(w, http.StatusOK, account.Public())
}

// decodeValid decodes the JSON body and validates it, writing the 400
// itself when either step fails.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "request body is not valid JSON")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range verrs {
				fields = append(fields, fieldErr.Field())
			}
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid fields: "+strings.Join(fields, ", "))
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if h.logger != nil && !isDomainError(err) {
		// Unexpected failures (store, signer) get full context here and
		// cross the boundary as an opaque 500.
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isDomainError(err error) bool {
	for _, domain := range []error{
		shared.ErrInvalidCredentials,
		shared.ErrAccountDeactivated,
		shared.ErrEmailTaken,
		shared.ErrInvalidToken,
		shared.ErrResetTokenInvalid,
		shared.ErrVerificationTokenInvalid,
		shared.ErrNotFound,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}
