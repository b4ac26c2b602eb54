package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/profilehub/internal/domain"
	"github.com/yourorg/profilehub/internal/observability/metrics"
	"github.com/yourorg/profilehub/internal/security/audit"
	"github.com/yourorg/profilehub/internal/security/middleware"
	"github.com/yourorg/profilehub/internal/service"
)

// AuthHandler handles registration, login, password change and
// account deletion
type AuthHandler struct {
	accounts *service.AccountService
	profiles *service.ProfileService
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts *service.AccountService, profiles *service.ProfileService, auditLog *audit.Logger, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{accounts: accounts, profiles: profiles, audit: auditLog, logger: logger}
}

// RegisterRequest represents the registration form
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode register request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" || req.PasswordConfirm == "" {
		writeError(w, http.StatusBadRequest, "username, email, password, and passwordConfirm are required")
		return
	}

	result, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		if fe, ok := domain.AsFieldErrors(err); ok {
			metrics.ObserveRegistration("rejected")
			writeFieldErrors(w, fe)
			return
		}
		metrics.ObserveRegistration("error")
		h.logger.Error("registration failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not complete request")
		return
	}

	metrics.ObserveRegistration("success")
	h.audit.LogRegistration(r.Context(), result.AccountID, "success", "")
	writeJSON(w, http.StatusCreated, result)
}

// LoginRequest represents the login form
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.ObserveLogin("rejected")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		metrics.ObserveLogin("error")
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not complete request")
		return
	}

	metrics.ObserveLogin("success")
	h.audit.LogLogin(r.Context(), result.AccountID, "success", "")
	writeJSON(w, http.StatusOK, result)
}

// ChangePasswordRequest represents the password-change form
type ChangePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

// ChangePassword handles POST /api/auth/change-password. On success
// the response carries a re-issued token for the refreshed session.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountFromContext(r.Context())
	sessionID := middleware.GetSessionFromContext(r.Context())
	if accountID == "" || sessionID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" || req.NewPasswordConfirm == "" {
		writeError(w, http.StatusBadRequest, "currentPassword, newPassword, and newPasswordConfirm are required")
		return
	}

	result, err := h.accounts.ChangePassword(r.Context(), accountID, sessionID, service.ChangePasswordInput{
		CurrentPassword:    req.CurrentPassword,
		NewPassword:        req.NewPassword,
		NewPasswordConfirm: req.NewPasswordConfirm,
	})
	if err != nil {
		if fe, ok := domain.AsFieldErrors(err); ok {
			metrics.ObservePasswordChange("rejected")
			h.audit.LogPasswordChange(r.Context(), accountID, "rejected", "")
			writeFieldErrors(w, fe)
			return
		}
		if errors.Is(err, domain.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		metrics.ObservePasswordChange("error")
		h.logger.Error("password change failed", slog.String("account_id", accountID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not complete request")
		return
	}

	metrics.ObservePasswordChange("success")
	h.audit.LogPasswordChange(r.Context(), accountID, "success", "")
	writeJSON(w, http.StatusOK, result)
}

// DeleteAccount handles DELETE /api/account. The profile row is removed
// by the database cascade; the avatar object and sessions are cleaned
// up best-effort.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountFromContext(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.profiles != nil {
		if err := h.profiles.RemoveAvatarObject(r.Context(), accountID); err != nil {
			h.logger.Warn("failed to remove avatar object",
				slog.String("account_id", accountID),
				slog.String("error", err.Error()))
		}
	}

	if err := h.accounts.Delete(r.Context(), accountID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		metrics.ObserveAccountDeletion("error")
		h.logger.Error("account deletion failed", slog.String("account_id", accountID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not complete request")
		return
	}

	metrics.ObserveAccountDeletion("success")
	h.audit.LogAccountDeletion(r.Context(), accountID, "success", "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
