package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/yourorg/profilehub/internal/domain"
	"github.com/yourorg/profilehub/internal/featureflags"
	"github.com/yourorg/profilehub/internal/observability/metrics"
	"github.com/yourorg/profilehub/internal/security/middleware"
	"github.com/yourorg/profilehub/internal/service"
)

// ProfileHandler serves the caller's own profile
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// View handles GET /api/profile
func (h *ProfileHandler) View(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountFromContext(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	view, err := h.profiles.View(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Every account owns exactly one profile; a miss here is
			// an operator problem, not a user one.
			h.logger.Error("profile missing for account", slog.String("account_id", accountID))
		} else {
			h.logger.Error("failed to load profile", slog.String("account_id", accountID), slog.String("error", err.Error()))
		}
		writeError(w, http.StatusInternalServerError, "could not complete request")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// EditRequest represents the edit-profile form. Omitted fields keep
// their prior values.
type EditRequest struct {
	Bio       *string `json:"bio"`
	BirthDate *string `json:"birthDate"`
	Location  *string `json:"location"`
}

// Edit handles PUT /api/profile
func (h *ProfileHandler) Edit(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountFromContext(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if featureflags.Enabled(featureflags.ReadOnlyProfiles) {
		writeError(w, http.StatusServiceUnavailable, "profile edits are temporarily disabled")
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	_, err := h.profiles.Edit(r.Context(), accountID, service.EditInput{
		Bio:       req.Bio,
		BirthDate: req.BirthDate,
		Location:  req.Location,
	})
	if err != nil {
		if fe, ok := domain.AsFieldErrors(err); ok {
			metrics.ObserveProfileUpdate("rejected")
			writeFieldErrors(w, fe)
			return
		}
		metrics.ObserveProfileUpdate("error")
		h.logger.Error("profile edit failed", slog.String("account_id", accountID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not complete request")
		return
	}

	metrics.ObserveProfileUpdate("success")
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Profile updated successfully",
		"redirectTo": "/profile",
	})
}

// UploadAvatar handles POST /api/profile/avatar (multipart form with
// an "avatar" file part)
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountFromContext(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if featureflags.Enabled(featureflags.DisableAvatarUploads) {
		writeError(w, http.StatusServiceUnavailable, "avatar uploads are temporarily disabled")
		return
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar file")
		return
	}

	key, err := h.profiles.SetAvatar(r.Context(), accountID, data, header.Header.Get("Content-Type"))
	if err != nil {
		if fe, ok := domain.AsFieldErrors(err); ok {
			metrics.ObserveAvatarUpload("rejected")
			writeFieldErrors(w, fe)
			return
		}
		metrics.ObserveAvatarUpload("error")
		h.logger.Error("avatar upload failed", slog.String("account_id", accountID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not complete request")
		return
	}

	metrics.ObserveAvatarUpload("success")
	writeJSON(w, http.StatusOK, map[string]string{
		"avatarKey":  key,
		"redirectTo": "/profile",
	})
}
