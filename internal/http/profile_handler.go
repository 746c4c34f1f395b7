package httpapi

import (
	"context"
	"errors"
	"net/http"
	"vitalmesh/internal/models"
	"vitalmesh/internal/service"

	"go.uber.org/zap"
)

// ProfileStore 档案服务（由 service.ProfileService 实现）
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) service.ProfileView
	SaveProfile(ctx context.Context, uid string, profile *models.MilitaryProfile) error
}

type ProfileHandler struct {
	profiles ProfileStore
	logger   *zap.Logger
}

func NewProfileHandler(profiles ProfileStore, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := UIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, Ok(h.profiles.GetProfile(r.Context(), uid)))
}

func (h *ProfileHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := UIDFromContext(r.Context())

	var profile models.MilitaryProfile
	if err := readBodyJSON(r, 64<<10, &profile); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	if err := h.profiles.SaveProfile(r.Context(), uid, &profile); err != nil {
		if errors.Is(err, service.ErrInvalidProfile) {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		h.logger.Error("Failed to save profile", zap.String("uid", uid), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to save profile"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(profile))
}
