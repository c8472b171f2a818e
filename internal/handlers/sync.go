package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
	"github.com/anayak07/walletsync/internal/repositories"
	"github.com/anayak07/walletsync/internal/services"
)

// SyncHandler exposes the push/pull wire contract. Role enforcement
// lives here: editor (or owner) for push, any member for pull.
type SyncHandler struct {
	sync     *services.SyncService
	dir      repositories.WalletDirectory
	presence repositories.PresenceRepository
	logger   *slog.Logger
}

func NewSyncHandler(sync *services.SyncService, dir repositories.WalletDirectory, presence repositories.PresenceRepository, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, dir: dir, presence: presence, logger: logger}
}

type pushRequestBody struct {
	DeviceID string          `json:"deviceId"`
	WalletID uuid.UUID       `json:"walletId"`
	Events   []*models.Event `json:"events"`
}

func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}

	var body pushRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if body.WalletID == uuid.Nil || body.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "walletId and deviceId are required")
		return
	}

	role, err := h.dir.MemberRole(r.Context(), body.WalletID, claims.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a wallet member")
		return
	}
	if err != nil {
		h.logger.Error("membership check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if !role.CanPush() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "editor role required")
		return
	}

	result, err := h.sync.Push(r.Context(), services.PushRequest{
		WalletID: body.WalletID,
		DeviceID: body.DeviceID,
		UserID:   claims.UserID,
		Events:   body.Events,
	})
	if err != nil {
		h.logger.Warn("push rejected", "wallet_id", body.WalletID, "device_id", body.DeviceID, "error", err)
		writeSyncError(w, err)
		return
	}

	h.touchPresence(r, body.WalletID, body.DeviceID)
	writeJSON(w, http.StatusOK, result)
}

func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}

	walletID, err := uuid.Parse(r.URL.Query().Get("walletId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid walletId")
		return
	}
	sinceSeq := int64(0)
	if raw := r.URL.Query().Get("sinceSeq"); raw != "" {
		sinceSeq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || sinceSeq < 0 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sinceSeq")
			return
		}
	}

	role, err := h.dir.MemberRole(r.Context(), walletID, claims.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a wallet member")
		return
	}
	if err != nil {
		h.logger.Error("membership check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if !role.CanPull() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "viewer role required")
		return
	}

	result, err := h.sync.Pull(r.Context(), walletID, sinceSeq)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	h.touchPresence(r, walletID, claims.DeviceID)
	writeJSON(w, http.StatusOK, result)
}

func (h *SyncHandler) touchPresence(r *http.Request, walletID uuid.UUID, deviceID string) {
	if h.presence == nil {
		return
	}
	err := h.presence.Touch(r.Context(), &models.DevicePresence{
		WalletID: walletID,
		DeviceID: deviceID,
	})
	if err != nil {
		h.logger.Warn("presence touch failed", "wallet_id", walletID, "device_id", deviceID, "error", err)
	}
}
