package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
	"github.com/anayak07/walletsync/internal/repositories"
	"github.com/anayak07/walletsync/internal/services"
)

// WalletHandler manages wallets and their reference data. Creating a
// wallet makes the caller its owner; accounts and categories need the
// editor role, membership changes need owner.
type WalletHandler struct {
	wallets repositories.WalletAdmin
	dir     repositories.WalletDirectory
	logger  *slog.Logger
}

func NewWalletHandler(wallets repositories.WalletAdmin, dir repositories.WalletDirectory, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, dir: dir, logger: logger}
}

type createWalletRequest struct {
	Name string `json:"name"`
}

func (h *WalletHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}

	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	wallet := &models.Wallet{Name: req.Name}
	if err := h.wallets.Create(r.Context(), wallet); err != nil {
		h.logger.Error("wallet create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if err := h.wallets.AddMember(r.Context(), wallet.ID, claims.UserID, models.RoleOwner); err != nil {
		h.logger.Error("owner membership failed", "wallet_id", wallet.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, wallet)
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, walletID, ok := h.walletScope(w, r)
	if !ok {
		return
	}

	role, err := h.dir.MemberRole(r.Context(), walletID, claims.UserID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && !role.CanPull()) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a wallet member")
		return
	}
	if err != nil {
		h.logger.Error("membership check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	wallet, err := h.wallets.GetByID(r.Context(), walletID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "WALLET_NOT_FOUND", "wallet not found")
		return
	}
	if err != nil {
		h.logger.Error("wallet read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type namedCreateRequest struct {
	Name string `json:"name"`
}

func (h *WalletHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	claims, walletID, ok := h.walletScope(w, r)
	if !ok {
		return
	}
	if !h.requireRole(w, r, walletID, claims.UserID, models.WalletRole.CanPush) {
		return
	}

	var req namedCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	account := &models.Account{WalletID: walletID, Name: req.Name}
	if err := h.wallets.CreateAccount(r.Context(), account); err != nil {
		h.logger.Error("account create failed", "wallet_id", walletID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *WalletHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	claims, walletID, ok := h.walletScope(w, r)
	if !ok {
		return
	}
	if !h.requireRole(w, r, walletID, claims.UserID, models.WalletRole.CanPush) {
		return
	}

	var req namedCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	category := &models.Category{WalletID: walletID, Name: req.Name}
	if err := h.wallets.CreateCategory(r.Context(), category); err != nil {
		h.logger.Error("category create failed", "wallet_id", walletID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

type addMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (h *WalletHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	claims, walletID, ok := h.walletScope(w, r)
	if !ok {
		return
	}
	if !h.requireRole(w, r, walletID, claims.UserID, func(role models.WalletRole) bool {
		return role == models.RoleOwner
	}) {
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid userId")
		return
	}
	role := models.WalletRole(req.Role)
	if role != models.RoleViewer && role != models.RoleEditor && role != models.RoleOwner {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid role")
		return
	}

	if err := h.wallets.AddMember(r.Context(), walletID, userID, role); err != nil {
		h.logger.Error("member add failed", "wallet_id", walletID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WalletHandler) walletScope(w http.ResponseWriter, r *http.Request) (*services.TokenClaims, uuid.UUID, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return nil, uuid.Nil, false
	}
	walletID, err := uuid.Parse(chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid wallet id")
		return nil, uuid.Nil, false
	}
	return claims, walletID, true
}

func (h *WalletHandler) requireRole(w http.ResponseWriter, r *http.Request, walletID, userID uuid.UUID, allowed func(models.WalletRole) bool) bool {
	role, err := h.dir.MemberRole(r.Context(), walletID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a wallet member")
		return false
	}
	if err != nil {
		h.logger.Error("membership check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return false
	}
	if !allowed(role) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
		return false
	}
	return true
}
