package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/user"
	"github.com/mycoharvest/officeroute/internal/user/entity"
)

// Accounts is the slice of the user service the login flow needs.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (*entity.User, error)
	Get(ctx context.Context, id string) (*entity.User, error)
}

// Handler exposes login, token refresh and logout.
type Handler struct {
	svc      *Service
	accounts Accounts
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, accounts Accounts, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, accounts: accounts, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse pairs the issued tokens with the account profile.
type LoginResponse struct {
	Tokens *Tokens      `json:"tokens"`
	User   *entity.User `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		switch {
		case errors.Is(err, user.ErrDomainRestricted):
			h.writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		case errors.Is(err, user.ErrBadCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		default:
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		}
		return
	}
	tokens, err := h.svc.Issue(r.Context(), u)
	if err != nil {
		h.logger.Warnw("token issue failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	profile := *u
	profile.PasswordHash = ""
	h.writeJSON(w, http.StatusOK, LoginResponse{Tokens: tokens, User: &profile})
}

// RefreshRequest carries the opaque refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	userID, err := h.svc.ValidateRefresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}
	u, err := h.accounts.Get(r.Context(), userID)
	if err != nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}
	// rotate: revoke the used session, issue a fresh pair
	_ = h.svc.RevokeRefresh(r.Context(), req.RefreshToken)
	tokens, err := h.svc.Issue(r.Context(), u)
	if err != nil {
		h.logger.Warnw("token issue failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "refresh failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.svc.RevokeRefresh(r.Context(), req.RefreshToken); err != nil {
		h.logger.Warnw("logout failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
