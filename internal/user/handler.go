package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/user/entity"
)

// Handler exposes HTTP endpoints for employee administration.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, "list failed", err)
		return
	}
	out := make([]*entity.User, 0, len(users))
	for _, u := range users {
		out = append(out, sanitize(u))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, "lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, sanitize(u))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in EmployeeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Debugw("invalid employee payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.CreateEmployee(r.Context(), in)
	if err != nil {
		h.writeError(w, "create failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sanitize(u))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in EmployeeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Debugw("invalid employee payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.UpdateEmployee(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeError(w, "update failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, sanitize(u))
}

// sanitize strips the password hash from API responses. The hash travels only
// over the cloud sync channel, never to browsers.
func sanitize(u *entity.User) *entity.User {
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

func (h *Handler) writeError(w http.ResponseWriter, what string, err error) {
	h.logger.Debugw(what, "err", err)
	switch {
	case errors.Is(err, ErrUserNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrDomainRestricted), errors.Is(err, ErrInvalidLocations):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrEmailTaken):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw(what, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": what})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
