package setting

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Handler exposes the sync configuration endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// SyncConfig is the read view of the sync configuration.
type SyncConfig struct {
	Endpoint string `json:"endpoint"`
	LastSync string `json:"lastSync,omitempty"`
}

func (h *Handler) GetSyncConfig(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.svc.Endpoint(r.Context())
	if err != nil {
		h.logger.Warnw("read sync endpoint failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	cfg := SyncConfig{Endpoint: endpoint}
	if last, err := h.svc.LastSync(r.Context()); err == nil && !last.IsZero() {
		cfg.LastSync = last.Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// SetSyncConfigRequest carries the new endpoint URL; empty disables sync.
type SetSyncConfigRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *Handler) SetSyncConfig(w http.ResponseWriter, r *http.Request) {
	var req SetSyncConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.svc.SetEndpoint(r.Context(), req.Endpoint); err != nil {
		if errors.Is(err, ErrInvalidEndpoint) {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Warnw("store sync endpoint failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"endpoint": req.Endpoint})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
