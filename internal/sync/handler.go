package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// StatusReader reports the last successful reconciliation time.
type StatusReader interface {
	LastSync(ctx context.Context) (time.Time, error)
}

// Handler exposes the manual sync endpoint and sync status.
type Handler struct {
	svc    *Service
	status StatusReader
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, status StatusReader, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, status: status, logger: logger}
}

// Run performs one reconciliation pass and reports the outcome. Unlike the
// background trigger, the caller sees the message.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Sync(r.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, res)
}

// Status reports the last successful sync time, or null when never synced.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	last, err := h.status.LastSync(r.Context())
	if err != nil {
		h.logger.Warnw("read last sync failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	out := map[string]any{"lastSync": nil}
	if !last.IsZero() {
		out["lastSync"] = last.Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
