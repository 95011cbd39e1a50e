package insight

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/attendance"
)

// Handler serves the AI insight for the admin dashboard.
type Handler struct {
	svc        *Service
	attendance *attendance.Service
	logger     *zap.SugaredLogger
}

func NewHandler(svc *Service, att *attendance.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, attendance: att, logger: logger}
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	stats, err := h.attendance.TodayStats(r.Context())
	if err != nil {
		h.logger.Warnw("stats for insight failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"insight": h.svc.Summarize(r.Context(), stats)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
