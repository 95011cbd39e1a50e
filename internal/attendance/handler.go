package attendance

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/attendance/entity"
	"github.com/mycoharvest/officeroute/internal/auth"
	"github.com/mycoharvest/officeroute/internal/geofence"
)

// Handler exposes HTTP endpoints for check-in/out, history and the admin
// dashboard views.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// CheckInRequest carries the work mode and the device-reported position.
// Latitude/Longitude may be omitted for HOME check-ins. UserID is honored
// only for ADMIN callers; everyone else acts on their own account.
type CheckInRequest struct {
	UserID    string          `json:"userId"`
	WorkMode  entity.WorkMode `json:"workMode"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
}

// CheckOutRequest carries the optional device-reported position.
type CheckOutRequest struct {
	UserID    string   `json:"userId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// actingUserID resolves which user an operation applies to: always the
// authenticated principal, unless an ADMIN explicitly targets another user.
func actingUserID(r *http.Request, requested string) (string, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return "", false
	}
	if requested != "" && requested != p.UserID && p.IsAdmin() {
		return requested, true
	}
	return p.UserID, true
}

// reportedPosition adapts coordinates sent in the request body to the
// PositionSource the service validates against.
type reportedPosition struct {
	coords geofence.Coordinates
}

func (p reportedPosition) Current(context.Context) (geofence.Coordinates, error) {
	return p.coords, nil
}

func positionFrom(lat, lon *float64) PositionSource {
	if lat == nil || lon == nil {
		return nil
	}
	return reportedPosition{coords: geofence.Coordinates{Latitude: *lat, Longitude: *lon}}
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid check-in payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	userID, ok := actingUserID(r, req.UserID)
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	rec, err := h.svc.CheckIn(r.Context(), userID, req.WorkMode, positionFrom(req.Latitude, req.Longitude))
	if err != nil {
		h.writeError(w, "check-in failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req CheckOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid check-out payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	userID, ok := actingUserID(r, req.UserID)
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	rec, err := h.svc.CheckOut(r.Context(), userID, positionFrom(req.Latitude, req.Longitude))
	if err != nil {
		h.writeError(w, "check-out failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// Today returns today's record for the caller, or null when not checked in.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUserID(r, r.URL.Query().Get("userId"))
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	rec, err := h.svc.Today(r.Context(), userID)
	if err != nil {
		h.writeError(w, "lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUserID(r, r.URL.Query().Get("userId"))
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	recs, err := h.svc.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, "lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.All(r.Context())
	if err != nil {
		h.writeError(w, "lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) TodayStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.TodayStats(r.Context())
	if err != nil {
		h.writeError(w, "stats failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

var csvHeader = []string{
	"Employee_ID", "Name", "Department", "Date", "Work_Mode",
	"Check_In_Time", "Check_Out_Time", "Total_Hours", "Status",
	"Check_In_LatLong", "Check_Out_LatLong",
}

// ExportCSV streams the full attendance log as a CSV report.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.All(r.Context())
	if err != nil {
		h.writeError(w, "export failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="attendance_report.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, rec := range recs {
		checkOut := ""
		if rec.CheckOutTime != nil {
			checkOut = rec.CheckOutTime.Format("15:04:05")
		}
		hours := ""
		if rec.TotalDurationMinutes != nil {
			hours = fmt.Sprintf("%.2f", float64(*rec.TotalDurationMinutes)/60)
		}
		_ = cw.Write([]string{
			rec.EmployeeID,
			rec.EmployeeName,
			rec.Department,
			rec.Date,
			string(rec.WorkMode),
			rec.CheckInTime.Format("15:04:05"),
			checkOut,
			hours,
			string(rec.Status),
			rec.CheckInLocation,
			rec.CheckOutLocation,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warnw("csv flush failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, what string, err error) {
	h.logger.Debugw(what, "err", err)
	var oor *OutOfRangeError
	switch {
	case errors.As(err, &oor):
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": oor.Error()})
	case errors.Is(err, ErrPolicyDenied):
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrLocationUnavailable):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrAlreadyCheckedIn), errors.Is(err, ErrDayComplete),
		errors.Is(err, ErrNotCheckedIn), errors.Is(err, ErrAlreadyCheckedOut):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrUserNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
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
