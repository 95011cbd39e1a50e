package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/attendance/entity"
	"github.com/mycoharvest/officeroute/internal/geofence"
	userentity "github.com/mycoharvest/officeroute/internal/user/entity"
	"github.com/mycoharvest/officeroute/pkg/utilities"
)

// lateThresholdHour marks the last on-time hour. A local check-in hour
// strictly greater than this is LATE, so 09:59:59 is on time and 10:00:00
// is not.
const lateThresholdHour = 9

// positionTimeout bounds how long an office check-in waits for a device
// position before failing with ErrLocationUnavailable.
const positionTimeout = 10 * time.Second

const remoteLocationLabel = "Remote (WFH)"

// RecordRepo is the persistence surface the state machine needs.
type RecordRepo interface {
	FindByUserAndDate(ctx context.Context, userID, date string) (*entity.Record, error)
	Upsert(ctx context.Context, rec *entity.Record) error
	ListByUser(ctx context.Context, userID string) ([]*entity.Record, error)
	ListByDate(ctx context.Context, date string) ([]*entity.Record, error)
	GetAll(ctx context.Context) ([]*entity.Record, error)
}

// UserStore resolves acting users and enumerates employees for stats.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userentity.User, error)
	GetAll(ctx context.Context) ([]*userentity.User, error)
}

// PositionSource yields the device position for geofence validation.
type PositionSource interface {
	Current(ctx context.Context) (geofence.Coordinates, error)
}

// Clock abstracts time for the late rule and duration math.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns wall-clock time in the local zone.
func SystemClock() Clock { return systemClock{} }

// SyncTrigger requests a background cloud reconciliation after a local
// mutation. Implementations must not block.
type SyncTrigger interface {
	Trigger()
}

// Service implements the per-(user, day) attendance state machine.
type Service struct {
	records RecordRepo
	users   UserStore
	clock   Clock
	sync    SyncTrigger
	logger  *zap.SugaredLogger
}

func NewService(records RecordRepo, users UserStore, clock Clock, sync SyncTrigger, logger *zap.SugaredLogger) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{records: records, users: users, clock: clock, sync: sync, logger: logger}
}

// CheckIn opens today's record for the user in the given mode. HOME requires
// only policy authorization; OFFICE additionally validates the device
// position against the user's office geofence. The PRESENT/LATE status is
// decided here, once, from the local check-in hour.
func (s *Service) CheckIn(ctx context.Context, userID string, mode entity.WorkMode, pos PositionSource) (*entity.Record, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := s.clock.Now()
	date := now.Format(entity.DateLayout)

	existing, err := s.records.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Open() {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, ErrDayComplete
	}

	var checkInLocation string
	switch mode {
	case entity.ModeHome:
		if u.Location(userentity.LocationHome) == nil {
			return nil, ErrPolicyDenied
		}
		checkInLocation = remoteLocationLabel
	case entity.ModeOffice:
		// position first: a dead GPS reads as LocationUnavailable even when
		// the account would be rejected on policy anyway
		coords, err := s.currentPosition(ctx, pos)
		if err != nil {
			return nil, ErrLocationUnavailable
		}
		office := u.Location(userentity.LocationOffice)
		if office == nil {
			return nil, ErrPolicyDenied
		}
		center := geofence.Coordinates{Latitude: office.Latitude, Longitude: office.Longitude}
		dist := geofence.Distance(coords, center)
		if dist > office.RadiusMeters {
			return nil, &OutOfRangeError{DistanceMeters: dist, RadiusMeters: office.RadiusMeters}
		}
		checkInLocation = formatCoordinates(coords)
	default:
		return nil, ErrPolicyDenied
	}

	status := entity.StatusPresent
	if now.Hour() > lateThresholdHour {
		status = entity.StatusLate
	}

	rec := &entity.Record{
		ID:              utilities.NewRecordID(),
		UserID:          u.ID,
		EmployeeID:      u.EmployeeID,
		EmployeeName:    u.Name,
		Department:      u.Department,
		Date:            date,
		CheckInTime:     now,
		CheckInLocation: checkInLocation,
		WorkMode:        mode,
		Status:          status,
	}
	if err := s.records.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Infow("checked in", "user", u.ID, "date", date, "mode", mode, "status", status)
	s.triggerSync()
	return rec, nil
}

// CheckOut closes today's open record. The status set at check-in is never
// revised here. For office days the captured position is a best effort: if
// the device position cannot be read the check-out still succeeds with a
// placeholder label.
func (s *Service) CheckOut(ctx context.Context, userID string, pos PositionSource) (*entity.Record, error) {
	now := s.clock.Now()
	date := now.Format(entity.DateLayout)

	rec, err := s.records.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotCheckedIn
	}
	if !rec.Open() {
		return nil, ErrAlreadyCheckedOut
	}

	switch rec.WorkMode {
	case entity.ModeHome:
		rec.CheckOutLocation = remoteLocationLabel
	default:
		coords, err := s.currentPosition(ctx, pos)
		if err != nil {
			rec.CheckOutLocation = "Location unavailable"
		} else {
			rec.CheckOutLocation = formatCoordinates(coords)
		}
	}

	minutes := int(now.Sub(rec.CheckInTime).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	checkOut := now
	rec.CheckOutTime = &checkOut
	rec.TotalDurationMinutes = &minutes

	if err := s.records.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Infow("checked out", "user", userID, "date", date, "minutes", minutes)
	s.triggerSync()
	return rec, nil
}

// Today returns today's record for the user, or nil when not checked in.
func (s *Service) Today(ctx context.Context, userID string) (*entity.Record, error) {
	date := s.clock.Now().Format(entity.DateLayout)
	return s.records.FindByUserAndDate(ctx, userID, date)
}

// History returns the user's records, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*entity.Record, error) {
	return s.records.ListByUser(ctx, userID)
}

// All returns every record ordered by check-in time.
func (s *Service) All(ctx context.Context) ([]*entity.Record, error) {
	return s.records.GetAll(ctx)
}

// DayStats is the admin dashboard summary for one calendar day.
type DayStats struct {
	Date           string `json:"date"`
	TotalEmployees int    `json:"totalEmployees"`
	Present        int    `json:"present"`
	Late           int    `json:"late"`
	WorkingRemote  int    `json:"workingRemote"`
	Absent         int    `json:"absent"`
}

// TodayStats counts today's attendance across non-admin employees. Absent is
// derived as employees minus those with any record today, floored at zero.
func (s *Service) TodayStats(ctx context.Context) (*DayStats, error) {
	date := s.clock.Now().Format(entity.DateLayout)
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	stats := &DayStats{Date: date}
	eligible := make(map[string]bool, len(users))
	for _, u := range users {
		if !u.IsAdmin() {
			stats.TotalEmployees++
			eligible[u.ID] = true
		}
	}
	for _, rec := range recs {
		// admin records never count against the employee totals
		if !eligible[rec.UserID] {
			continue
		}
		stats.Present++
		if rec.Status == entity.StatusLate {
			stats.Late++
		}
		if rec.WorkMode == entity.ModeHome {
			stats.WorkingRemote++
		}
	}
	stats.Absent = stats.TotalEmployees - stats.Present
	if stats.Absent < 0 {
		stats.Absent = 0
	}
	return stats, nil
}

func (s *Service) currentPosition(ctx context.Context, pos PositionSource) (geofence.Coordinates, error) {
	if pos == nil {
		return geofence.Coordinates{}, ErrLocationUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, positionTimeout)
	defer cancel()
	return pos.Current(ctx)
}

func (s *Service) triggerSync() {
	if s.sync != nil {
		s.sync.Trigger()
	}
}

func formatCoordinates(c geofence.Coordinates) string {
	return fmt.Sprintf("%.5f, %.5f", c.Latitude, c.Longitude)
}
