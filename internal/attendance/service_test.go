package attendance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/attendance/entity"
	"github.com/mycoharvest/officeroute/internal/geofence"
	userentity "github.com/mycoharvest/officeroute/internal/user/entity"
)

type fakeRecordRepo struct {
	records map[string]*entity.Record
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: map[string]*entity.Record{}}
}

func (f *fakeRecordRepo) key(userID, date string) string { return userID + "|" + date }

func (f *fakeRecordRepo) FindByUserAndDate(_ context.Context, userID, date string) (*entity.Record, error) {
	rec, ok := f.records[f.key(userID, date)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecordRepo) Upsert(_ context.Context, rec *entity.Record) error {
	cp := *rec
	f.records[f.key(rec.UserID, rec.Date)] = &cp
	return nil
}

func (f *fakeRecordRepo) ListByUser(_ context.Context, userID string) ([]*entity.Record, error) {
	var out []*entity.Record
	for _, rec := range f.records {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) ListByDate(_ context.Context, date string) ([]*entity.Record, error) {
	var out []*entity.Record
	for _, rec := range f.records {
		if rec.Date == date {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) GetAll(_ context.Context) ([]*entity.Record, error) {
	var out []*entity.Record
	for _, rec := range f.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

type fakeUserStore struct {
	users map[string]*userentity.User
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*userentity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) GetAll(_ context.Context) ([]*userentity.User, error) {
	var out []*userentity.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type staticPosition struct {
	coords geofence.Coordinates
	err    error
}

func (p staticPosition) Current(context.Context) (geofence.Coordinates, error) {
	return p.coords, p.err
}

var officeCenter = geofence.Coordinates{Latitude: 18.5204, Longitude: 73.8567}

func officeUser() *userentity.User {
	return &userentity.User{
		ID:         "EMP_001",
		EmployeeID: "MCH-001",
		Name:       "Nikita Dabhade",
		Role:       userentity.RoleUser,
		Department: "Operations",
		AllowedLocations: []userentity.LocationConfig{
			{Type: userentity.LocationOffice, Latitude: officeCenter.Latitude, Longitude: officeCenter.Longitude, RadiusMeters: 500},
		},
	}
}

func hybridUser() *userentity.User {
	u := officeUser()
	u.AllowedLocations = append(u.AllowedLocations, userentity.LocationConfig{Type: userentity.LocationHome})
	return u
}

func newTestService(repo *fakeRecordRepo, users *fakeUserStore, now time.Time) *Service {
	return NewService(repo, users, fixedClock{t: now}, nil, zap.NewNop().Sugar())
}

func at(hour, min int) time.Time {
	return time.Date(2026, 8, 28, hour, min, 0, 0, time.Local)
}

func TestCheckInHomeRequiresPolicy(t *testing.T) {
	repo := newFakeRecordRepo()
	users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": officeUser()}}
	svc := newTestService(repo, users, at(9, 0))

	_, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeHome, nil)
	if !errors.Is(err, ErrPolicyDenied) {
		t.Fatalf("want ErrPolicyDenied, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatalf("denied check-in must not persist a record")
	}
}

func TestCheckInHome(t *testing.T) {
	repo := newFakeRecordRepo()
	users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": hybridUser()}}
	svc := newTestService(repo, users, at(8, 30))

	rec, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeHome, nil)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if rec.CheckInLocation != "Remote (WFH)" {
		t.Errorf("check-in location = %q", rec.CheckInLocation)
	}
	if rec.WorkMode != entity.ModeHome {
		t.Errorf("work mode = %q", rec.WorkMode)
	}
	if rec.Status != entity.StatusPresent {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.Date != "2026-08-28" {
		t.Errorf("date = %q", rec.Date)
	}
}

func TestCheckInOfficeGeofence(t *testing.T) {
	tests := []struct {
		name     string
		pos      PositionSource
		wantErr  error
		outRange bool
	}{
		{
			name: "at center",
			pos:  staticPosition{coords: officeCenter},
		},
		{
			name: "inside radius",
			pos:  staticPosition{coords: geofence.Coordinates{Latitude: 18.5224, Longitude: 73.8567}},
		},
		{
			name:     "outside radius",
			pos:      staticPosition{coords: geofence.Coordinates{Latitude: 18.5304, Longitude: 73.8567}},
			outRange: true,
		},
		{
			name:    "position unavailable",
			pos:     staticPosition{err: errors.New("gps timeout")},
			wantErr: ErrLocationUnavailable,
		},
		{
			name:    "no position source",
			pos:     nil,
			wantErr: ErrLocationUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRecordRepo()
			users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": officeUser()}}
			svc := newTestService(repo, users, at(9, 0))

			rec, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeOffice, tt.pos)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if tt.outRange {
				var oor *OutOfRangeError
				if !errors.As(err, &oor) {
					t.Fatalf("want OutOfRangeError, got %v", err)
				}
				if oor.RadiusMeters != 500 {
					t.Errorf("radius = %v", oor.RadiusMeters)
				}
				if oor.DistanceMeters <= 500 {
					t.Errorf("distance = %v, want > 500", oor.DistanceMeters)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckIn: %v", err)
			}
			if rec.WorkMode != entity.ModeOffice {
				t.Errorf("work mode = %q", rec.WorkMode)
			}
		})
	}
}

func TestCheckInRecordsPositionCoordinates(t *testing.T) {
	repo := newFakeRecordRepo()
	users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": officeUser()}}
	svc := newTestService(repo, users, at(9, 0))

	rec, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeOffice, staticPosition{coords: officeCenter})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if rec.CheckInLocation != "18.52040, 73.85670" {
		t.Errorf("check-in location = %q", rec.CheckInLocation)
	}
}

func TestCheckInOfficeWithoutOfficeConfig(t *testing.T) {
	homeOnly := &userentity.User{
		ID:   "EMP_001",
		Role: userentity.RoleUser,
		AllowedLocations: []userentity.LocationConfig{
			{Type: userentity.LocationHome},
		},
	}

	t.Run("position failure surfaces first", func(t *testing.T) {
		repo := newFakeRecordRepo()
		users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": homeOnly}}
		svc := newTestService(repo, users, at(9, 0))

		_, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeOffice, staticPosition{err: errors.New("gps off")})
		if !errors.Is(err, ErrLocationUnavailable) {
			t.Fatalf("want ErrLocationUnavailable, got %v", err)
		}
	})

	t.Run("policy denies with a good position", func(t *testing.T) {
		repo := newFakeRecordRepo()
		users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": homeOnly}}
		svc := newTestService(repo, users, at(9, 0))

		_, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeOffice, staticPosition{coords: officeCenter})
		if !errors.Is(err, ErrPolicyDenied) {
			t.Fatalf("want ErrPolicyDenied, got %v", err)
		}
		if len(repo.records) != 0 {
			t.Fatal("denied check-in must not persist a record")
		}
	})
}

func TestCheckInLateRule(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want entity.Status
	}{
		{"early morning", at(8, 0), entity.StatusPresent},
		{"last on-time minute", time.Date(2026, 8, 28, 9, 59, 59, 0, time.Local), entity.StatusPresent},
		{"ten sharp", at(10, 0), entity.StatusLate},
		{"late afternoon", at(14, 30), entity.StatusLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRecordRepo()
			users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": hybridUser()}}
			svc := newTestService(repo, users, tt.now)

			rec, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeHome, nil)
			if err != nil {
				t.Fatalf("CheckIn: %v", err)
			}
			if rec.Status != tt.want {
				t.Errorf("status = %q, want %q", rec.Status, tt.want)
			}
		})
	}
}

func TestCheckInStateMachine(t *testing.T) {
	repo := newFakeRecordRepo()
	users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": hybridUser()}}
	svc := newTestService(repo, users, at(9, 0))

	if _, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeHome, nil); err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}
	if _, err := svc.CheckIn(context.Background(), "EMP_001", entity.ModeHome, nil); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second CheckIn: want ErrAlreadyCheckedIn, got %v", err)
	}

	svcLater := newTestService(repo, users, at(17, 0))
	if _, err := svcLater.CheckOut(context.Background(), "EMP_001", nil); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if _, err := svcLater.CheckIn(context.Background(), "EMP_001", entity.ModeHome, nil); !errors.Is(err, ErrDayComplete) {
		t.Fatalf("CheckIn after close: want ErrDayComplete, got %v", err)
	}
	if _, err := svcLater.CheckOut(context.Background(), "EMP_001", nil); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Fatalf("second CheckOut: want ErrAlreadyCheckedOut, got %v", err)
	}
}

func TestCheckOutWithoutCheckIn(t *testing.T) {
	repo := newFakeRecordRepo()
	users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": hybridUser()}}
	svc := newTestService(repo, users, at(17, 0))

	if _, err := svc.CheckOut(context.Background(), "EMP_001", nil); !errors.Is(err, ErrNotCheckedIn) {
		t.Fatalf("want ErrNotCheckedIn, got %v", err)
	}
}

func TestCheckOutDuration(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		want     int
	}{
		{"two hours five minutes", at(9, 0), at(11, 5), 125},
		{"floors partial minute", at(9, 0), time.Date(2026, 8, 28, 9, 30, 59, 0, time.Local), 30},
		{"clock skew clamps to zero", at(9, 0), at(8, 30), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRecordRepo()
			users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": hybridUser()}}

			if _, err := newTestService(repo, users, tt.checkIn).CheckIn(context.Background(), "EMP_001", entity.ModeHome, nil); err != nil {
				t.Fatalf("CheckIn: %v", err)
			}
			rec, err := newTestService(repo, users, tt.checkOut).CheckOut(context.Background(), "EMP_001", nil)
			if err != nil {
				t.Fatalf("CheckOut: %v", err)
			}
			if rec.TotalDurationMinutes == nil || *rec.TotalDurationMinutes != tt.want {
				t.Errorf("duration = %v, want %d", rec.TotalDurationMinutes, tt.want)
			}
		})
	}
}

func TestCheckOutKeepsStatusAndFallsBack(t *testing.T) {
	repo := newFakeRecordRepo()
	users := &fakeUserStore{users: map[string]*userentity.User{"EMP_001": officeUser()}}

	if _, err := newTestService(repo, users, at(11, 0)).CheckIn(context.Background(), "EMP_001", entity.ModeOffice, staticPosition{coords: officeCenter}); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	rec, err := newTestService(repo, users, at(18, 0)).CheckOut(context.Background(), "EMP_001", staticPosition{err: errors.New("gps off")})
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if rec.CheckOutLocation != "Location unavailable" {
		t.Errorf("check-out location = %q", rec.CheckOutLocation)
	}
	if rec.Status != entity.StatusLate {
		t.Errorf("status = %q, check-out must not revise it", rec.Status)
	}
}

func TestTodayStats(t *testing.T) {
	repo := newFakeRecordRepo()
	admin := &userentity.User{
		ID:   "ADMIN_001",
		Role: userentity.RoleAdmin,
		AllowedLocations: []userentity.LocationConfig{
			{Type: userentity.LocationHome},
		},
	}
	empA := hybridUser()
	empB := officeUser()
	empB.ID = "EMP_002"
	empC := officeUser()
	empC.ID = "EMP_003"
	users := &fakeUserStore{users: map[string]*userentity.User{
		admin.ID: admin, empA.ID: empA, empB.ID: empB, empC.ID: empC,
	}}

	if _, err := newTestService(repo, users, at(9, 0)).CheckIn(context.Background(), empA.ID, entity.ModeHome, nil); err != nil {
		t.Fatalf("CheckIn A: %v", err)
	}
	if _, err := newTestService(repo, users, at(11, 0)).CheckIn(context.Background(), empB.ID, entity.ModeOffice, staticPosition{coords: officeCenter}); err != nil {
		t.Fatalf("CheckIn B: %v", err)
	}
	// an admin checking in must not move the employee counters
	if _, err := newTestService(repo, users, at(9, 30)).CheckIn(context.Background(), admin.ID, entity.ModeHome, nil); err != nil {
		t.Fatalf("CheckIn admin: %v", err)
	}

	stats, err := newTestService(repo, users, at(12, 0)).TodayStats(context.Background())
	if err != nil {
		t.Fatalf("TodayStats: %v", err)
	}
	if stats.TotalEmployees != 3 {
		t.Errorf("total employees = %d, admins must be excluded", stats.TotalEmployees)
	}
	if stats.Present != 2 || stats.Late != 1 || stats.WorkingRemote != 1 || stats.Absent != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCheckInUnknownUser(t *testing.T) {
	repo := newFakeRecordRepo()
	users := &fakeUserStore{users: map[string]*userentity.User{}}
	svc := newTestService(repo, users, at(9, 0))

	if _, err := svc.CheckIn(context.Background(), "GHOST", entity.ModeHome, nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}
