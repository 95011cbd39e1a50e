package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/mycoharvest/officeroute/internal/attendance/entity"
)

// AttendanceRepo provides data access for attendance records using sqlx.
// The contract is upsert-by-id plus full-collection reads; records are
// never deleted outside of the sync ReplaceAll commit.
type AttendanceRepo struct {
	db *sqlx.DB
}

func NewAttendanceRepo(db *sqlx.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// EnsureTable creates the attendance table if not exists (idempotent).
func (r *AttendanceRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS attendance (
  id varchar(40) PRIMARY KEY,
  user_id varchar(40) NOT NULL,
  employee_id TEXT NOT NULL DEFAULT '',
  employee_name TEXT NOT NULL DEFAULT '',
  department TEXT NOT NULL DEFAULT '',
  date varchar(10) NOT NULL,
  check_in_time TIMESTAMPTZ NOT NULL,
  check_out_time TIMESTAMPTZ,
  check_in_location TEXT NOT NULL DEFAULT '',
  check_out_location TEXT NOT NULL DEFAULT '',
  work_mode TEXT NOT NULL DEFAULT 'OFFICE',
  total_duration_minutes INT,
  status TEXT NOT NULL DEFAULT 'PRESENT'
);
CREATE INDEX IF NOT EXISTS idx_attendance_user_date ON attendance (user_id, date);
CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance (date);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type recordRow struct {
	ID                   string         `db:"id"`
	UserID               string         `db:"user_id"`
	EmployeeID           string         `db:"employee_id"`
	EmployeeName         string         `db:"employee_name"`
	Department           string         `db:"department"`
	Date                 string         `db:"date"`
	CheckInTime          sql.NullTime   `db:"check_in_time"`
	CheckOutTime         sql.NullTime   `db:"check_out_time"`
	CheckInLocation      string         `db:"check_in_location"`
	CheckOutLocation     string         `db:"check_out_location"`
	WorkMode             string         `db:"work_mode"`
	TotalDurationMinutes sql.NullInt64  `db:"total_duration_minutes"`
	Status               string         `db:"status"`
}

const recordColumns = `id, user_id, employee_id, employee_name, department, date, check_in_time, check_out_time, check_in_location, check_out_location, work_mode, total_duration_minutes, status`

func (row *recordRow) toEntity() *entity.Record {
	rec := &entity.Record{
		ID:               row.ID,
		UserID:           row.UserID,
		EmployeeID:       row.EmployeeID,
		EmployeeName:     row.EmployeeName,
		Department:       row.Department,
		Date:             row.Date,
		CheckInTime:      row.CheckInTime.Time,
		CheckInLocation:  row.CheckInLocation,
		CheckOutLocation: row.CheckOutLocation,
		WorkMode:         entity.WorkMode(row.WorkMode),
		Status:           entity.Status(row.Status),
	}
	if row.CheckOutTime.Valid {
		t := row.CheckOutTime.Time
		rec.CheckOutTime = &t
	}
	if row.TotalDurationMinutes.Valid {
		n := int(row.TotalDurationMinutes.Int64)
		rec.TotalDurationMinutes = &n
	}
	return rec
}

// GetAll returns every record ordered by check-in time.
func (r *AttendanceRepo) GetAll(ctx context.Context) ([]*entity.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM attendance ORDER BY check_in_time ASC`
	return r.selectRecords(ctx, q)
}

// ListByUser returns one user's records, newest first.
func (r *AttendanceRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM attendance WHERE user_id=$1 ORDER BY date DESC, check_in_time DESC`
	return r.selectRecords(ctx, q, userID)
}

// ListByDate returns all records for one calendar day.
func (r *AttendanceRepo) ListByDate(ctx context.Context, date string) ([]*entity.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM attendance WHERE date=$1 ORDER BY check_in_time ASC`
	return r.selectRecords(ctx, q, date)
}

func (r *AttendanceRepo) selectRecords(ctx context.Context, q string, args ...any) ([]*entity.Record, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	recs := make([]*entity.Record, 0, len(rows))
	for i := range rows {
		recs = append(recs, rows[i].toEntity())
	}
	return recs, nil
}

// FindByUserAndDate returns the record for (user, date) or nil when none
// exists. One record per user per day is the state machine's invariant,
// enforced at the service layer.
func (r *AttendanceRepo) FindByUserAndDate(ctx context.Context, userID, date string) (*entity.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM attendance WHERE user_id=$1 AND date=$2 LIMIT 1`
	var row recordRow
	if err := r.db.GetContext(ctx, &row, q, userID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// Upsert inserts or fully replaces a record by id.
func (r *AttendanceRepo) Upsert(ctx context.Context, rec *entity.Record) error {
	return upsertRecord(ctx, r.db, rec)
}

// ReplaceAll swaps the entire collection for the given records in one
// transaction (sync local commit).
func (r *AttendanceRepo) ReplaceAll(ctx context.Context, recs []*entity.Record) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance`); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := upsertRecord(ctx, tx, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRecord(ctx context.Context, ex execer, rec *entity.Record) error {
	if rec.ID == "" {
		return errors.New("attendance record id is required")
	}
	var checkOut sql.NullTime
	if rec.CheckOutTime != nil {
		checkOut = sql.NullTime{Time: *rec.CheckOutTime, Valid: true}
	}
	var duration sql.NullInt64
	if rec.TotalDurationMinutes != nil {
		duration = sql.NullInt64{Int64: int64(*rec.TotalDurationMinutes), Valid: true}
	}
	const q = `INSERT INTO attendance (id, user_id, employee_id, employee_name, department, date, check_in_time, check_out_time, check_in_location, check_out_location, work_mode, total_duration_minutes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
		  user_id=EXCLUDED.user_id, employee_id=EXCLUDED.employee_id, employee_name=EXCLUDED.employee_name,
		  department=EXCLUDED.department, date=EXCLUDED.date, check_in_time=EXCLUDED.check_in_time,
		  check_out_time=EXCLUDED.check_out_time, check_in_location=EXCLUDED.check_in_location,
		  check_out_location=EXCLUDED.check_out_location, work_mode=EXCLUDED.work_mode,
		  total_duration_minutes=EXCLUDED.total_duration_minutes, status=EXCLUDED.status`
	_, err := ex.ExecContext(ctx, q,
		rec.ID, rec.UserID, rec.EmployeeID, rec.EmployeeName, rec.Department, rec.Date,
		rec.CheckInTime, checkOut, rec.CheckInLocation, rec.CheckOutLocation,
		string(rec.WorkMode), duration, string(rec.Status))
	return err
}
