package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mycoharvest/officeroute/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// seq preserves insertion order so the factory bootstrap set stays
// recognizable to the sync merge heuristic.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id varchar(40) PRIMARY KEY,
  seq BIGSERIAL,
  employee_id TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  email TEXT UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'USER',
  department TEXT NOT NULL DEFAULT '',
  position TEXT NOT NULL DEFAULT '',
  gender TEXT NOT NULL DEFAULT '',
  joined_date TEXT NOT NULL DEFAULT '',
  allowed_locations JSONB NOT NULL DEFAULT '[]'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type userRow struct {
	ID               string `db:"id"`
	EmployeeID       string `db:"employee_id"`
	Name             string `db:"name"`
	Email            string `db:"email"`
	PasswordHash     string `db:"password_hash"`
	Role             string `db:"role"`
	Department       string `db:"department"`
	Position         string `db:"position"`
	Gender           string `db:"gender"`
	JoinedDate       string `db:"joined_date"`
	AllowedLocations []byte `db:"allowed_locations"`
}

const userColumns = `id, employee_id, name, email, password_hash, role, department, position, gender, joined_date, allowed_locations`

func (row *userRow) toEntity() (*entity.User, error) {
	var locs []entity.LocationConfig
	if len(row.AllowedLocations) > 0 {
		if err := json.Unmarshal(row.AllowedLocations, &locs); err != nil {
			return nil, fmt.Errorf("decode allowed_locations for %s: %w", row.ID, err)
		}
	}
	return &entity.User{
		ID:               row.ID,
		EmployeeID:       row.EmployeeID,
		Name:             row.Name,
		Email:            row.Email,
		PasswordHash:     row.PasswordHash,
		Role:             entity.Role(row.Role),
		Department:       row.Department,
		Position:         row.Position,
		Gender:           row.Gender,
		JoinedDate:       row.JoinedDate,
		AllowedLocations: locs,
	}, nil
}

// GetAll returns every user in insertion order.
func (r *UserRepo) GetAll(ctx context.Context) ([]*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY seq ASC`
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	users := make([]*entity.User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// GetByID fetches a user or returns sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return row.toEntity()
}

// GetByEmail fetches a user by email (case-insensitive) or returns
// sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email)=lower($1)`
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return row.toEntity()
}

// Upsert inserts or fully replaces a user by id.
func (r *UserRepo) Upsert(ctx context.Context, u *entity.User) error {
	return upsertUser(ctx, r.db, u)
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return n, nil
}

// ReplaceAll swaps the entire collection for the given users in one
// transaction. Used by the sync local commit, which replaces prior content
// in full rather than appending.
func (r *UserRepo) ReplaceAll(ctx context.Context, users []*entity.User) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	for _, u := range users {
		if err := upsertUser(ctx, tx, u); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertUser(ctx context.Context, ex execer, u *entity.User) error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	locs, err := json.Marshal(u.AllowedLocations)
	if err != nil {
		return fmt.Errorf("encode allowed_locations for %s: %w", u.ID, err)
	}
	const q = `INSERT INTO users (id, employee_id, name, email, password_hash, role, department, position, gender, joined_date, allowed_locations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
		  employee_id=EXCLUDED.employee_id, name=EXCLUDED.name, email=EXCLUDED.email,
		  password_hash=EXCLUDED.password_hash, role=EXCLUDED.role, department=EXCLUDED.department,
		  position=EXCLUDED.position, gender=EXCLUDED.gender, joined_date=EXCLUDED.joined_date,
		  allowed_locations=EXCLUDED.allowed_locations`
	_, err = ex.ExecContext(ctx, q,
		u.ID, u.EmployeeID, u.Name, u.Email, u.PasswordHash, string(u.Role),
		u.Department, u.Position, u.Gender, u.JoinedDate, locs)
	return err
}
