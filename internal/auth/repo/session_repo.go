package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionRepo persists opaque refresh sessions.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// EnsureTable creates the refresh session table if not exists (idempotent).
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS auth_refresh_sessions (
  token TEXT PRIMARY KEY,
  user_id varchar(40) NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *SessionRepo) Save(ctx context.Context, token, userID string, expiresAt time.Time) error {
	const q = `INSERT INTO auth_refresh_sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, q, token, userID, expiresAt)
	return err
}

func (r *SessionRepo) Get(ctx context.Context, token string) (string, time.Time, error) {
	var userID string
	var expiresAt time.Time
	const q = `SELECT user_id, expires_at FROM auth_refresh_sessions WHERE token = $1`
	row := r.db.QueryRowxContext(ctx, q, token)
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_refresh_sessions WHERE token = $1`, token)
	return err
}
