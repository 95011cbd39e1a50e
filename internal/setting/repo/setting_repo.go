package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mycoharvest/officeroute/internal/setting/entity"
)

type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable creates the settings table if not exists (idempotent).
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Get returns a setting by key or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, key string) (*entity.Setting, error) {
	var s entity.Setting
	const q = `SELECT key, value, updated_at FROM settings WHERE key=$1`
	if err := r.db.GetContext(ctx, &s, q, key); err != nil {
		return nil, err
	}
	return &s, nil
}

// Set upserts a setting value.
func (r *Repo) Set(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, key, value, time.Now().UTC())
	return err
}
