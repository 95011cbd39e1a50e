package entity

import "time"

// Setting is one key/value configuration row.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Well-known keys.
const (
	KeySyncEndpoint = "sync.endpoint"
	KeyLastSync     = "sync.last_sync"
)
