package setting

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/mycoharvest/officeroute/internal/setting/entity"
	"github.com/mycoharvest/officeroute/internal/setting/repo"
)

// providerDomain is the only cloud store host accepted for the sync
// endpoint.
const providerDomain = "script.google.com"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidEndpoint = errors.New("endpoint must be a script.google.com web app URL")
)

// Service holds runtime configuration, most importantly the cloud sync
// endpoint URL.
type Service struct {
	repo *repo.Repo
}

func NewService(r *repo.Repo) *Service {
	return &Service{repo: r}
}

// Endpoint returns the configured sync endpoint, or "" when sync is not
// configured.
func (s *Service) Endpoint(ctx context.Context) (string, error) {
	st, err := s.repo.Get(ctx, entity.KeySyncEndpoint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return st.Value, nil
}

// SetEndpoint validates and stores the sync endpoint. An empty value clears
// it and disables sync.
func (s *Service) SetEndpoint(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return ErrInvalidEndpoint
		}
		if !strings.Contains(endpoint, providerDomain) {
			return ErrInvalidEndpoint
		}
	}
	return s.repo.Set(ctx, entity.KeySyncEndpoint, endpoint)
}

// LastSync returns the recorded time of the last successful reconciliation,
// or the zero time when none happened yet.
func (s *Service) LastSync(ctx context.Context) (time.Time, error) {
	st, err := s.repo.Get(ctx, entity.KeyLastSync)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if st.Value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, st.Value)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// SetLastSync records the time of a successful reconciliation.
func (s *Service) SetLastSync(ctx context.Context, t time.Time) error {
	return s.repo.Set(ctx, entity.KeyLastSync, t.UTC().Format(time.RFC3339))
}
