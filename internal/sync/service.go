package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	gosync "sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	attendanceentity "github.com/mycoharvest/officeroute/internal/attendance/entity"
	"github.com/mycoharvest/officeroute/internal/user"
	userentity "github.com/mycoharvest/officeroute/internal/user/entity"
	"github.com/mycoharvest/officeroute/pkg/utilities"
)

// providerDomain gates which hosts the reconciler will talk to.
const providerDomain = "script.google.com"

// requestTimeout bounds each HTTP round trip to the cloud store.
const requestTimeout = 30 * time.Second

// UserStore is the local user collection as the reconciler sees it.
type UserStore interface {
	GetAll(ctx context.Context) ([]*userentity.User, error)
	ReplaceAll(ctx context.Context, users []*userentity.User) error
}

// RecordStore is the local attendance collection as the reconciler sees it.
type RecordStore interface {
	GetAll(ctx context.Context) ([]*attendanceentity.Record, error)
	ReplaceAll(ctx context.Context, recs []*attendanceentity.Record) error
}

// Config persists the endpoint URL and the last successful sync time.
type Config interface {
	Endpoint(ctx context.Context) (string, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

// Result is the outcome reported to callers. Message is user-facing and
// mirrors what the reconciler did or why it failed.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service reconciles the local store with the cloud endpoint: pull, merge
// by id, commit locally, push the merged set back. Local data wins on
// conflicting attendance ids; the user list prefers cloud data only when
// the local list is still the untouched factory bootstrap set.
type Service struct {
	users   UserStore
	records RecordStore
	config  Config
	client  *http.Client
	logger  *zap.SugaredLogger

	mu gosync.Mutex
}

func NewService(users UserStore, records RecordStore, config Config, logger *zap.SugaredLogger) *Service {
	return &Service{
		users:   users,
		records: records,
		config:  config,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// cloudEnvelope is the GET response shape of the cloud web app.
type cloudEnvelope struct {
	Status string       `json:"status"`
	Data   cloudPayload `json:"data"`
}

type cloudPayload struct {
	Users      []*userentity.User         `json:"users"`
	Attendance []*attendanceentity.Record `json:"attendance"`
}

// pushPayload is the POST body. LastSync is informational for the remote
// sheet.
type pushPayload struct {
	Users      []*userentity.User         `json:"users"`
	Attendance []*attendanceentity.Record `json:"attendance"`
	LastSync   string                     `json:"lastSync"`
}

// Sync runs one full reconciliation pass. Concurrent calls serialize; the
// pass is driven by its own operation id for log correlation.
func (s *Service) Sync(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := utilities.NewOperationID()
	log := s.logger.With("op", op)

	endpoint, err := s.config.Endpoint(ctx)
	if err != nil {
		log.Warnw("read sync endpoint failed", "err", err)
		return Result{Success: false, Message: "Sync configuration unavailable."}
	}
	if endpoint == "" {
		return Result{Success: false, Message: "Sync endpoint not configured."}
	}
	if !strings.Contains(endpoint, providerDomain) {
		return Result{Success: false, Message: "Invalid sync endpoint. Please configure a script.google.com web app URL."}
	}

	localUsers, err := s.users.GetAll(ctx)
	if err != nil {
		log.Warnw("load local users failed", "err", err)
		return Result{Success: false, Message: "Local data unavailable."}
	}
	localRecords, err := s.records.GetAll(ctx)
	if err != nil {
		log.Warnw("load local attendance failed", "err", err)
		return Result{Success: false, Message: "Local data unavailable."}
	}

	// Pull. A failed pull degrades to an empty cloud snapshot so local data
	// still gets pushed.
	cloud, pullErr := s.pull(ctx, endpoint)
	if pullErr != nil {
		log.Infow("cloud pull failed, pushing local data only", "err", pullErr)
		cloud = &cloudPayload{}
	}

	mergedUsers := mergeUsers(localUsers, cloud.Users)
	mergedRecords := mergeRecords(localRecords, cloud.Attendance)

	// Commit the merged view locally before pushing so a push failure never
	// loses restored data.
	if err := s.users.ReplaceAll(ctx, mergedUsers); err != nil {
		log.Warnw("commit merged users failed", "err", err)
		return Result{Success: false, Message: "Local save failed."}
	}
	if err := s.records.ReplaceAll(ctx, mergedRecords); err != nil {
		log.Warnw("commit merged attendance failed", "err", err)
		return Result{Success: false, Message: "Local save failed."}
	}

	now := time.Now()
	if err := s.push(ctx, endpoint, &pushPayload{
		Users:      mergedUsers,
		Attendance: mergedRecords,
		LastSync:   now.Format(time.RFC3339),
	}); err != nil {
		log.Warnw("cloud push failed", "err", err)
		return Result{Success: false, Message: pushFailureMessage(err)}
	}

	if err := s.config.SetLastSync(ctx, now); err != nil {
		log.Warnw("record last sync failed", "err", err)
	}
	log.Infow("sync complete", "users", len(mergedUsers), "records", len(mergedRecords))
	return Result{Success: true, Message: "Sync Complete (Data Restored & Saved)."}
}

func (s *Service) pull(ctx context.Context, endpoint string) (*cloudPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloud fetch status %d", resp.StatusCode)
	}
	var envelope cloudEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode cloud payload: %w", err)
	}
	if envelope.Status != "success" {
		return nil, fmt.Errorf("cloud status %q", envelope.Status)
	}
	return &envelope.Data, nil
}

func (s *Service) push(ctx context.Context, endpoint string, payload *pushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	// text/plain avoids the CORS preflight the Apps Script web app cannot
	// answer; the script parses the body as JSON regardless.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("cloud update status %d", e.code) }

// pushFailureMessage classifies a push failure for the user. A refused or
// timed-out connection means the endpoint is unreachable or blocked; other
// transport failures on Apps Script almost always mean the deployment is
// not public, so those carry the redeploy hint. Anything non-network
// surfaces with its raw description.
func pushFailureMessage(err error) string {
	var se *statusError
	if errors.As(err, &se) {
		return fmt.Sprintf("Cloud update failed: %d", se.code)
	}
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Sync Failed: Endpoint unreachable or blocked."
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Sync Failed: Endpoint unreachable or blocked."
	case errors.As(err, &netErr):
		return "Sync Failed: Permission Error. Please redeploy your Google Script with access set to 'Anyone'."
	}
	return fmt.Sprintf("Network error: %v", err)
}

// mergeUsers combines the two user lists. If the local list is still the
// factory bootstrap set and the cloud has real data, the cloud list wins
// outright (fresh install restoring a backup). Otherwise cloud entries come
// first in their order, local entries overwrite same-id entries and
// local-only entries append.
func mergeUsers(local, cloud []*userentity.User) []*userentity.User {
	if user.IsBootstrapSet(local) && len(cloud) > 0 {
		return cloud
	}
	return mergeByID(cloud, local, func(u *userentity.User) string { return u.ID })
}

// mergeRecords combines attendance lists with local-wins-by-id semantics.
func mergeRecords(local, cloud []*attendanceentity.Record) []*attendanceentity.Record {
	return mergeByID(cloud, local, func(r *attendanceentity.Record) string { return r.ID })
}

// mergeByID returns base in order with overlay entries replacing same-id
// items in place and new overlay items appended in their order.
func mergeByID[T any](base, overlay []T, id func(T) string) []T {
	index := make(map[string]int, len(base))
	out := make([]T, 0, len(base)+len(overlay))
	for i, item := range base {
		index[id(item)] = i
		out = append(out, item)
	}
	for _, item := range overlay {
		if i, ok := index[id(item)]; ok {
			out[i] = item
			continue
		}
		index[id(item)] = len(out)
		out = append(out, item)
	}
	return out
}
