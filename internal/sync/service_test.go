package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	attendanceentity "github.com/mycoharvest/officeroute/internal/attendance/entity"
	userentity "github.com/mycoharvest/officeroute/internal/user/entity"
)

type memUserStore struct {
	users []*userentity.User
}

func (m *memUserStore) GetAll(context.Context) ([]*userentity.User, error) { return m.users, nil }
func (m *memUserStore) ReplaceAll(_ context.Context, users []*userentity.User) error {
	m.users = users
	return nil
}

type memRecordStore struct {
	records []*attendanceentity.Record
}

func (m *memRecordStore) GetAll(context.Context) ([]*attendanceentity.Record, error) {
	return m.records, nil
}
func (m *memRecordStore) ReplaceAll(_ context.Context, recs []*attendanceentity.Record) error {
	m.records = recs
	return nil
}

type memConfig struct {
	endpoint string
	lastSync time.Time
}

func (m *memConfig) Endpoint(context.Context) (string, error) { return m.endpoint, nil }
func (m *memConfig) SetLastSync(_ context.Context, t time.Time) error {
	m.lastSync = t
	return nil
}

// cloudServer fakes the Apps Script web app: GET serves the snapshot, POST
// captures the pushed payload.
type cloudServer struct {
	*httptest.Server
	snapshot  cloudPayload
	pullFails bool
	pushCode  int
	pushed    *pushPayload
	pushType  string
}

func newCloudServer(t *testing.T) *cloudServer {
	t.Helper()
	cs := &cloudServer{pushCode: http.StatusOK}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if cs.pullFails {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(cloudEnvelope{Status: "success", Data: cs.snapshot})
		case http.MethodPost:
			cs.pushType = r.Header.Get("Content-Type")
			var p pushPayload
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				t.Errorf("decode pushed payload: %v", err)
			}
			cs.pushed = &p
			w.WriteHeader(cs.pushCode)
		}
	}))
	t.Cleanup(cs.Close)
	return cs
}

// endpoint returns the test server URL with a path that satisfies the
// provider gate.
func (cs *cloudServer) endpoint() string {
	return cs.URL + "/script.google.com/macros/exec"
}

func rec(id, userID, date string) *attendanceentity.Record {
	return &attendanceentity.Record{
		ID:          id,
		UserID:      userID,
		Date:        date,
		CheckInTime: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		WorkMode:    attendanceentity.ModeOffice,
		Status:      attendanceentity.StatusPresent,
	}
}

func usr(id, name string) *userentity.User {
	return &userentity.User{ID: id, Name: name, Role: userentity.RoleUser}
}

func bootstrapPair() []*userentity.User {
	return []*userentity.User{
		{ID: "ADMIN_001", Name: "Amol Admin", Role: userentity.RoleAdmin},
		{ID: "EMP_001", Name: "Nikita Dabhade", Role: userentity.RoleUser},
	}
}

func newSyncService(users *memUserStore, records *memRecordStore, cfg *memConfig) *Service {
	return NewService(users, records, cfg, zap.NewNop().Sugar())
}

func TestSyncMergeLocalWins(t *testing.T) {
	cs := newCloudServer(t)
	cloudRec := rec("R1", "EMP_001", "2026-08-27")
	cloudRec.Status = attendanceentity.StatusLate
	cs.snapshot = cloudPayload{
		Users:      []*userentity.User{usr("U1", "A"), usr("U2", "B"), usr("U3", "C")},
		Attendance: []*attendanceentity.Record{cloudRec, rec("R0", "EMP_002", "2026-08-26")},
	}

	localRec := rec("R1", "EMP_001", "2026-08-27")
	users := &memUserStore{users: []*userentity.User{usr("U1", "A"), usr("U2", "B"), usr("U3", "C")}}
	records := &memRecordStore{records: []*attendanceentity.Record{localRec, rec("R2", "EMP_001", "2026-08-28")}}
	cfg := &memConfig{endpoint: cs.endpoint()}

	res := newSyncService(users, records, cfg).Sync(context.Background())
	if !res.Success {
		t.Fatalf("sync failed: %s", res.Message)
	}
	if res.Message != "Sync Complete (Data Restored & Saved)." {
		t.Errorf("message = %q", res.Message)
	}

	if len(records.records) != 3 {
		t.Fatalf("merged %d records, want 3", len(records.records))
	}
	// cloud order preserved, local version wins the id collision
	if records.records[0].ID != "R1" || records.records[0].Status != attendanceentity.StatusPresent {
		t.Errorf("record[0] = %s status %s, local version must win", records.records[0].ID, records.records[0].Status)
	}
	if records.records[1].ID != "R0" || records.records[2].ID != "R2" {
		t.Errorf("merge order = %s, %s", records.records[1].ID, records.records[2].ID)
	}

	if cs.pushed == nil || len(cs.pushed.Attendance) != 3 {
		t.Fatal("push must carry the full merged set")
	}
	if !strings.HasPrefix(cs.pushType, "text/plain") {
		t.Errorf("push content type = %q", cs.pushType)
	}
	if cfg.lastSync.IsZero() {
		t.Error("last sync time not recorded")
	}
}

func TestSyncIdempotent(t *testing.T) {
	cs := newCloudServer(t)
	users := &memUserStore{users: []*userentity.User{usr("U1", "A"), usr("U2", "B"), usr("U3", "C")}}
	records := &memRecordStore{records: []*attendanceentity.Record{rec("R1", "EMP_001", "2026-08-28")}}
	cfg := &memConfig{endpoint: cs.endpoint()}
	svc := newSyncService(users, records, cfg)

	if res := svc.Sync(context.Background()); !res.Success {
		t.Fatalf("first sync: %s", res.Message)
	}
	// echo the pushed state back as the cloud snapshot
	cs.snapshot = cloudPayload{Users: cs.pushed.Users, Attendance: cs.pushed.Attendance}

	if res := svc.Sync(context.Background()); !res.Success {
		t.Fatalf("second sync: %s", res.Message)
	}
	if len(records.records) != 1 || len(users.users) != 3 {
		t.Errorf("repeat sync changed the data: %d records, %d users", len(records.records), len(users.users))
	}
}

func TestSyncBootstrapRestore(t *testing.T) {
	cs := newCloudServer(t)
	cs.snapshot = cloudPayload{Users: []*userentity.User{usr("U1", "A"), usr("U2", "B"), usr("U3", "C")}}

	users := &memUserStore{users: bootstrapPair()}
	records := &memRecordStore{}
	cfg := &memConfig{endpoint: cs.endpoint()}

	if res := newSyncService(users, records, cfg).Sync(context.Background()); !res.Success {
		t.Fatalf("sync failed: %s", res.Message)
	}
	if len(users.users) != 3 || users.users[0].ID != "U1" {
		t.Errorf("bootstrap set must be replaced by cloud users, got %d", len(users.users))
	}
}

func TestSyncGrownLocalNotReplaced(t *testing.T) {
	cs := newCloudServer(t)
	cs.snapshot = cloudPayload{Users: []*userentity.User{usr("U1", "A")}}

	local := bootstrapPair()
	local = append(local, usr("EMP_002", "New Hire"))
	users := &memUserStore{users: local}
	records := &memRecordStore{}
	cfg := &memConfig{endpoint: cs.endpoint()}

	if res := newSyncService(users, records, cfg).Sync(context.Background()); !res.Success {
		t.Fatalf("sync failed: %s", res.Message)
	}
	if len(users.users) != 4 {
		t.Fatalf("merged %d users, want 4", len(users.users))
	}
	ids := map[string]bool{}
	for _, u := range users.users {
		ids[u.ID] = true
	}
	if !ids["EMP_002"] || !ids["ADMIN_001"] {
		t.Error("grown local roster must survive the merge")
	}
}

func TestSyncPullFailureStillPushes(t *testing.T) {
	cs := newCloudServer(t)
	cs.pullFails = true

	users := &memUserStore{users: bootstrapPair()}
	records := &memRecordStore{records: []*attendanceentity.Record{rec("R1", "EMP_001", "2026-08-28")}}
	cfg := &memConfig{endpoint: cs.endpoint()}

	res := newSyncService(users, records, cfg).Sync(context.Background())
	if !res.Success {
		t.Fatalf("sync failed: %s", res.Message)
	}
	if cs.pushed == nil || len(cs.pushed.Attendance) != 1 || len(cs.pushed.Users) != 2 {
		t.Error("failed pull must still push the full local set")
	}
}

func TestSyncPushFailure(t *testing.T) {
	cs := newCloudServer(t)
	cs.pushCode = http.StatusInternalServerError

	users := &memUserStore{users: bootstrapPair()}
	records := &memRecordStore{}
	cfg := &memConfig{endpoint: cs.endpoint()}

	res := newSyncService(users, records, cfg).Sync(context.Background())
	if res.Success {
		t.Fatal("push failure must not report success")
	}
	if res.Message != "Cloud update failed: 500" {
		t.Errorf("message = %q", res.Message)
	}
	if cfg.lastSync != (time.Time{}) {
		t.Error("failed sync must not record a last sync time")
	}
}

func TestSyncUnreachableEndpoint(t *testing.T) {
	users := &memUserStore{users: bootstrapPair()}
	records := &memRecordStore{}
	// closed port, path keeps the provider gate satisfied
	cfg := &memConfig{endpoint: "http://127.0.0.1:1/script.google.com/macros/exec"}

	res := newSyncService(users, records, cfg).Sync(context.Background())
	if res.Success {
		t.Fatal("unreachable endpoint must not report success")
	}
	if res.Message != "Sync Failed: Endpoint unreachable or blocked." {
		t.Errorf("message = %q", res.Message)
	}
}

func TestPushFailureClassification(t *testing.T) {
	refused := &url.Error{
		Op:  "Post",
		URL: "https://script.google.com/macros/exec",
		Err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
	}
	timedOut := &url.Error{
		Op:  "Post",
		URL: "https://script.google.com/macros/exec",
		Err: &net.DNSError{Err: "lookup timed out", Name: "script.google.com", IsTimeout: true},
	}
	noSuchHost := &url.Error{
		Op:  "Post",
		URL: "https://script.google.com/macros/exec",
		Err: &net.DNSError{Err: "no such host", Name: "script.google.com"},
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejected status", &statusError{code: 500}, "Cloud update failed: 500"},
		{"connection refused", refused, "Sync Failed: Endpoint unreachable or blocked."},
		{"timeout", timedOut, "Sync Failed: Endpoint unreachable or blocked."},
		{"other transport failure", noSuchHost, "Sync Failed: Permission Error. Please redeploy your Google Script with access set to 'Anyone'."},
		{"non-network failure", errors.New("unexpected EOF"), "Network error: unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pushFailureMessage(tt.err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSyncEndpointGate(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"unconfigured", "", "Sync endpoint not configured."},
		{"foreign host", "https://evil.example.com/exec", "Invalid sync endpoint. Please configure a script.google.com web app URL."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSyncService(&memUserStore{}, &memRecordStore{}, &memConfig{endpoint: tt.endpoint}).Sync(context.Background())
			if res.Success {
				t.Fatal("must not succeed")
			}
			if res.Message != tt.want {
				t.Errorf("message = %q, want %q", res.Message, tt.want)
			}
		})
	}
}
