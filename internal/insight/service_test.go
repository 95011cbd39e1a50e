package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/attendance"
)

func testStats() *attendance.DayStats {
	return &attendance.DayStats{Date: "2026-08-28", TotalEmployees: 5, Present: 4, Late: 1, Absent: 1}
}

func newTestService(baseURL, key string) *Service {
	return &Service{
		apiKey:  key,
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Second},
		logger:  zap.NewNop().Sugar(),
	}
}

func TestSummarizeWithoutKey(t *testing.T) {
	svc := newTestService("http://unused", "")
	got := svc.Summarize(context.Background(), testStats())
	if got != "AI service unavailable. Please check API Key configuration." {
		t.Errorf("message = %q", got)
	}
}

func TestSummarize(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) == 0 || !strings.Contains(req.Contents[0].Parts[0].Text, "2026-08-28") {
			t.Error("prompt must embed the stats")
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Candidates: []struct {
			Content content `json:"content"`
		}{{Content: content{Parts: []part{{Text: "Attendance looks healthy today."}}}}}})
	}))
	defer ts.Close()

	svc := newTestService(ts.URL, "test-key")
	got := svc.Summarize(context.Background(), testStats())
	if got != "Attendance looks healthy today." {
		t.Errorf("insight = %q", got)
	}
}

func TestSummarizeDegrades(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	svc := newTestService(ts.URL, "test-key")
	got := svc.Summarize(context.Background(), testStats())
	if got != "Unable to generate insights at this time." {
		t.Errorf("message = %q", got)
	}
}
