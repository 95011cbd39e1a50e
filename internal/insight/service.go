package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/attendance"
)

const (
	model          = "gemini-2.5-flash"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	requestTimeout = 30 * time.Second
)

const (
	msgNoKey       = "AI service unavailable. Please check API Key configuration."
	msgUnavailable = "Unable to generate insights at this time."
)

// Service produces a short natural-language summary of today's attendance
// for the admin dashboard. Failures degrade to a fixed message; the
// dashboard never breaks on AI trouble.
type Service struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.SugaredLogger
}

func NewService(logger *zap.SugaredLogger) *Service {
	return &Service{
		apiKey:  os.Getenv("GEMINI_API_KEY"),
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Summarize turns today's stats into a one-paragraph insight.
func (s *Service) Summarize(ctx context.Context, stats *attendance.DayStats) string {
	if s.apiKey == "" {
		return msgNoKey
	}

	summary, err := json.Marshal(stats)
	if err != nil {
		return msgUnavailable
	}
	prompt := fmt.Sprintf(
		"You are an HR assistant. Given today's attendance summary as JSON, write a concise 2-3 sentence insight for the admin dashboard. Mention late arrivals or absences only if notable. Data: %s",
		summary)

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return msgUnavailable
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return msgUnavailable
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debugw("insight request failed", "err", err)
		return msgUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logger.Debugw("insight request rejected", "status", resp.StatusCode)
		return msgUnavailable
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return msgUnavailable
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return msgUnavailable
	}
	return out.Candidates[0].Content.Parts[0].Text
}
