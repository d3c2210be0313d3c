package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ResendSender delivers mail through the Resend HTTP API.
type ResendSender struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

type resendEmailIn struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendEmailOut struct {
	ID string `json:"id"`
}

func NewResendSender(baseURL, apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY not set")
	}
	if from == "" {
		return nil, fmt.Errorf("EMAIL_FROM not set")
	}
	return &ResendSender{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *ResendSender) SendEmail(ctx context.Context, to, subject, html string) (SendResult, error) {
	jsonData, err := json.Marshal(resendEmailIn{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(jsonData))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{}, fmt.Errorf("resend send failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var out resendEmailOut
	if err := json.Unmarshal(body, &out); err != nil {
		return SendResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return SendResult{MessageID: out.ID, SentAt: time.Now()}, nil
}
