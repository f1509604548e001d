package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"astro-report-backend/config"
)

// Mailer delivers a single transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// ResendMailer sends email through a Resend-compatible HTTP API.
type ResendMailer struct {
	cfg    *config.EmailConfig
	client *http.Client
}

// NewResendMailer creates a mailer for the configured provider.
func NewResendMailer(cfg *config.EmailConfig) *ResendMailer {
	return &ResendMailer{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts the email and treats any non-2xx response as an error.
func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	jsonBody, err := json.Marshal(sendEmailRequest{
		From:    m.cfg.From,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/emails", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email provider returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
