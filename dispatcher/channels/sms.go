package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"roomreserve/config"
)

// SMSSender delivers text messages through a Twilio-compatible REST API.
type SMSSender struct {
	cfg    config.SMSChannel
	client *http.Client
}

func NewSMSSender(cfg config.SMSChannel) *SMSSender {
	return &SMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SMSSender) Send(ctx context.Context, recipient, message string) error {
	if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" {
		return fmt.Errorf("sms channel not configured")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)
	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}
