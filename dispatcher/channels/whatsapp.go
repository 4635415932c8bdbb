package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"roomreserve/config"
)

// WhatsappSender delivers messages through a WhatsApp gateway service.
type WhatsappSender struct {
	cfg    config.WhatsappChannel
	client *http.Client
}

func NewWhatsappSender(cfg config.WhatsappChannel) *WhatsappSender {
	return &WhatsappSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *WhatsappSender) Send(ctx context.Context, recipient, message string) error {
	if s.cfg.BaseURL == "" {
		return fmt.Errorf("whatsapp channel not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"to":   recipient,
		"body": message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode)
	}
	return nil
}
