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

// TelegramSender delivers messages through the Telegram bot API.
type TelegramSender struct {
	cfg    config.TelegramChannel
	client *http.Client
}

func NewTelegramSender(cfg config.TelegramChannel) *TelegramSender {
	return &TelegramSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *TelegramSender) Send(ctx context.Context, recipient, message string) error {
	if s.cfg.BotToken == "" {
		return fmt.Errorf("telegram channel not configured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.cfg.BaseURL, s.cfg.BotToken)
	payload, err := json.Marshal(map[string]string{
		"chat_id": recipient,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
