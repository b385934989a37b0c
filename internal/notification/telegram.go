package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// TelegramChannel は開発者のチャットに Bot API で通知します
// チャットIDが未登録の開発者には送りません
type TelegramChannel struct {
	baseURL  string
	botToken string
	client   *http.Client
}

// NewTelegramChannel は新しいTelegramChannelを作成します
func NewTelegramChannel(baseURL, botToken string) *TelegramChannel {
	return &TelegramChannel{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *TelegramChannel) Deliver(ctx context.Context, developer model.Developer, n model.Notification) error {
	if c.botToken == "" || developer.TelegramChatID == nil || strings.TrimSpace(*developer.TelegramChatID) == "" {
		return nil
	}

	msg := n.ToMessage()
	payload, err := json.Marshal(telegramMessage{
		ChatID: strings.TrimSpace(*developer.TelegramChatID),
		Text:   msg.Subject + "\n\n" + msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call telegram: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read telegram response: status=%d: %w", res.StatusCode, err)
	}
	var parsed telegramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("telegram error: status=%d: invalid response: %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK || !parsed.OK {
		return fmt.Errorf("telegram error: status=%d description=%s", res.StatusCode, parsed.Description)
	}
	return nil
}
