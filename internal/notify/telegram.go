package notify

import (
	"context"
	"fmt"
	"net/http"
)

// telegramAPI is the Bot API root.
const telegramAPI = "https://api.telegram.org"

// TelegramSender posts to one chat through the Bot API.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  newHTTPClient(),
	}
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send delivers title in bold followed by message.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	err := postJSON(ctx, t.client, fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token), telegramMessage{
		ChatID:                t.chatID,
		Text:                  "*" + title + "*\n" + message,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string { return "telegram" }
