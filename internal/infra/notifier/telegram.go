package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"class-reminder/internal/domain/entity"

	"golang.org/x/time/rate"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"

	// Telegram rejects messages longer than 4096 characters.
	maxTelegramTextLength = 4096
)

// TelegramConfig contains configuration for the Telegram Bot API.
type TelegramConfig struct {
	// BotToken authenticates the bot. It is part of the request path.
	BotToken string

	// BaseURL overrides the API host, mainly for tests and self-hosted Bot API servers.
	BaseURL string

	// Timeout is the HTTP request timeout for Bot API calls
	Timeout time.Duration
}

// TelegramNotifier posts reminders to Telegram groups and channels with sendMessage.
// Both channel kinds share one bot; they differ only in the chat they address.
type TelegramNotifier struct {
	config     TelegramConfig
	httpClient *http.Client
	limiter    *sendLimiter
}

// NewTelegramNotifier creates a TelegramNotifier.
//
// Rate limits follow the Bot API guidance: about 30 messages per second overall and
// about 20 per minute into one group.
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	if config.BaseURL == "" {
		config.BaseURL = defaultTelegramBaseURL
	}
	return &TelegramNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: newSendLimiter(rate.NewLimiter(25, 5), perMinute(20), 3),
	}
}

type telegramSendMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (t *TelegramNotifier) buildMessage(n *entity.Notification, chatID string) telegramSendMessage {
	text := n.Subject + "\n\n" + n.Body
	return telegramSendMessage{
		ChatID:                chatID,
		Text:                  truncateText(text, maxTelegramTextLength, "..."),
		DisableWebPagePreview: true,
	}
}

// Send implements Notifier for telegram_group and telegram_channel targets.
func (t *TelegramNotifier) Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error {
	if target.Kind != entity.ChannelTelegramGroup && target.Kind != entity.ChannelTelegramChannel {
		return invalidTarget(entity.ChannelTelegramGroup, target)
	}
	if err := target.Validate(); err != nil {
		return err
	}

	if err := t.limiter.Wait(ctx, target.Destination); err != nil {
		return err
	}

	endpoint := strings.TrimRight(t.config.BaseURL, "/") + "/bot" + t.config.BotToken + "/sendMessage"
	resp, body, err := postJSON(ctx, t.httpClient, endpoint, t.buildMessage(n, target.Destination))
	if err != nil {
		return err
	}

	var parsed telegramResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if parsed.OK || len(body) == 0 {
			return nil
		}
		return &ClientError{StatusCode: resp.StatusCode, Message: "Telegram API rejected message: " + parsed.Description}
	}

	retryAfter := time.Duration(parsed.Parameters.RetryAfter) * time.Second
	if retryAfter == 0 {
		retryAfter = retryAfterHeader(resp)
	}
	detail := body
	if parsed.Description != "" {
		detail = []byte(parsed.Description)
	}
	return statusError("Telegram", resp.StatusCode, detail, retryAfter)
}
