package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"class-reminder/internal/domain/entity"
)

// Embed limits, and the blurple used as the embed accent.
const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	truncationSuffix     = "..."
	discordBlueColor     = 0x5865F2
)

// DiscordConfig configures the Discord webhook notifier.
type DiscordConfig struct {
	Timeout time.Duration
}

// DiscordNotifier sends reminders to Discord webhooks. The webhook URL is the
// target destination, so one notifier serves any number of webhooks.
type DiscordNotifier struct {
	client  *http.Client
	limiter *sendLimiter
}

// NewDiscordNotifier creates a DiscordNotifier. Each webhook gets Discord's
// quota of 30 requests per minute with a burst of 3.
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		client:  &http.Client{Timeout: config.Timeout},
		limiter: newSendLimiter(nil, perMinute(30), 3),
	}
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
	Color       int    `json:"color"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
	// Timestamp is the session start; Discord renders it in each reader's zone.
	Timestamp string `json:"timestamp"`
}

// discordRateLimit is the body of a Discord 429.
type discordRateLimit struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

func (d *DiscordNotifier) buildMessage(n *entity.Notification) discordMessage {
	e := discordEmbed{
		Title:       truncateText(n.Subject, maxTitleLength, truncationSuffix),
		Description: truncateText(n.Body, maxDescriptionLength, truncationSuffix),
		URL:         n.JoinURL,
		Color:       discordBlueColor,
		Timestamp:   n.StartAt.UTC().Format(time.RFC3339),
	}
	e.Footer.Text = n.CourseName
	return discordMessage{Embeds: []discordEmbed{e}}
}

// Send implements Notifier.
func (d *DiscordNotifier) Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error {
	if err := invalidTarget(entity.ChannelDiscord, target); err != nil {
		return err
	}
	if err := d.limiter.Wait(ctx, target.Destination); err != nil {
		return err
	}

	resp, body, err := postJSON(ctx, d.client, target.Destination, d.buildMessage(n))
	if err != nil {
		return err
	}
	return statusError("Discord", resp.StatusCode, body, discordRetryAfter(resp, body))
}

// discordRetryAfter prefers retry_after from the body, which has millisecond
// precision, over the Retry-After header.
func discordRetryAfter(resp *http.Response, body []byte) time.Duration {
	var rl discordRateLimit
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	return retryAfterHeader(resp)
}
