package notifier

import (
	"context"
	"net/http"
	"strings"
	"time"

	"class-reminder/internal/domain/entity"
)

// Block Kit limits.
const (
	maxSectionTextLength = 3000
	maxContextTextLength = 2000
	maxSlackFallback     = 150
)

// SlackConfig configures the Slack Incoming Webhook notifier.
type SlackConfig struct {
	Timeout time.Duration
}

// SlackNotifier posts reminders to Slack Incoming Webhooks. The webhook URL is
// the target destination; Slack accepts about one message per second on each.
type SlackNotifier struct {
	client  *http.Client
	limiter *sendLimiter
}

func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		client:  &http.Client{Timeout: config.Timeout},
		limiter: newSendLimiter(nil, 1, 1),
	}
}

type slackMessage struct {
	// Text is shown in push notifications and clients without Block Kit.
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string, limit int) slackText {
	return slackText{Type: "mrkdwn", Text: truncateText(s, limit, "...")}
}

// buildMessage renders the reminder as a bold subject over the body, followed
// by a context line: course, start time and the join link when there is one.
func (s *SlackNotifier) buildMessage(n *entity.Notification) slackMessage {
	section := mrkdwn("*"+n.Subject+"*\n\n"+n.Body, maxSectionTextLength)

	meta := []string{n.CourseName, n.StartAt.UTC().Format(time.RFC3339)}
	if n.JoinURL != "" {
		meta = append(meta, "<"+n.JoinURL+"|Join>")
	}

	return slackMessage{
		Text: truncateText(n.Subject, maxSlackFallback, "..."),
		Blocks: []slackBlock{
			{Type: "section", Text: &section},
			{Type: "context", Elements: []slackText{mrkdwn(strings.Join(meta, " • "), maxContextTextLength)}},
		},
	}
}

// Send implements Notifier. Slack answers errors with plain-text bodies such as
// "invalid_payload" or "channel_not_found", which end up in the ClientError.
func (s *SlackNotifier) Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error {
	if err := invalidTarget(entity.ChannelSlack, target); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx, target.Destination); err != nil {
		return err
	}

	resp, body, err := postJSON(ctx, s.client, target.Destination, s.buildMessage(n))
	if err != nil {
		return err
	}
	return statusError("Slack", resp.StatusCode, body, retryAfterHeader(resp))
}
