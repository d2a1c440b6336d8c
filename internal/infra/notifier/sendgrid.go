package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"class-reminder/internal/domain/entity"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/time/rate"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

// SendGridConfig contains configuration for email delivery through SendGrid.
type SendGridConfig struct {
	APIKey      string
	FromAddress string
	FromName    string

	// Host overrides the API host, mainly for tests.
	Host string

	// Timeout is the HTTP request timeout for SendGrid API calls
	Timeout time.Duration
}

// SendGridNotifier emails reminders. One target is one mail with a personalization
// per recipient, so recipients never see each other's addresses.
type SendGridNotifier struct {
	config  SendGridConfig
	client  *rest.Client
	from    *sgmail.Email
	limiter *sendLimiter
}

// NewSendGridNotifier creates a SendGridNotifier limited to 10 requests/second.
func NewSendGridNotifier(config SendGridConfig) *SendGridNotifier {
	if config.Host == "" {
		config.Host = defaultSendGridHost
	}
	return &SendGridNotifier{
		config:  config,
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: config.Timeout}},
		from:    sgmail.NewEmail(config.FromName, config.FromAddress),
		limiter: newSendLimiter(rate.NewLimiter(10, 10), 0, 0),
	}
}

func (s *SendGridNotifier) buildMail(n *entity.Notification, recipients []string) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = n.Subject

	for _, to := range recipients {
		p := sgmail.NewPersonalization()
		p.AddTos(sgmail.NewEmail("", to))
		m.AddPersonalizations(p)
	}

	m.AddContent(sgmail.NewContent("text/plain", n.Body))
	return m
}

// Send implements Notifier for email targets.
func (s *SendGridNotifier) Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error {
	if err := invalidTarget(entity.ChannelEmail, target); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx, ""); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.config.APIKey, sendGridEndpoint, s.config.Host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.buildMail(n, target.Recipients))

	type result struct {
		resp *rest.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.client.Send(req)
		done <- result{resp: resp, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return fmt.Errorf("sendgrid request: %w", ctx.Err())
	}
	if res.err != nil {
		return fmt.Errorf("sendgrid request: %w", redactURLError(res.err))
	}

	if res.resp.StatusCode >= 200 && res.resp.StatusCode < 300 {
		return nil
	}
	var retryAfter time.Duration
	if v := res.resp.Headers["Retry-After"]; len(v) > 0 {
		retryAfter = retryAfterHeader(&http.Response{Header: http.Header{"Retry-After": v}})
	}
	return statusError("SendGrid", res.resp.StatusCode, []byte(res.resp.Body), retryAfter)
}
