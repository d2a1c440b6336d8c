package entity

import (
	"fmt"
	"net"
	"net/url"
)

// maxWebhookURLLength bounds webhook URLs read from configuration.
const maxWebhookURLLength = 2048

// ValidateWebhookURL checks a Discord or Slack incoming-webhook URL: https only,
// a host, bounded length, and no literal loopback, link-local or private
// address. Host names are not resolved.
func ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "destination", Message: "webhook URL is required"}
	}
	if len(rawURL) > maxWebhookURLLength {
		return &ValidationError{
			Field:   "destination",
			Message: fmt.Sprintf("webhook URL must not exceed %d characters", maxWebhookURLLength),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "destination", Message: "webhook URL is malformed"}
	}
	if u.Scheme != "https" {
		return &ValidationError{Field: "destination", Message: "webhook URL must use https"}
	}
	if u.Hostname() == "" {
		return &ValidationError{Field: "destination", Message: "webhook URL must have a host"}
	}
	if u.Hostname() == "localhost" {
		return &ValidationError{Field: "destination", Message: "webhook URL cannot point to a private network"}
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil && isPrivateIP(ip) {
		return &ValidationError{Field: "destination", Message: "webhook URL cannot point to a private network"}
	}
	return nil
}

// isPrivateIP reports loopback, link-local (including cloud metadata) and
// RFC 1918 addresses.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsPrivate()
}
