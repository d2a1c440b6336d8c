package respond

import (
	"regexp"
)

// Order matters: the more specific patterns run first.
var (
	telegramTokenPattern = regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]+`)
	sendgridKeyPattern   = regexp.MustCompile(`SG\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	discordHookPattern   = regexp.MustCompile(`(discord(?:app)?\.com/api/webhooks/\d+)/[A-Za-z0-9_-]+`)
	slackHookPattern     = regexp.MustCompile(`(hooks\.slack\.com/services)/[A-Za-z0-9/]+`)
	bearerPattern        = regexp.MustCompile(`(?i)(bearer )[A-Za-z0-9._-]+`)
	dbPasswordPattern    = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)
)

// SanitizeError returns err's message with provider credentials, webhook secrets,
// bearer tokens and DSN passwords masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = telegramTokenPattern.ReplaceAllString(msg, "bot****")
	msg = sendgridKeyPattern.ReplaceAllString(msg, "SG.****")
	msg = discordHookPattern.ReplaceAllString(msg, "$1/****")
	msg = slackHookPattern.ReplaceAllString(msg, "$1/****")
	msg = bearerPattern.ReplaceAllString(msg, "${1}****")
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
