package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Notification is a rendered, channel-agnostic reminder. It must not be modified
// after rendering; providers only read it.
type Notification struct {
	Key         DispatchKey
	Subject     string
	Body        string
	SessionName string
	CourseName  string
	StartAt     time.Time
	JoinURL     string
	RenderedAt  time.Time
}

// ChannelKind is the provider family of a delivery target.
type ChannelKind string

const (
	ChannelTelegramGroup   ChannelKind = "telegram_group"
	ChannelTelegramChannel ChannelKind = "telegram_channel"
	ChannelEmail           ChannelKind = "email"
	ChannelDiscord         ChannelKind = "discord"
	ChannelSlack           ChannelKind = "slack"
	ChannelKafka           ChannelKind = "kafka"
)

// ChannelKinds lists every supported kind.
func ChannelKinds() []ChannelKind {
	return []ChannelKind{
		ChannelTelegramGroup, ChannelTelegramChannel, ChannelEmail,
		ChannelDiscord, ChannelSlack, ChannelKafka,
	}
}

// Valid reports whether k is a supported kind.
func (k ChannelKind) Valid() bool {
	for _, known := range ChannelKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ChannelTarget is one configured destination. Targets are static configuration.
type ChannelTarget struct {
	Kind ChannelKind
	// Destination is a chat id, webhook URL or topic depending on Kind.
	Destination string
	// Recipients is used by email targets only.
	Recipients []string
	// Label names the target in logs and metrics without leaking secrets.
	Label string
}

// Name returns the label, falling back to a kind-scoped description.
func (t ChannelTarget) Name() string {
	if t.Label != "" {
		return t.Label
	}
	switch t.Kind {
	case ChannelEmail:
		return string(t.Kind) + ":" + strings.Join(t.Recipients, ",")
	case ChannelDiscord, ChannelSlack:
		// webhook URLs carry credentials
		return string(t.Kind)
	default:
		return string(t.Kind) + ":" + t.Destination
	}
}

// ID identifies the destination of t. Two targets share an ID only when they
// deliver to the same place; the label plays no part. Webhook URLs are hashed
// so the ID can appear in logs and metric labels.
func (t ChannelTarget) ID() string {
	switch t.Kind {
	case ChannelEmail:
		return string(t.Kind) + ":" + strings.Join(t.Recipients, ",")
	case ChannelDiscord, ChannelSlack:
		sum := sha256.Sum256([]byte(t.Destination))
		return string(t.Kind) + ":" + hex.EncodeToString(sum[:6])
	default:
		return string(t.Kind) + ":" + t.Destination
	}
}

// Validate checks the target shape for its kind.
func (t ChannelTarget) Validate() error {
	if !t.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: "unknown channel kind " + string(t.Kind)}
	}
	if t.Kind == ChannelEmail {
		if len(t.Recipients) == 0 {
			return &ValidationError{Field: "recipients", Message: "email target requires recipients"}
		}
		return nil
	}
	if t.Destination == "" {
		return &ValidationError{Field: "destination", Message: "destination is required"}
	}
	return nil
}

// ResultStatus classifies the delivery result for one target.
type ResultStatus string

const (
	ResultSuccess          ResultStatus = "success"
	ResultTransientFailure ResultStatus = "transient_failure"
	ResultPermanentFailure ResultStatus = "permanent_failure"
)

// ChannelResult is the outcome of sending one notification to one target.
type ChannelResult struct {
	Target   ChannelTarget
	Status   ResultStatus
	Attempts int
	Err      error
	Duration time.Duration
}

// OK reports whether the target received the notification.
func (r ChannelResult) OK() bool {
	return r.Status == ResultSuccess
}

// Outcome aggregates per-target results into the ledger state: sent when at least
// one target succeeded, failed otherwise.
func Outcome(results []ChannelResult) LedgerState {
	for _, r := range results {
		if r.OK() {
			return LedgerSent
		}
	}
	return LedgerFailed
}

// FailureSummary joins the errors of failed targets for the ledger audit column.
func FailureSummary(results []ChannelResult) string {
	var parts []string
	for _, r := range results {
		if r.OK() {
			continue
		}
		msg := string(r.Status)
		if r.Err != nil {
			msg = r.Err.Error()
		}
		parts = append(parts, r.Target.Name()+": "+msg)
	}
	return strings.Join(parts, "; ")
}
