package config

import (
	"fmt"
	"os"

	"class-reminder/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

// TargetsFile is the layout of REMINDER_TARGETS_FILE:
//
//	targets:
//	  - kind: telegram_group
//	    destination: "-1001234567890"
//	    label: cohort-a
//	  - kind: email
//	    recipients: [ta@example.com, lead@example.com]
type TargetsFile struct {
	Targets []TargetEntry `yaml:"targets"`
}

// TargetEntry is one labelled destination.
type TargetEntry struct {
	Kind        string   `yaml:"kind"`
	Destination string   `yaml:"destination"`
	Recipients  []string `yaml:"recipients"`
	Label       string   `yaml:"label"`
}

// LoadTargetsFile reads and validates a targets file. Every entry must be a
// valid target; one bad entry rejects the file.
func LoadTargetsFile(path string) ([]entity.ChannelTarget, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var file TargetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}

	targets := make([]entity.ChannelTarget, 0, len(file.Targets))
	for i, e := range file.Targets {
		t := entity.ChannelTarget{
			Kind:        entity.ChannelKind(e.Kind),
			Destination: e.Destination,
			Recipients:  e.Recipients,
			Label:       e.Label,
		}
		if err := validateTarget(t); err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// LoadTargets merges the environment destination lists with the optional
// targets file named by REMINDER_TARGETS_FILE.
func LoadTargets(channels ChannelsConfig) ([]entity.ChannelTarget, error) {
	targets := channels.Targets()
	for _, t := range targets {
		if err := validateTarget(t); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
	}
	path := os.Getenv("REMINDER_TARGETS_FILE")
	if path == "" {
		return targets, nil
	}
	fromFile, err := LoadTargetsFile(path)
	if err != nil {
		return nil, err
	}
	return append(targets, fromFile...), nil
}

// validateTarget applies the entity rules plus the webhook URL policy for
// Discord and Slack destinations.
func validateTarget(t entity.ChannelTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}
	switch t.Kind {
	case entity.ChannelDiscord, entity.ChannelSlack:
		return entity.ValidateWebhookURL(t.Destination)
	}
	return nil
}
