package entity

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "discord webhook", url: "https://discord.com/api/webhooks/123/abc", wantErr: false},
		{name: "slack webhook", url: "https://hooks.slack.com/services/T000/B000/XXXX", wantErr: false},
		{name: "with port", url: "https://hooks.example.com:8443/hook", wantErr: false},
		{name: "empty", url: "", wantErr: true},
		{name: "plain http", url: "http://discord.com/api/webhooks/123/abc", wantErr: true},
		{name: "ftp scheme", url: "ftp://example.com/hook", wantErr: true},
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: true},
		{name: "no host", url: "https://", wantErr: true},
		{name: "no scheme", url: "discord.com/api/webhooks/1/a", wantErr: true},
		{name: "malformed", url: "ht!tp://example.com", wantErr: true},
		{name: "too long", url: "https://example.com/" + strings.Repeat("a", 2050), wantErr: true},
		{name: "localhost", url: "https://localhost/hook", wantErr: true},
		{name: "loopback", url: "https://127.0.0.1/hook", wantErr: true},
		{name: "private 10/8", url: "https://10.0.0.1/hook", wantErr: true},
		{name: "private 192.168/16", url: "https://192.168.1.1/hook", wantErr: true},
		{name: "cloud metadata", url: "https://169.254.169.254/latest/meta-data", wantErr: true},
		{name: "ipv6 loopback", url: "https://[::1]/hook", wantErr: true},
		{name: "public literal ip", url: "https://1.1.1.1/hook", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWebhookURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWebhookURL_ReturnsValidationError(t *testing.T) {
	for _, raw := range []string{"", "http://example.com", "https://", "https://10.1.2.3/x", "ht!tp://x"} {
		err := ValidateWebhookURL(raw)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("ValidateWebhookURL(%q) = %T, want *ValidationError", raw, err)
			continue
		}
		if ve.Field != "destination" {
			t.Errorf("field = %q, want destination", ve.Field)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip        string
		isPrivate bool
	}{
		{"127.0.0.1", true},
		{"127.1.2.3", true},
		{"::1", true},
		{"169.254.169.254", true},
		{"fe80::1", true},
		{"10.123.45.67", true},
		{"172.16.0.0", true},
		{"172.31.255.255", true},
		{"192.168.255.255", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
		{"9.255.255.255", false},
		{"172.15.255.255", false},
		{"172.32.0.0", false},
		{"192.169.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}
			if got := isPrivateIP(ip); got != tt.isPrivate {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.isPrivate)
			}
		})
	}
}
