package config

import (
	"context"
	"testing"
)

func TestLoadAWSConfig(t *testing.T) {
	t.Setenv("AWS_REGION", "ap-northeast-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")

	cfg := LoadAWSConfig()

	if cfg.Region != "ap-northeast-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if !cfg.HasStaticCredentials() {
		t.Error("static credentials not detected")
	}
	if ep := cfg.BaseEndpoint(); ep == nil || *ep != "http://localhost:4566" {
		t.Errorf("BaseEndpoint = %v", ep)
	}

	sdk, err := cfg.SDKConfig(context.Background())
	if err != nil {
		t.Fatalf("SDKConfig() error = %v", err)
	}
	if sdk.Region != "ap-northeast-1" {
		t.Errorf("sdk region = %q", sdk.Region)
	}
	creds, err := sdk.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if creds.AccessKeyID != "AKIATEST" || creds.SecretAccessKey != "secret" {
		t.Errorf("credentials = %+v", creds)
	}
}

func TestLoadAWSConfig_Defaults(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_ENDPOINT", "")

	cfg := LoadAWSConfig()

	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", cfg.Region)
	}
	if cfg.HasStaticCredentials() {
		t.Error("no static credentials expected")
	}
	if cfg.BaseEndpoint() != nil {
		t.Error("no endpoint override expected")
	}
}
