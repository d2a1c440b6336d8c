package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	pkgconfig "class-reminder/pkg/config"
)

// AWSConfig holds the settings shared by the SQS and Scheduler clients.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the service endpoint, for LocalStack.
	Endpoint string
}

// LoadAWSConfig reads AWS_REGION (default us-east-1), AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_ENDPOINT.
func LoadAWSConfig() AWSConfig {
	return AWSConfig{
		Region:          pkgconfig.GetEnvString("AWS_REGION", "us-east-1"),
		AccessKeyID:     pkgconfig.GetEnvString("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: pkgconfig.GetEnvString("AWS_SECRET_ACCESS_KEY", ""),
		Endpoint:        pkgconfig.GetEnvString("AWS_ENDPOINT", ""),
	}
}

// HasStaticCredentials reports whether both static keys are set.
func (c AWSConfig) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// SDKConfig builds the SDK configuration. Static keys are used when both are
// set; otherwise the default credential chain applies.
func (c AWSConfig) SDKConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
	}
	if c.HasStaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     c.AccessKeyID,
					SecretAccessKey: c.SecretAccessKey,
					Source:          "environment",
				}, nil
			}),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// BaseEndpoint returns the endpoint override for client options, or nil.
func (c AWSConfig) BaseEndpoint() *string {
	if c.Endpoint == "" {
		return nil
	}
	return aws.String(c.Endpoint)
}
