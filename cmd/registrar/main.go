// Command registrar replaces every EventBridge schedule targeting the dispatcher
// queue with one fresh rate schedule. It runs once per deployment.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"

	"class-reminder/internal/config"
	"class-reminder/internal/infra/scheduler"
	"class-reminder/internal/observability/logging"
	"class-reminder/internal/usecase/registrar"
	pkgconfig "class-reminder/pkg/config"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "overall registration timeout")
	flag.Parse()

	_, envErr := config.LoadDotEnv()
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Warn("failed to load .env file", slog.Any("error", envErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	awsConfig := config.LoadAWSConfig()
	sdkConfig, err := awsConfig.SDKConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS configuration", slog.Any("error", err))
		os.Exit(1)
	}
	client := awsscheduler.NewFromConfig(sdkConfig, func(o *awsscheduler.Options) {
		if ep := awsConfig.BaseEndpoint(); ep != nil {
			o.BaseEndpoint = ep
		}
	})

	cfg := registrar.Config{
		NamePrefix:      pkgconfig.GetEnvString("SCHEDULE_NAME_PREFIX", "class-reminder-"),
		ScheduleName:    pkgconfig.GetEnvString("SCHEDULE_NAME", registrar.DefaultScheduleName),
		TargetARN:       os.Getenv("SQS_QUEUE_ARN"),
		RoleARN:         os.Getenv("SCHEDULER_ROLE_ARN"),
		IntervalMinutes: pkgconfig.GetEnvInt("SCHEDULE_INTERVAL_MINUTES", registrar.DefaultIntervalMinutes),
		Input:           `{"source":"registrar"}`,
	}
	if cfg.TargetARN == "" || cfg.RoleARN == "" {
		logger.Error("SQS_QUEUE_ARN and SCHEDULER_ROLE_ARN are required")
		os.Exit(1)
	}

	reg := registrar.New(
		scheduler.NewEventBridge(client, pkgconfig.GetEnvString("SCHEDULE_GROUP", "default")),
		cfg, logger)

	result, err := reg.Register(ctx)
	if err != nil {
		logger.Error("schedule registration failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("schedule registered",
		slog.String("schedule", result.Schedule),
		slog.String("expression", result.Expression),
		slog.Bool("updated", result.Updated),
		slog.Any("deleted", result.Deleted),
		slog.Any("vanished", result.Vanished))
}
