// Package queue triggers dispatch runs from an SQS queue fed by the periodic schedule.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"class-reminder/internal/handler/http/requestid"
	"class-reminder/internal/usecase/reminder"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of *sqs.Client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// Runner performs one dispatch pass. It is satisfied by *reminder.Service.
type Runner interface {
	Run(ctx context.Context) (*reminder.RunStats, error)
}

// Config tunes the long-poll loop.
type Config struct {
	QueueURL        string
	WaitTimeSeconds int32
	MaxMessages     int32
	// ErrorBackoff is the pause after a failed receive
	ErrorBackoff time.Duration
}

// Consumer long-polls the trigger queue. Every non-empty batch triggers exactly one run;
// several queued triggers collapse into that run.
type Consumer struct {
	client SQSAPI
	runner Runner
	cfg    Config
	logger *slog.Logger
}

// NewConsumer creates a Consumer with defaults for zero Config fields.
func NewConsumer(client SQSAPI, runner Runner, cfg Config, logger *slog.Logger) *Consumer {
	if cfg.WaitTimeSeconds <= 0 {
		cfg.WaitTimeSeconds = 20
	}
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > 10 {
		cfg.MaxMessages = 10
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{client: client, runner: runner, cfg: cfg, logger: logger}
}

// Start runs the loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cfg.QueueURL == "" {
		return fmt.Errorf("Start: queue URL not configured")
	}
	c.logger.Info("sqs trigger consumer started", slog.String("queue_url", c.cfg.QueueURL))

	for {
		if ctx.Err() != nil {
			c.logger.Info("sqs trigger consumer stopped")
			return nil
		}
		if err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("sqs trigger poll failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.ErrorBackoff):
			}
		}
	}
}

// PollOnce receives one batch, runs the orchestrator when the batch is non-empty and
// deletes the batch after a completed run. A failed run leaves the messages on the queue
// so they become visible again.
func (c *Consumer) PollOnce(ctx context.Context) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
	})
	if err != nil {
		return fmt.Errorf("PollOnce: receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil
	}

	c.logger.Debug("trigger messages received", slog.Int("count", len(out.Messages)))
	// shutdown must not abandon claims mid-run; the run has its own budget
	runCtx := requestid.WithRequestID(context.WithoutCancel(ctx), "sqs:"+aws.ToString(out.Messages[0].MessageId))
	stats, err := c.runner.Run(runCtx)
	if err != nil {
		return fmt.Errorf("PollOnce: run: %w", err)
	}
	c.logger.Info("queue triggered run completed",
		slog.String("run_id", stats.RunID),
		slog.Int("messages", len(out.Messages)))

	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(out.Messages))
	for _, m := range out.Messages {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            m.MessageId,
			ReceiptHandle: m.ReceiptHandle,
		})
	}
	res, err := c.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(c.cfg.QueueURL),
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("PollOnce: delete batch: %w", err)
	}
	for _, f := range res.Failed {
		c.logger.Warn("trigger message delete failed",
			slog.String("id", aws.ToString(f.Id)),
			slog.String("code", aws.ToString(f.Code)),
			slog.String("message", aws.ToString(f.Message)))
	}
	return nil
}
