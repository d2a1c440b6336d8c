// Package scheduler adapts Amazon EventBridge Scheduler to the registrar's Schedules port.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"class-reminder/internal/usecase/registrar"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
)

// API is the subset of *scheduler.Client used by the adapter.
type API interface {
	ListSchedules(ctx context.Context, params *awsscheduler.ListSchedulesInput, optFns ...func(*awsscheduler.Options)) (*awsscheduler.ListSchedulesOutput, error)
	CreateSchedule(ctx context.Context, params *awsscheduler.CreateScheduleInput, optFns ...func(*awsscheduler.Options)) (*awsscheduler.CreateScheduleOutput, error)
	UpdateSchedule(ctx context.Context, params *awsscheduler.UpdateScheduleInput, optFns ...func(*awsscheduler.Options)) (*awsscheduler.UpdateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *awsscheduler.DeleteScheduleInput, optFns ...func(*awsscheduler.Options)) (*awsscheduler.DeleteScheduleOutput, error)
}

// maxEventAgeSeconds drops a trigger that could not be delivered within one default
// interval; the next one covers it.
const maxEventAgeSeconds = 300

// EventBridge implements registrar.Schedules on one schedule group.
type EventBridge struct {
	client API
	group  string
}

var _ registrar.Schedules = (*EventBridge)(nil)

// NewEventBridge creates the adapter. An empty group means the "default" group.
func NewEventBridge(client API, group string) *EventBridge {
	if group == "" {
		group = "default"
	}
	return &EventBridge{client: client, group: group}
}

// List implements registrar.Schedules.
func (e *EventBridge) List(ctx context.Context, prefix string) ([]registrar.Schedule, error) {
	input := &awsscheduler.ListSchedulesInput{GroupName: aws.String(e.group)}
	if prefix != "" {
		input.NamePrefix = aws.String(prefix)
	}

	var out []registrar.Schedule
	pages := awsscheduler.NewListSchedulesPaginator(e.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		for _, s := range page.Schedules {
			sched := registrar.Schedule{Name: aws.ToString(s.Name)}
			if s.Target != nil {
				sched.TargetARN = aws.ToString(s.Target.Arn)
			}
			out = append(out, sched)
		}
	}
	return out, nil
}

// Upsert implements registrar.Schedules: create first, update on ConflictException.
func (e *EventBridge) Upsert(ctx context.Context, spec registrar.ScheduleSpec) (bool, error) {
	target := &types.Target{
		Arn:     aws.String(spec.TargetARN),
		RoleArn: aws.String(spec.RoleARN),
		RetryPolicy: &types.RetryPolicy{
			MaximumEventAgeInSeconds: aws.Int32(maxEventAgeSeconds),
			MaximumRetryAttempts:     aws.Int32(0),
		},
	}
	if spec.Input != "" {
		target.Input = aws.String(spec.Input)
	}
	window := &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff}

	_, err := e.client.CreateSchedule(ctx, &awsscheduler.CreateScheduleInput{
		Name:                       aws.String(spec.Name),
		GroupName:                  aws.String(e.group),
		ScheduleExpression:         aws.String(spec.Expression),
		ScheduleExpressionTimezone: aws.String("UTC"),
		Description:                aws.String(spec.Description),
		State:                      types.ScheduleStateEnabled,
		Target:                     target,
		FlexibleTimeWindow:         window,
	})
	if err == nil {
		return false, nil
	}

	var conflict *types.ConflictException
	if !errors.As(err, &conflict) {
		return false, fmt.Errorf("Upsert: create %s: %w", spec.Name, err)
	}

	_, err = e.client.UpdateSchedule(ctx, &awsscheduler.UpdateScheduleInput{
		Name:                       aws.String(spec.Name),
		GroupName:                  aws.String(e.group),
		ScheduleExpression:         aws.String(spec.Expression),
		ScheduleExpressionTimezone: aws.String("UTC"),
		Description:                aws.String(spec.Description),
		State:                      types.ScheduleStateEnabled,
		Target:                     target,
		FlexibleTimeWindow:         window,
	})
	if err != nil {
		return false, fmt.Errorf("Upsert: update %s: %w", spec.Name, err)
	}
	return true, nil
}

// Delete implements registrar.Schedules.
func (e *EventBridge) Delete(ctx context.Context, name string) error {
	_, err := e.client.DeleteSchedule(ctx, &awsscheduler.DeleteScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(e.group),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("Delete %s: %w", name, registrar.ErrScheduleNotFound)
		}
		return fmt.Errorf("Delete %s: %w", name, err)
	}
	return nil
}
