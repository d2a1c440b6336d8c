package scheduler

import (
	"context"
	"errors"
	"testing"

	"class-reminder/internal/usecase/registrar"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	pages     []*awsscheduler.ListSchedulesOutput
	listCalls []*awsscheduler.ListSchedulesInput

	createErr error
	updateErr error
	deleteErr error

	created *awsscheduler.CreateScheduleInput
	updated *awsscheduler.UpdateScheduleInput
	deleted *awsscheduler.DeleteScheduleInput
}

func (f *fakeAPI) ListSchedules(ctx context.Context, in *awsscheduler.ListSchedulesInput, _ ...func(*awsscheduler.Options)) (*awsscheduler.ListSchedulesOutput, error) {
	f.listCalls = append(f.listCalls, in)
	page := f.pages[len(f.listCalls)-1]
	return page, nil
}

func (f *fakeAPI) CreateSchedule(ctx context.Context, in *awsscheduler.CreateScheduleInput, _ ...func(*awsscheduler.Options)) (*awsscheduler.CreateScheduleOutput, error) {
	f.created = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &awsscheduler.CreateScheduleOutput{ScheduleArn: aws.String("arn:schedule")}, nil
}

func (f *fakeAPI) UpdateSchedule(ctx context.Context, in *awsscheduler.UpdateScheduleInput, _ ...func(*awsscheduler.Options)) (*awsscheduler.UpdateScheduleOutput, error) {
	f.updated = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &awsscheduler.UpdateScheduleOutput{ScheduleArn: aws.String("arn:schedule")}, nil
}

func (f *fakeAPI) DeleteSchedule(ctx context.Context, in *awsscheduler.DeleteScheduleInput, _ ...func(*awsscheduler.Options)) (*awsscheduler.DeleteScheduleOutput, error) {
	f.deleted = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &awsscheduler.DeleteScheduleOutput{}, nil
}

func summary(name, target string) types.ScheduleSummary {
	return types.ScheduleSummary{Name: aws.String(name), Target: &types.TargetSummary{Arn: aws.String(target)}}
}

func TestEventBridge_ListFollowsPages(t *testing.T) {
	api := &fakeAPI{pages: []*awsscheduler.ListSchedulesOutput{
		{Schedules: []types.ScheduleSummary{summary("cr-a", "arn:q1")}, NextToken: aws.String("t1")},
		{Schedules: []types.ScheduleSummary{summary("cr-b", "arn:q2"), {Name: aws.String("cr-c")}}},
	}}
	eb := NewEventBridge(api, "reminders")

	got, err := eb.List(context.Background(), "cr-")

	require.NoError(t, err)
	assert.Equal(t, []registrar.Schedule{
		{Name: "cr-a", TargetARN: "arn:q1"},
		{Name: "cr-b", TargetARN: "arn:q2"},
		{Name: "cr-c"},
	}, got)
	require.Len(t, api.listCalls, 2)
	assert.Equal(t, "reminders", aws.ToString(api.listCalls[0].GroupName))
	assert.Equal(t, "cr-", aws.ToString(api.listCalls[0].NamePrefix))
	assert.Equal(t, "t1", aws.ToString(api.listCalls[1].NextToken))
}

func TestEventBridge_UpsertCreates(t *testing.T) {
	api := &fakeAPI{}
	eb := NewEventBridge(api, "")

	updated, err := eb.Upsert(context.Background(), registrar.ScheduleSpec{
		Name: "cr-dispatch", Expression: "rate(5 minutes)", TargetARN: "arn:q", RoleARN: "arn:role", Input: `{"trigger":"schedule"}`,
	})

	require.NoError(t, err)
	assert.False(t, updated)
	require.NotNil(t, api.created)
	assert.Equal(t, "default", aws.ToString(api.created.GroupName))
	assert.Equal(t, "rate(5 minutes)", aws.ToString(api.created.ScheduleExpression))
	assert.Equal(t, "arn:q", aws.ToString(api.created.Target.Arn))
	assert.Equal(t, "arn:role", aws.ToString(api.created.Target.RoleArn))
	assert.Equal(t, `{"trigger":"schedule"}`, aws.ToString(api.created.Target.Input))
	assert.Equal(t, types.FlexibleTimeWindowModeOff, api.created.FlexibleTimeWindow.Mode)
	assert.Equal(t, types.ScheduleStateEnabled, api.created.State)
	assert.Nil(t, api.updated)
}

func TestEventBridge_UpsertFallsBackToUpdateOnConflict(t *testing.T) {
	api := &fakeAPI{createErr: &types.ConflictException{Message: aws.String("exists")}}
	eb := NewEventBridge(api, "reminders")

	updated, err := eb.Upsert(context.Background(), registrar.ScheduleSpec{Name: "cr-dispatch", Expression: "rate(5 minutes)", TargetARN: "arn:q"})

	require.NoError(t, err)
	assert.True(t, updated)
	require.NotNil(t, api.updated)
	assert.Equal(t, "cr-dispatch", aws.ToString(api.updated.Name))
	assert.Equal(t, "rate(5 minutes)", aws.ToString(api.updated.ScheduleExpression))
}

func TestEventBridge_UpsertErrors(t *testing.T) {
	boom := errors.New("access denied")

	t.Run("create error other than conflict", func(t *testing.T) {
		api := &fakeAPI{createErr: boom}
		_, err := NewEventBridge(api, "").Upsert(context.Background(), registrar.ScheduleSpec{Name: "x"})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, api.updated)
	})

	t.Run("update error after conflict", func(t *testing.T) {
		api := &fakeAPI{createErr: &types.ConflictException{}, updateErr: boom}
		_, err := NewEventBridge(api, "").Upsert(context.Background(), registrar.ScheduleSpec{Name: "x"})
		assert.ErrorIs(t, err, boom)
	})
}

func TestEventBridge_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, NewEventBridge(api, "reminders").Delete(context.Background(), "cr-old"))
		assert.Equal(t, "cr-old", aws.ToString(api.deleted.Name))
		assert.Equal(t, "reminders", aws.ToString(api.deleted.GroupName))
	})

	t.Run("missing schedule maps to sentinel", func(t *testing.T) {
		api := &fakeAPI{deleteErr: &types.ResourceNotFoundException{Message: aws.String("gone")}}
		err := NewEventBridge(api, "").Delete(context.Background(), "cr-old")
		assert.ErrorIs(t, err, registrar.ErrScheduleNotFound)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("throttled")
		err := NewEventBridge(&fakeAPI{deleteErr: boom}, "").Delete(context.Background(), "cr-old")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, registrar.ErrScheduleNotFound)
	})
}
