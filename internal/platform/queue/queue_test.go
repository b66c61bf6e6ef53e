package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraze/internal/platform/metrics"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: NotificationQueue}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type recordingMailer struct {
	to  []string
	err error
}

func (r *recordingMailer) Send(_ context.Context, _, to, _, _ string) error {
	r.to = append(r.to, to)
	return r.err
}

func TestOutboxEnqueuesEmailTask(t *testing.T) {
	client := &fakeEnqueuer{}
	outbox := &Outbox{client: client}

	err := outbox.Send(context.Background(), "hello@appraze.io", "a@example.com", "Subject", "<p>x</p>")
	require.NoError(t, err)
	require.Len(t, client.tasks, 1)
	assert.Equal(t, TaskTypeEmail, client.tasks[0].Type())

	var task EmailTask
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &task))
	assert.Equal(t, EmailTask{From: "hello@appraze.io", To: "a@example.com", Subject: "Subject", HTML: "<p>x</p>"}, task)
}

func TestOutboxReportsEnqueueFailure(t *testing.T) {
	outbox := &Outbox{client: &fakeEnqueuer{err: errors.New("redis down")}}
	err := outbox.Send(context.Background(), "f", "t", "s", "h")
	assert.ErrorContains(t, err, "redis down")
}

func TestWorkerDeliversTask(t *testing.T) {
	mailer := &recordingMailer{}
	collector := metrics.New()
	worker := &Worker{mailer: mailer, metrics: collector}

	payload, err := json.Marshal(EmailTask{From: "f", To: "a@example.com", Subject: "s", HTML: "h"})
	require.NoError(t, err)
	require.NoError(t, worker.HandleEmail(context.Background(), asynq.NewTask(TaskTypeEmail, payload)))
	assert.Equal(t, []string{"a@example.com"}, mailer.to)
	assert.Equal(t, int64(1), collector.Snapshot().EmailsSent)

	mailer.err = errors.New("provider down")
	assert.Error(t, worker.HandleEmail(context.Background(), asynq.NewTask(TaskTypeEmail, payload)))
	assert.Equal(t, int64(1), collector.Snapshot().EmailsFailed)
}

func TestWorkerSkipsRetryOnBadPayload(t *testing.T) {
	worker := &Worker{mailer: &recordingMailer{}, metrics: metrics.New()}
	err := worker.HandleEmail(context.Background(), asynq.NewTask(TaskTypeEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
