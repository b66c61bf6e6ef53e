package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"appraze/internal/domain/notifications"
	"appraze/internal/platform/config"
)

const (
	TaskTypeEmail     = "email:send"
	NotificationQueue = "notifications"
	emailMaxRetry     = 8
)

type EmailTask struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func RedisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Outbox is a Mailer that persists messages in Redis for the email worker
// instead of calling the provider on the request path.
type Outbox struct {
	client enqueuer
}

var _ notifications.Mailer = (*Outbox)(nil)

func NewOutbox(cfg config.Config) *Outbox {
	return &Outbox{client: asynq.NewClient(RedisOpt(cfg))}
}

func (o *Outbox) Send(ctx context.Context, from, to, subject, html string) error {
	payload, err := json.Marshal(EmailTask{From: from, To: to, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeEmail, payload)
	if _, err := o.client.EnqueueContext(ctx, task,
		asynq.Queue(NotificationQueue),
		asynq.MaxRetry(emailMaxRetry),
		asynq.Timeout(time.Minute),
	); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

func (o *Outbox) Close() error {
	return o.client.Close()
}
