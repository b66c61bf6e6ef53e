package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hibiken/asynq"

	"appraze/internal/domain/notifications"
	"appraze/internal/platform/config"
	"appraze/internal/platform/metrics"
)

// Worker drains the notification queue through the real mailer.
type Worker struct {
	server  *asynq.Server
	mailer  notifications.Mailer
	metrics *metrics.Collector
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewWorker(cfg config.Config, mailer notifications.Mailer, collector *metrics.Collector) *Worker {
	server := asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{NotificationQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Warn("queued task failed", "type", task.Type(), "err", err)
		}),
	})
	return &Worker{server: server, mailer: mailer, metrics: collector}
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeEmail, w.HandleEmail)

	w.running = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.server.Run(mux); err != nil {
			slog.Warn("email worker stopped", "err", err)
		}
	}()
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
}

func (w *Worker) HandleEmail(ctx context.Context, t *asynq.Task) error {
	var task EmailTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.mailer.Send(ctx, task.From, task.To, task.Subject, task.HTML); err != nil {
		w.metrics.RecordEmail(false)
		return err
	}
	w.metrics.RecordEmail(true)
	return nil
}
