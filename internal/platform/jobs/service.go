package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

const (
	JobReviewSweep  = "review_sweep"
	JobTokenCleanup = "token_cleanup"
)

type RunFunc func(context.Context) (any, error)

// Service runs background jobs one at a time from a buffered queue. Jobs can
// be enqueued directly or on a cron schedule; each run is recorded in job_runs
// when a database is available.
type Service struct {
	DB    *pgxpool.Pool
	cron  *cron.Cron
	queue chan job
}

type job struct {
	Type string
	Run  RunFunc
}

func New(db *pgxpool.Pool) *Service {
	return &Service{
		DB:    db,
		cron:  cron.New(),
		queue: make(chan job, 128),
	}
}

// Schedule enqueues run on every tick of spec, a standard cron expression or
// a descriptor such as "@every 5m". An empty spec disables the job.
func (s *Service) Schedule(spec, jobType string, run RunFunc) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Enqueue(jobType, run) }); err != nil {
		return fmt.Errorf("schedule %s: %w", jobType, err)
	}
	slog.Info("job scheduled", "jobType", jobType, "spec", spec)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running cron callback to return.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Service) Enqueue(jobType string, run RunFunc) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
      INSERT INTO job_runs (job_type, status)
      VALUES ($1, $2)
      RETURNING id::text
    `, j.Type, "running").Scan(&runID); err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	var lastError *string
	if err != nil {
		status = "failed"
		msg := err.Error()
		lastError = &msg
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil || details == nil {
		if marshalErr != nil {
			slog.Warn("job details marshal failed", "err", marshalErr)
		}
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details = $2, last_error = $3, completed_at = now()
      WHERE id = $4
    `, status, detailsJSON, lastError, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	slog.Info("job run finished", "jobType", j.Type, "status", status)
	return details, err
}
