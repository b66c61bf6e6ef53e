package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps process-local counters. All methods are safe on a nil receiver.
type Collector struct {
	totalRequests   atomic.Int64
	errorRequests   atomic.Int64
	rateLimited     atomic.Int64
	totalDurationMs atomic.Int64

	generationsOK     atomic.Int64
	generationsFailed atomic.Int64
	generationMs      atomic.Int64

	emailsSent   atomic.Int64
	emailsFailed atomic.Int64

	webhooksHandled atomic.Int64
	webhooksFailed  atomic.Int64
}

type Snapshot struct {
	RequestsTotal     int64   `json:"requestsTotal"`
	ErrorsTotal       int64   `json:"errorsTotal"`
	RateLimitedTotal  int64   `json:"rateLimitedTotal"`
	AvgDurationMs     float64 `json:"avgDurationMs"`
	GenerationsOK     int64   `json:"generationsSucceeded"`
	GenerationsFailed int64   `json:"generationsFailed"`
	AvgGenerationMs   float64 `json:"avgGenerationMs"`
	EmailsSent        int64   `json:"emailsSent"`
	EmailsFailed      int64   `json:"emailsFailed"`
	WebhooksHandled   int64   `json:"webhooksHandled"`
	WebhooksFailed    int64   `json:"webhooksFailed"`
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.totalRequests.Add(1)
	if status >= 500 {
		c.errorRequests.Add(1)
	}
	if status == 429 {
		c.rateLimited.Add(1)
	}
	c.totalDurationMs.Add(duration.Milliseconds())
}

func (c *Collector) RecordGeneration(ok bool, duration time.Duration) {
	if c == nil {
		return
	}
	if ok {
		c.generationsOK.Add(1)
	} else {
		c.generationsFailed.Add(1)
	}
	c.generationMs.Add(duration.Milliseconds())
}

func (c *Collector) RecordEmail(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.emailsSent.Add(1)
		return
	}
	c.emailsFailed.Add(1)
}

func (c *Collector) RecordWebhook(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.webhooksHandled.Add(1)
		return
	}
	c.webhooksFailed.Add(1)
}

func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	s := Snapshot{
		RequestsTotal:     c.totalRequests.Load(),
		ErrorsTotal:       c.errorRequests.Load(),
		RateLimitedTotal:  c.rateLimited.Load(),
		GenerationsOK:     c.generationsOK.Load(),
		GenerationsFailed: c.generationsFailed.Load(),
		EmailsSent:        c.emailsSent.Load(),
		EmailsFailed:      c.emailsFailed.Load(),
		WebhooksHandled:   c.webhooksHandled.Load(),
		WebhooksFailed:    c.webhooksFailed.Load(),
	}
	if s.RequestsTotal > 0 {
		s.AvgDurationMs = float64(c.totalDurationMs.Load()) / float64(s.RequestsTotal)
	}
	if generations := s.GenerationsOK + s.GenerationsFailed; generations > 0 {
		s.AvgGenerationMs = float64(c.generationMs.Load()) / float64(generations)
	}
	return s
}
