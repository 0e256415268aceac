// Package pipeline is the core orchestration layer: a bounded intake queue,
// a concurrency-guarded record index, a request-rate gate, a single serial
// worker, and a background reaper. It is the only component the ingress
// adapter talks to.
package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outblock/imagevalidator/internal/processor"
)

// Sentinel errors returned by Submit.
var (
	ErrQueueFull     = errors.New("queue full")
	ErrQueueClosed   = errors.New("queue closed")
	ErrAlreadyExists = errors.New("processing id already exists")
)

// Status is a ProcessingRecord's lifecycle state.
type Status string

const (
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Record is one job's state, mutated only by the worker for the job's
// lifetime and removed only by the reaper or at shutdown teardown.
type Record struct {
	ProcessingID string
	Status       Status
	SubmittedAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Result       *processor.Result
	request      processor.Request
}

// Stats is the snapshot returned by Pipeline.Stats.
type Stats struct {
	Total            int
	Accepted         int
	InProgress       int
	Completed        int
	Failed           int
	AvailablePermits int
}

// Config parameterizes a Pipeline. QueueSize, ProcessingTimeout and the
// throttle fields come from the loaded service configuration
// (internal/config); ReaperInterval and ShutdownGrace have no config
// counterpart and fall back to their defaults when zero.
type Config struct {
	QueueSize                 int
	ProcessingTimeout         time.Duration
	ThrottleRequestsPerMinute int
	ThrottleInterval          time.Duration // minimum spacing between jobs; defaults to 60s/ThrottleRequestsPerMinute when zero
	ReaperInterval            time.Duration // defaults to 5 minutes when zero
	ShutdownGrace             time.Duration // defaults to 10 seconds when zero
}

// Pipeline is the single, process-wide orchestrator handed to the ingress
// layer at startup. There are no other mutable globals.
type Pipeline struct {
	mu      sync.RWMutex
	records map[string]*Record
	closed  bool

	queue chan string

	limiter *rate.Limiter

	throttleInterval  time.Duration
	processingTimeout time.Duration

	proc *processor.Processor
	log  *zap.SugaredLogger

	shutdownOnce  sync.Once
	shutdownGrace time.Duration

	workerDone chan struct{}
	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New constructs a Pipeline and starts its worker and reaper goroutines.
func New(cfg Config, proc *processor.Processor, log *zap.SugaredLogger) *Pipeline {
	if cfg.ReaperInterval == 0 {
		cfg.ReaperInterval = 5 * time.Minute
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.ThrottleRequestsPerMinute < 1 {
		cfg.ThrottleRequestsPerMinute = 1
	}
	if cfg.ThrottleInterval == 0 {
		cfg.ThrottleInterval = time.Duration(float64(time.Minute) / float64(cfg.ThrottleRequestsPerMinute))
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.ThrottleRequestsPerMinute)/60.0), cfg.ThrottleRequestsPerMinute)

	p := &Pipeline{
		records:           make(map[string]*Record),
		queue:             make(chan string, cfg.QueueSize),
		limiter:           limiter,
		throttleInterval:  cfg.ThrottleInterval,
		processingTimeout: cfg.ProcessingTimeout,
		proc:              proc,
		log:               log,
		shutdownGrace:     cfg.ShutdownGrace,
		workerDone:        make(chan struct{}),
		reaperStop:        make(chan struct{}),
		reaperDone:        make(chan struct{}),
	}

	go p.runWorker()
	go p.runReaper(cfg.ReaperInterval)

	return p
}

// Submit inserts a record and enqueues the job atomically: if the enqueue
// fails because the queue is full, the record insert is rolled back so
// invariant (6) — accepted-or-queued count equals queue depth — holds.
func (p *Pipeline) Submit(id string, req processor.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrQueueClosed
	}
	if _, exists := p.records[id]; exists {
		return ErrAlreadyExists
	}

	p.records[id] = &Record{
		ProcessingID: id,
		Status:       StatusAccepted,
		SubmittedAt:  time.Now(),
		request:      req,
	}

	select {
	case p.queue <- id:
		return nil
	default:
		delete(p.records, id)
		return ErrQueueFull
	}
}

// GetStatus returns the current status, or ok=false if id was never
// submitted (or has since been reaped).
func (p *Pipeline) GetStatus(id string) (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.records[id]
	if !ok {
		return "", false
	}
	return rec.Status, true
}

// GetResult returns the stored result iff the job has status COMPLETED.
func (p *Pipeline) GetResult(id string) (*processor.Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.records[id]
	if !ok || rec.Status != StatusCompleted {
		return nil, false
	}
	return rec.Result, true
}

// Stats summarizes the current record index.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Stats{AvailablePermits: int(math.Max(0, math.Floor(p.limiter.Tokens())))}
	for _, rec := range p.records {
		s.Total++
		switch rec.Status {
		case StatusAccepted:
			s.Accepted++
		case StatusInProgress:
			s.InProgress++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Shutdown stops accepting new submissions, lets the worker drain the
// already-queued jobs up to a grace period, then stops the reaper. It is
// idempotent: a second call observes the same state as the first.
func (p *Pipeline) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.workerDone:
		case <-time.After(p.shutdownGrace):
			if p.log != nil {
				p.log.Warnw("shutdown grace period elapsed, abandoning in-flight work")
			}
		}

		close(p.reaperStop)
		<-p.reaperDone
	})
}

func (p *Pipeline) runWorker() {
	defer close(p.workerDone)

	for id := range p.queue {
		p.processOne(id)
		time.Sleep(p.throttleInterval)
	}
}

func (p *Pipeline) processOne(id string) {
	req, ok := p.beginProcessing(id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.processingTimeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		if p.log != nil {
			p.log.Warnw("job deadline exceeded waiting for rate permit", "processing_id", id, "error", err)
		}
		p.finish(id, StatusFailed, nil)
		return
	}

	result, err := p.proc.Process(ctx, req)

	if err != nil {
		if p.log != nil {
			p.log.Warnw("job deadline exceeded", "processing_id", id, "error", err)
		}
		p.finish(id, StatusFailed, nil)
		return
	}

	p.finish(id, StatusCompleted, result)
}

func (p *Pipeline) beginProcessing(id string) (processor.Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[id]
	if !ok {
		return processor.Request{}, false
	}
	now := time.Now()
	rec.Status = StatusInProgress
	rec.StartedAt = &now
	return rec.request, true
}

func (p *Pipeline) finish(id string, status Status, result *processor.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[id]
	if !ok {
		return
	}
	now := time.Now()
	rec.Status = status
	rec.CompletedAt = &now
	rec.Result = result
}

func (p *Pipeline) runReaper(interval time.Duration) {
	defer close(p.reaperDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.reaperStop:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pipeline) reapOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, rec := range p.records {
		if now.Sub(rec.SubmittedAt) > p.processingTimeout {
			delete(p.records, id)
		}
	}
}
