// Package scheduler owns one tick loop per derivation. A tick runs to
// completion, publishes its result to subscribers, and only then may the
// next tick fire; distinct derivations run on independent timers without
// coordination. Stopping the scheduler stops future ticks and waits for
// in-flight ones.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic derivation. Run returns the payload delivered to
// subscribers; a nil payload publishes nothing.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (any, error)
}

// Result is a completed tick delivered to subscribers.
type Result struct {
	Job      string
	At       time.Time
	Duration time.Duration
	Payload  any
}

// JobStats counts tick outcomes for one job.
type JobStats struct {
	Name     string
	Runs     int64
	Failures int64
}

type jobState struct {
	job      Job
	runs     atomic.Int64
	failures atomic.Int64
}

// Scheduler drives registered jobs and fans results out to subscribers.
type Scheduler struct {
	logger *zap.Logger
	jobs   []*jobState

	subMu sync.RWMutex
	subs  []chan Result

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{logger: logger, ctx: ctx, cancel: cancel}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, &jobState{job: job})
}

// Subscribe returns a channel receiving tick results. Delivery is
// non-blocking: a full subscriber drops results rather than stalling a
// derivation.
func (s *Scheduler) Subscribe(buffer int) <-chan Result {
	ch := make(chan Result, buffer)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// Start launches one loop per job. Each loop runs its job immediately,
// then on every interval tick.
func (s *Scheduler) Start() {
	if s.started {
		return
	}
	s.started = true

	for _, js := range s.jobs {
		s.wg.Add(1)
		go s.loop(js)
	}
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels future ticks and waits for in-flight ticks to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()

	s.subMu.Lock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.subMu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Stats returns tick counters per job.
func (s *Scheduler) Stats() []JobStats {
	out := make([]JobStats, 0, len(s.jobs))
	for _, js := range s.jobs {
		out = append(out, JobStats{
			Name:     js.job.Name,
			Runs:     js.runs.Load(),
			Failures: js.failures.Load(),
		})
	}
	return out
}

func (s *Scheduler) loop(js *jobState) {
	defer s.wg.Done()

	s.tick(js)

	ticker := time.NewTicker(js.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(js)
		}
	}
}

func (s *Scheduler) tick(js *jobState) {
	start := time.Now()
	payload, err := js.job.Run(s.ctx)
	elapsed := time.Since(start)
	js.runs.Add(1)

	if err != nil {
		js.failures.Add(1)
		s.logger.Error("derivation tick failed",
			zap.String("job", js.job.Name),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return
	}

	s.logger.Debug("derivation tick completed",
		zap.String("job", js.job.Name),
		zap.Duration("duration", elapsed))

	if payload == nil {
		return
	}
	s.publish(Result{Job: js.job.Name, At: start, Duration: elapsed, Payload: payload})
}

func (s *Scheduler) publish(res Result) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- res:
		default:
			s.logger.Warn("subscriber full, dropping result",
				zap.String("job", res.Job))
		}
	}
}
