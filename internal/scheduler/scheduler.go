// Package scheduler runs the engine's named periodic tasks. Re-arming a
// task under the same name replaces any pending run; a run-now trigger
// coalesces with an in-flight run instead of stacking or being dropped.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/queue"
)

// Outcome is the bounded result of one task invocation.
type Outcome int

const (
	// OutcomeSuccess means the run finished; wait for the next arm.
	OutcomeSuccess Outcome = iota
	// OutcomeRetry means the run should be repeated after a backoff.
	OutcomeRetry
)

// TaskFunc is one schedulable unit of work. It must return a bounded
// outcome and never panic; the network calls it makes carry their own
// timeouts.
type TaskFunc func(ctx context.Context) Outcome

// RunLogger records task outcomes (best-effort bookkeeping).
type RunLogger interface {
	UpsertTaskRun(name, status string, at time.Time) error
}

type task struct {
	name       string
	fn         TaskFunc
	timer      *time.Timer
	running    bool
	pendingNow bool
	retries    int
}

// Scheduler owns the task table. Each task runs on its own goroutine, one
// invocation at a time per name.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	runLog RunLogger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. runLog may be nil.
func New(runLog RunLogger) *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*task),
		runLog: runLog,
	}
}

// Start binds the scheduler to a context. Tasks scheduled before Start fire
// only after it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	slog.Info("Scheduler started", "tasks", len(s.tasks))
}

// Stop cancels all pending timers and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, t := range s.tasks {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// Register adds a named task. Registering an existing name replaces its
// function but keeps any pending arm.
func (s *Scheduler) Register(name string, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tasks[name]; ok {
		existing.fn = fn
		return
	}
	s.tasks[name] = &task{name: name, fn: fn}
	slog.Info("Scheduler task registered", "name", name)
}

// ScheduleAfter arms the named task to run after delay, replacing any
// pending arm for the same name.
func (s *Scheduler) ScheduleAfter(name string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		slog.Warn("Scheduler arm for unknown task", "name", name)
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if delay < 0 {
		delay = 0
	}
	t.timer = time.AfterFunc(delay, func() { s.fire(name) })
}

// RunNow triggers the named task immediately. If a run is already in
// flight the trigger coalesces: exactly one more run happens afterwards.
func (s *Scheduler) RunNow(name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		slog.Warn("Scheduler run-now for unknown task", "name", name)
		return
	}
	if t.running {
		t.pendingNow = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.fire(name)
}

func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok || s.ctx == nil || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if t.running {
		// A timer fired while a run-now is in flight; coalesce.
		t.pendingNow = true
		s.mu.Unlock()
		return
	}
	t.running = true
	fn := t.fn
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			outcome := s.invoke(ctx, t.name, fn)

			s.mu.Lock()
			if outcome == OutcomeRetry {
				// A coalesced run-now is satisfied by the rearm: another run
				// is guaranteed either way. Clearing running and arming the
				// backoff timer happen under one lock so no trigger can slip
				// in between and start an overlapping run.
				t.pendingNow = false
				t.retries++
				delay := queue.TaskDelay(t.retries)
				t.running = false
				if t.timer != nil {
					t.timer.Stop()
				}
				t.timer = time.AfterFunc(delay, func() { s.fire(t.name) })
				s.mu.Unlock()
				return
			}
			t.retries = 0
			again := t.pendingNow
			t.pendingNow = false
			if !again {
				t.running = false
			}
			fn = t.fn
			s.mu.Unlock()
			if !again {
				return
			}
		}
	}()
}

func (s *Scheduler) invoke(ctx context.Context, name string, fn TaskFunc) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Scheduler task panicked", "name", name, "panic", r)
			outcome = OutcomeRetry
		}
	}()

	started := time.Now()
	outcome = fn(ctx)

	status := "success"
	if outcome == OutcomeRetry {
		status = "retry"
	}
	slog.Debug("Scheduler task finished", "name", name, "status", status, "took", time.Since(started))
	if s.runLog != nil {
		_ = s.runLog.UpsertTaskRun(name, status, started)
	}
	return outcome
}
