// Package schedule runs recurring maintenance jobs on cron expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/onyx-go/dispatch/internal/logging"
)

// ErrJobNotFound is returned for operations on an unregistered job name
var ErrJobNotFound = errors.New("schedule: job not found")

// TaskFunc is the body of a scheduled job
type TaskFunc func(ctx context.Context) error

// HookFunc observes a finished run. err is nil on success.
type HookFunc func(job *Job, err error)

// parser accepts five-field expressions, an optional leading seconds field
// and descriptors such as @hourly or @every 5m.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule owns a cron runner and the jobs registered on it
type Schedule struct {
	cron     *cron.Cron
	jobs     map[string]*Job
	mutex    sync.RWMutex
	logger   logging.Logger
	hooks    []HookFunc
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	location *time.Location
}

// New creates a scheduler in loc. A nil location means UTC.
func New(logger logging.Logger, loc *time.Location) *Schedule {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if loc == nil {
		loc = time.UTC
	}

	ctx, cancel := context.WithCancel(context.Background())
	adapter := cronLogger{logger: logger.WithChannel("schedule")}

	return &Schedule{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(
				cron.Recover(adapter),
				cron.SkipIfStillRunning(adapter),
			),
		),
		jobs:     make(map[string]*Job),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		location: loc,
	}
}

// Validate reports whether expression parses
func Validate(expression string) error {
	if _, err := parser.Parse(expression); err != nil {
		return fmt.Errorf("schedule: invalid expression %q: %w", expression, err)
	}
	return nil
}

// Add registers fn under name. The job fires on expression once the
// schedule is started, or immediately if it already is.
func (s *Schedule) Add(name, expression string, fn TaskFunc) (*Job, error) {
	if name == "" {
		return nil, errors.New("schedule: job name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("schedule: job %s has no task", name)
	}
	if err := Validate(expression); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.jobs[name]; exists {
		return nil, fmt.Errorf("schedule: job %s already registered", name)
	}

	job := &Job{
		name:       name,
		expression: expression,
		task:       fn,
		schedule:   s,
		enabled:    true,
	}

	id, err := s.cron.AddJob(expression, job)
	if err != nil {
		return nil, fmt.Errorf("schedule: add %s: %w", name, err)
	}
	job.entryID = id
	s.jobs[name] = job

	return job, nil
}

// Remove unregisters name
func (s *Schedule) Remove(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	s.cron.Remove(job.entryID)
	delete(s.jobs, name)
	return nil
}

// Job returns the job registered under name
func (s *Schedule) Job(name string) (*Job, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	job, ok := s.jobs[name]
	return job, ok
}

// Jobs returns every registered job sorted by name
func (s *Schedule) Jobs() []*Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].name < jobs[j].name })
	return jobs
}

// OnComplete registers a hook called after every run
func (s *Schedule) OnComplete(hook HookFunc) {
	s.mutex.Lock()
	s.hooks = append(s.hooks, hook)
	s.mutex.Unlock()
}

// RunNow executes name synchronously, outside of its cron timing
func (s *Schedule) RunNow(ctx context.Context, name string) error {
	job, ok := s.Job(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return job.execute(ctx)
}

// Start begins firing jobs in the background
func (s *Schedule) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("Scheduler started", map[string]interface{}{"jobs": len(s.jobs)})
}

// Stop halts the runner and waits for in-flight jobs or ctx, whichever
// comes first. Running jobs see their context cancelled.
func (s *Schedule) Stop(ctx context.Context) error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}
	s.running = false
	s.mutex.Unlock()

	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("schedule: stop: %w", ctx.Err())
	}
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *Schedule) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Run starts the schedule and blocks until ctx is done, then stops it
// allowing grace for in-flight jobs.
func (s *Schedule) Run(ctx context.Context, grace time.Duration) error {
	s.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *Schedule) complete(job *Job, err error) {
	s.mutex.RLock()
	hooks := make([]HookFunc, len(s.hooks))
	copy(hooks, s.hooks)
	s.mutex.RUnlock()

	for _, hook := range hooks {
		hook(job, err)
	}
}

// cronLogger adapts logging.Logger to cron.Logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	l.logger.Error(msg, fields)
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
