package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named task bound to a cron expression
type Job struct {
	name        string
	description string
	expression  string
	task        TaskFunc
	schedule    *Schedule
	entryID     cron.EntryID

	mutex     sync.RWMutex
	enabled   bool
	lastRun   time.Time
	lastError error
	runCount  int64
	failCount int64
}

// Name returns the job name
func (j *Job) Name() string { return j.name }

// Expression returns the cron expression
func (j *Job) Expression() string { return j.expression }

// Description returns the human readable description
func (j *Job) Description() string {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.description
}

// Describe sets the description and returns the job for chaining
func (j *Job) Describe(description string) *Job {
	j.mutex.Lock()
	j.description = description
	j.mutex.Unlock()
	return j
}

// Enable lets cron fire the job
func (j *Job) Enable() *Job {
	j.mutex.Lock()
	j.enabled = true
	j.mutex.Unlock()
	return j
}

// Disable makes cron ticks no-ops. RunNow still executes the task.
func (j *Job) Disable() *Job {
	j.mutex.Lock()
	j.enabled = false
	j.mutex.Unlock()
	return j
}

// Enabled reports whether cron ticks run the task
func (j *Job) Enabled() bool {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.enabled
}

// Next returns the next fire time, zero when the schedule is not running
func (j *Job) Next() time.Time {
	return j.schedule.cron.Entry(j.entryID).Next
}

// Stats is a snapshot of a job's run history
type Stats struct {
	Name      string    `json:"name" yaml:"name"`
	Schedule  string    `json:"schedule" yaml:"schedule"`
	LastRun   time.Time `json:"last_run" yaml:"last_run"`
	LastError string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Runs      int64     `json:"runs" yaml:"runs"`
	Failures  int64     `json:"failures" yaml:"failures"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
}

// Stats returns the run history
func (j *Job) Stats() Stats {
	j.mutex.RLock()
	defer j.mutex.RUnlock()

	stats := Stats{
		Name:     j.name,
		Schedule: j.expression,
		LastRun:  j.lastRun,
		Runs:     j.runCount,
		Failures: j.failCount,
		Enabled:  j.enabled,
	}
	if j.lastError != nil {
		stats.LastError = j.lastError.Error()
	}
	return stats
}

// Run satisfies cron.Job
func (j *Job) Run() {
	if !j.Enabled() {
		return
	}
	_ = j.execute(j.schedule.ctx)
}

func (j *Job) execute(ctx context.Context) (err error) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schedule: job %s panicked: %v", j.name, r)
		}

		j.mutex.Lock()
		j.lastRun = started
		j.lastError = err
		j.runCount++
		if err != nil {
			j.failCount++
		}
		j.mutex.Unlock()

		fields := map[string]interface{}{
			"job":         j.name,
			"duration_ms": time.Since(started).Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
			j.schedule.logger.Error("Scheduled job failed", fields)
		} else {
			j.schedule.logger.Debug("Scheduled job completed", fields)
		}

		j.schedule.complete(j, err)
	}()

	return j.task(ctx)
}
