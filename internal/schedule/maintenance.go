package schedule

import (
	"context"

	"github.com/onyx-go/dispatch/internal/logging"
)

// Job names used by RegisterMaintenance
const (
	SessionGCJob      = "session:gc"
	RateLimitSweepJob = "ratelimit:sweep"
)

// SessionCollector removes expired sessions. *session.Manager satisfies it.
type SessionCollector interface {
	GarbageCollect(ctx context.Context) (int, error)
}

// Sweeper evicts expired counters. ratelimit.Store satisfies it.
type Sweeper interface {
	Sweep() int
}

// Maintenance holds the expressions for the built-in jobs. An empty
// expression leaves that job unregistered.
type Maintenance struct {
	SessionGC      string `mapstructure:"session_gc"`
	RateLimitSweep string `mapstructure:"ratelimit_sweep"`
}

// RegisterMaintenance adds the session GC and rate-limit sweep jobs for
// whichever of sessions and store is non-nil.
func RegisterMaintenance(s *Schedule, cfg Maintenance, sessions SessionCollector, store Sweeper) error {
	if sessions != nil && cfg.SessionGC != "" {
		job, err := s.Add(SessionGCJob, cfg.SessionGC, func(ctx context.Context) error {
			removed, err := sessions.GarbageCollect(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				s.logger.Log(logging.InfoLevel, "Expired sessions removed", map[string]interface{}{"count": removed})
			}
			return nil
		})
		if err != nil {
			return err
		}
		job.Describe("Remove sessions idle longer than the configured lifetime")
	}

	if store != nil && cfg.RateLimitSweep != "" {
		job, err := s.Add(RateLimitSweepJob, cfg.RateLimitSweep, func(ctx context.Context) error {
			if removed := store.Sweep(); removed > 0 {
				s.logger.Debug("Expired rate-limit windows evicted", map[string]interface{}{"count": removed})
			}
			return ctx.Err()
		})
		if err != nil {
			return err
		}
		job.Describe("Evict expired rate-limit windows")
	}

	return nil
}
