package events

import (
	"sort"
	"sync"
	"time"
)

// Outcome describes one finished dispatch
type Outcome struct {
	Event   string
	Ran     int
	Skipped int
	Took    time.Duration
	Err     error
}

// Stopped reports whether propagation was stopped before every listener ran
func (o Outcome) Stopped() bool {
	return o.Skipped > 0 && o.Err == nil
}

// Recorder observes dispatches
type Recorder interface {
	Record(outcome Outcome)
}

// RecorderFunc adapts a function to Recorder
type RecorderFunc func(outcome Outcome)

// Record implements Recorder
func (f RecorderFunc) Record(outcome Outcome) { f(outcome) }

type noopRecorder struct{}

func (noopRecorder) Record(Outcome) {}

// EventStats accumulates outcomes for one event name
type EventStats struct {
	Name       string        `json:"name" yaml:"name"`
	Dispatches int64         `json:"dispatches" yaml:"dispatches"`
	Listeners  int64         `json:"listeners" yaml:"listeners"`
	Stopped    int64         `json:"stopped" yaml:"stopped"`
	Failures   int64         `json:"failures" yaml:"failures"`
	Total      time.Duration `json:"total" yaml:"total"`
	Slowest    time.Duration `json:"slowest" yaml:"slowest"`
	Last       time.Time     `json:"last" yaml:"last"`
}

// Mean is the average dispatch duration
func (s EventStats) Mean() time.Duration {
	if s.Dispatches == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Dispatches)
}

// Stats is an in-memory Recorder keyed by event name
type Stats struct {
	events map[string]*EventStats
	now    func() time.Time
	mutex  sync.RWMutex
}

// NewStats creates an empty Stats recorder
func NewStats() *Stats {
	return &Stats{events: make(map[string]*EventStats), now: time.Now}
}

// Record implements Recorder
func (s *Stats) Record(o Outcome) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	st, ok := s.events[o.Event]
	if !ok {
		st = &EventStats{Name: o.Event}
		s.events[o.Event] = st
	}
	st.Dispatches++
	st.Listeners += int64(o.Ran)
	st.Total += o.Took
	st.Last = s.now()
	if o.Took > st.Slowest {
		st.Slowest = o.Took
	}
	if o.Stopped() {
		st.Stopped++
	}
	if o.Err != nil {
		st.Failures++
	}
}

// Event returns the stats for one event name
func (s *Stats) Event(name string) (EventStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if st, ok := s.events[name]; ok {
		return *st, true
	}
	return EventStats{}, false
}

// All returns a snapshot sorted by event name
func (s *Stats) All() []EventStats {
	s.mutex.RLock()
	all := make([]EventStats, 0, len(s.events))
	for _, st := range s.events {
		all = append(all, *st)
	}
	s.mutex.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Reset drops everything recorded so far
func (s *Stats) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = make(map[string]*EventStats)
}
