// Package scheduler runs sync cycles in the background: periodically, on
// demand and again after a failed cycle.
//
// All cycles run on the goroutine that called Run, so two cycles never
// overlap. Triggers that arrive while a cycle is running or waiting collapse
// into one.
package scheduler

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/syncworker"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Runner executes one sync cycle.
type Runner interface {
	RunCycle(ctx context.Context) syncworker.Result
}

// Connectivity tells whether the network is usable. Cycles are deferred
// while it reports false.
type Connectivity interface {
	Online() bool
}

type Config struct {
	InitialBackoff time.Duration
	// MaxBackoff caps the retry delay; zero means the shortest periodic
	// interval.
	MaxBackoff     time.Duration
	JitterFraction float64
}

func DefaultConfig() Config {
	return Config{
		InitialBackoff: 30 * time.Second,
		JitterFraction: 0.25,
	}
}

type Scheduler struct {
	runner Runner
	probe  Connectivity
	cfg    Config
	logger logging.Logger

	trigger chan struct{}
	changed chan struct{}

	mu       sync.Mutex
	periodic map[string]*schedule
	attempt  int
	retryAt  time.Time
	deferred bool
	running  bool
	last     syncworker.Result
	runs     int
}

type schedule struct {
	interval time.Duration
	next     time.Time
}

// New creates a scheduler. probe may be nil, in which case the network is
// assumed to be available.
func New(r Runner, probe Connectivity, cfg Config, l logging.Logger) *Scheduler {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.JitterFraction < 0 || cfg.JitterFraction > 1 {
		cfg.JitterFraction = DefaultConfig().JitterFraction
	}
	return &Scheduler{
		runner:   r,
		probe:    probe,
		cfg:      cfg,
		logger:   l.With("module", "scheduler"),
		trigger:  make(chan struct{}, 1),
		changed:  make(chan struct{}, 1),
		periodic: map[string]*schedule{},
	}
}

// SchedulePeriodic registers a periodic cycle under name. Registering a name
// that already exists keeps the existing schedule and returns false.
func (s *Scheduler) SchedulePeriodic(name string, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	s.mu.Lock()
	if _, ok := s.periodic[name]; ok {
		s.mu.Unlock()
		return false
	}
	s.periodic[name] = &schedule{interval: interval, next: time.Now().Add(interval)}
	s.mu.Unlock()

	s.logger.Info(context.Background(), "periodic sync scheduled", "name", name, "interval", interval.String())
	notify(s.changed)
	return true
}

// Cancel removes the periodic schedule name.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	delete(s.periodic, name)
	s.mu.Unlock()
	notify(s.changed)
}

// TriggerNow asks for a cycle as soon as possible. It never blocks; a
// trigger that has not started yet absorbs later ones.
func (s *Scheduler) TriggerNow() {
	notify(s.trigger)
}

// NetworkAvailable re-triggers a cycle that was deferred for lack of
// network.
func (s *Scheduler) NetworkAvailable() {
	s.mu.Lock()
	deferred := s.deferred
	s.mu.Unlock()
	if deferred {
		s.TriggerNow()
	}
}

// LastResult returns the result of the latest cycle and how many cycles ran.
func (s *Scheduler) LastResult() (syncworker.Result, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.runs
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run executes cycles until ctx is cancelled. A cycle that has started is
// allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, ok := s.nextWake(time.Now())
		stopTimer(timer)
		var due <-chan time.Time
		if ok {
			timer.Reset(wait)
			due = timer.C
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.changed:
			continue
		case <-s.trigger:
			s.runOnce(ctx, "trigger")
		case <-due:
			s.runOnce(ctx, s.consumeDue(time.Now()))
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// nextWake returns the delay until the earliest periodic or retry deadline.
func (s *Scheduler) nextWake(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	for _, p := range s.periodic {
		if earliest.IsZero() || p.next.Before(earliest) {
			earliest = p.next
		}
	}
	if !s.retryAt.IsZero() && (earliest.IsZero() || s.retryAt.Before(earliest)) {
		earliest = s.retryAt
	}
	if earliest.IsZero() {
		return 0, false
	}
	return max(earliest.Sub(now), 0), true
}

// consumeDue advances every expired deadline and names what fired.
func (s *Scheduler) consumeDue(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason := "periodic"
	for _, p := range s.periodic {
		for !p.next.After(now) {
			p.next = p.next.Add(p.interval)
		}
	}
	if !s.retryAt.IsZero() && !s.retryAt.After(now) {
		s.retryAt = time.Time{}
		reason = "retry"
	}
	return reason
}

func (s *Scheduler) runOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	if s.probe != nil && !s.probe.Online() {
		s.mu.Lock()
		s.deferred = true
		s.mu.Unlock()
		s.logger.Info(ctx, "network unavailable, sync deferred", "reason", reason)
		return
	}

	s.mu.Lock()
	s.deferred = false
	s.mu.Unlock()

	s.logger.Debug(ctx, "sync cycle starting", "reason", reason)
	res := s.runner.RunCycle(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = res
	s.runs++
	switch res {
	case syncworker.Success:
		s.attempt = 0
		s.retryAt = time.Time{}
	case syncworker.Retry:
		d := s.backoffLocked(s.attempt)
		s.attempt++
		s.retryAt = time.Now().Add(d)
		s.logger.Info(ctx, "sync cycle will be retried", "in", d.String(), "attempt", s.attempt)
	}
}

// backoffLocked computes the delay for the given attempt with jitter.
func (s *Scheduler) backoffLocked(attempt int) time.Duration {
	maxBackoff := s.cfg.MaxBackoff
	if maxBackoff <= 0 {
		for _, p := range s.periodic {
			if maxBackoff <= 0 || p.interval < maxBackoff {
				maxBackoff = p.interval
			}
		}
	}

	base := float64(s.cfg.InitialBackoff) * math.Pow(2, float64(min(attempt, 30)))
	if maxBackoff > 0 && base > float64(maxBackoff) {
		base = float64(maxBackoff)
	}
	jitter := base * s.cfg.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}
