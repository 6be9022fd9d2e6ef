// Package retry implements the daemon's two one-shot, re-armed timers: the exponential-backoff
// reprobe timer and the one-shot tcp-recheck timer, per spec.md §4.4. Both are modeled by the
// same Scheduler type; the tcp-recheck timer is simply one configured with no backoff (Max ==
// Start) and an extra "used" latch the engine consults.
package retry

import (
	"sync"
	"time"
)

// Config parameterizes a Scheduler.
type Config struct {
	Start    time.Duration // Initial (and constant-phase) period
	Max      time.Duration // Clamp once backoff begins; 0 means "never clamp"
	CountMax int           // Number of fires kept at Start before doubling begins
}

// Scheduler arms a single one-shot timer that calls onFire (from its own goroutine, per
// time.AfterFunc) each time it fires. It does not re-arm itself - the caller decides whether to
// call Arm again based on the outcome of whatever onFire triggered, exactly as the engine's
// armTimersLocked does after every sweep.
type Scheduler struct {
	cfg    Config
	onFire func()

	mu      sync.Mutex
	timer   *time.Timer
	period  time.Duration
	count   int
	enabled bool
	used    bool
}

// New constructs a Scheduler. onFire must be non-nil.
func New(cfg Config, onFire func()) *Scheduler {
	return &Scheduler{cfg: cfg, onFire: onFire, period: cfg.Start}
}

// Arm (re-)schedules the timer using the current backoff period, stopping any timer already
// pending. It does not reset the backoff bookkeeping - use Disarm for that.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.enabled = true
	period := s.period
	s.timer = time.AfterFunc(period, s.fire)
}

// ArmAtMaxCount fast-forwards the backoff bookkeeping so the very next fire immediately enters
// exponential backoff, then arms as usual. This is spec.md §4.4's "http_mode start" rule.
func (s *Scheduler) ArmAtMaxCount() {
	s.mu.Lock()
	s.count = s.cfg.CountMax
	s.mu.Unlock()
	s.Arm()
}

// Disarm stops any pending timer and resets the backoff bookkeeping to its initial state, so the
// next disconnection event starts retrying quickly again rather than resuming a stale backoff.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.enabled = false
	s.count = 0
	s.period = s.cfg.Start
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// fire runs on the timer's own goroutine. It advances the backoff bookkeeping for whatever Arm
// call comes next, then invokes onFire outside the lock so onFire is free to call back into the
// Scheduler (e.g. to Disarm or re-Arm) without deadlocking.
func (s *Scheduler) fire() {
	s.mu.Lock()
	s.enabled = false
	if s.count < s.cfg.CountMax {
		s.count++
	} else {
		next := s.period * 2
		if s.cfg.Max > 0 && next > s.cfg.Max {
			next = s.cfg.Max
		}
		s.period = next
	}
	cb := s.onFire
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// MarkUsed latches the "used" flag - spec.md §4.4's tcp_timer_used, set when the tcp-recheck
// timer fires.
func (s *Scheduler) MarkUsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = true
}

// Used reports whether MarkUsed has ever been called.
func (s *Scheduler) Used() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Enabled reports whether the timer currently has a pending fire scheduled.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Period returns the current backoff period - exposed for tests and status reporting.
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}
