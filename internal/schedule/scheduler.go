// Package schedule drives scan cycles: one immediately, then one per interval
// (or per cron tick), with a fixed cool-down after a failed cycle.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"hftracker/internal/runtime/supervisor"
	logx "hftracker/pkg/logx"
)

const (
	DefaultInterval = 60 * time.Minute
	DefaultCooldown = 60 * time.Second
)

type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Cycle is one unit of scheduled work.
type Cycle func(ctx context.Context) error

type Config struct {
	Interval time.Duration
	// Cron, when set, overrides Interval. Five or six fields, or a descriptor
	// such as "@hourly" or "@every 30m".
	Cron     string
	Cooldown time.Duration
}

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron validates a cron expression.
func ParseCron(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("empty cron spec")
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return sched, nil
}

type Scheduler struct {
	run Cycle
	log logx.Logger

	mu         sync.Mutex
	cfg        Config
	cron       cron.Schedule
	lastFinish time.Time
	wake       chan struct{}

	state  atomic.Int32
	cycles atomic.Uint64
	fails  atomic.Uint64
}

func New(run Cycle, cfg Config, log logx.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("schedule: nil cycle")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{run: run, log: log, wake: make(chan struct{}, 1)}
	if err := s.apply(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply swaps the timing configuration. A waiting Run loop recomputes its
// next wake-up; a cycle in flight is not affected.
func (s *Scheduler) Apply(cfg Config) error {
	if err := s.apply(cfg); err != nil {
		return err
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) apply(cfg Config) error {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	var sched cron.Schedule
	if strings.TrimSpace(cfg.Cron) != "" {
		var err error
		if sched, err = ParseCron(cfg.Cron); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.cron = sched
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Cycles returns the number of cycles run and how many of them failed.
func (s *Scheduler) Cycles() (total, failed uint64) {
	return s.cycles.Load(), s.fails.Load()
}

// RunOnce runs exactly one cycle and returns its error (panics included).
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.state.Store(int32(Running))
	defer s.state.Store(int32(Idle))

	err := supervisor.Protect(func() error { return s.run(ctx) })
	s.cycles.Add(1)

	s.mu.Lock()
	s.lastFinish = time.Now()
	s.mu.Unlock()

	if err != nil {
		s.fails.Add(1)
		var pe *supervisor.PanicError
		if errors.As(err, &pe) {
			s.log.Error("scan cycle panicked", logx.Any("panic", pe.Value), logx.Stack(pe.Stack))
		}
	}
	return err
}

// Run runs a cycle now, then keeps running cycles until ctx is canceled.
// A failed cycle is followed by the cool-down instead of the interval.
// Run returns nil on cancellation; it never abandons a cycle in flight.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		err := s.RunOnce(ctx)
		if ctx.Err() != nil {
			s.log.Info("scheduler stopped")
			return nil
		}
		failed := err != nil
		if failed {
			s.log.Error("scan cycle failed; cooling down", logx.Err(err), logx.Duration("cooldown", s.cooldown()))
		}

		if !s.sleep(ctx, failed) {
			s.log.Info("scheduler stopped")
			return nil
		}
	}
}

// sleep waits until the next cycle is due. It returns false when ctx ends.
func (s *Scheduler) sleep(ctx context.Context, failed bool) bool {
	for {
		wait, due := s.nextWait(failed, time.Now())
		s.log.Debug("next scan cycle", logx.Time("at", due), logx.Duration("in", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
			return true
		case <-s.wake:
			t.Stop()
			// A cool-down is fixed; only the regular wait follows config changes.
			if failed {
				continue
			}
			s.log.Info("schedule changed; rescheduling")
		}
	}
}

func (s *Scheduler) nextWait(failed bool, now time.Time) (time.Duration, time.Time) {
	s.mu.Lock()
	cfg, sched, last := s.cfg, s.cron, s.lastFinish
	s.mu.Unlock()

	var due time.Time
	switch {
	case failed:
		due = last.Add(cfg.Cooldown)
	case sched != nil:
		due = sched.Next(now)
	default:
		due = last.Add(cfg.Interval)
	}
	return max(due.Sub(now), 0), due
}

func (s *Scheduler) cooldown() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Cooldown
}
