package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"hftracker/internal/runtime/supervisor"
	"hftracker/internal/transport"
	logx "hftracker/pkg/logx"
)

var (
	ErrNotConfigured = errors.New("notifier: alert channel not configured")
	ErrTimeout       = errors.New("notifier: send timed out")
)

const (
	defaultPace        = time.Second
	defaultSendTimeout = 30 * time.Second
	defaultHistorySize = 100
)

// Service paces and delivers alerts through a transport.Sender.
//
// It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	sender  transport.Sender
	cfg     Config
	limiter *rate.Limiter

	warned atomic.Bool
	// inflight holds a token while a channel call runs, including one the
	// caller already gave up on after a timeout.
	inflight chan struct{}

	hmu     sync.Mutex
	history []HistoryItem
}

var _ Dispatcher = (*Service)(nil)

// New builds a Service. sender may be nil when no channel is configured;
// every Send is then a logged no-op.
func New(cfg Config, sender transport.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log, inflight: make(chan struct{}, 1)}
	s.applyLocked(cfg)
	return s
}

// Apply swaps the configuration (hot reload). The pacing bucket is rebuilt
// only when the pace changes.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Pace < 0 {
		cfg.Pace = 0
	} else if cfg.Pace == 0 {
		cfg.Pace = defaultPace
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	cfg.Channel = strings.TrimSpace(cfg.Channel)

	if s.limiter == nil || cfg.Pace != s.cfg.Pace {
		lim := rate.Inf
		if cfg.Pace > 0 {
			lim = rate.Every(cfg.Pace)
		}
		// Burst 1: the first alert goes out at once, the next waits a full pace.
		s.limiter = rate.NewLimiter(lim, 1)
	}
	s.cfg = cfg
}

// SetSender swaps the channel client, e.g. after a token change. nil
// disables delivery.
func (s *Service) SetSender(sender transport.Sender) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
	s.warned.Store(false)
}

// Configured reports whether alerts would be delivered.
func (s *Service) Configured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender != nil && s.cfg.Channel != ""
}

// Send delivers text once. It blocks for pacing and for the channel call,
// the latter bounded by the send timeout.
func (s *Service) Send(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()

	if sender == nil || cfg.Channel == "" {
		if !s.warned.Swap(true) {
			s.log.Warn("alert channel not configured; alerts are only logged")
		}
		s.log.Debug("alert skipped", logx.String("text", text))
		return ErrNotConfigured
	}

	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("notifier: pacing: %w", err)
	}

	err := s.deliver(ctx, sender, cfg, text)
	s.appendHistory(text, err, cfg.HistorySize)
	if err != nil {
		s.log.Warn("alert delivery failed", logx.String("channel", cfg.Channel), logx.Err(err))
		return err
	}
	s.log.Debug("alert delivered", logx.String("channel", cfg.Channel))
	return nil
}

// deliver runs the channel call on its own goroutine so the caller is bounded
// by the send timeout even when the client is not. Calls never overlap: the
// wait for a previous, abandoned call counts against the same timeout.
func (s *Service) deliver(ctx context.Context, sender transport.Sender, cfg Config, text string) error {
	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	select {
	case s.inflight <- struct{}{}:
	case <-callCtx.Done():
		s.log.Warn("previous alert send still running", logx.Duration("send_timeout", cfg.SendTimeout))
		return deadlineErr(ctx, callCtx)
	}

	opt := &transport.SendOptions{ParseMode: cfg.ParseMode, DisablePreview: cfg.DisablePreview}
	done := make(chan error, 1)
	go func() {
		defer func() { <-s.inflight }()
		done <- supervisor.Protect(func() error {
			return sender.Send(callCtx, cfg.Channel, text, opt)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notifier: send: %w", err)
		}
		return nil
	case <-callCtx.Done():
		return deadlineErr(ctx, callCtx)
	}
}

// deadlineErr is ErrTimeout when the send timeout fired, or the caller's own
// context error otherwise.
func deadlineErr(parent, call context.Context) error {
	if errors.Is(call.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return ErrTimeout
	}
	return fmt.Errorf("notifier: send: %w", call.Err())
}

// Snapshot returns the recent delivery history, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(text string, err error, size int) {
	it := HistoryItem{At: time.Now(), Text: text}
	if err != nil {
		it.Err = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}
