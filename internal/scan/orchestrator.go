// Package scan runs one scan cycle: fetch every configured account, detect
// changes against the stored snapshots, persist the new state once and hand
// the resulting alerts to the dispatcher.
package scan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hftracker/internal/alert"
	"hftracker/internal/catalog"
	"hftracker/internal/notifier"
	"hftracker/internal/storage"
	"hftracker/internal/tracker"
	logx "hftracker/pkg/logx"
)

// Catalog is the subset of the catalog client a cycle needs.
type Catalog interface {
	ListArtifacts(ctx context.Context, owner string) ([]tracker.ArtifactRecord, error)
	GetArtifact(ctx context.Context, id string) (tracker.ArtifactRecord, error)
}

var _ Catalog = (*catalog.Client)(nil)

// Result summarizes one cycle.
type Result struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	// Checked lists accounts whose snapshot was replaced this cycle.
	Checked []string
	// Skipped lists accounts whose listing failed; their snapshot is untouched.
	Skipped []string
	Events  []tracker.ChangeEvent
	Sent    int
	Failed  int
	// Unsent counts alerts dropped because no channel is configured.
	Unsent      int
	SaveErr     error
	Interrupted bool
}

type Option func(*Orchestrator)

func WithAccounts(accounts []string) Option {
	return func(o *Orchestrator) { o.accounts = cleanAccounts(accounts) }
}

func WithBaseURL(u string) Option {
	return func(o *Orchestrator) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithLogger(log logx.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns the in-memory tracker state for the process lifetime.
// RunCycle must not be called concurrently; the account list may be swapped
// at any time and takes effect at the next cycle.
type Orchestrator struct {
	mu       sync.Mutex
	accounts []string

	catalog    Catalog
	store      storage.Store
	state      *tracker.State
	dispatcher notifier.Dispatcher
	baseURL    string
	log        logx.Logger
	now        func() time.Time
}

// New builds an orchestrator around state, usually the value returned by
// store.Load. A nil state starts empty.
func New(cat Catalog, store storage.Store, state *tracker.State, d notifier.Dispatcher, opts ...Option) *Orchestrator {
	if state == nil {
		state = tracker.NewState()
	}
	o := &Orchestrator{
		catalog:    cat,
		store:      store,
		state:      state,
		dispatcher: d,
		baseURL:    catalog.DefaultBaseURL,
		log:        logx.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	return o
}

// SetAccounts replaces the configured accounts (config hot reload).
func (o *Orchestrator) SetAccounts(accounts []string) {
	cleaned := cleanAccounts(accounts)
	o.mu.Lock()
	o.accounts = cleaned
	o.mu.Unlock()
}

func (o *Orchestrator) Accounts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.accounts...)
}

// RunCycle performs one scan cycle over the configured accounts in order.
//
// Catalog calls honour ctx. When ctx is canceled mid-cycle the account being
// processed is dropped, the accounts already processed are persisted and
// their alerts are still dispatched; the returned error is then ctx.Err().
func (o *Orchestrator) RunCycle(ctx context.Context) (Result, error) {
	res := Result{CycleID: uuid.NewString(), StartedAt: o.now()}
	log := o.log.With(logx.String("cycle", res.CycleID))
	accounts := o.Accounts()
	log.Info("scan cycle started", logx.Int("accounts", len(accounts)))

	for _, account := range accounts {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		events, ok, err := o.scanAccount(ctx, log.With(logx.String("account", account)), account)
		if err != nil {
			res.Interrupted = true
			break
		}
		if !ok {
			res.Skipped = append(res.Skipped, account)
			continue
		}
		res.Checked = append(res.Checked, account)
		res.Events = append(res.Events, events...)
	}

	// Persisting and alerting a completed account survive an interrupt.
	detached := context.WithoutCancel(ctx)
	if len(res.Checked) > 0 || !res.Interrupted {
		if err := o.store.Save(detached, o.state); err != nil {
			res.SaveErr = err
			log.Error("failed to persist state", logx.Err(err))
		}
	}

	o.dispatch(detached, log, res.Events, &res)

	res.FinishedAt = o.now()
	log.Info("scan cycle finished",
		logx.Int("checked", len(res.Checked)),
		logx.Int("skipped", len(res.Skipped)),
		logx.Int("events", len(res.Events)),
		logx.Int("sent", res.Sent),
		logx.Int("failed", res.Failed),
		logx.Bool("interrupted", res.Interrupted),
		logx.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
	)
	if res.Interrupted {
		return res, ctx.Err()
	}
	return res, nil
}

// scanAccount fetches one account and replaces its snapshot. ok is false when
// the account was skipped. A non-nil error means ctx was canceled.
func (o *Orchestrator) scanAccount(ctx context.Context, log logx.Logger, account string) ([]tracker.ChangeEvent, bool, error) {
	prev := o.state.Get(account)

	listing, err := o.catalog.ListArtifacts(ctx, account)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if prev != nil {
			// A failed listing is not a mass removal: keep the previous snapshot.
			log.Warn("listing failed; keeping previous snapshot", logx.Err(err), logx.Int("known", prev.Count))
			return nil, false, nil
		}
		log.Warn("listing failed for unseen account; recording empty snapshot", logx.Err(err))
		o.state.Put(account, tracker.NewSnapshot(nil, o.now()))
		return nil, true, nil
	}

	records := make([]tracker.ArtifactRecord, 0, len(listing))
	for _, basic := range listing {
		rec, err := o.resolve(ctx, log, basic)
		if err != nil {
			return nil, false, err
		}
		if rec.Owner == "" {
			rec.Owner = account
		}
		records = append(records, rec)
	}

	curr := tracker.NewSnapshot(records, o.now())
	events := tracker.Detect(account, prev, curr)
	o.state.Put(account, curr)

	log.Info("account checked", logx.Int("artifacts", curr.Count), logx.Int("events", len(events)))
	return events, true, nil
}

// resolve fetches the detailed record, falling back to the listing record.
func (o *Orchestrator) resolve(ctx context.Context, log logx.Logger, basic tracker.ArtifactRecord) (tracker.ArtifactRecord, error) {
	detail, err := o.catalog.GetArtifact(ctx, basic.ID)
	if err != nil {
		if ctx.Err() != nil {
			return tracker.ArtifactRecord{}, ctx.Err()
		}
		log.Debug("detail fetch failed; using listing record", logx.String("artifact", basic.ID), logx.Err(err))
		return basic, nil
	}
	if detail.ID == "" {
		detail.ID = basic.ID
	}
	if detail.Owner == "" {
		detail.Owner = basic.Owner
	}
	return detail, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, log logx.Logger, events []tracker.ChangeEvent, res *Result) {
	for _, ev := range events {
		msg := alert.Format(ev, o.baseURL)
		if o.dispatcher == nil {
			res.Unsent++
			log.Info("alert (no dispatcher)", logx.String("text", alert.RenderText(msg)))
			continue
		}
		err := o.dispatcher.Send(ctx, alert.RenderHTML(msg))
		switch {
		case err == nil:
			res.Sent++
		case errors.Is(err, notifier.ErrNotConfigured):
			res.Unsent++
			log.Info("alert (channel not configured)", logx.String("text", alert.RenderText(msg)))
		default:
			res.Failed++
			log.Warn("alert not delivered", logx.String("artifact", ev.ID), logx.String("kind", string(ev.Kind)), logx.Err(err))
		}
	}
}

// cleanAccounts trims names and drops blanks and duplicates, keeping order.
func cleanAccounts(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
