// Package sync drives the janitor: every cycle it runs one pass over each
// provider's mail and then the lifecycle sweeps.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/circuit-janitor/internal/metrics"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/reconcile"
	"github.com/nhle/circuit-janitor/internal/source"
)

// PassState represents the current state of a provider pass.
type PassState int

const (
	PassIdle PassState = iota
	PassRunning
	PassError
)

func (s PassState) String() string {
	switch s {
	case PassRunning:
		return "running"
	case PassError:
		return "error"
	default:
		return "idle"
	}
}

// PassStatus holds the outcome of the latest pass of a single provider.
type PassStatus struct {
	Provider  string
	State     PassState
	LastPass  time.Time
	Processed int
	Failed    int
	Error     error
}

// Applier applies one message of a provider.
type Applier interface {
	Apply(ctx context.Context, p provider.Provider, msg *source.Message) (reconcile.Result, error)
}

// Sweeper runs the time-based promotions.
type Sweeper interface {
	Run(ctx context.Context) error
}

// Config tunes the poller.
type Config struct {
	// Interval between cycles.
	Interval time.Duration
	// Timeout bounds a single provider pass.
	Timeout time.Duration
	// Concurrent runs provider passes in parallel.
	Concurrent bool
	// MaxConcurrent caps parallel passes. Zero means one per provider.
	MaxConcurrent int
}

const (
	defaultInterval = 10 * time.Minute
	defaultTimeout  = 2 * time.Minute
)

// Poller orchestrates provider passes and sweeps.
type Poller struct {
	opener    source.Opener
	providers []provider.Provider
	applier   Applier
	sweeper   Sweeper
	clock     clockwork.Clock
	cfg       Config
	log       *slog.Logger

	statuses  map[string]*PassStatus
	triggerCh chan struct{}
	mu        gosync.Mutex
	cycleMu   gosync.Mutex
}

// New creates a Poller over every provider of reg. sweeper may be nil.
func New(opener source.Opener, reg *provider.Registry, applier Applier, sweeper Sweeper, clock clockwork.Clock, cfg Config, log *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	p := &Poller{
		opener:    opener,
		providers: reg.All(),
		applier:   applier,
		sweeper:   sweeper,
		clock:     clock,
		cfg:       cfg,
		log:       log,
		statuses:  make(map[string]*PassStatus),
		triggerCh: make(chan struct{}, 1),
	}
	for _, prov := range p.providers {
		p.statuses[prov.Name()] = &PassStatus{Provider: prov.Name(), State: PassIdle}
	}
	return p
}

// Run runs a cycle immediately and then on every tick or trigger, until ctx
// is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			p.runCycle(ctx)
		case <-p.triggerCh:
			p.runCycle(ctx)
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	if err := p.Cycle(ctx); err != nil && ctx.Err() == nil {
		p.log.Error("cycle finished with errors", "error", err)
	}
}

// Trigger requests an immediate cycle from Run. It never blocks; a pending
// trigger absorbs further ones.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Cycle runs one pass per provider followed by both sweeps. Failing
// passes do not prevent the sweeps.
func (p *Poller) Cycle(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	began := p.clock.Now()
	passErr := p.passes(ctx)

	var sweepErr error
	if p.sweeper != nil && ctx.Err() == nil {
		if sweepErr = p.sweeper.Run(ctx); sweepErr != nil {
			sweepErr = fmt.Errorf("sweeps: %w", sweepErr)
		}
	}

	metrics.CycleDuration.Observe(p.clock.Since(began).Seconds())
	metrics.LastCycleTimestamp.Set(float64(p.clock.Now().Unix()))
	return errors.Join(passErr, sweepErr)
}

func (p *Poller) passes(ctx context.Context) error {
	if !p.cfg.Concurrent {
		var errs []error
		for _, prov := range p.providers {
			if ctx.Err() != nil {
				break
			}
			if err := p.Pass(ctx, prov); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	var (
		g    errgroup.Group
		mu   gosync.Mutex
		errs []error
	)
	if p.cfg.MaxConcurrent > 0 {
		g.SetLimit(p.cfg.MaxConcurrent)
	}
	for _, prov := range p.providers {
		g.Go(func() error {
			if err := p.Pass(ctx, prov); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Pass opens a mailbox session and applies every candidate message of prov
// in arrival order. Per-message failures are reported to the mailbox and
// counted; only session failures are returned.
func (p *Poller) Pass(ctx context.Context, prov provider.Provider) error {
	name := prov.Name()
	p.setStatus(name, func(s *PassStatus) { s.State = PassRunning })

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	processed, failed, err := p.pass(ctx, prov)
	p.setStatus(name, func(s *PassStatus) {
		s.Processed, s.Failed, s.Error = processed, failed, err
		s.LastPass = p.clock.Now()
		s.State = PassIdle
		if err != nil {
			s.State = PassError
		}
	})
	if err != nil {
		return fmt.Errorf("%s pass: %w", name, err)
	}
	return nil
}

func (p *Poller) pass(ctx context.Context, prov provider.Provider) (processed, failed int, err error) {
	name := prov.Name()

	mb, err := p.opener.Open(ctx)
	if err != nil {
		p.providerError(name, "open", err)
		return 0, 0, err
	}
	defer func() {
		if cerr := mb.Close(); cerr != nil {
			p.log.Warn("closing mailbox", "provider", name, "error", cerr)
		}
	}()

	msgs, err := mb.SelectCandidates(ctx, prov.Match())
	if err != nil {
		p.providerError(name, "select", err)
		return 0, 0, err
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			p.providerError(name, "timeout", err)
			return processed, failed, err
		}

		res, applyErr := p.applier.Apply(ctx, prov, msg)
		ok := applyErr == nil
		if ok {
			processed++
			p.log.Debug("notification applied",
				"provider", name, "uid", msg.UID, "subject", msg.Subject, "result", res)
		} else {
			failed++
			p.logFailure(name, msg, applyErr)
		}

		if err := mb.ReportOutcome(ctx, msg.UID, ok); err != nil {
			p.providerError(name, "report", err)
			p.log.Warn("reporting outcome", "provider", name, "uid", msg.UID, "error", err)
		}
	}
	return processed, failed, nil
}

func (p *Poller) logFailure(name string, msg *source.Message, err error) {
	attrs := []any{"provider", name, "uid", msg.UID, "subject", msg.Subject, "error", err}
	switch {
	case provider.IsParsingError(err):
		p.log.Error("notification could not be parsed", attrs...)
	case reconcile.IsNotFound(err):
		p.log.Warn("notification for untracked maintenance", attrs...)
	default:
		p.log.Error("applying notification", attrs...)
	}
}

func (p *Poller) providerError(name, kind string, err error) {
	if source.IsAuthError(err) {
		kind = "auth"
	}
	metrics.ProviderErrors.WithLabelValues(name, kind).Inc()
}

// Statuses returns the latest pass status of every provider, by name.
func (p *Poller) Statuses() []PassStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]PassStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Provider < statuses[j].Provider })
	return statuses
}

func (p *Poller) setStatus(name string, update func(*PassStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}
	update(status)
}
