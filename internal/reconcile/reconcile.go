// Package reconcile applies parsed provider notifications to the stored
// maintenance lifecycle.
//
// Every operation runs in a single store transaction. Hooks fire only after
// that transaction commits, and only for START and END transitions that
// actually changed the row, so a re-delivered notification never repeats a
// side effect.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nhle/circuit-janitor/internal/hooks"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/source"
	"github.com/nhle/circuit-janitor/internal/store"
)

// Result is the outcome of a successfully applied notification.
type Result string

const (
	ResultCreated          Result = "created"
	ResultDuplicate        Result = "duplicate"
	ResultUpdated          Result = "updated"
	ResultStarted          Result = "started"
	ResultAlreadyStarted   Result = "already_started"
	ResultEnded            Result = "ended"
	ResultAlreadyEnded     Result = "already_ended"
	ResultCancelled        Result = "cancelled"
	ResultAlreadyCancelled Result = "already_cancelled"
	ResultRescheduled      Result = "rescheduled"
	ResultIgnored          Result = "ignored"
)

// Observer receives the outcome of every notification.
type Observer interface {
	Applied(prov string, op provider.Operation, result Result)
	Failed(prov string, op provider.Operation, err error)
}

type nopObserver struct{}

func (nopObserver) Applied(string, provider.Operation, Result) {}
func (nopObserver) Failed(string, provider.Operation, error)   {}

// NotFoundError reports a transition for a ticket with no active
// maintenance. The notification may refer to an untracked ticket or arrive
// before its announcement.
type NotFoundError struct {
	Provider string
	Ticket   string
	Op       provider.Operation
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s for unknown maintenance %s", e.Provider, e.Op, e.Ticket)
}

func (e *NotFoundError) Unwrap() error { return store.ErrNotFound }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Reconciler applies notifications for a set of providers.
type Reconciler struct {
	store    store.Store
	hooks    *hooks.Dispatcher
	observer Observer
	clock    clockwork.Clock
	log      *slog.Logger

	mu        sync.RWMutex
	providers map[string]model.Provider
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

// WithClock sets the clock used for update timestamps and for messages
// without a usable Received header.
func WithClock(c clockwork.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

func New(s store.Store, d *hooks.Dispatcher, log *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     s,
		hooks:     d,
		observer:  nopObserver{},
		clock:     clockwork.NewRealClock(),
		log:       log,
		providers: make(map[string]model.Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureProviders upserts a Provider row for every registered provider.
// escalation maps provider names to their escalation contact.
func (r *Reconciler) EnsureProviders(ctx context.Context, reg *provider.Registry, escalation map[string]string) error {
	for _, p := range reg.All() {
		row, err := r.store.UpsertProvider(ctx, model.Provider{
			Name:     p.Name(),
			Type:     p.Type(),
			EmailEsc: escalation[p.Name()],
		})
		if err != nil {
			return fmt.Errorf("registering provider %s: %w", p.Name(), err)
		}
		r.mu.Lock()
		r.providers[p.Name()] = *row
		r.mu.Unlock()
	}
	return nil
}

func (r *Reconciler) providerRow(ctx context.Context, p provider.Provider) (model.Provider, error) {
	r.mu.RLock()
	row, ok := r.providers[p.Name()]
	r.mu.RUnlock()
	if ok {
		return row, nil
	}

	created, err := r.store.UpsertProvider(ctx, model.Provider{Name: p.Name(), Type: p.Type()})
	if err != nil {
		return model.Provider{}, fmt.Errorf("registering provider %s: %w", p.Name(), err)
	}
	r.mu.Lock()
	r.providers[p.Name()] = *created
	r.mu.Unlock()
	return *created, nil
}

// Apply classifies msg with p, extracts its content and applies it.
// Parsing failures are returned as *provider.ParsingError, transitions for
// unknown tickets as *NotFoundError.
func (r *Reconciler) Apply(ctx context.Context, p provider.Provider, msg *source.Message) (Result, error) {
	ev, err := provider.Parse(p, msg)
	if err != nil {
		r.observer.Failed(p.Name(), 0, err)
		return "", err
	}
	return r.ApplyEvent(ctx, p, ev, msg)
}

// ApplyEvent applies an already parsed event.
func (r *Reconciler) ApplyEvent(ctx context.Context, p provider.Provider, ev *provider.Event, msg *source.Message) (Result, error) {
	res, err := r.apply(ctx, p, ev, msg)
	if err != nil {
		r.observer.Failed(p.Name(), ev.Op, err)
		return "", err
	}
	r.observer.Applied(p.Name(), ev.Op, res)
	return res, nil
}

func (r *Reconciler) apply(ctx context.Context, p provider.Provider, ev *provider.Event, msg *source.Message) (Result, error) {
	if ev.Op == provider.OpIgnore {
		return ResultIgnored, nil
	}

	prov, err := r.providerRow(ctx, p)
	if err != nil {
		return "", err
	}

	switch ev.Op {
	case provider.OpNew:
		return r.applyNew(ctx, prov, ev.Notice, msg)
	case provider.OpReschedule:
		return r.applyReschedule(ctx, prov, ev, msg)
	case provider.OpUpdate:
		return r.applyUpdate(ctx, prov, ev.Transition, msg)
	case provider.OpStart:
		return r.applyFlag(ctx, prov, ev, msg, store.FlagStarted)
	case provider.OpEnd:
		return r.applyFlag(ctx, prov, ev, msg, store.FlagEnded)
	case provider.OpCancel:
		return r.applyFlag(ctx, prov, ev, msg, store.FlagCancelled)
	default:
		return "", fmt.Errorf("%s: unsupported operation %s", prov.Name, ev.Op)
	}
}

func (r *Reconciler) applyNew(ctx context.Context, prov model.Provider, n *provider.Notice, msg *source.Message) (Result, error) {
	res := ResultCreated
	err := r.store.InTx(ctx, func(q store.Queries) error {
		_, err := q.GetActiveMaintenance(ctx, prov.ID, n.TicketID)
		if err == nil {
			res = ResultDuplicate
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		_, err = r.insertNotice(ctx, q, prov, n, msg)
		return err
	})
	if err != nil {
		return "", err
	}

	r.log.Info("maintenance recorded",
		"provider", prov.Name, "ticket", n.TicketID, "result", res, "circuits", len(n.Circuits))
	return res, nil
}

// applyReschedule supersedes the active row and inserts its replacement.
// A reschedule for an unknown ticket is recorded as new.
func (r *Reconciler) applyReschedule(ctx context.Context, prov model.Provider, ev *provider.Event, msg *source.Message) (Result, error) {
	res := ResultRescheduled
	err := r.store.InTx(ctx, func(q store.Queries) error {
		old, err := q.GetActiveMaintenance(ctx, prov.ID, ev.Transition.TicketID)
		if errors.Is(err, store.ErrNotFound) {
			res = ResultCreated
			_, err = r.insertNotice(ctx, q, prov, ev.Notice, msg)
			return err
		}
		if err != nil {
			return err
		}

		if err := q.SupersedeMaintenance(ctx, old.ID); err != nil {
			return err
		}
		// The successor continues the old ticket's lineage.
		notice := *ev.Notice
		notice.TicketID = old.ProviderMaintID
		m, err := r.insertNotice(ctx, q, prov, &notice, msg)
		if err != nil {
			return err
		}
		return q.LinkReschedule(ctx, old.ID, m.ID)
	})
	if err != nil {
		return "", err
	}

	r.log.Info("maintenance rescheduled",
		"provider", prov.Name, "ticket", ev.Transition.TicketID, "result", res)
	return res, nil
}

func (r *Reconciler) applyUpdate(ctx context.Context, prov model.Provider, tr *provider.Transition, msg *source.Message) (Result, error) {
	comment := strings.TrimSpace(tr.Comment)
	if comment == "" && msg != nil {
		comment = msg.Subject
	}

	err := r.store.InTx(ctx, func(q store.Queries) error {
		m, err := r.active(ctx, q, prov, tr.TicketID, provider.OpUpdate)
		if err != nil {
			return err
		}
		return q.AddMaintUpdate(ctx, model.MaintUpdate{
			MaintenanceID: m.ID,
			Comment:       comment,
			Updated:       r.clock.Now().UTC(),
		})
	})
	if err != nil {
		return "", err
	}
	return ResultUpdated, nil
}

// applyFlag sets a lifecycle flag. Setting an already-set flag succeeds
// without firing hooks.
func (r *Reconciler) applyFlag(ctx context.Context, prov model.Provider, ev *provider.Event, msg *source.Message, flag store.Flag) (Result, error) {
	var (
		changed bool
		m       *model.Maintenance
	)
	err := r.store.InTx(ctx, func(q store.Queries) error {
		active, err := r.active(ctx, q, prov, ev.Transition.TicketID, ev.Op)
		if err != nil {
			return err
		}
		if changed, err = q.SetMaintenanceFlag(ctx, active.ID, flag); err != nil {
			return err
		}
		m, err = q.GetMaintenanceByID(ctx, active.ID)
		return err
	})
	if err != nil {
		return "", err
	}

	res := flagResult(flag, changed)
	r.log.Info("maintenance "+string(flag),
		"provider", prov.Name, "ticket", m.ProviderMaintID, "result", res)

	if changed {
		switch flag {
		case store.FlagStarted:
			r.fire(ctx, hooks.Started, prov, *m, msg)
		case store.FlagEnded:
			r.fire(ctx, hooks.Ended, prov, *m, msg)
		}
	}
	return res, nil
}

func (r *Reconciler) fire(ctx context.Context, t hooks.Transition, prov model.Provider, m model.Maintenance, msg *source.Message) {
	if r.hooks == nil {
		return
	}
	r.hooks.Dispatch(ctx, hooks.Event{
		Transition:  t,
		Maintenance: m,
		Provider:    prov.Name,
		Message:     msg,
	})
}

func (r *Reconciler) active(ctx context.Context, q store.Queries, prov model.Provider, ticket string, op provider.Operation) (*model.Maintenance, error) {
	m, err := q.GetActiveMaintenance(ctx, prov.ID, ticket)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Provider: prov.Name, Ticket: ticket, Op: op}
	}
	return m, err
}

// insertNotice creates the maintenance row and its circuit/date fan-out.
func (r *Reconciler) insertNotice(ctx context.Context, q store.Queries, prov model.Provider, n *provider.Notice, msg *source.Message) (*model.Maintenance, error) {
	m := &model.Maintenance{
		ProviderID:      prov.ID,
		ProviderMaintID: n.TicketID,
		Start:           n.Start,
		End:             n.End,
		Timezone:        n.Timezone,
		Location:        n.Location,
		Reason:          n.Reason,
		ReceivedAt:      r.receivedAt(msg),
	}
	if err := q.CreateMaintenance(ctx, m); err != nil {
		return nil, err
	}

	for _, c := range n.Circuits {
		circuit, err := q.UpsertCircuit(ctx, model.Circuit{
			ProviderCID: c.CircuitID,
			ASide:       c.ASide,
			ZSide:       c.ZSide,
			ProviderID:  prov.ID,
		})
		if err != nil {
			return nil, err
		}
		for _, day := range c.Dates {
			if _, err := q.AddMaintCircuit(ctx, model.MaintCircuit{
				MaintID:   m.ID,
				CircuitID: circuit.ID,
				Impact:    c.Impact,
				Date:      day,
			}); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (r *Reconciler) receivedAt(msg *source.Message) time.Time {
	if msg == nil {
		return r.clock.Now().UTC()
	}
	return msg.ReceivedAt(r.clock.Now()).UTC()
}

func flagResult(flag store.Flag, changed bool) Result {
	switch {
	case flag == store.FlagStarted && changed:
		return ResultStarted
	case flag == store.FlagStarted:
		return ResultAlreadyStarted
	case flag == store.FlagEnded && changed:
		return ResultEnded
	case flag == store.FlagEnded:
		return ResultAlreadyEnded
	case changed:
		return ResultCancelled
	default:
		return ResultAlreadyCancelled
	}
}
