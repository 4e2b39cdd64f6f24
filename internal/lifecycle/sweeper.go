// Package lifecycle promotes maintenances to started or ended from their
// schedule, for providers that never send explicit start or end mail.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nhle/circuit-janitor/internal/hooks"
	"github.com/nhle/circuit-janitor/internal/metrics"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/store"
)

// DefaultLookahead is how far ahead of a scheduled instant a promotion may
// happen.
const DefaultLookahead = 5 * time.Minute

type Sweeper struct {
	store     store.Store
	hooks     *hooks.Dispatcher
	clock     clockwork.Clock
	lookahead time.Duration
	log       *slog.Logger
}

func New(s store.Store, d *hooks.Dispatcher, clock clockwork.Clock, lookahead time.Duration, log *slog.Logger) *Sweeper {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Sweeper{store: s, hooks: d, clock: clock, lookahead: lookahead, log: log}
}

// Run runs both sweeps, starts first.
func (s *Sweeper) Run(ctx context.Context) error {
	_, startErr := s.PromoteStarted(ctx)
	_, endErr := s.PromoteEnded(ctx)
	return errors.Join(startErr, endErr)
}

// PromoteStarted marks started every maintenance whose earliest start
// instant is within the lookahead of now, and returns how many it promoted.
func (s *Sweeper) PromoteStarted(ctx context.Context) (int, error) {
	return s.sweep(ctx, store.FlagStarted, func(c store.SweepCandidate, now time.Time) (bool, error) {
		m := c.Maintenance
		start := m.Start.On(c.Dates[0], m.Loc())
		return !start.After(now.Add(s.lookahead)), nil
	})
}

// PromoteEnded marks ended every maintenance whose end instant on its last
// date is within the lookahead of now. Maintenances with a date after the
// provider-local today, or with an update announcing an extension, are left
// for an explicit end notification.
func (s *Sweeper) PromoteEnded(ctx context.Context) (int, error) {
	return s.sweep(ctx, store.FlagEnded, func(c store.SweepCandidate, now time.Time) (bool, error) {
		m := c.Maintenance
		loc := m.Loc()

		today := model.Day(now.In(loc))
		last := c.Dates[len(c.Dates)-1]
		if last.After(today) {
			return false, nil
		}
		if end := endInstant(c, loc); end.After(now.Add(s.lookahead)) {
			return false, nil
		}

		updates, err := s.store.GetMaintUpdates(ctx, m.ID)
		if err != nil {
			return false, err
		}
		for _, u := range updates {
			if u.MentionsExtension() {
				s.log.Debug("end promotion skipped, window extended",
					"maintenance", m.ID, "ticket", m.ProviderMaintID)
				return false, nil
			}
		}
		return true, nil
	})
}

// endInstant is when the window on the candidate's last date closes. An
// overnight window stored with a single date closes on the following day.
func endInstant(c store.SweepCandidate, loc *time.Location) time.Time {
	m := c.Maintenance
	last := c.Dates[len(c.Dates)-1]
	if len(c.Dates) == 1 && m.End.Before(m.Start) {
		last = last.AddDate(0, 0, 1)
	}
	return m.End.On(last, loc)
}

type dueFunc func(c store.SweepCandidate, now time.Time) (bool, error)

func (s *Sweeper) sweep(ctx context.Context, flag store.Flag, due dueFunc) (int, error) {
	now := s.clock.Now().UTC()
	today := model.Day(now)

	candidates, err := s.store.GetSweepCandidates(ctx, today.AddDate(0, 0, -1), today.AddDate(0, 0, 1), flag)
	if err != nil {
		return 0, fmt.Errorf("sweeping %s: %w", flag, err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	names, err := s.providerNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweeping %s: %w", flag, err)
	}

	var (
		promoted int
		errs     []error
	)
	for _, c := range candidates {
		ok, err := due(c, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("maintenance %s: %w", c.Maintenance.ID, err))
			continue
		}
		if !ok {
			continue
		}

		m, changed, err := s.promote(ctx, c.Maintenance.ID, flag)
		if err != nil {
			errs = append(errs, fmt.Errorf("promoting maintenance %s: %w", c.Maintenance.ID, err))
			continue
		}
		// Lost the race to an email-driven transition.
		if !changed {
			continue
		}

		promoted++
		metrics.SweepPromotions.WithLabelValues(string(flag)).Inc()
		s.log.Info("maintenance promoted",
			"flag", flag,
			"provider", names[m.ProviderID],
			"ticket", m.ProviderMaintID,
			"maintenance", m.ID)

		if s.hooks != nil {
			s.hooks.Dispatch(ctx, hooks.Event{
				Transition:  transitionOf(flag),
				Maintenance: *m,
				Provider:    names[m.ProviderID],
			})
		}
	}
	return promoted, errors.Join(errs...)
}

func (s *Sweeper) promote(ctx context.Context, id string, flag store.Flag) (*model.Maintenance, bool, error) {
	var (
		m       *model.Maintenance
		changed bool
	)
	err := s.store.InTx(ctx, func(q store.Queries) error {
		var err error
		if changed, err = q.SetMaintenanceFlag(ctx, id, flag); err != nil || !changed {
			return err
		}
		m, err = q.GetMaintenanceByID(ctx, id)
		return err
	})
	return m, changed, err
}

func (s *Sweeper) providerNames(ctx context.Context) (map[string]string, error) {
	providers, err := s.store.GetProviders(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(providers))
	for _, p := range providers {
		names[p.ID] = p.Name
	}
	return names, nil
}

func transitionOf(flag store.Flag) hooks.Transition {
	if flag == store.FlagEnded {
		return hooks.Ended
	}
	return hooks.Started
}
