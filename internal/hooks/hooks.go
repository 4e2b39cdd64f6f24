// Package hooks runs side effects when a maintenance starts or ends.
//
// Hooks are fired after the transition is committed. A failing hook is
// logged and counted but never undoes the transition or blocks other hooks.
package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nhle/circuit-janitor/internal/metrics"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/source"
)

// Transition names the lifecycle change a hook reacts to.
type Transition string

const (
	Started Transition = "started"
	Ended   Transition = "ended"
)

// Event is handed to every hook registered for its transition.
type Event struct {
	Transition  Transition
	Maintenance model.Maintenance
	Provider    string
	// Message is the notification that caused the transition. It is nil
	// when a time-based sweep promoted the maintenance.
	Message *source.Message
}

// Hook is a side effect of a transition.
type Hook interface {
	Name() string
	Fire(ctx context.Context, ev Event) error
}

// Dispatcher fans an event out to the hooks registered for it, in
// registration order.
type Dispatcher struct {
	log   *slog.Logger
	hooks map[Transition][]Hook
}

func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{log: log, hooks: make(map[Transition][]Hook)}
}

// Register adds h to the hooks run on t.
func (d *Dispatcher) Register(t Transition, h Hook) {
	d.hooks[t] = append(d.hooks[t], h)
}

// Hooks returns the hooks registered for t.
func (d *Dispatcher) Hooks(t Transition) []Hook {
	return d.hooks[t]
}

// Dispatch runs every hook of ev.Transition and returns how many failed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) int {
	metrics.Transitions.WithLabelValues(string(ev.Transition)).Inc()

	failed := 0
	for _, h := range d.hooks[ev.Transition] {
		if err := d.fire(ctx, h, ev); err != nil {
			failed++
			metrics.HookFailures.WithLabelValues(h.Name(), string(ev.Transition)).Inc()
			d.log.Error("hook failed",
				"hook", h.Name(),
				"transition", ev.Transition,
				"maintenance", ev.Maintenance.ID,
				"ticket", ev.Maintenance.ProviderMaintID,
				"error", err)
		}
	}
	return failed
}

func (d *Dispatcher) fire(ctx context.Context, h Hook, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return h.Fire(ctx, ev)
}

// LogHook records transitions in the application log.
type LogHook struct {
	log *slog.Logger
}

func NewLogHook(log *slog.Logger) *LogHook {
	return &LogHook{log: log}
}

func (h *LogHook) Name() string { return "log" }

func (h *LogHook) Fire(_ context.Context, ev Event) error {
	attrs := []any{
		"transition", ev.Transition,
		"provider", ev.Provider,
		"ticket", ev.Maintenance.ProviderMaintID,
		"maintenance", ev.Maintenance.ID,
		"location", ev.Maintenance.Location,
	}
	if ev.Message != nil {
		attrs = append(attrs, "subject", ev.Message.Subject)
	} else {
		attrs = append(attrs, "trigger", "sweep")
	}
	h.log.Info("maintenance "+string(ev.Transition), attrs...)
	return nil
}
