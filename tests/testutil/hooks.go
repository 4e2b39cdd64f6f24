package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/nhle/circuit-janitor/internal/hooks"
)

// Discard is a logger that drops everything.
var Discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Hook records every event it is fired with.
type Hook struct {
	mu     sync.Mutex
	events []hooks.Event
}

func (h *Hook) Name() string { return "recording" }

func (h *Hook) Fire(_ context.Context, ev hooks.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (h *Hook) Events() []hooks.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hooks.Event(nil), h.events...)
}

// Dispatcher returns a dispatcher with h registered for both transitions.
func Dispatcher(h *Hook) *hooks.Dispatcher {
	d := hooks.NewDispatcher(Discard)
	d.Register(hooks.Started, h)
	d.Register(hooks.Ended, h)
	return d
}
