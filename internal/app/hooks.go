package app

import (
	"fmt"
	"log/slog"

	"github.com/nhle/circuit-janitor/internal/hooks"
	"github.com/nhle/circuit-janitor/internal/model"
)

// NewDispatcher registers the hooks named by cfg.Hooks. "slack" and "log"
// are built in; extra hooks are looked up by their Name.
func NewDispatcher(cfg *model.AppConfig, log *slog.Logger, extra ...hooks.Hook) (*hooks.Dispatcher, error) {
	known := map[string]hooks.Hook{
		"slack": hooks.NewSlackHook(cfg.Slack, cfg.JanitorURL),
		"log":   hooks.NewLogHook(log),
	}
	for _, h := range extra {
		known[h.Name()] = h
	}

	d := hooks.NewDispatcher(log)
	for t, names := range map[hooks.Transition][]string{
		hooks.Started: cfg.Hooks.Started,
		hooks.Ended:   cfg.Hooks.Ended,
	} {
		for _, name := range names {
			h, ok := known[name]
			if !ok {
				return nil, fmt.Errorf("hooks.%s: unknown hook %q", t, name)
			}
			d.Register(t, h)
		}
	}
	return d, nil
}
