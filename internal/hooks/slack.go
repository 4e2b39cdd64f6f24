package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/slack-go/slack"

	"github.com/nhle/circuit-janitor/internal/model"
)

const slackMaxTries = 3

// SlackHook posts transitions to a Slack incoming webhook.
type SlackHook struct {
	cfg        model.SlackConfig
	janitorURL string
	// newBackOff builds the retry schedule of one post.
	newBackOff func() backoff.BackOff
}

// NewSlackHook returns a hook posting with cfg. janitorURL, when set, turns
// the ticket into a link to the maintenance page.
func NewSlackHook(cfg model.SlackConfig, janitorURL string) *SlackHook {
	return &SlackHook{
		cfg:        cfg,
		janitorURL: strings.TrimRight(janitorURL, "/"),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

func (h *SlackHook) Name() string { return "slack" }

// Fire posts the message, retrying transient failures. A hook without a
// webhook URL does nothing.
func (h *SlackHook) Fire(ctx context.Context, ev Event) error {
	if h.cfg.WebhookURL == "" {
		return nil
	}

	msg := &slack.WebhookMessage{
		Username: h.cfg.Username,
		Channel:  h.cfg.Channel,
		Text:     h.Text(ev),
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := slack.PostWebhookContext(ctx, h.cfg.WebhookURL, msg)
		var status slack.StatusCodeError
		if errors.As(err, &status) && status.Code >= 400 && status.Code < 500 && status.Code != 429 {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(h.newBackOff()),
		backoff.WithMaxTries(slackMaxTries),
	)
	if err != nil {
		return fmt.Errorf("posting %s notice for %s to slack: %w", ev.Transition, ev.Maintenance.ProviderMaintID, err)
	}
	return nil
}

// Text renders the Slack message for ev.
func (h *SlackHook) Text(ev Event) string {
	m := ev.Maintenance
	ticket := m.ProviderMaintID
	if h.janitorURL != "" {
		ticket = fmt.Sprintf("<%s/maintenances/%s|%s>", h.janitorURL, m.ID, m.ProviderMaintID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Maintenance %s has %s!\n", ticket, strings.ToUpper(string(ev.Transition)))
	if ev.Provider != "" {
		fmt.Fprintf(&b, "*Provider*: %s\n", ev.Provider)
	}
	fmt.Fprintf(&b, "*Location*: %s\n", m.Location)
	if ev.Message == nil {
		b.WriteString("_promoted by schedule_\n")
	}
	return b.String()
}
