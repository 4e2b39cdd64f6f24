// Package telia parses Telia Carrier planned work notifications, which are
// plain text and sometimes arrive base64 encoded without a transfer
// encoding header.
package telia

import (
	"encoding/base64"
	"strings"

	"github.com/nhle/circuit-janitor/internal/crossref"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/source"
)

const name = "telia"

var referenceRef = crossref.MustCompile(`(?i)reference number:\s*(\S+)`)

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string             { return name }
func (p *Provider) Type() model.ProviderType { return model.ProviderTransit }
func (p *Provider) Match() source.Match      { return source.Match{From: "ncm"} }

func (p *Provider) Classify(msg *source.Message) (provider.Operation, error) {
	subject := strings.ToLower(strings.TrimSpace(msg.Subject))
	switch {
	case strings.HasPrefix(subject, "planned work"), strings.HasPrefix(subject, "urgent!"):
		return provider.OpNew, nil
	case strings.HasPrefix(subject, "cancellation of"):
		return provider.OpCancel, nil
	case strings.HasPrefix(subject, "reminder for planned"):
		return provider.OpIgnore, nil
	case strings.Contains(subject, "is about to start"):
		return provider.OpStart, nil
	case strings.Contains(subject, "has been completed"):
		return provider.OpEnd, nil
	case strings.HasPrefix(subject, "update for"):
		return provider.OpReschedule, nil
	}
	return 0, provider.Unclassified(name, msg.Subject)
}

func (p *Provider) ExtractNew(msg *source.Message) (*provider.Notice, error) {
	body, err := p.body(msg)
	if err != nil {
		return nil, err
	}

	ticket, ok := provider.Field(body, "PW Reference number:")
	if !ok || ticket == "" {
		return nil, provider.Missing(name, "pw reference number")
	}
	startText, ok := provider.Field(body, "Start Date and Time:")
	if !ok {
		return nil, provider.Missing(name, "start date and time")
	}
	endText, ok := provider.Field(body, "End Date and Time:")
	if !ok {
		return nil, provider.Missing(name, "end date and time")
	}
	start, zone, err := provider.ParseZoned(startText, "2006-Jan-02 15:04", "2006-01-02 15:04")
	if err != nil {
		return nil, provider.Invalid(name, "start date and time", err)
	}
	end, _, err := provider.ParseZoned(endText, "2006-Jan-02 15:04", "2006-01-02 15:04")
	if err != nil {
		return nil, provider.Invalid(name, "end date and time", err)
	}

	n := &provider.Notice{
		TicketID: strings.Fields(ticket)[0],
		Start:    model.ClockOf(start),
		End:      model.ClockOf(end.In(start.Location())),
		Timezone: zone,
	}
	n.Reason, _ = provider.Field(body, "Action and Reason:")
	if n.Location, _ = provider.Field(body, "Location of work:"); n.Location == "" {
		return nil, provider.Missing(name, "location of work")
	}

	// Service ID and Impact lines come in pairs, one pair per circuit.
	cids := provider.Fields(body, "Service ID:")
	impacts := provider.Fields(body, "Impact:")
	dates := provider.DaysBetween(start, end)
	seen := map[string]bool{}
	for i := 0; i < len(cids) && i < len(impacts); i++ {
		if cids[i] == "" || seen[cids[i]] {
			continue
		}
		seen[cids[i]] = true
		n.Circuits = append(n.Circuits, provider.CircuitImpact{
			CircuitID: cids[i],
			Impact:    impacts[i],
			Dates:     dates,
		})
	}

	if err := n.Validate(name); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Provider) ExtractTransition(msg *source.Message, op provider.Operation) (*provider.Transition, error) {
	body, err := p.body(msg)
	if err != nil {
		return nil, err
	}
	ref, ok := referenceRef.First(body)
	if !ok {
		return nil, provider.Missing(name, "reference number")
	}
	tr := &provider.Transition{TicketID: ref}
	if op == provider.OpUpdate {
		tr.Comment = strings.TrimSpace(body)
	}
	return tr, nil
}

// body returns the text part, decoding it when it is base64 without saying
// so. A readable Telia body always mentions "telia".
func (p *Provider) body(msg *source.Message) (string, error) {
	text := msg.TextBody
	if strings.TrimSpace(text) == "" {
		return "", provider.Missing(name, "text body")
	}
	if strings.Contains(strings.ToLower(text), "telia") {
		return text, nil
	}
	compact := strings.Join(strings.Fields(text), "")
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return text, nil
	}
	return string(decoded), nil
}
