// Package gtt parses GTT change management notifications. GTT wraps a
// plain "Key: value" body in a single <pre> element.
package gtt

import (
	"strings"

	"github.com/nhle/circuit-janitor/internal/crossref"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/source"
)

const name = "gtt"

// Subjects carry the ticket as "TT#(1234567)".
var ticketRef = crossref.MustCompile(`#\((\d+)`)

var layouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "02/01/2006 15:04"}

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string             { return name }
func (p *Provider) Type() model.ProviderType { return model.ProviderTransit }
func (p *Provider) Match() source.Match      { return source.Match{From: "ChangeManagement@gtt.net"} }

func (p *Provider) Classify(msg *source.Message) (provider.Operation, error) {
	subject := strings.ToLower(msg.Subject)
	switch {
	case strings.Contains(subject, "work announcement"):
		return provider.OpNew, nil
	case strings.Contains(subject, "work conclusion"):
		return provider.OpEnd, nil
	case strings.Contains(subject, "work cancellation"):
		return provider.OpCancel, nil
	case strings.Contains(subject, "gtt tt#"):
		return provider.OpUpdate, nil
	}
	return 0, provider.Unclassified(name, msg.Subject)
}

func (p *Provider) ExtractNew(msg *source.Message) (*provider.Notice, error) {
	ticket, err := p.ticket(msg)
	if err != nil {
		return nil, err
	}
	body, err := p.body(msg)
	if err != nil {
		return nil, err
	}

	startText, ok := provider.Field(body, "Start:")
	if !ok {
		return nil, provider.Missing(name, "start")
	}
	endText, ok := provider.Field(body, "End:")
	if !ok {
		return nil, provider.Missing(name, "end")
	}
	start, zone, err := provider.ParseZoned(startText, layouts...)
	if err != nil {
		return nil, provider.Invalid(name, "start", err)
	}
	end, _, err := provider.ParseZoned(endText, layouts...)
	if err != nil {
		return nil, provider.Invalid(name, "end", err)
	}
	impact, ok := provider.Field(body, "Impact:")
	if !ok || impact == "" {
		return nil, provider.Missing(name, "impact")
	}

	n := &provider.Notice{
		TicketID: ticket,
		Start:    model.ClockOf(start),
		End:      model.ClockOf(end.In(start.Location())),
		Timezone: zone,
	}
	if n.Location, _ = provider.Field(body, "Location:"); n.Location == "" {
		return nil, provider.Missing(name, "location")
	}
	n.Reason, _ = provider.Field(body, "Reason:")

	dates := provider.DaysBetween(start, end)
	for _, c := range circuits(body) {
		c.Impact = impact
		c.Dates = dates
		n.Circuits = append(n.Circuits, c)
	}

	if err := n.Validate(name); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Provider) ExtractTransition(msg *source.Message, op provider.Operation) (*provider.Transition, error) {
	ticket, err := p.ticket(msg)
	if err != nil {
		return nil, err
	}
	tr := &provider.Transition{TicketID: ticket}
	if op == provider.OpUpdate {
		body, err := p.body(msg)
		if err != nil {
			return nil, err
		}
		tr.Comment = strings.TrimSpace(body)
	}
	return tr, nil
}

func (p *Provider) ticket(msg *source.Message) (string, error) {
	ref, ok := ticketRef.First(msg.Subject)
	if !ok {
		return "", provider.Missing(name, "ticket number in subject")
	}
	return ref, nil
}

// body returns the <pre> text of the HTML part, or the plain text part when
// there is no HTML.
func (p *Provider) body(msg *source.Message) (string, error) {
	if strings.TrimSpace(msg.HTMLBody) != "" {
		doc, err := provider.ParseHTML(msg.HTMLBody)
		if err != nil {
			return "", provider.Invalid(name, "html body", err)
		}
		if pre, ok := doc.Pre(); ok {
			return pre, nil
		}
		return doc.Text(), nil
	}
	if strings.TrimSpace(msg.TextBody) != "" {
		return msg.TextBody, nil
	}
	return "", provider.Missing(name, "body")
}

// circuits pairs "GTT Service = X" lines with their site address lines. The
// addresses are only used when every circuit has one.
func circuits(body string) []provider.CircuitImpact {
	var (
		cids  []string
		sides []string
	)
	seenCID := map[string]bool{}
	seenSide := map[string]bool{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		_, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = provider.CleanLine(value)
		switch {
		case strings.HasPrefix(lower, "gtt service"):
			if fields := strings.Fields(value); len(fields) > 0 && !seenCID[fields[0]] {
				seenCID[fields[0]] = true
				cids = append(cids, fields[0])
			}
		case strings.HasPrefix(lower, "site address"), strings.HasPrefix(lower, "location ="), strings.HasPrefix(lower, "location="):
			if value != "" && !seenSide[value] {
				seenSide[value] = true
				sides = append(sides, value)
			}
		}
	}

	out := make([]provider.CircuitImpact, 0, len(cids))
	for i, cid := range cids {
		c := provider.CircuitImpact{CircuitID: cid}
		if len(sides) == len(cids) {
			c.ASide = sides[i]
		}
		out = append(out, c)
	}
	return out
}
