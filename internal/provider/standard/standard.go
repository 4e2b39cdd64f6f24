// Package standard parses the MAINTNOTE iCalendar format for circuit
// maintenance notifications.
package standard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/source"
)

// MAINTNOTE property names.
const (
	PropStatus        = "X-MAINTNOTE-STATUS"
	PropMaintenanceID = "X-MAINTNOTE-MAINTENANCE-ID"
	PropObjectID      = "X-MAINTNOTE-OBJECT-ID"
	PropImpact        = "X-MAINTNOTE-IMPACT"
	PropProvider      = "X-MAINTNOTE-PROVIDER"
)

// Provider is a vendor that sends MAINTNOTE calendars. Only its identity
// and selection predicate vary.
type Provider struct {
	name  string
	typ   model.ProviderType
	match source.Match
}

// New returns a MAINTNOTE provider.
func New(name string, typ model.ProviderType, match source.Match) *Provider {
	return &Provider{name: name, typ: typ, match: match}
}

// NTT sends from "NTT Communications".
func NTT() *Provider {
	return New("ntt", model.ProviderTransit, source.Match{From: "NTT Communications"})
}

// PacketFabric sends from support@packetfabric.com.
func PacketFabric() *Provider {
	return New("packetfabric", model.ProviderTransit, source.Match{From: "support@packetfabric.com"})
}

// EUNetworks is recognized by its subject.
func EUNetworks() *Provider {
	return New("eunetworks", model.ProviderTransit, source.Match{Subject: "eunetworks"})
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Type() model.ProviderType { return p.typ }
func (p *Provider) Match() source.Match      { return p.match }

// Classify maps X-MAINTNOTE-STATUS to an operation.
func (p *Provider) Classify(msg *source.Message) (provider.Operation, error) {
	ev, err := p.event(msg)
	if err != nil {
		return 0, err
	}
	return Classify(p.name, ev)
}

// ExtractNew reads the maintenance id, window, impact and circuits.
func (p *Provider) ExtractNew(msg *source.Message) (*provider.Notice, error) {
	ev, err := p.event(msg)
	if err != nil {
		return nil, err
	}
	return ExtractNotice(p.name, ev)
}

// ExtractTransition reads the maintenance id and, for updates, the
// description.
func (p *Provider) ExtractTransition(msg *source.Message, op provider.Operation) (*provider.Transition, error) {
	ev, err := p.event(msg)
	if err != nil {
		return nil, err
	}
	id := text(ev, PropMaintenanceID)
	if id == "" {
		return nil, provider.Missing(p.name, "maintenance id")
	}
	tr := &provider.Transition{TicketID: id}
	if op == provider.OpUpdate {
		tr.Comment = updateComment(ev)
	}
	return tr, nil
}

// event returns the first VEVENT of the first calendar part.
func (p *Provider) event(msg *source.Message) (*ical.Event, error) {
	if len(msg.Calendars) == 0 {
		return nil, provider.Missing(p.name, "calendar")
	}
	ev, err := FirstEvent(msg.Calendars[0])
	if err != nil {
		return nil, provider.Invalid(p.name, "calendar", err)
	}
	return ev, nil
}

// FirstEvent decodes a calendar and returns its first VEVENT.
func FirstEvent(data []byte) (*ical.Event, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty calendar")
	}
	if err != nil {
		return nil, fmt.Errorf("decoding calendar: %w", err)
	}
	events := cal.Events()
	if len(events) == 0 {
		return nil, errors.New("calendar has no events")
	}
	return &events[0], nil
}

// Classify maps a MAINTNOTE event to an operation.
func Classify(name string, ev *ical.Event) (provider.Operation, error) {
	status := strings.ToLower(text(ev, PropStatus))
	switch status {
	case "confirmed", "tentative":
		return provider.OpNew, nil
	case "cancelled":
		return provider.OpCancel, nil
	case "in-process":
		return provider.OpStart, nil
	case "completed":
		return provider.OpEnd, nil
	case "":
		if strings.Contains(strings.ToLower(text(ev, ical.PropSummary)), "completed") {
			return provider.OpEnd, nil
		}
		if sequence(ev) > 0 {
			return provider.OpUpdate, nil
		}
		return 0, &provider.ParsingError{Provider: name, Field: PropStatus, Reason: "missing and event is not an update"}
	default:
		return 0, provider.Invalid(name, PropStatus, fmt.Errorf("unknown status %q", status))
	}
}

// ExtractNotice builds a notice from a MAINTNOTE event. Every object id
// gets the event impact on every date the window touches.
func ExtractNotice(name string, ev *ical.Event) (*provider.Notice, error) {
	id := text(ev, PropMaintenanceID)
	if id == "" {
		return nil, provider.Missing(name, "maintenance id")
	}

	start, err := dateTime(ev, ical.PropDateTimeStart)
	if err != nil {
		return nil, provider.Invalid(name, "start", err)
	}
	if start.IsZero() {
		return nil, provider.Missing(name, "start")
	}
	end, err := dateTime(ev, ical.PropDateTimeEnd)
	if err != nil {
		return nil, provider.Invalid(name, "end", err)
	}
	if end.IsZero() {
		return nil, provider.Missing(name, "end")
	}

	impact := text(ev, PropImpact)
	if impact == "" {
		return nil, provider.Missing(name, "impact")
	}

	var objects []string
	seen := map[string]bool{}
	for _, prop := range ev.Props.Values(PropObjectID) {
		cid := strings.TrimSpace(prop.Value)
		if cid == "" || seen[cid] {
			continue
		}
		seen[cid] = true
		objects = append(objects, cid)
	}
	if len(objects) == 0 {
		return nil, provider.Missing(name, "circuit list")
	}

	n := &provider.Notice{
		TicketID: id,
		Start:    model.ClockOf(start),
		End:      model.ClockOf(end.In(start.Location())),
		Timezone: start.Location().String(),
		Location: text(ev, ical.PropLocation),
		Reason:   text(ev, ical.PropSummary),
	}
	dates := provider.DaysBetween(start, end)
	for _, cid := range objects {
		n.Circuits = append(n.Circuits, provider.CircuitImpact{
			CircuitID: cid,
			Impact:    impact,
			Dates:     dates,
		})
	}

	if err := n.Validate(name); err != nil {
		return nil, err
	}
	return n, nil
}

// dateTime reads a DATE-TIME property, honoring TZID and defaulting to UTC.
func dateTime(ev *ical.Event, name string) (time.Time, error) {
	prop := ev.Props.Get(name)
	if prop == nil {
		return time.Time{}, nil
	}
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	if t.Location() == time.Local {
		t = t.UTC()
	}
	return t, nil
}

func text(ev *ical.Event, name string) string {
	prop := ev.Props.Get(name)
	if prop == nil {
		return ""
	}
	if v, err := prop.Text(); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(prop.Value)
}

func sequence(ev *ical.Event) int {
	prop := ev.Props.Get(ical.PropSequence)
	if prop == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(prop.Value))
	if err != nil {
		return 0
	}
	return n
}

func updateComment(ev *ical.Event) string {
	if d := text(ev, ical.PropDescription); d != "" {
		return d
	}
	if s := text(ev, ical.PropSummary); s != "" {
		return s
	}
	return fmt.Sprintf("sequence %d update", sequence(ev))
}
