// Package zayo parses Zayo's HTML maintenance notifications.
package zayo

import (
	"regexp"
	"strings"
	"time"

	"github.com/nhle/circuit-janitor/internal/crossref"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/source"
)

const name = "zayo"

var (
	ticketRef   = crossref.MustCompile(`TTN-\d+`)
	activityDay = regexp.MustCompile(`\d{1,2}-[A-Za-z]{3}-\d{4}|\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2}`)
	window      = regexp.MustCompile(`^(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s*(.*)$`)
)

// Provider parses Zayo notifications. Zayo bolds each field label and puts
// the value right after it; circuits come in a table.
type Provider struct {
	// tzPrefix turns Zayo's bare "Eastern" into "US/Eastern".
	tzPrefix string
}

// New returns the Zayo provider.
func New(tzPrefix string) *Provider {
	return &Provider{tzPrefix: tzPrefix}
}

func (p *Provider) Name() string             { return name }
func (p *Provider) Type() model.ProviderType { return model.ProviderTransit }
func (p *Provider) Match() source.Match      { return source.Match{From: "MR Zayo"} }

// Classify uses the subject line, checked in a fixed order.
func (p *Provider) Classify(msg *source.Message) (provider.Operation, error) {
	subject := strings.ToLower(strings.TrimSpace(msg.Subject))

	switch {
	case strings.HasPrefix(subject, "***") && strings.Contains(subject, "maintenance notification"):
		return provider.OpNew, nil
	case strings.HasPrefix(subject, "reschedule notification"):
		return provider.OpReschedule, nil
	case strings.HasPrefix(subject, "start maintenance notification"):
		return provider.OpStart, nil
	case strings.HasPrefix(subject, "completed maintenance notification"):
		return provider.OpEnd, nil
	case strings.HasPrefix(subject, "end of window"):
		// The window closed but completion is not confirmed.
		return provider.OpUpdate, nil
	case strings.HasPrefix(subject, "cancelled notification"):
		return provider.OpCancel, nil
	case strings.Contains(subject, "ttn-") && strings.Contains(subject, "maintenance notification"):
		return provider.OpUpdate, nil
	}
	return 0, provider.Unclassified(name, msg.Subject)
}

// ExtractNew reads the bolded fields and the circuit table.
func (p *Provider) ExtractNew(msg *source.Message) (*provider.Notice, error) {
	doc, err := p.document(msg)
	if err != nil {
		return nil, err
	}

	n := &provider.Notice{}
	var (
		activities []string
		hasWindow  bool
	)
	for _, f := range doc.BoldLabels() {
		label := strings.ToLower(f.Label)
		switch {
		case strings.HasSuffix(label, "activity date:"):
			if f.Value != "" {
				activities = append(activities, f.Value)
			}
		case strings.HasPrefix(label, "maintenance ticket"):
			n.TicketID = f.Value
		case strings.Contains(label, "location of maintenance"):
			n.Location = f.Value
		case strings.Contains(label, "maintenance window"):
			if f.Value == "" {
				continue
			}
			if err := p.parseWindow(f.Value, n); err != nil {
				return nil, provider.Invalid(name, "maintenance window", err)
			}
			hasWindow = true
		case strings.Contains(label, "reason for maintenance"):
			n.Reason = f.Value
		}
	}

	switch {
	case n.TicketID == "":
		return nil, provider.Missing(name, "maintenance ticket")
	case !hasWindow:
		return nil, provider.Missing(name, "maintenance window")
	case n.Location == "":
		return nil, provider.Missing(name, "location of maintenance")
	case len(activities) == 0:
		return nil, provider.Missing(name, "activity date")
	}

	// Every day a window touches is recorded, including the day an
	// overnight window closes.
	overnight := n.End.Before(n.Start)
	var dates []time.Time
	for _, value := range activities {
		days, err := activityDays(value, overnight)
		if err != nil {
			return nil, provider.Invalid(name, "activity date", err)
		}
		for _, day := range days {
			dates = appendDay(dates, day)
		}
	}

	circuits, err := circuitTable(doc)
	if err != nil {
		return nil, err
	}
	for i := range circuits {
		circuits[i].Dates = dates
	}
	n.Circuits = circuits

	if err := n.Validate(name); err != nil {
		return nil, err
	}
	return n, nil
}

// ExtractTransition finds the ticket in the bolded "Maintenance Ticket"
// field, falling back to a TTN- reference in the subject.
func (p *Provider) ExtractTransition(msg *source.Message, op provider.Operation) (*provider.Transition, error) {
	doc, err := p.document(msg)
	if err != nil {
		return nil, err
	}

	tr := &provider.Transition{}
	for _, f := range doc.BoldLabels() {
		if strings.HasPrefix(strings.ToLower(f.Label), "maintenance ticket") && f.Value != "" {
			tr.TicketID = f.Value
			break
		}
	}
	if tr.TicketID == "" {
		ref, ok := ticketRef.FirstOf(msg.Subject, doc.Text())
		if !ok {
			return nil, provider.Missing(name, "maintenance ticket")
		}
		tr.TicketID = ref
	}

	if op == provider.OpUpdate {
		tr.Comment = doc.Text()
	}
	return tr, nil
}

func (p *Provider) document(msg *source.Message) (*provider.Document, error) {
	if strings.TrimSpace(msg.HTMLBody) == "" {
		return nil, provider.Missing(name, "html body")
	}
	doc, err := provider.ParseHTML(msg.HTMLBody)
	if err != nil {
		return nil, provider.Invalid(name, "html body", err)
	}
	return doc, nil
}

// parseWindow reads "00:01 - 05:00 Eastern".
func (p *Provider) parseWindow(value string, n *provider.Notice) error {
	m := window.FindStringSubmatch(provider.CleanLine(value))
	if m == nil {
		return &provider.ParsingError{Provider: name, Field: "maintenance window", Reason: "expected HH:MM - HH:MM zone, got " + value}
	}

	var err error
	if n.Start, err = model.ParseTimeOfDay(m[1]); err != nil {
		return err
	}
	if n.End, err = model.ParseTimeOfDay(m[2]); err != nil {
		return err
	}

	zone := strings.Trim(strings.TrimSpace(m[3]), "() ")
	switch {
	case zone == "":
		n.Timezone = "UTC"
	case strings.Contains(zone, "/") || strings.Contains(zone, " "):
		n.Timezone = model.CanonicalZone(zone)
	default:
		if _, err := model.LoadLocation(zone); err == nil {
			n.Timezone = model.CanonicalZone(zone)
		} else {
			n.Timezone = p.tzPrefix + zone
		}
	}
	return nil
}

// activityDays reads "10-Jan-2024 22:00 to 11-Jan-2024 04:00" and returns
// every date from the first to the last. A single date of an overnight
// window also yields the day after it.
func activityDays(value string, overnight bool) ([]time.Time, error) {
	tokens := activityDay.FindAllString(value, -1)
	if len(tokens) == 0 {
		tokens = []string{value}
	}

	first, err := parseDay(tokens[0])
	if err != nil {
		return nil, err
	}
	last := first
	switch {
	case len(tokens) > 1:
		if last, err = parseDay(tokens[len(tokens)-1]); err != nil {
			return nil, err
		}
	case overnight:
		last = first.AddDate(0, 0, 1)
	}
	return provider.DaysBetween(first, last), nil
}

func parseDay(token string) (time.Time, error) {
	t, err := provider.ParseLocal(token, time.UTC, "2-Jan-2006", "02-Jan-2006", "1/2/2006", "2006-01-02")
	if err != nil {
		return time.Time{}, err
	}
	return model.Day(t), nil
}

func appendDay(days []time.Time, day time.Time) []time.Time {
	for _, d := range days {
		if d.Equal(day) {
			return days
		}
	}
	return append(days, day)
}

// circuitTable reads the table whose header row has a "Circuit Id" column.
// Columns are located by header name.
func circuitTable(doc *provider.Document) ([]provider.CircuitImpact, error) {
	for _, table := range doc.Tables() {
		if len(table) < 2 {
			continue
		}
		cols := map[string]int{}
		for i, h := range table[0] {
			cols[strings.ToLower(h)] = i
		}
		cidCol, ok := cols["circuit id"]
		if !ok {
			continue
		}
		impactCol, ok := cols["expected impact"]
		if !ok {
			return nil, provider.Missing(name, "expected impact column")
		}

		var out []provider.CircuitImpact
		seen := map[string]bool{}
		for _, row := range table[1:] {
			cid := cell(row, cidCol)
			if cid == "" || seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, provider.CircuitImpact{
				CircuitID: cid,
				Impact:    cell(row, impactCol),
				ASide:     cellByName(row, cols, "a location clli"),
				ZSide:     cellByName(row, cols, "z location clli"),
			})
		}
		if len(out) == 0 {
			return nil, provider.Missing(name, "circuit list")
		}
		return out, nil
	}
	return nil, provider.Missing(name, "circuit table")
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func cellByName(row []string, cols map[string]int, header string) string {
	i, ok := cols[header]
	if !ok {
		return ""
	}
	return cell(row, i)
}
