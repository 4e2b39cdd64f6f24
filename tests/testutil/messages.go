package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nhle/circuit-janitor/internal/source"
)

// Calendar renders a single-event VCALENDAR with the given extra properties,
// CRLF terminated as mail clients send it.
func Calendar(props ...string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Maint Note//https://github.com/maint-notification//",
		"BEGIN:VEVENT",
		"UID:" + fmt.Sprint(len(props)),
		"DTSTAMP:20240108T120000Z",
	}
	lines = append(lines, props...)
	lines = append(lines, "END:VEVENT", "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

// CalendarMessage is a MAINTNOTE notification from sender.
func CalendarMessage(from string, props ...string) *source.Message {
	return &source.Message{
		From:      from,
		Subject:   "Maintenance notification",
		Received:  time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
		Calendars: [][]byte{Calendar(props...)},
	}
}

// Mailbox is an in-memory source.Mailbox. Messages are selected until their
// outcome is reported as successful.
type Mailbox struct {
	mu       sync.Mutex
	messages []*source.Message
	done     map[uint32]bool
	outcomes map[uint32][]bool
	closed   bool
	// SelectErr, when set, fails SelectCandidates.
	SelectErr error
}

// NewMailbox returns a mailbox holding msgs. Messages without a UID are
// numbered in order.
func NewMailbox(msgs ...*source.Message) *Mailbox {
	for i, m := range msgs {
		if m.UID == 0 {
			m.UID = uint32(i + 1)
		}
	}
	return &Mailbox{
		messages: msgs,
		done:     make(map[uint32]bool),
		outcomes: make(map[uint32][]bool),
	}
}

func (m *Mailbox) SelectCandidates(_ context.Context, match source.Match) ([]*source.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SelectErr != nil {
		return nil, m.SelectErr
	}
	var out []*source.Message
	for _, msg := range m.messages {
		if !m.done[msg.UID] && match.Matches(msg) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *Mailbox) ReportOutcome(_ context.Context, uid uint32, ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outcomes[uid] = append(m.outcomes[uid], ok)
	if ok {
		m.done[uid] = true
	}
	return nil
}

func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Outcomes returns every reported outcome of uid, oldest first.
func (m *Mailbox) Outcomes(uid uint32) []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.outcomes[uid]...)
}

// Closed reports whether Close was called.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Opener hands out the same Mailbox on every Open.
type Opener struct {
	Mailbox *Mailbox
	// Err, when set, fails Open.
	Err   error
	mu    sync.Mutex
	opens int
}

func (o *Opener) Open(context.Context) (source.Mailbox, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Mailbox, nil
}

// Opens returns how many times Open was called.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}
