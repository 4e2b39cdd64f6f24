package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthError indicates that authentication with the mail server failed.
type AuthError struct {
	Server  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Server, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Message is one acquired notification, decoded from its MIME structure.
type Message struct {
	// UID identifies the message to the mailbox for ReportOutcome.
	UID       uint32
	MessageID string
	Subject   string
	// From is the display name and address, e.g. "MR Zayo <mr@zayo.com>".
	From string
	// Date is the Date header; zero when absent or malformed.
	Date time.Time
	// Received is when the message reached our server, taken from the top
	// Received header; zero when absent.
	Received time.Time

	// TextBody and HTMLBody are the decoded text/plain and text/html parts.
	TextBody string
	HTMLBody string
	// Calendars holds every decoded text/calendar part.
	Calendars [][]byte
}

// ReceivedAt returns the best known arrival time of the message, or
// fallback when neither Received nor Date is known.
func (m *Message) ReceivedAt(fallback time.Time) time.Time {
	switch {
	case !m.Received.IsZero():
		return m.Received
	case !m.Date.IsZero():
		return m.Date
	default:
		return fallback
	}
}

// Match is a provider's mail selection predicate. Non-empty fields must all
// match, case-insensitively, as substrings of the corresponding header.
type Match struct {
	From    string
	Subject string
}

// Matches applies the predicate to an already decoded message.
func (m Match) Matches(msg *Message) bool {
	if m.From == "" && m.Subject == "" {
		return false
	}
	if m.From != "" && !containsFold(msg.From, m.From) {
		return false
	}
	if m.Subject != "" && !containsFold(msg.Subject, m.Subject) {
		return false
	}
	return true
}

func (m Match) String() string {
	var parts []string
	if m.From != "" {
		parts = append(parts, "from:"+m.From)
	}
	if m.Subject != "" {
		parts = append(parts, "subject:"+m.Subject)
	}
	return strings.Join(parts, " ")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Mailbox is an open acquisition session.
type Mailbox interface {
	// SelectCandidates returns the unprocessed messages matching m, in
	// arrival order.
	SelectCandidates(ctx context.Context, m Match) ([]*Message, error)

	// ReportOutcome records whether the message was handled. Successful
	// messages are not selected again; failed ones stay discoverable.
	ReportOutcome(ctx context.Context, uid uint32, ok bool) error

	Close() error
}

// Opener opens acquisition sessions.
type Opener interface {
	Open(ctx context.Context) (Mailbox, error)
}
