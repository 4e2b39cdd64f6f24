package email

import "time"

// Config holds the IMAP server settings and mailbox layout.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool

	// Mailbox is where provider notifications arrive.
	Mailbox string
	// ProcessedMailbox receives a copy of every handled message.
	ProcessedMailbox string
	// FailuresMailbox receives a copy of every message that failed.
	FailuresMailbox string
}

// FailedMessage is the envelope of a message in the failures mailbox.
type FailedMessage struct {
	UID     uint32
	Subject string
	From    string
	Date    time.Time
}
