package email

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/circuit-janitor/internal/source"
)

// IMAPClient wraps go-imap v2 for connecting to the notification mailbox.
type IMAPClient struct {
	cfg Config
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(cfg Config) *IMAPClient {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPClient{cfg: cfg}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	var client *imapclient.Client
	var err error

	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			Server: addr,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.cfg.Username, err,
			),
		}
	}

	return client, nil
}

// Open connects, selects the notification mailbox read-write and returns a
// session. The session is torn down when ctx is done.
func (c *IMAPClient) Open(ctx context.Context) (source.Mailbox, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := client.Select(c.cfg.Mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", c.cfg.Mailbox, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	return &Session{client: client, cfg: c.cfg, stop: stop}, nil
}

// ValidateConnection verifies credentials by connecting, authenticating and
// selecting the notification mailbox. Returns the username on success.
func (c *IMAPClient) ValidateConnection(ctx context.Context) (string, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating mail connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return "", fmt.Errorf("selecting %s: %w", c.cfg.Mailbox, err)
	}

	return c.cfg.Username, nil
}

// VerifyMailboxes creates the processed and failures mailboxes when they do
// not exist yet and returns the names it created.
func (c *IMAPClient) VerifyMailboxes(ctx context.Context) ([]string, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	listed, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}
	existing := make(map[string]bool, len(listed))
	for _, mb := range listed {
		existing[mb.Mailbox] = true
	}

	var created []string
	for _, name := range []string{c.cfg.ProcessedMailbox, c.cfg.FailuresMailbox} {
		if name == "" || existing[name] {
			continue
		}
		if err := client.Create(name, nil).Wait(); err != nil {
			return created, fmt.Errorf("creating mailbox %s: %w", name, err)
		}
		existing[name] = true
		created = append(created, name)
	}

	return created, nil
}

// FailedMessages lists the envelopes in the failures mailbox, oldest first.
func (c *IMAPClient) FailedMessages(ctx context.Context) ([]FailedMessage, error) {
	if c.cfg.FailuresMailbox == "" {
		return nil, nil
	}

	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.cfg.FailuresMailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.cfg.FailuresMailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", c.cfg.FailuresMailbox, err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	})
	defer fetchCmd.Close()

	var failed []FailedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		failed = append(failed, failedFromBuffer(buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return failed, fmt.Errorf("fetching failed envelopes: %w", err)
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i].UID < failed[j].UID })
	return failed, nil
}

// failedFromBuffer extracts a FailedMessage from a FetchMessageBuffer.
func failedFromBuffer(buf *imapclient.FetchMessageBuffer) FailedMessage {
	f := FailedMessage{UID: uint32(buf.UID)}
	if buf.Envelope != nil {
		f.Subject = buf.Envelope.Subject
		f.Date = buf.Envelope.Date
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				f.From = from.Name
			} else {
				f.From = from.Addr()
			}
		}
	}
	return f
}
