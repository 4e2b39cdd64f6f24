package email

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/circuit-janitor/internal/source"
)

// FlagFailed marks a message that already has a copy in the failures
// mailbox, so retries do not copy it again.
const FlagFailed imap.Flag = "$JanitorFailed"

// Session implements source.Mailbox over one IMAP connection with the
// notification mailbox selected.
type Session struct {
	client *imapclient.Client
	cfg    Config
	stop   func() bool

	// failed holds the selected messages carrying FlagFailed.
	failed map[imap.UID]bool
}

var _ source.Mailbox = (*Session)(nil)

// SelectCandidates searches for unseen messages matching m and returns them
// decoded, in UID order. Bodies are fetched with PEEK so selection does not
// mark anything as seen.
func (s *Session) SelectCandidates(ctx context.Context, m source.Match) ([]*source.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// An empty predicate would select the whole mailbox.
	if m.From == "" && m.Subject == "" {
		return nil, nil
	}

	searchData, err := s.client.UIDSearch(searchCriteria(m), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s for %s: %w", s.cfg.Mailbox, m, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var messages []*source.Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}

		if hasFlag(buf.Flags, FlagFailed) {
			if s.failed == nil {
				s.failed = make(map[imap.UID]bool)
			}
			s.failed[buf.UID] = true
		}

		parsed := ParseMessage(raw)
		parsed.UID = uint32(buf.UID)
		messages = append(messages, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching candidates: %w", err)
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].UID < messages[j].UID })
	return messages, nil
}

// ReportOutcome marks a handled message \Seen and copies it to the processed
// mailbox, or clears \Seen and copies a failed one to the failures mailbox.
// A failed message is copied once; later failures only clear \Seen.
// On Gmail a copy adds a label, so the message also stays in place.
func (s *Session) ReportOutcome(ctx context.Context, uid uint32, ok bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := imap.UID(uid)
	uidSet := imap.UIDSetNum(id)
	plan := planOutcome(s.cfg, ok, s.failed[id])

	if err := s.storeFlags(uidSet, plan.flags); err != nil {
		return fmt.Errorf("updating flags on UID %d: %w", uid, err)
	}
	if plan.copyTo != "" {
		if _, err := s.client.Copy(uidSet, plan.copyTo).Wait(); err != nil {
			return fmt.Errorf("copying UID %d to %s: %w", uid, plan.copyTo, err)
		}
	}
	if err := s.storeFlags(uidSet, plan.afterCopy); err != nil {
		return fmt.Errorf("marking UID %d: %w", uid, err)
	}

	if !ok {
		if s.failed == nil {
			s.failed = make(map[imap.UID]bool)
		}
		s.failed[id] = true
	} else {
		delete(s.failed, id)
	}
	return nil
}

func (s *Session) storeFlags(uidSet imap.UIDSet, changes []imap.StoreFlags) error {
	for _, change := range changes {
		if err := s.client.Store(uidSet, &change, nil).Close(); err != nil {
			return err
		}
	}
	return nil
}

// outcomePlan is the flag changes around the copy of a reported message.
type outcomePlan struct {
	flags     []imap.StoreFlags
	copyTo    string
	afterCopy []imap.StoreFlags
}

func planOutcome(cfg Config, ok, failedBefore bool) outcomePlan {
	if ok {
		plan := outcomePlan{
			flags:  []imap.StoreFlags{{Op: imap.StoreFlagsAdd, Silent: true, Flags: []imap.Flag{imap.FlagSeen}}},
			copyTo: cfg.ProcessedMailbox,
		}
		if failedBefore {
			plan.flags = append(plan.flags, imap.StoreFlags{Op: imap.StoreFlagsDel, Silent: true, Flags: []imap.Flag{FlagFailed}})
		}
		return plan
	}

	plan := outcomePlan{
		flags: []imap.StoreFlags{{Op: imap.StoreFlagsDel, Silent: true, Flags: []imap.Flag{imap.FlagSeen}}},
	}
	if !failedBefore && cfg.FailuresMailbox != "" {
		plan.copyTo = cfg.FailuresMailbox
		plan.afterCopy = []imap.StoreFlags{{Op: imap.StoreFlagsAdd, Silent: true, Flags: []imap.Flag{FlagFailed}}}
	}
	return plan
}

func hasFlag(flags []imap.Flag, want imap.Flag) bool {
	for _, f := range flags {
		if strings.EqualFold(string(f), string(want)) {
			return true
		}
	}
	return false
}

// Close logs out and releases the connection.
func (s *Session) Close() error {
	if s.stop != nil {
		s.stop()
	}
	if err := s.client.Logout().Wait(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// searchCriteria translates a selection predicate into an IMAP SEARCH for
// unseen messages with matching headers.
func searchCriteria(m source.Match) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	if m.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "From", Value: m.From,
		})
	}
	if m.Subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "Subject", Value: m.Subject,
		})
	}
	return criteria
}
