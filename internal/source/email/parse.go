package email

import (
	"bytes"
	"encoding/base64"
	"io"
	netmail "net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/circuit-janitor/internal/source"
)

// ParseMessage decodes a raw RFC 5322 message. Transfer encodings
// (base64, quoted-printable) and charsets are decoded by go-message. A
// message that cannot be read as MIME is returned with its raw bytes as the
// text body so providers still get a chance to reject it.
func ParseMessage(raw []byte) *source.Message {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return &source.Message{TextBody: string(raw)}
	}
	defer mr.Close()

	msg := &source.Message{}
	readHeader(&mr.Header, msg)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		var contentType, filename string
		attachment := false
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			contentType, _, _ = h.ContentType()
			filename, _ = h.Filename()
			attachment = true
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case isCalendar(contentType, filename):
			msg.Calendars = append(msg.Calendars, decodeCalendar(body))
		case attachment:
			// Other attachments carry nothing the parsers read.
		case strings.HasPrefix(contentType, "text/plain") && msg.TextBody == "":
			msg.TextBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && msg.HTMLBody == "":
			msg.HTMLBody = string(body)
		}
	}

	return msg
}

func readHeader(h *mail.Header, msg *source.Message) {
	msg.Subject, _ = h.Subject()
	msg.MessageID, _ = h.MessageID()

	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		if addrs[0].Name != "" {
			msg.From = addrs[0].Name + " <" + addrs[0].Address + ">"
		} else {
			msg.From = addrs[0].Address
		}
	} else {
		msg.From = h.Get("From")
	}

	if d, err := h.Date(); err == nil {
		msg.Date = d.UTC()
	}
	msg.Received = receivedTime(h.Values("Received"))
}

var trailingComment = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// receivedTime extracts the timestamp of the top-most Received header, the
// hop that delivered the message to us. The timestamp follows the last ';'.
func receivedTime(values []string) time.Time {
	if len(values) == 0 {
		return time.Time{}
	}
	v := strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(values[0])
	idx := strings.LastIndex(v, ";")
	if idx < 0 {
		return time.Time{}
	}
	stamp := trailingComment.ReplaceAllString(strings.TrimSpace(v[idx+1:]), "")

	if t, err := netmail.ParseDate(stamp); err == nil {
		return t.UTC()
	}
	if t, err := dateparse.ParseAny(stamp); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func isCalendar(contentType, filename string) bool {
	return strings.HasPrefix(contentType, "text/calendar") ||
		contentType == "application/ics" ||
		strings.HasSuffix(strings.ToLower(filename), ".ics")
}

// decodeCalendar undoes a base64 layer some senders apply to calendar parts
// without declaring it in Content-Transfer-Encoding.
func decodeCalendar(body []byte) []byte {
	if bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
		return body
	}
	compact := bytes.Join(bytes.Fields(body), nil)
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
	n, err := base64.StdEncoding.Decode(decoded, compact)
	if err != nil || !bytes.Contains(decoded[:n], []byte("BEGIN:VCALENDAR")) {
		return body
	}
	return decoded[:n]
}
