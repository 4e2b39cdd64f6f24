package email

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/require"

	"github.com/nhle/circuit-janitor/internal/source"
)

const calendarBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Maint Note//EN\r\nBEGIN:VEVENT\r\nUID:42\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessage_MultipartWithCalendar(t *testing.T) {
	t.Parallel()

	raw := crlf(`Received: from mx.example.net by mail.example.com with ESMTPS id abc;
 Mon, 08 Jan 2024 14:02:03 +0000 (UTC)
Received: from relay.packetfabric.com by mx.example.net; Mon, 08 Jan 2024 14:01:00 +0000
From: PacketFabric Support <support@packetfabric.com>
Subject: Planned maintenance PF-1
Date: Mon, 08 Jan 2024 13:59:00 +0000
Message-ID: <pf-1@packetfabric.com>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

Maintenance =3D scheduled
--inner
Content-Type: text/html; charset=utf-8

<p>Maintenance scheduled</p>
--inner--
--outer
Content-Type: text/calendar; charset=utf-8; method=PUBLISH
Content-Disposition: attachment; filename="invite.ics"
Content-Transfer-Encoding: base64

` + base64.StdEncoding.EncodeToString([]byte(calendarBody)) + `
--outer--
`)

	msg := ParseMessage(raw)

	require.Equal(t, "Planned maintenance PF-1", msg.Subject)
	require.Equal(t, "PacketFabric Support <support@packetfabric.com>", msg.From)
	require.Equal(t, "pf-1@packetfabric.com", msg.MessageID)
	require.Equal(t, time.Date(2024, 1, 8, 14, 2, 3, 0, time.UTC), msg.Received)
	require.Equal(t, time.Date(2024, 1, 8, 13, 59, 0, 0, time.UTC), msg.Date)
	require.Equal(t, "Maintenance = scheduled", strings.TrimSpace(msg.TextBody))
	require.Contains(t, msg.HTMLBody, "<p>Maintenance scheduled</p>")
	require.Len(t, msg.Calendars, 1)
	require.Contains(t, string(msg.Calendars[0]), "BEGIN:VEVENT")
}

func TestParseMessage_SinglePartPlainText(t *testing.T) {
	t.Parallel()

	raw := crlf(`From: ncm@teliacompany.com
Subject: Planned Work PWIC123
Content-Type: text/plain; charset=us-ascii

PW Reference number: PWIC123
`)
	msg := ParseMessage(raw)

	require.Equal(t, "ncm@teliacompany.com", msg.From)
	require.Contains(t, msg.TextBody, "PWIC123")
	require.True(t, msg.Received.IsZero())
	require.Empty(t, msg.Calendars)
}

func TestParseMessage_UndeclaredBase64Calendar(t *testing.T) {
	t.Parallel()

	raw := crlf(`From: NTT Communications <noc@ntt.net>
Subject: maintenance
Content-Type: text/calendar

` + base64.StdEncoding.EncodeToString([]byte(calendarBody)) + `
`)
	msg := ParseMessage(raw)
	require.Len(t, msg.Calendars, 1)
	require.Contains(t, string(msg.Calendars[0]), "BEGIN:VCALENDAR")
}

func TestReceivedAt_Fallbacks(t *testing.T) {
	t.Parallel()

	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	received := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	require.Equal(t, fallback, (&source.Message{}).ReceivedAt(fallback))
	require.Equal(t, date, (&source.Message{Date: date}).ReceivedAt(fallback))
	require.Equal(t, received, (&source.Message{Date: date, Received: received}).ReceivedAt(fallback))
}

func TestSearchCriteria(t *testing.T) {
	t.Parallel()

	c := searchCriteria(source.Match{From: "MR Zayo"})
	require.Equal(t, []imap.Flag{imap.FlagSeen}, c.NotFlag)
	require.Equal(t, []imap.SearchCriteriaHeaderField{{Key: "From", Value: "MR Zayo"}}, c.Header)

	c = searchCriteria(source.Match{Subject: "eunetworks"})
	require.Equal(t, []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: "eunetworks"}}, c.Header)
}
