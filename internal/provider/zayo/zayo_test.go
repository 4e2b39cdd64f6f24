package zayo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/source"
)

const newBody = `<html><body>
<p>Zayo will be performing maintenance activities in the location below.</p>
<b>Maintenance Ticket #: </b>TTN-0001234567<br>
<b>Urgency: </b>Planned<br>
<b>Date Notice Sent: </b>08-Jan-2024<br>
<b>Customer: </b>Example Networks<br>
<b>Maintenance Window </b><br>
<b>1st Activity Date: </b>10-Jan-2024 00:01 to 10-Jan-2024 05:00 ( Eastern )<br>
<b>2nd Activity Date: </b>11-Jan-2024 00:01 to 11-Jan-2024 05:00 ( Eastern )<br>
<b>Maintenance Window: </b>00:01 - 05:00 Eastern<br>
<b>Location of Maintenance: </b>Ashburn, VA<br>
<b>Reason for Maintenance: </b>Fiber relocation<br>
<b>Expected Impact: </b>Hard Down<br>
<table>
<tr><th>Circuit Id</th><th>Expected Impact</th><th>A Location CLLI</th><th>Z Location CLLI</th></tr>
<tr><td>OGYX/123456//ZYO</td><td>Hard Down - up to 5 hours</td><td>ASBNVACY</td><td>NYCMNYBW</td></tr>
<tr><td>OGYX/654321//ZYO</td><td>Switch Hit</td><td>ASBNVACY</td><td></td></tr>
</table>
</body></html>`

func zayoMessage(subject, body string) *source.Message {
	return &source.Message{
		From:     "MR Zayo <mr@zayo.com>",
		Subject:  subject,
		HTMLBody: body,
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	p := New("US/")

	tests := []struct {
		subject string
		want    provider.Operation
	}{
		{"***Some Customer***ZAYO TTN-0001234567 MAINTENANCE NOTIFICATION***", provider.OpNew},
		{"RESCHEDULE NOTIFICATION***ZAYO TTN-0001234567***", provider.OpReschedule},
		{"START MAINTENANCE NOTIFICATION***ZAYO TTN-0001234567***", provider.OpStart},
		{"COMPLETED MAINTENANCE NOTIFICATION***ZAYO TTN-0001234567***", provider.OpEnd},
		{"END OF WINDOW NOTIFICATION***ZAYO TTN-0001234567***", provider.OpUpdate},
		{"CANCELLED NOTIFICATION***ZAYO TTN-0001234567***", provider.OpCancel},
		{"Re: ZAYO TTN-0001234567 MAINTENANCE NOTIFICATION", provider.OpUpdate},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			op, err := p.Classify(zayoMessage(tt.subject, newBody))
			require.NoError(t, err)
			require.Equal(t, tt.want, op)
		})
	}

	_, err := p.Classify(zayoMessage("Zayo customer survey", newBody))
	require.True(t, provider.IsParsingError(err))
}

func TestExtractNew(t *testing.T) {
	t.Parallel()
	p := New("US/")

	n, err := p.ExtractNew(zayoMessage("***ZAYO TTN-0001234567 MAINTENANCE NOTIFICATION***", newBody))
	require.NoError(t, err)

	require.Equal(t, "TTN-0001234567", n.TicketID)
	require.Equal(t, model.TimeOfDay{Hour: 0, Minute: 1}, n.Start)
	require.Equal(t, model.TimeOfDay{Hour: 5}, n.End)
	require.Equal(t, "US/Eastern", n.Timezone)
	require.Equal(t, "Ashburn, VA", n.Location)
	require.Equal(t, "Fiber relocation", n.Reason)

	require.Len(t, n.Circuits, 2)
	require.Equal(t, "OGYX/123456//ZYO", n.Circuits[0].CircuitID)
	require.Equal(t, "Hard Down - up to 5 hours", n.Circuits[0].Impact)
	require.Equal(t, "ASBNVACY", n.Circuits[0].ASide)
	require.Equal(t, "NYCMNYBW", n.Circuits[0].ZSide)
	require.Empty(t, n.Circuits[1].ZSide)

	want := []time.Time{
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}
	for _, c := range n.Circuits {
		require.Equal(t, want, c.Dates)
	}
}

func TestExtractNew_IANAZoneWithoutPrefix(t *testing.T) {
	t.Parallel()
	p := New("")

	body := `<b>Maintenance Ticket #: </b>TTN-1<br>
<b>1st Activity Date: </b>10-Jan-2024 00:01<br>
<b>Maintenance Window: </b>00:01 - 05:00 EST<br>
<b>Location of Maintenance: </b>Denver, CO<br>
<table><tr><th>Circuit Id</th><th>Expected Impact</th></tr><tr><td>CID-1</td><td>Outage</td></tr></table>`

	n, err := p.ExtractNew(zayoMessage("***ZAYO TTN-1 MAINTENANCE NOTIFICATION***", body))
	require.NoError(t, err)
	require.Equal(t, "America/New_York", n.Timezone)
	require.Empty(t, n.Circuits[0].ASide)
}

func TestExtractNew_OvernightWindowKeepsClosingDay(t *testing.T) {
	t.Parallel()
	p := New("US/")

	jan10 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	jan11 := jan10.AddDate(0, 0, 1)
	jan12 := jan10.AddDate(0, 0, 2)

	tests := map[string]struct {
		activities string
		want       []time.Time
	}{
		"range": {
			activities: `<b>1st Activity Date: </b>10-Jan-2024 22:00 to 11-Jan-2024 04:00 ( Eastern )<br>`,
			want:       []time.Time{jan10, jan11},
		},
		"start day only": {
			activities: `<b>1st Activity Date: </b>10-Jan-2024 22:00<br>`,
			want:       []time.Time{jan10, jan11},
		},
		"two nights": {
			activities: `<b>1st Activity Date: </b>10-Jan-2024 22:00 to 11-Jan-2024 04:00 ( Eastern )<br>
<b>2nd Activity Date: </b>11-Jan-2024 22:00 to 12-Jan-2024 04:00 ( Eastern )<br>`,
			want: []time.Time{jan10, jan11, jan12},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			body := `<b>Maintenance Ticket #: </b>TTN-2<br>
` + tt.activities + `
<b>Maintenance Window: </b>22:00 - 04:00 Eastern<br>
<b>Location of Maintenance: </b>Ashburn, VA<br>
<table><tr><th>Circuit Id</th><th>Expected Impact</th></tr><tr><td>CID-1</td><td>Outage</td></tr></table>`

			n, err := p.ExtractNew(zayoMessage("***ZAYO TTN-2 MAINTENANCE NOTIFICATION***", body))
			require.NoError(t, err)
			require.Equal(t, model.TimeOfDay{Hour: 22}, n.Start)
			require.Equal(t, model.TimeOfDay{Hour: 4}, n.End)
			require.Equal(t, tt.want, n.Circuits[0].Dates)
		})
	}
}

func TestExtractNew_MissingData(t *testing.T) {
	t.Parallel()
	p := New("US/")

	tests := map[string]string{
		"no table": `<b>Maintenance Ticket #: </b>TTN-1<br>
<b>1st Activity Date: </b>10-Jan-2024<br>
<b>Maintenance Window: </b>00:01 - 05:00 Eastern<br>
<b>Location of Maintenance: </b>Ashburn, VA<br>`,
		"no ticket": `<b>1st Activity Date: </b>10-Jan-2024<br>
<b>Maintenance Window: </b>00:01 - 05:00 Eastern<br>
<b>Location of Maintenance: </b>Ashburn, VA<br>
<table><tr><th>Circuit Id</th><th>Expected Impact</th></tr><tr><td>CID-1</td><td>Outage</td></tr></table>`,
		"no dates": `<b>Maintenance Ticket #: </b>TTN-1<br>
<b>Maintenance Window: </b>00:01 - 05:00 Eastern<br>
<b>Location of Maintenance: </b>Ashburn, VA<br>
<table><tr><th>Circuit Id</th><th>Expected Impact</th></tr><tr><td>CID-1</td><td>Outage</td></tr></table>`,
		"bad window": `<b>Maintenance Ticket #: </b>TTN-1<br>
<b>1st Activity Date: </b>10-Jan-2024<br>
<b>Maintenance Window: </b>overnight<br>
<b>Location of Maintenance: </b>Ashburn, VA<br>
<table><tr><th>Circuit Id</th><th>Expected Impact</th></tr><tr><td>CID-1</td><td>Outage</td></tr></table>`,
		"empty body": "",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.ExtractNew(zayoMessage("***ZAYO TTN-1 MAINTENANCE NOTIFICATION***", body))
			require.Error(t, err)
			require.True(t, provider.IsParsingError(err))
		})
	}
}

func TestExtractTransition(t *testing.T) {
	t.Parallel()
	p := New("US/")

	tr, err := p.ExtractTransition(zayoMessage("START MAINTENANCE NOTIFICATION***ZAYO TTN-0001234567***", newBody), provider.OpStart)
	require.NoError(t, err)
	require.Equal(t, "TTN-0001234567", tr.TicketID)
	require.Empty(t, tr.Comment)

	body := `<p>The maintenance window has been extended by two hours.</p>`
	tr, err = p.ExtractTransition(zayoMessage("Re: ZAYO TTN-0007654321 MAINTENANCE NOTIFICATION", body), provider.OpUpdate)
	require.NoError(t, err)
	require.Equal(t, "TTN-0007654321", tr.TicketID)
	require.Equal(t, "The maintenance window has been extended by two hours.", tr.Comment)

	_, err = p.ExtractTransition(zayoMessage("CANCELLED NOTIFICATION", body), provider.OpCancel)
	require.True(t, provider.IsParsingError(err))
}

func TestParse_Reschedule(t *testing.T) {
	t.Parallel()
	p := New("US/")

	ev, err := provider.Parse(p, zayoMessage("RESCHEDULE NOTIFICATION***ZAYO TTN-0001234567***", newBody))
	require.NoError(t, err)
	require.Equal(t, provider.OpReschedule, ev.Op)
	require.Equal(t, "TTN-0001234567", ev.Transition.TicketID)
	require.Equal(t, "TTN-0001234567", ev.Notice.TicketID)
}
