package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoldLabels(t *testing.T) {
	t.Parallel()

	doc, err := ParseHTML(`<p><b>Ticket:</b> T-1<br><strong>Window:</strong>&nbsp;01:00 <i>-</i> 02:00<br><b>Empty</b><b>Next:</b> x</p>`)
	require.NoError(t, err)

	require.Equal(t, []Labeled{
		{Label: "Ticket:", Value: "T-1"},
		{Label: "Window:", Value: "01:00 - 02:00"},
		{Label: "Empty", Value: ""},
		{Label: "Next:", Value: "x"},
	}, doc.BoldLabels())
}

func TestTablesAndText(t *testing.T) {
	t.Parallel()

	doc, err := ParseHTML(`<html><head><style>p{}</style></head><body>
<div>Hello</div>
<table><tr><th>Circuit Id</th><th>Impact</th></tr><tr><td> C-1 </td><td>Down</td></tr></table>
<pre>Start: now</pre>
</body></html>`)
	require.NoError(t, err)

	require.Equal(t, [][][]string{{{"Circuit Id", "Impact"}, {"C-1", "Down"}}}, doc.Tables())

	pre, ok := doc.Pre()
	require.True(t, ok)
	require.Equal(t, "Start: now", pre)

	text := doc.Text()
	require.Contains(t, text, "Hello")
	require.Contains(t, text, "Start: now")
	require.NotContains(t, text, "p{}")
}

func TestField(t *testing.T) {
	t.Parallel()
	body := "Start: 1\r\n  start: 2\nRestart: 3\nService ID: A\nService ID:   B  \n"

	v, ok := Field(body, "Start:")
	require.True(t, ok)
	require.Equal(t, "1", v)
	require.Equal(t, []string{"1", "2"}, Fields(body, "start:"))
	require.Equal(t, []string{"A", "B"}, Fields(body, "Service ID:"))

	_, ok = Field(body, "End:")
	require.False(t, ok)
}

func TestCleanLine(t *testing.T) {
	t.Parallel()
	require.Equal(t, "a b c", CleanLine(" a  b\r\n c "))
}

func TestDaysBetween(t *testing.T) {
	t.Parallel()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start := time.Date(2024, 1, 10, 22, 0, 0, 0, ny)
	end := time.Date(2024, 1, 11, 7, 0, 0, 0, time.UTC) // 02:00 in New York
	require.Equal(t, []time.Time{
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}, DaysBetween(start, end))

	single := DaysBetween(start, start.Add(-time.Hour))
	require.Len(t, single, 1)
}

func TestParseZoned(t *testing.T) {
	t.Parallel()

	got, zone, err := ParseZoned("2024-Jan-10 22:00 UTC", "2006-Jan-02 15:04")
	require.NoError(t, err)
	require.Equal(t, "UTC", zone)
	require.True(t, got.Equal(time.Date(2024, 1, 10, 22, 0, 0, 0, time.UTC)))

	got, zone, err = ParseZoned("2024-01-10 09:00 (EST)", "2006-01-02 15:04")
	require.NoError(t, err)
	require.Equal(t, "America/New_York", zone)
	require.True(t, got.Equal(time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)))

	got, zone, err = ParseZoned("2024-07-01 09:00 Europe/Stockholm")
	require.NoError(t, err)
	require.Equal(t, "Europe/Stockholm", zone)
	require.True(t, got.Equal(time.Date(2024, 7, 1, 7, 0, 0, 0, time.UTC)))

	_, _, err = ParseZoned("2024-01-10 09:00")
	require.Error(t, err)

	_, _, err = ParseZoned("2024-01-10 09:00 Nowhere")
	require.Error(t, err)
}
