package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/provider/standard"
	"github.com/nhle/circuit-janitor/internal/reconcile"
	"github.com/nhle/circuit-janitor/internal/source"
	"github.com/nhle/circuit-janitor/tests/testutil"
)

type call struct {
	provider string
	subject  string
}

// fakeApplier fails every message whose subject is in fail.
type fakeApplier struct {
	mu    gosync.Mutex
	calls []call
	fail  map[string]error
}

func (a *fakeApplier) Apply(_ context.Context, p provider.Provider, msg *source.Message) (reconcile.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call{provider: p.Name(), subject: msg.Subject})
	if err := a.fail[msg.Subject]; err != nil {
		return "", err
	}
	return reconcile.ResultCreated, nil
}

func (a *fakeApplier) Calls() []call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]call(nil), a.calls...)
}

type countingSweeper struct {
	runs chan struct{}
	err  error
}

func (s *countingSweeper) Run(context.Context) error {
	if s.runs != nil {
		s.runs <- struct{}{}
	}
	return s.err
}

func registry(t *testing.T) *provider.Registry {
	t.Helper()
	reg, err := provider.NewRegistry(standard.NTT(), standard.PacketFabric())
	require.NoError(t, err)
	return reg
}

func msg(from, subject string) *source.Message {
	return &source.Message{From: from, Subject: subject}
}

func TestCycle_AppliesMessagesInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mb := testutil.NewMailbox(
		msg("support@packetfabric.com", "pf-1"),
		msg("NTT Communications <noc@ntt.net>", "ntt-1"),
		msg("support@packetfabric.com", "pf-2"),
		msg("someone@example.com", "unrelated"),
	)
	applier := &fakeApplier{}
	sweeper := &countingSweeper{runs: make(chan struct{}, 1)}
	p := New(&testutil.Opener{Mailbox: mb}, registry(t), applier, sweeper,
		clockwork.NewFakeClock(), Config{}, testutil.Discard)

	require.NoError(t, p.Cycle(ctx))

	require.Equal(t, []call{
		{"ntt", "ntt-1"},
		{"packetfabric", "pf-1"},
		{"packetfabric", "pf-2"},
	}, applier.Calls())
	require.Len(t, sweeper.runs, 1)
	require.Equal(t, []bool{true}, mb.Outcomes(1))
	require.Empty(t, mb.Outcomes(4))
	require.True(t, mb.Closed())

	statuses := p.Statuses()
	require.Len(t, statuses, 2)
	require.Equal(t, "ntt", statuses[0].Provider)
	require.Equal(t, 1, statuses[0].Processed)
	require.Equal(t, 2, statuses[1].Processed)
	require.Equal(t, PassIdle, statuses[1].State)
}

func TestCycle_FailedMessagesAreRetried(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mb := testutil.NewMailbox(
		msg("support@packetfabric.com", "broken"),
		msg("support@packetfabric.com", "fine"),
	)
	applier := &fakeApplier{fail: map[string]error{
		"broken": provider.Missing("packetfabric", "calendar"),
	}}
	p := New(&testutil.Opener{Mailbox: mb}, registry(t), applier, nil,
		clockwork.NewFakeClock(), Config{}, testutil.Discard)

	require.NoError(t, p.Cycle(ctx))
	require.NoError(t, p.Cycle(ctx))

	// The failure does not stop the pass, and is selected again next cycle.
	require.Equal(t, []bool{false, false}, mb.Outcomes(1))
	require.Equal(t, []bool{true}, mb.Outcomes(2))

	for _, s := range p.Statuses() {
		if s.Provider == "packetfabric" {
			require.Equal(t, 1, s.Failed)
			require.Zero(t, s.Processed)
		}
	}
}

func TestCycle_OpenFailureStillSweeps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	opener := &testutil.Opener{Err: &source.AuthError{Server: "imap.example.com:993", Message: "bad password"}}
	sweeper := &countingSweeper{runs: make(chan struct{}, 1)}
	p := New(opener, registry(t), &fakeApplier{}, sweeper,
		clockwork.NewFakeClock(), Config{Concurrent: true, MaxConcurrent: 1}, testutil.Discard)

	err := p.Cycle(ctx)
	require.Error(t, err)
	require.True(t, source.IsAuthError(err))
	require.Equal(t, 2, opener.Opens())
	require.Len(t, sweeper.runs, 1)

	for _, s := range p.Statuses() {
		require.Equal(t, PassError, s.State)
	}
}

func TestCycle_SweepErrorIsReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := New(&testutil.Opener{Mailbox: testutil.NewMailbox()}, registry(t), &fakeApplier{},
		&countingSweeper{err: boom}, clockwork.NewFakeClock(), Config{}, testutil.Discard)

	require.ErrorIs(t, p.Cycle(context.Background()), boom)
}

func TestCycle_ConcurrentPasses(t *testing.T) {
	t.Parallel()

	mb := testutil.NewMailbox(
		msg("support@packetfabric.com", "pf-1"),
		msg("NTT Communications <noc@ntt.net>", "ntt-1"),
	)
	applier := &fakeApplier{}
	p := New(&testutil.Opener{Mailbox: mb}, registry(t), applier, nil,
		clockwork.NewFakeClock(), Config{Concurrent: true}, testutil.Discard)

	require.NoError(t, p.Cycle(context.Background()))
	require.ElementsMatch(t, []call{{"ntt", "ntt-1"}, {"packetfabric", "pf-1"}}, applier.Calls())
}

func TestRun_TicksAndTriggers(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	sweeper := &countingSweeper{runs: make(chan struct{})}
	p := New(&testutil.Opener{Mailbox: testutil.NewMailbox()}, registry(t), &fakeApplier{}, sweeper,
		clock, Config{Interval: time.Minute}, testutil.Discard)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	wait := func() {
		t.Helper()
		select {
		case <-sweeper.runs:
		case <-time.After(5 * time.Second):
			t.Fatal("cycle did not run")
		}
	}

	wait() // immediate cycle
	clock.Advance(time.Minute)
	wait()
	p.Trigger()
	wait()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestPass_WithReconciler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := testutil.NewTestStore(t)
	rec := reconcile.New(s, nil, testutil.Discard)
	const from = "PacketFabric <support@packetfabric.com>"
	mb := testutil.NewMailbox(
		testutil.CalendarMessage(from,
			"X-MAINTNOTE-STATUS:CONFIRMED",
			"X-MAINTNOTE-MAINTENANCE-ID:PF-1",
			"X-MAINTNOTE-IMPACT:OUTAGE",
			"X-MAINTNOTE-OBJECT-ID:PF-CID-1",
			"DTSTART:20240110T090000Z",
			"DTEND:20240110T110000Z",
		),
		testutil.CalendarMessage(from,
			"X-MAINTNOTE-STATUS:COMPLETED",
			"X-MAINTNOTE-MAINTENANCE-ID:PF-404",
		),
	)
	p := New(&testutil.Opener{Mailbox: mb}, registry(t), rec, nil,
		clockwork.NewFakeClock(), Config{}, testutil.Discard)

	pf, ok := registry(t).Get("packetfabric")
	require.True(t, ok)
	require.NoError(t, p.Pass(ctx, pf))

	require.Equal(t, []bool{true}, mb.Outcomes(1))
	// END for an unknown ticket is reported as failed.
	require.Equal(t, []bool{false}, mb.Outcomes(2))

	prov, err := s.GetProviderByName(ctx, "packetfabric")
	require.NoError(t, err)
	require.Equal(t, 1, testutil.CountActive(t, s, prov.ID, "PF-1"))
}
