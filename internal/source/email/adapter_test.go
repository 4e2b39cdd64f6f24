package email

import (
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/require"
)

func TestPlanOutcome_FailureCopiedOnce(t *testing.T) {
	t.Parallel()
	cfg := Config{ProcessedMailbox: "processed", FailuresMailbox: "failures"}

	first := planOutcome(cfg, false, false)
	require.Equal(t, "failures", first.copyTo)
	require.Len(t, first.flags, 1)
	require.Equal(t, imap.StoreFlagsDel, first.flags[0].Op)
	require.Equal(t, []imap.Flag{imap.FlagSeen}, first.flags[0].Flags)
	require.Len(t, first.afterCopy, 1)
	require.Equal(t, imap.StoreFlagsAdd, first.afterCopy[0].Op)
	require.Equal(t, []imap.Flag{FlagFailed}, first.afterCopy[0].Flags)

	// Every later cycle that fails the same message only clears \Seen.
	retry := planOutcome(cfg, false, true)
	require.Empty(t, retry.copyTo)
	require.Empty(t, retry.afterCopy)
	require.Len(t, retry.flags, 1)
	require.Equal(t, []imap.Flag{imap.FlagSeen}, retry.flags[0].Flags)
}

func TestPlanOutcome_Success(t *testing.T) {
	t.Parallel()
	cfg := Config{ProcessedMailbox: "processed", FailuresMailbox: "failures"}

	plan := planOutcome(cfg, true, false)
	require.Equal(t, "processed", plan.copyTo)
	require.Len(t, plan.flags, 1)
	require.Equal(t, imap.StoreFlagsAdd, plan.flags[0].Op)
	require.Equal(t, []imap.Flag{imap.FlagSeen}, plan.flags[0].Flags)

	// A message that failed before loses its failure mark.
	plan = planOutcome(cfg, true, true)
	require.Len(t, plan.flags, 2)
	require.Equal(t, imap.StoreFlagsDel, plan.flags[1].Op)
	require.Equal(t, []imap.Flag{FlagFailed}, plan.flags[1].Flags)
}

func TestPlanOutcome_NoMailboxes(t *testing.T) {
	t.Parallel()

	require.Empty(t, planOutcome(Config{}, true, false).copyTo)
	plan := planOutcome(Config{}, false, false)
	require.Empty(t, plan.copyTo)
	require.Empty(t, plan.afterCopy)
}

func TestHasFlag(t *testing.T) {
	t.Parallel()

	require.True(t, hasFlag([]imap.Flag{imap.FlagSeen, "$janitorfailed"}, FlagFailed))
	require.False(t, hasFlag([]imap.Flag{imap.FlagSeen}, FlagFailed))
	require.False(t, hasFlag(nil, FlagFailed))
}
