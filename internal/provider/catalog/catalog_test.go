package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/source"
)

func TestRegistry_AllByDefault(t *testing.T) {
	t.Parallel()

	reg, err := Registry(model.ProvidersConfig{})
	require.NoError(t, err)
	require.Equal(t, []string{"eunetworks", "gtt", "ntt", "packetfabric", "telia", "zayo"}, reg.Names())
}

func TestRegistry_Enabled(t *testing.T) {
	t.Parallel()

	reg, err := Registry(model.ProvidersConfig{Enabled: []string{"Zayo", " gtt "}})
	require.NoError(t, err)
	require.Equal(t, []string{"gtt", "zayo"}, reg.Names())

	_, err = Registry(model.ProvidersConfig{Enabled: []string{"zayo", "zayo"}})
	require.Error(t, err)

	_, err = Registry(model.ProvidersConfig{Enabled: []string{"level3"}})
	require.ErrorContains(t, err, "level3")
}

func TestMatchesAreDisjoint(t *testing.T) {
	t.Parallel()

	msgs := []*source.Message{
		{From: "NTT Communications <noc@ntt.net>", Subject: "Maintenance"},
		{From: "support@packetfabric.com", Subject: "Maintenance"},
		{From: "noc@eunetworks.com", Subject: "euNetworks planned works"},
		{From: "MR Zayo <mr@zayo.com>", Subject: "***ZAYO TTN-1 MAINTENANCE NOTIFICATION***"},
		{From: "ChangeManagement@gtt.net", Subject: "GTT Work Announcement TT#(1)"},
		{From: "ncm@teliacompany.com", Subject: "Planned Work"},
	}
	for _, msg := range msgs {
		matched := 0
		for _, p := range All(model.ProvidersConfig{}) {
			if p.Match().Matches(msg) {
				matched++
			}
		}
		require.Equal(t, 1, matched, msg.From)
	}
}
