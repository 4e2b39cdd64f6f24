package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/circuit-janitor/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func seedProvider(t *testing.T, s *SQLiteStore) *model.Provider {
	t.Helper()
	p, err := s.UpsertProvider(context.Background(), model.Provider{Name: "zayo", Type: model.ProviderTransit})
	require.NoError(t, err)
	return p
}

func seedMaintenance(t *testing.T, s *SQLiteStore, providerID, ticket string) *model.Maintenance {
	t.Helper()
	m := &model.Maintenance{
		ProviderID:      providerID,
		ProviderMaintID: ticket,
		Start:           model.TimeOfDay{Hour: 9},
		End:             model.TimeOfDay{Hour: 11},
		Timezone:        "UTC",
		Location:        "Paris",
		Reason:          "fiber work",
		ReceivedAt:      time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateMaintenance(context.Background(), m))
	return m
}

func TestSQLiteStore_Migrations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, migrations[len(migrations)-1].version, v)

	// Re-running is a no-op.
	require.NoError(t, s.runMigrations())
}

func TestSQLiteStore_UpsertProviderIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertProvider(ctx, model.Provider{Name: "gtt", Type: model.ProviderTransit})
	require.NoError(t, err)
	second, err := s.UpsertProvider(ctx, model.Provider{Name: "gtt", Type: model.ProviderTransit, EmailEsc: "noc@gtt.net"})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "noc@gtt.net", second.EmailEsc)

	providers, err := s.GetProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 1)

	_, err = s.UpsertProvider(ctx, model.Provider{Name: "bad", Type: "satellite"})
	require.Error(t, err)
}

func TestSQLiteStore_UpsertCircuitByProviderCID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)

	c1, err := s.UpsertCircuit(ctx, model.Circuit{ProviderCID: "CID-1", ASide: "PAR1", ProviderID: p.ID})
	require.NoError(t, err)
	c2, err := s.UpsertCircuit(ctx, model.Circuit{ProviderCID: "CID-1", ASide: "other", ProviderID: p.ID})
	require.NoError(t, err)

	require.Equal(t, c1.ID, c2.ID)
	require.Equal(t, "PAR1", c2.ASide)

	_, err = s.GetCircuitByCID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_OneActiveRowPerTicket(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)

	seedMaintenance(t, s, p.ID, "TTN-1")

	dup := &model.Maintenance{
		ProviderID: p.ID, ProviderMaintID: "TTN-1",
		ReceivedAt: time.Now(),
	}
	require.Error(t, s.CreateMaintenance(ctx, dup), "partial unique index must reject a second active row")
}

func TestSQLiteStore_SupersedeAndLink(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)
	old := seedMaintenance(t, s, p.ID, "TTN-2")

	var newID string
	err := s.InTx(ctx, func(q Queries) error {
		if err := q.SupersedeMaintenance(ctx, old.ID); err != nil {
			return err
		}
		m := &model.Maintenance{ProviderID: p.ID, ProviderMaintID: "TTN-2", ReceivedAt: time.Now()}
		if err := q.CreateMaintenance(ctx, m); err != nil {
			return err
		}
		newID = m.ID
		return q.LinkReschedule(ctx, old.ID, m.ID)
	})
	require.NoError(t, err)

	active, err := s.GetActiveMaintenance(ctx, p.ID, "TTN-2")
	require.NoError(t, err)
	require.Equal(t, newID, active.ID)

	prev, err := s.GetMaintenanceByID(ctx, old.ID)
	require.NoError(t, err)
	require.True(t, prev.Rescheduled)
	require.Equal(t, newID, prev.RescheduledID)
}

func TestSQLiteStore_InTxRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q Queries) error {
		m := &model.Maintenance{ProviderID: p.ID, ProviderMaintID: "TTN-3", ReceivedAt: time.Now()}
		if err := q.CreateMaintenance(ctx, m); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetActiveMaintenance(ctx, p.ID, "TTN-3")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SetMaintenanceFlag(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)
	m := seedMaintenance(t, s, p.ID, "TTN-4")

	changed, err := s.SetMaintenanceFlag(ctx, m.ID, FlagStarted)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.SetMaintenanceFlag(ctx, m.ID, FlagStarted)
	require.NoError(t, err)
	require.False(t, changed)

	got, err := s.GetMaintenanceByID(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, got.Started)
	require.False(t, got.Ended)
	require.Equal(t, model.TimeOfDay{Hour: 9}, got.Start)
	require.Equal(t, "started", got.Status())

	_, err = s.SetMaintenanceFlag(ctx, m.ID, Flag("rescheduled"))
	require.Error(t, err)
}

func TestSQLiteStore_MaintCircuitsAreDeduplicated(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)
	m := seedMaintenance(t, s, p.ID, "TTN-5")
	c, err := s.UpsertCircuit(ctx, model.Circuit{ProviderCID: "CID-5", ProviderID: p.ID})
	require.NoError(t, err)

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	added, err := s.AddMaintCircuit(ctx, model.MaintCircuit{MaintID: m.ID, CircuitID: c.ID, Impact: "outage", Date: day})
	require.NoError(t, err)
	require.True(t, added)

	added, err = s.AddMaintCircuit(ctx, model.MaintCircuit{MaintID: m.ID, CircuitID: c.ID, Impact: "outage", Date: day})
	require.NoError(t, err)
	require.False(t, added)

	rows, err := s.GetMaintCircuits(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Date.Equal(day))

	byCircuit, err := s.GetCircuitMaintCircuits(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, byCircuit, 1)
}

func TestSQLiteStore_MaintUpdatesOrdered(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)
	m := seedMaintenance(t, s, p.ID, "TTN-6")

	base := time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddMaintUpdate(ctx, model.MaintUpdate{MaintenanceID: m.ID, Comment: "second", Updated: base.Add(time.Hour)}))
	require.NoError(t, s.AddMaintUpdate(ctx, model.MaintUpdate{MaintenanceID: m.ID, Comment: "first", Updated: base}))

	updates, err := s.GetMaintUpdates(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.Equal(t, "first", updates[0].Comment)
	require.Equal(t, "second", updates[1].Comment)
}

func TestSQLiteStore_GetSweepCandidates(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)

	c, err := s.UpsertCircuit(ctx, model.Circuit{ProviderCID: "CID-7", ProviderID: p.ID})
	require.NoError(t, err)

	d10 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	d11 := d10.AddDate(0, 0, 1)
	d20 := d10.AddDate(0, 0, 10)

	near := seedMaintenance(t, s, p.ID, "NEAR")
	far := seedMaintenance(t, s, p.ID, "FAR")
	cancelled := seedMaintenance(t, s, p.ID, "CANCELLED")

	for _, mc := range []model.MaintCircuit{
		{MaintID: near.ID, CircuitID: c.ID, Date: d10},
		{MaintID: near.ID, CircuitID: c.ID, Date: d11},
		{MaintID: near.ID, CircuitID: c.ID, Date: d20},
		{MaintID: far.ID, CircuitID: c.ID, Date: d20},
		{MaintID: cancelled.ID, CircuitID: c.ID, Date: d10},
	} {
		_, err := s.AddMaintCircuit(ctx, mc)
		require.NoError(t, err)
	}
	_, err = s.SetMaintenanceFlag(ctx, cancelled.ID, FlagCancelled)
	require.NoError(t, err)

	got, err := s.GetSweepCandidates(ctx, d10.AddDate(0, 0, -1), d11, FlagEnded)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, near.ID, got[0].Maintenance.ID)
	require.Len(t, got[0].Dates, 3, "all dates of the maintenance are returned")
	require.True(t, got[0].Dates[2].Equal(d20))

	_, err = s.SetMaintenanceFlag(ctx, near.ID, FlagEnded)
	require.NoError(t, err)
	got, err = s.GetSweepCandidates(ctx, d10.AddDate(0, 0, -1), d11, FlagEnded)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSQLiteStore_GetMaintenancesFilters(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProvider(t, s)

	c, err := s.UpsertCircuit(ctx, model.Circuit{ProviderCID: "CID-8", ProviderID: p.ID})
	require.NoError(t, err)
	m := seedMaintenance(t, s, p.ID, "UPCOMING")
	seedMaintenance(t, s, p.ID, "PAST")

	_, err = s.AddMaintCircuit(ctx, model.MaintCircuit{MaintID: m.ID, CircuitID: c.ID, Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	after := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	got, err := s.GetMaintenances(ctx, MaintenanceFilter{OnOrAfter: &after})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "UPCOMING", got[0].ProviderMaintID)

	all, err := s.GetMaintenances(ctx, MaintenanceFilter{ProviderID: &p.ID, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
