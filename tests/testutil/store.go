package testutil

import (
	"context"
	"testing"

	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// CountActive returns how many active rows the ticket has.
func CountActive(t *testing.T, s store.Store, providerID, ticket string) int {
	t.Helper()

	rows, err := s.GetMaintenances(context.Background(), store.MaintenanceFilter{
		ProviderID: &providerID,
		Ticket:     &ticket,
		ActiveOnly: true,
	})
	if err != nil {
		t.Fatalf("listing maintenances: %v", err)
	}
	return len(rows)
}

// Lineage returns every row of a ticket, active or not.
func Lineage(t *testing.T, s store.Store, providerID, ticket string) []model.Maintenance {
	t.Helper()

	rows, err := s.GetMaintenances(context.Background(), store.MaintenanceFilter{
		ProviderID: &providerID,
		Ticket:     &ticket,
	})
	if err != nil {
		t.Fatalf("listing maintenances: %v", err)
	}
	return rows
}
