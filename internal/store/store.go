package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/circuit-janitor/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Flag is a one-way lifecycle flag on a maintenance row.
type Flag string

const (
	FlagStarted   Flag = "started"
	FlagEnded     Flag = "ended"
	FlagCancelled Flag = "cancelled"
)

// MaintenanceFilter narrows maintenance listings. Zero values match all.
type MaintenanceFilter struct {
	ProviderID *string
	Ticket     *string
	ActiveOnly bool
	// OnOrAfter keeps maintenances with at least one circuit date on or
	// after the given day.
	OnOrAfter *time.Time
	// ReceivedSince keeps maintenances received at or after the instant.
	ReceivedSince *time.Time
	Limit         int
}

// CircuitFilter narrows circuit listings.
type CircuitFilter struct {
	ProviderID *string
	Limit      int
}

// SweepCandidate is an unfinished, active maintenance with every date it
// touches, ascending.
type SweepCandidate struct {
	Maintenance model.Maintenance
	Dates       []time.Time
}

// Queries is the set of reads and writes available both directly on a Store
// and inside a transaction.
type Queries interface {
	// === Providers ===

	// UpsertProvider returns the existing (name, type) row or inserts p.
	UpsertProvider(ctx context.Context, p model.Provider) (*model.Provider, error)
	GetProviders(ctx context.Context) ([]model.Provider, error)
	GetProviderByName(ctx context.Context, name string) (*model.Provider, error)

	// === Circuits ===

	// UpsertCircuit returns the existing row for c.ProviderCID or inserts c.
	UpsertCircuit(ctx context.Context, c model.Circuit) (*model.Circuit, error)
	GetCircuitByCID(ctx context.Context, cid string) (*model.Circuit, error)
	GetCircuits(ctx context.Context, f CircuitFilter) ([]model.Circuit, error)

	// === Maintenances ===

	CreateMaintenance(ctx context.Context, m *model.Maintenance) error
	GetMaintenanceByID(ctx context.Context, id string) (*model.Maintenance, error)
	// GetActiveMaintenance returns the rescheduled = 0 row of a ticket.
	GetActiveMaintenance(ctx context.Context, providerID, ticket string) (*model.Maintenance, error)
	GetMaintenances(ctx context.Context, f MaintenanceFilter) ([]model.Maintenance, error)
	// SetMaintenanceFlag flips flag on an active row and reports whether the
	// row changed. Setting an already-set flag is a no-op.
	SetMaintenanceFlag(ctx context.Context, id string, flag Flag) (bool, error)
	SupersedeMaintenance(ctx context.Context, id string) error
	LinkReschedule(ctx context.Context, oldID, newID string) error

	// === Maintenance circuits ===

	// AddMaintCircuit inserts the (maintenance, circuit, date) row and
	// reports false if it already existed.
	AddMaintCircuit(ctx context.Context, mc model.MaintCircuit) (bool, error)
	GetMaintCircuits(ctx context.Context, maintID string) ([]model.MaintCircuit, error)
	GetCircuitMaintCircuits(ctx context.Context, circuitID string) ([]model.MaintCircuit, error)

	// === Updates ===

	AddMaintUpdate(ctx context.Context, u model.MaintUpdate) error
	GetMaintUpdates(ctx context.Context, maintID string) ([]model.MaintUpdate, error)

	// === Sweeps ===

	// GetSweepCandidates returns active, non-cancelled maintenances whose
	// flag is unset and that touch a date in [from, to].
	GetSweepCandidates(ctx context.Context, from, to time.Time, flag Flag) ([]SweepCandidate, error)
}

// Store is the persistence contract of the reconciler and the sweeps.
type Store interface {
	Queries

	// InTx runs fn in a single transaction. fn's error rolls it back.
	InTx(ctx context.Context, fn func(q Queries) error) error

	Close() error
}
