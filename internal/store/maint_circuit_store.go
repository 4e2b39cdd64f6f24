package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/circuit-janitor/internal/model"
)

const maintCircuitColumns = "id, maint_id, circuit_id, impact, date"

// AddMaintCircuit links a circuit to a maintenance on one date. Re-adding an
// existing (maintenance, circuit, date) is a no-op reporting false.
func (s *queries) AddMaintCircuit(ctx context.Context, mc model.MaintCircuit) (bool, error) {
	if mc.ID == "" {
		mc.ID = uuid.New().String()
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO maint_circuits (id, maint_id, circuit_id, impact, date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(maint_id, circuit_id, date) DO NOTHING`,
		mc.ID, mc.MaintID, mc.CircuitID, mc.Impact, mc.Date.Format(model.DateLayout),
	)
	if err != nil {
		return false, fmt.Errorf("linking circuit %s to maintenance %s: %w", mc.CircuitID, mc.MaintID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("linking circuit %s to maintenance %s: %w", mc.CircuitID, mc.MaintID, err)
	}
	return n > 0, nil
}

// GetMaintCircuits lists the circuit/date rows of a maintenance.
func (s *queries) GetMaintCircuits(ctx context.Context, maintID string) ([]model.MaintCircuit, error) {
	return s.selectMaintCircuits(ctx,
		"SELECT "+maintCircuitColumns+" FROM maint_circuits WHERE maint_id = ? ORDER BY date, circuit_id",
		maintID)
}

// GetCircuitMaintCircuits lists every maintenance date of a circuit.
func (s *queries) GetCircuitMaintCircuits(ctx context.Context, circuitID string) ([]model.MaintCircuit, error) {
	return s.selectMaintCircuits(ctx,
		"SELECT "+maintCircuitColumns+" FROM maint_circuits WHERE circuit_id = ? ORDER BY date",
		circuitID)
}

func (s *queries) selectMaintCircuits(ctx context.Context, query string, args ...interface{}) ([]model.MaintCircuit, error) {
	rows, err := s.q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying maintenance circuits: %w", err)
	}
	defer rows.Close()

	var out []model.MaintCircuit
	for rows.Next() {
		var (
			mc   model.MaintCircuit
			date string
		)
		if err := rows.Scan(&mc.ID, &mc.MaintID, &mc.CircuitID, &mc.Impact, &date); err != nil {
			return nil, fmt.Errorf("scanning maintenance circuit row: %w", err)
		}
		if mc.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, fmt.Errorf("maintenance circuit %s date: %w", mc.ID, err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// AddMaintUpdate appends a comment to a maintenance.
func (s *queries) AddMaintUpdate(ctx context.Context, u model.MaintUpdate) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO maint_updates (id, maintenance_id, comment, updated) VALUES (?, ?, ?, ?)",
		u.ID, u.MaintenanceID, u.Comment, u.Updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("adding update to maintenance %s: %w", u.MaintenanceID, err)
	}
	return nil
}

// GetMaintUpdates lists the comments of a maintenance, oldest first.
func (s *queries) GetMaintUpdates(ctx context.Context, maintID string) ([]model.MaintUpdate, error) {
	rows, err := s.q.QueryxContext(ctx,
		"SELECT id, maintenance_id, comment, updated FROM maint_updates WHERE maintenance_id = ? ORDER BY updated, id",
		maintID)
	if err != nil {
		return nil, fmt.Errorf("querying updates of maintenance %s: %w", maintID, err)
	}
	defer rows.Close()

	var updates []model.MaintUpdate
	for rows.Next() {
		var (
			u       model.MaintUpdate
			updated time.Time
		)
		if err := rows.Scan(&u.ID, &u.MaintenanceID, &u.Comment, &updated); err != nil {
			return nil, fmt.Errorf("scanning maintenance update row: %w", err)
		}
		u.Updated = updated.UTC()
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// GetSweepCandidates returns the active, non-cancelled maintenances that
// still have flag unset and touch a date in [from, to], each with all of its
// dates.
func (s *queries) GetSweepCandidates(ctx context.Context, from, to time.Time, flag Flag) ([]SweepCandidate, error) {
	if flag != FlagStarted && flag != FlagEnded {
		return nil, fmt.Errorf("sweeping on flag %q is not supported", flag)
	}

	query := "SELECT " + prefixed("m.", maintenanceColumns) + `, mc.date
		FROM maintenances m
		JOIN maint_circuits mc ON mc.maint_id = m.id
		WHERE m.rescheduled = 0 AND m.cancelled = 0 AND m.` + string(flag) + ` = 0
		  AND m.id IN (SELECT maint_id FROM maint_circuits WHERE date BETWEEN ? AND ?)
		ORDER BY m.id, mc.date`

	rows, err := s.q.QueryxContext(ctx, query,
		from.Format(model.DateLayout), to.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("querying sweep candidates: %w", err)
	}
	defer rows.Close()

	var out []SweepCandidate
	for rows.Next() {
		var (
			date string
			rec  maintenanceScan
		)
		if err := rows.Scan(append(rec.dest(), &date)...); err != nil {
			return nil, fmt.Errorf("scanning sweep candidate row: %w", err)
		}
		m, err := rec.maintenance()
		if err != nil {
			return nil, err
		}
		d, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("maintenance %s date: %w", m.ID, err)
		}

		if n := len(out); n > 0 && out[n-1].Maintenance.ID == m.ID {
			last := &out[n-1]
			if !last.Dates[len(last.Dates)-1].Equal(d) {
				last.Dates = append(last.Dates, d)
			}
			continue
		}
		out = append(out, SweepCandidate{Maintenance: m, Dates: []time.Time{d}})
	}
	return out, rows.Err()
}
