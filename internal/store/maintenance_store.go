package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/circuit-janitor/internal/model"
)

const maintenanceColumns = `id, provider_id, provider_maintenance_id, start_time, end_time,
	timezone, location, reason, received_dt,
	started, ended, cancelled, rescheduled, rescheduled_id`

// CreateMaintenance inserts m as a new active row, assigning m.ID if empty.
func (s *queries) CreateMaintenance(ctx context.Context, m *model.Maintenance) error {
	if strings.TrimSpace(m.ProviderMaintID) == "" {
		return fmt.Errorf("maintenance ticket id must not be empty")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timezone == "" {
		m.Timezone = "UTC"
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO maintenances (
			id, provider_id, provider_maintenance_id, start_time, end_time,
			timezone, location, reason, received_dt,
			started, ended, cancelled, rescheduled, rescheduled_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProviderID, m.ProviderMaintID, m.Start.String(), m.End.String(),
		m.Timezone, m.Location, m.Reason, m.ReceivedAt.UTC(),
		boolToInt(m.Started), boolToInt(m.Ended), boolToInt(m.Cancelled),
		boolToInt(m.Rescheduled), nullString(m.RescheduledID),
	)
	if err != nil {
		return fmt.Errorf("creating maintenance %s: %w", m.ProviderMaintID, err)
	}
	return nil
}

// GetMaintenanceByID retrieves a single maintenance row.
func (s *queries) GetMaintenanceByID(ctx context.Context, id string) (*model.Maintenance, error) {
	row := s.q.QueryRowxContext(ctx,
		"SELECT "+maintenanceColumns+" FROM maintenances WHERE id = ?", id)
	m, err := scanMaintenance(row)
	if err != nil {
		return nil, fmt.Errorf("getting maintenance %s: %w", id, notFound(err))
	}
	return &m, nil
}

// GetActiveMaintenance returns the active row of a provider ticket.
func (s *queries) GetActiveMaintenance(ctx context.Context, providerID, ticket string) (*model.Maintenance, error) {
	row := s.q.QueryRowxContext(ctx,
		"SELECT "+maintenanceColumns+` FROM maintenances
		WHERE provider_id = ? AND provider_maintenance_id = ? AND rescheduled = 0`,
		providerID, ticket,
	)
	m, err := scanMaintenance(row)
	if err != nil {
		return nil, fmt.Errorf("getting active maintenance %s: %w", ticket, notFound(err))
	}
	return &m, nil
}

// GetMaintenances lists maintenances, newest received first.
func (s *queries) GetMaintenances(ctx context.Context, f MaintenanceFilter) ([]model.Maintenance, error) {
	var conditions []string
	var args []interface{}

	if f.ProviderID != nil {
		conditions = append(conditions, "provider_id = ?")
		args = append(args, *f.ProviderID)
	}
	if f.Ticket != nil {
		conditions = append(conditions, "provider_maintenance_id = ?")
		args = append(args, *f.Ticket)
	}
	if f.ActiveOnly {
		conditions = append(conditions, "rescheduled = 0")
	}
	if f.OnOrAfter != nil {
		conditions = append(conditions,
			"id IN (SELECT maint_id FROM maint_circuits WHERE date >= ?)")
		args = append(args, f.OnOrAfter.Format(model.DateLayout))
	}
	if f.ReceivedSince != nil {
		conditions = append(conditions, "received_dt >= ?")
		args = append(args, f.ReceivedSince.UTC())
	}

	query := "SELECT " + maintenanceColumns + " FROM maintenances"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_dt DESC, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying maintenances: %w", err)
	}
	defer rows.Close()

	var maintenances []model.Maintenance
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		maintenances = append(maintenances, m)
	}
	return maintenances, rows.Err()
}

// SetMaintenanceFlag sets flag on the active row id. It reports false when
// the flag was already set or the row is not active.
func (s *queries) SetMaintenanceFlag(ctx context.Context, id string, flag Flag) (bool, error) {
	var column string
	switch flag {
	case FlagStarted, FlagEnded, FlagCancelled:
		column = string(flag)
	default:
		return false, fmt.Errorf("unknown maintenance flag %q", flag)
	}

	result, err := s.q.ExecContext(ctx, fmt.Sprintf(
		"UPDATE maintenances SET %[1]s = 1 WHERE id = ? AND %[1]s = 0 AND rescheduled = 0", column,
	), id)
	if err != nil {
		return false, fmt.Errorf("setting %s on maintenance %s: %w", column, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting %s on maintenance %s: %w", column, id, err)
	}
	return n > 0, nil
}

// SupersedeMaintenance marks the active row id as rescheduled, freeing its
// ticket for a new active row.
func (s *queries) SupersedeMaintenance(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE maintenances SET rescheduled = 1 WHERE id = ? AND rescheduled = 0", id)
	if err != nil {
		return fmt.Errorf("superseding maintenance %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("superseding maintenance %s: %w", id, ErrNotFound)
	}
	return nil
}

// LinkReschedule points a superseded row at its successor.
func (s *queries) LinkReschedule(ctx context.Context, oldID, newID string) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE maintenances SET rescheduled_id = ? WHERE id = ? AND rescheduled = 1", newID, oldID)
	if err != nil {
		return fmt.Errorf("linking maintenance %s to %s: %w", oldID, newID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("linking maintenance %s: %w", oldID, ErrNotFound)
	}
	return nil
}

// maintenanceScan holds the raw column values of a maintenance row.
type maintenanceScan struct {
	m             model.Maintenance
	start, end    string
	receivedAt    time.Time
	started       int
	ended         int
	cancelled     int
	rescheduled   int
	rescheduledID sql.NullString
}

func (r *maintenanceScan) dest() []any {
	return []any{
		&r.m.ID, &r.m.ProviderID, &r.m.ProviderMaintID, &r.start, &r.end,
		&r.m.Timezone, &r.m.Location, &r.m.Reason, &r.receivedAt,
		&r.started, &r.ended, &r.cancelled, &r.rescheduled, &r.rescheduledID,
	}
}

func (r *maintenanceScan) maintenance() (model.Maintenance, error) {
	m := r.m
	var err error
	if m.Start, err = model.ParseTimeOfDay(r.start); err != nil {
		return model.Maintenance{}, fmt.Errorf("maintenance %s start: %w", m.ID, err)
	}
	if m.End, err = model.ParseTimeOfDay(r.end); err != nil {
		return model.Maintenance{}, fmt.Errorf("maintenance %s end: %w", m.ID, err)
	}
	m.ReceivedAt = r.receivedAt.UTC()
	m.Started = r.started != 0
	m.Ended = r.ended != 0
	m.Cancelled = r.cancelled != 0
	m.Rescheduled = r.rescheduled != 0
	m.RescheduledID = r.rescheduledID.String
	return m, nil
}

func scanMaintenance(row scanner) (model.Maintenance, error) {
	var rec maintenanceScan
	if err := row.Scan(rec.dest()...); err != nil {
		return model.Maintenance{}, fmt.Errorf("scanning maintenance row: %w", err)
	}
	return rec.maintenance()
}

// prefixed qualifies every column of a comma-separated list.
func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
