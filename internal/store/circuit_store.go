package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nhle/circuit-janitor/internal/model"
)

const circuitColumns = "id, provider_cid, a_side, z_side, provider_id"

// UpsertCircuit returns the existing row for c.ProviderCID or inserts c.
// An existing circuit is returned unchanged even when c names another
// provider: provider_cid is the identity.
func (s *queries) UpsertCircuit(ctx context.Context, c model.Circuit) (*model.Circuit, error) {
	if strings.TrimSpace(c.ProviderCID) == "" {
		return nil, fmt.Errorf("circuit id must not be empty")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO circuits (id, provider_cid, a_side, z_side, provider_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider_cid) DO NOTHING`,
		c.ID, c.ProviderCID, c.ASide, c.ZSide, c.ProviderID,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting circuit %s: %w", c.ProviderCID, err)
	}

	return s.GetCircuitByCID(ctx, c.ProviderCID)
}

// GetCircuitByCID looks a circuit up by its provider circuit id.
func (s *queries) GetCircuitByCID(ctx context.Context, cid string) (*model.Circuit, error) {
	row := s.q.QueryRowxContext(ctx,
		"SELECT "+circuitColumns+" FROM circuits WHERE provider_cid = ?", cid)
	c, err := scanCircuit(row)
	if err != nil {
		return nil, fmt.Errorf("getting circuit %s: %w", cid, notFound(err))
	}
	return &c, nil
}

// GetCircuits lists circuits ordered by provider circuit id.
func (s *queries) GetCircuits(ctx context.Context, f CircuitFilter) ([]model.Circuit, error) {
	var conditions []string
	var args []interface{}

	if f.ProviderID != nil {
		conditions = append(conditions, "provider_id = ?")
		args = append(args, *f.ProviderID)
	}

	query := "SELECT " + circuitColumns + " FROM circuits"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY provider_cid"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying circuits: %w", err)
	}
	defer rows.Close()

	var circuits []model.Circuit
	for rows.Next() {
		c, err := scanCircuit(rows)
		if err != nil {
			return nil, err
		}
		circuits = append(circuits, c)
	}
	return circuits, rows.Err()
}

func scanCircuit(row scanner) (model.Circuit, error) {
	var c model.Circuit
	if err := row.Scan(&c.ID, &c.ProviderCID, &c.ASide, &c.ZSide, &c.ProviderID); err != nil {
		return model.Circuit{}, fmt.Errorf("scanning circuit row: %w", err)
	}
	return c, nil
}
