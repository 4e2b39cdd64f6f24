package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/circuit-janitor/internal/model"
)

const providerColumns = "id, name, type, email_esc"

// UpsertProvider returns the existing row for (name, type), refreshing its
// escalation contact, or inserts p.
func (s *queries) UpsertProvider(ctx context.Context, p model.Provider) (*model.Provider, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("provider %s: invalid type %q", p.Name, p.Type)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO providers (id, name, type, email_esc)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name, type) DO UPDATE SET email_esc = excluded.email_esc`,
		p.ID, p.Name, string(p.Type), p.EmailEsc,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting provider %s: %w", p.Name, err)
	}

	row := s.q.QueryRowxContext(ctx,
		"SELECT "+providerColumns+" FROM providers WHERE name = ? AND type = ?",
		p.Name, string(p.Type),
	)
	out, err := scanProvider(row)
	if err != nil {
		return nil, fmt.Errorf("reading provider %s: %w", p.Name, err)
	}
	return &out, nil
}

// GetProviders lists providers ordered by name.
func (s *queries) GetProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := s.q.QueryxContext(ctx, "SELECT "+providerColumns+" FROM providers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// GetProviderByName returns the first provider with the given name.
func (s *queries) GetProviderByName(ctx context.Context, name string) (*model.Provider, error) {
	row := s.q.QueryRowxContext(ctx,
		"SELECT "+providerColumns+" FROM providers WHERE name = ? ORDER BY type LIMIT 1", name)
	p, err := scanProvider(row)
	if err != nil {
		return nil, fmt.Errorf("getting provider %s: %w", name, notFound(err))
	}
	return &p, nil
}

func scanProvider(row scanner) (model.Provider, error) {
	var (
		p   model.Provider
		typ string
	)
	if err := row.Scan(&p.ID, &p.Name, &typ, &p.EmailEsc); err != nil {
		return model.Provider{}, fmt.Errorf("scanning provider row: %w", err)
	}
	p.Type = model.ProviderType(typ)
	return p, nil
}

// notFound maps sql.ErrNoRows to ErrNotFound, keeping the chain.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
