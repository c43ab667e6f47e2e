package partner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// PostgresStore persists partners in PostgreSQL. Pure I/O; uniqueness comes
// from the unique indexes on id and public_key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfKeyAvailable(ctx context.Context, p *Partner) error {
	query := `
		INSERT INTO partners (id, public_key, name, role, contact_info, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID.String(), p.PublicKey.String(), p.Name, p.Role.String(), p.ContactInfo, p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create partner: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PartnerID) (*Partner, error) {
	query := `
		SELECT id, public_key, name, role, contact_info, created_at
		FROM partners
		WHERE id = $1
	`
	return scanPartner(s.db.QueryRowContext(ctx, query, id.String()))
}

func (s *PostgresStore) FindByKey(ctx context.Context, key domain.ActorKey) (*Partner, error) {
	query := `
		SELECT id, public_key, name, role, contact_info, created_at
		FROM partners
		WHERE public_key = $1
	`
	return scanPartner(s.db.QueryRowContext(ctx, query, key.String()))
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []domain.PartnerID) ([]*Partner, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	query := `
		SELECT id, public_key, name, role, contact_info, created_at
		FROM partners
		WHERE id = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find partners: %w", err)
	}
	defer rows.Close()

	out := make([]*Partner, 0, len(ids))
	for rows.Next() {
		p, err := scanPartnerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find partners: %w", err)
	}
	if len(out) != len(ids) {
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Partner, error) {
	query := `
		SELECT id, public_key, name, role, contact_info, created_at
		FROM partners
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	var out []*Partner
	for rows.Next() {
		p, err := scanPartnerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPartner(row *sql.Row) (*Partner, error) {
	p, err := scanPartnerRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

func scanPartnerRow(row rowScanner) (*Partner, error) {
	var p Partner
	var id, key, role string
	if err := row.Scan(&id, &key, &p.Name, &role, &p.ContactInfo, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan partner: %w", err)
	}
	parsedID, err := domain.ParsePartnerID(id)
	if err != nil {
		return nil, fmt.Errorf("scan partner id: %w", err)
	}
	p.ID = parsedID
	p.PublicKey = domain.ActorKey(key)
	p.Role = domain.Role(role)
	return &p, nil
}
