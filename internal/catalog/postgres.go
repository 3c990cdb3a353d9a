package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads the catalog from the garments table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const garmentColumns = `id, name, description, image_url, price, esg_claims`

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Garment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+garmentColumns+` FROM garments WHERE id = $1`, id)

	g, err := scanGarment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get garment %q: %w", id, err)
	}
	return g, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]*Garment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+garmentColumns+` FROM garments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list garments: %w", err)
	}
	defer rows.Close()

	var out []*Garment
	for rows.Next() {
		g, err := scanGarment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan garment: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces a garment. Used by seeding and tests.
func (s *PostgresStore) Upsert(ctx context.Context, g *Garment) error {
	if err := Validate(g); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO garments (`+garmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   description = EXCLUDED.description,
		   image_url = EXCLUDED.image_url,
		   price = EXCLUDED.price,
		   esg_claims = EXCLUDED.esg_claims`,
		g.ID, g.Name, g.Description, g.Image, g.Price, g.ESGClaims,
	)
	if err != nil {
		return fmt.Errorf("upsert garment %q: %w", g.ID, err)
	}
	return nil
}

func scanGarment(row pgx.Row) (*Garment, error) {
	g := &Garment{}
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Image, &g.Price, &g.ESGClaims); err != nil {
		return nil, err
	}
	if g.ESGClaims == nil {
		g.ESGClaims = []string{}
	}
	return g, nil
}
