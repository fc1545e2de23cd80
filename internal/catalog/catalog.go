package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

// Product is read-only from this service: the payments core snapshots its
// name and price into order lines and never writes back.
type Product struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	UnitAmount  int       `json:"unit_amount"` // cents
	Currency    string    `json:"currency"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repo struct{ DB *pgxpool.Pool }

// FindBySlug resolves only active products; an inactive slug is not found.
func (r *Repo) FindBySlug(ctx context.Context, slug string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, slug, name, description, image_url, unit_amount, currency, active, created_at
		FROM products WHERE slug=$1 AND active`, slug).
		Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.ImageURL, &p.UnitAmount, &p.Currency, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, slug, name, description, image_url, unit_amount, currency, active, created_at
		FROM products WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.ImageURL, &p.UnitAmount, &p.Currency, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
