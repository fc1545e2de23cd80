package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateWithItems inserts the order and all its lines in one transaction.
// The total is computed here from the given snapshots; a partially created
// order (order row without lines, or the reverse) is never observable.
func (r *Repo) CreateWithItems(ctx context.Context, ownerID, currency, provider string, items []NewItem) (*Order, error) {
	if ownerID == "" || currency == "" || len(items) == 0 {
		return nil, fmt.Errorf("%w: missing owner, currency or items", ErrInvalidInput)
	}

	total := 0
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitCents < 0 {
			return nil, fmt.Errorf("%w: bad line for product %q", ErrInvalidInput, it.ProductID)
		}
		total += it.UnitCents * it.Quantity
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := &Order{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Status:     StatusPending,
		Currency:   currency,
		TotalCents: total,
		Provider:   provider,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, owner_id, status, currency, total_cents, provider)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, o.ID, o.OwnerID, o.Status, o.Currency, o.TotalCents, o.Provider).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		line := OrderItem{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCents: it.UnitCents,
			NameSnap:  it.NameSnap,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, quantity, unit_cents, name_snap)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			line.ID, line.OrderID, line.ProductID, line.Quantity, line.UnitCents, line.NameSnap,
		); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, line)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	o, err := r.scanOrder(r.DB.QueryRow(ctx, `
		SELECT id, owner_id, status, currency, total_cents, provider, provider_ref, created_at, updated_at
		FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetForOwner loads an order only when it belongs to ownerID; a foreign order
// is indistinguishable from a missing one.
func (r *Repo) GetForOwner(ctx context.Context, id, ownerID string) (*Order, error) {
	o, err := r.scanOrder(r.DB.QueryRow(ctx, `
		SELECT id, owner_id, status, currency, total_cents, provider, provider_ref, created_at, updated_at
		FROM orders WHERE id=$1 AND owner_id=$2`, id, ownerID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, owner_id, status, currency, total_cents, provider, provider_ref, created_at, updated_at
		FROM orders WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) GetStatus(ctx context.Context, id string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

// SetProviderRef records the provider correlation id without touching status.
func (r *Repo) SetProviderRef(ctx context.Context, id, ref string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET provider_ref=$2, updated_at=now() WHERE id=$1`, id, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProviderRefIfAbsent records ref only when no ref is stored yet, the
// same first-writer-wins rule Transition applies. Used when a charge comes
// back pending and a webhook may have settled the order in the meantime.
func (r *Repo) SetProviderRefIfAbsent(ctx context.Context, id, ref string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET provider_ref=COALESCE(provider_ref, $2), updated_at=now() WHERE id=$1`, id, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition applies from->to only if the persisted status still equals from.
// A lost race is classified by re-reading: current == to means another writer
// already applied it (ErrAlreadyApplied); anything else is ErrStateConflict.
// providerRef, when non-empty, is stored only if no ref was recorded before,
// so the ref of the charge that actually moved the order is never overwritten.
func (r *Repo) Transition(ctx context.Context, id string, from, to Status, providerRef string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrStateConflict, from, to)
	}

	var err error
	var affected int64
	if providerRef != "" {
		ct, e := r.DB.Exec(ctx, `
			UPDATE orders SET status=$3, provider_ref=COALESCE(provider_ref, $4), updated_at=now()
			WHERE id=$1 AND status=$2`, id, from, to, providerRef)
		err, affected = e, ct.RowsAffected()
	} else {
		ct, e := r.DB.Exec(ctx, `
			UPDATE orders SET status=$3, updated_at=now()
			WHERE id=$1 AND status=$2`, id, from, to)
		err, affected = e, ct.RowsAffected()
	}
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	cur, err := r.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if cur == to {
		return ErrAlreadyApplied
	}
	return fmt.Errorf("%w: %s -> %s (current %s)", ErrStateConflict, from, to, cur)
}

func (r *Repo) scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OwnerID, &o.Status, &o.Currency, &o.TotalCents,
		&o.Provider, &o.ProviderRef, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_cents, name_snap
		FROM order_items WHERE order_id=$1`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitCents, &it.NameSnap); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
