package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// OrderRepo provides data access to the orders table.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle for handler-owned transactions.
func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = `id, customer_id, delivery_address, quantity_kg, status, scheduled_time,
	pickup_address, customer_phone, special_instructions, created_at, updated_at`

func scanOrderRow(row rowScanner) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.DeliveryAddress, &o.QuantityKG, &o.Status,
		&o.ScheduledTime, &o.PickupAddress, &o.CustomerPhone, &o.SpecialInstructions,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Create inserts a new PENDING order and fills in its ID.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO orders
			(customer_id, delivery_address, quantity_kg, status, scheduled_time,
			 pickup_address, customer_phone, special_instructions)
		 VALUES (?,?,?,?,?,?,?,?)`,
		o.CustomerID, o.DeliveryAddress, o.QuantityKG, o.Status, o.ScheduledTime,
		o.PickupAddress, o.CustomerPhone, o.SpecialInstructions)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// GetByID fetches an order by primary key.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id=? LIMIT 1", id)
	o, err := scanOrderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

// GetByIDForUpdateTx fetches an order inside tx with a row lock so a
// status transition reads and writes a consistent row.
func (r *OrderRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Order, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id=? FOR UPDATE", id)
	o, err := scanOrderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

// UpdateStatusTx moves an order to newStatus inside tx.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, newStatus string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET status=?, updated_at=UTC_TIMESTAMP() WHERE id=?",
		newStatus, id)
	return err
}

// OrderFilter narrows List results. CustomerID limits visibility to a
// customer's own orders; DriverID to orders carried by the driver.
type OrderFilter struct {
	Status     string
	CustomerID uint64
	DriverID   uint64
	Page       int
	PageSize   int
}

// List returns one page of orders, newest first, plus the total count.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int64, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.Status != "" {
		where = append(where, "o.status=?")
		args = append(args, f.Status)
	}
	if f.CustomerID != 0 {
		where = append(where, "o.customer_id=?")
		args = append(args, f.CustomerID)
	}
	if f.DriverID != 0 {
		where = append(where, "o.id IN (SELECT d.order_id FROM deliveries d WHERE d.driver_id=?)")
		args = append(args, f.DriverID)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orders o WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders o WHERE "+cond+
			" ORDER BY o.created_at DESC LIMIT ? OFFSET ?",
		append(args, f.PageSize, (f.Page-1)*f.PageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
