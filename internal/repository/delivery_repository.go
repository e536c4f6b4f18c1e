package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// DeliveryRepo provides data access to the deliveries table.
type DeliveryRepo struct {
	db *sql.DB
}

// NewDeliveryRepo returns a new DeliveryRepo bound to the provided database.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

const deliveryColumns = `id, order_id, driver_id, vehicle_id, assigned_by_id, assigned_at,
	started_at, completed_at, status, delivery_notes, failure_reason`

func scanDeliveryRow(row rowScanner) (model.Delivery, error) {
	var (
		d         model.Delivery
		startedAt sql.NullTime
		doneAt    sql.NullTime
	)
	err := row.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.VehicleID, &d.AssignedByID,
		&d.AssignedAt, &startedAt, &doneAt, &d.Status, &d.DeliveryNotes, &d.FailureReason)
	if err != nil {
		return d, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		d.StartedAt = &t
	}
	if doneAt.Valid {
		t := doneAt.Time
		d.CompletedAt = &t
	}
	return d, nil
}

// CreateTx inserts a new ASSIGNED delivery inside the caller's
// transaction and fills in its ID. The unique key on order_id turns a
// double assignment into ErrConflict.
func (r *DeliveryRepo) CreateTx(ctx context.Context, tx *sql.Tx, d *model.Delivery) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO deliveries (order_id, driver_id, vehicle_id, assigned_by_id, status, delivery_notes, failure_reason)
		 VALUES (?,?,?,?,?,?,'')`,
		d.OrderID, d.DriverID, d.VehicleID, d.AssignedByID, d.Status, d.DeliveryNotes)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

// GetByID fetches a delivery by primary key.
func (r *DeliveryRepo) GetByID(ctx context.Context, id uint64) (model.Delivery, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deliveryColumns+" FROM deliveries WHERE id=? LIMIT 1", id)
	d, err := scanDeliveryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	return d, err
}

// GetByOrderID fetches the delivery fulfilling an order, if any.
func (r *DeliveryRepo) GetByOrderID(ctx context.Context, orderID uint64) (model.Delivery, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deliveryColumns+" FROM deliveries WHERE order_id=? LIMIT 1", orderID)
	d, err := scanDeliveryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	return d, err
}

// StartTx marks the order's delivery as underway.
func (r *DeliveryRepo) StartTx(ctx context.Context, tx *sql.Tx, orderID uint64, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE deliveries SET status=?, started_at=? WHERE order_id=?",
		model.DeliveryInProgress, now, orderID)
	return err
}

// CompleteTx marks the order's delivery as finished.
func (r *DeliveryRepo) CompleteTx(ctx context.Context, tx *sql.Tx, orderID uint64, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE deliveries SET status=?, completed_at=? WHERE order_id=?",
		model.DeliveryCompleted, now, orderID)
	return err
}

// FailTx marks the order's delivery as failed with a reason.
func (r *DeliveryRepo) FailTx(ctx context.Context, tx *sql.Tx, orderID uint64, reason string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE deliveries SET status=?, failure_reason=? WHERE order_id=?",
		model.DeliveryFailed, reason, orderID)
	return err
}

// HasOpenDelivery reports whether the driver is already on an
// unfinished delivery.
func (r *DeliveryRepo) HasOpenDelivery(ctx context.Context, driverID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM deliveries WHERE driver_id=? AND status IN (?,?)",
		driverID, model.DeliveryAssigned, model.DeliveryInProgress).Scan(&n)
	return n > 0, err
}
