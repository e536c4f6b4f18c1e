package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// HistoryRepo provides data access to the cylinder_history audit trail.
// Like the scan ledger it is append-only.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a new HistoryRepo bound to the provided database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

const historyColumns = `id, cylinder_id, event_type, previous_status, new_status,
	order_id, delivery_id, customer_id, driver_id, performed_by_id, location, latitude, longitude,
	notes, verification_data, created_at`

func scanHistoryRow(row rowScanner) (model.CylinderHistory, error) {
	var (
		h          model.CylinderHistory
		orderID    sql.NullInt64
		deliveryID sql.NullInt64
		custID     sql.NullInt64
		driverID   sql.NullInt64
		perfID     sql.NullInt64
		lat        sql.NullFloat64
		lng        sql.NullFloat64
		verData    sql.NullString
	)
	err := row.Scan(&h.ID, &h.CylinderID, &h.EventType, &h.PreviousStatus, &h.NewStatus,
		&orderID, &deliveryID, &custID, &driverID, &perfID, &h.Location, &lat, &lng,
		&h.Notes, &verData, &h.CreatedAt)
	if err != nil {
		return h, err
	}
	if orderID.Valid {
		v := uint64(orderID.Int64)
		h.OrderID = &v
	}
	if deliveryID.Valid {
		v := uint64(deliveryID.Int64)
		h.DeliveryID = &v
	}
	if custID.Valid {
		v := uint64(custID.Int64)
		h.CustomerID = &v
	}
	if driverID.Valid {
		v := uint64(driverID.Int64)
		h.DriverID = &v
	}
	if perfID.Valid {
		v := uint64(perfID.Int64)
		h.PerformedByID = &v
	}
	if lat.Valid {
		v := lat.Float64
		h.Latitude = &v
	}
	if lng.Valid {
		v := lng.Float64
		h.Longitude = &v
	}
	if verData.Valid && verData.String != "" {
		var vd model.VerificationData
		if err := json.Unmarshal([]byte(verData.String), &vd); err == nil {
			h.VerificationData = &vd
		}
	}
	return h, nil
}

// InsertTx appends one history row inside the caller's transaction and
// fills in its ID.
func (r *HistoryRepo) InsertTx(ctx context.Context, tx *sql.Tx, h *model.CylinderHistory) error {
	var verData any
	if h.VerificationData != nil {
		b, err := json.Marshal(h.VerificationData)
		if err != nil {
			return err
		}
		verData = string(b)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO cylinder_history
			(cylinder_id, event_type, previous_status, new_status, order_id, delivery_id,
			 customer_id, driver_id, performed_by_id, location, latitude, longitude,
			 notes, verification_data, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		h.CylinderID, h.EventType, h.PreviousStatus, h.NewStatus, h.OrderID, h.DeliveryID,
		h.CustomerID, h.DriverID, h.PerformedByID, h.Location, h.Latitude, h.Longitude,
		h.Notes, verData, h.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// HistoryFilter narrows a history listing. Zero values mean "no filter".
type HistoryFilter struct {
	EventType string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// ListByCylinder returns one page of a cylinder's history, newest
// first, optionally narrowed to one event type and a date range.
func (r *HistoryRepo) ListByCylinder(ctx context.Context, cylinderID uint64, f HistoryFilter) ([]model.CylinderHistory, int64, error) {
	cond := "cylinder_id=?"
	args := []any{cylinderID}
	if f.EventType != "" {
		cond += " AND event_type=?"
		args = append(args, f.EventType)
	}
	if f.From != nil {
		cond += " AND created_at >= ?"
		args = append(args, *f.From)
	}
	if f.To != nil {
		cond += " AND created_at <= ?"
		args = append(args, *f.To)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cylinder_history WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM cylinder_history WHERE "+cond+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, f.PageSize, (f.Page-1)*f.PageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.CylinderHistory
	for rows.Next() {
		h, err := scanHistoryRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ExistsForCustomer reports whether any history row of the cylinder
// references the customer. Grants past holders read access to the
// audit trail.
func (r *HistoryRepo) ExistsForCustomer(ctx context.Context, cylinderID, customerID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cylinder_history WHERE cylinder_id=? AND customer_id=? LIMIT 1",
		cylinderID, customerID).Scan(&n)
	return n > 0, err
}

// ExistsForDriver reports whether any history row of the cylinder
// references the driver.
func (r *HistoryRepo) ExistsForDriver(ctx context.Context, cylinderID, driverID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cylinder_history WHERE cylinder_id=? AND driver_id=? LIMIT 1",
		cylinderID, driverID).Scan(&n)
	return n > 0, err
}
