package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// CylinderRepo provides data access to the cylinders table. Scan-path
// mutations run inside caller-owned transactions so the row lock taken
// by GetByIDForUpdateTx covers every write of one scan.
type CylinderRepo struct {
	db *sql.DB
}

// NewCylinderRepo returns a new CylinderRepo bound to the provided database.
func NewCylinderRepo(db *sql.DB) *CylinderRepo { return &CylinderRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning several repositories.
func (r *CylinderRepo) DB() *sql.DB { return r.db }

const cylinderColumns = `id, uuid, serial_number, qr_code, rfid_tag, cylinder_type, capacity_kg,
	manufacturer, manufacturing_date, expiry_date, status, current_customer_id, current_order_id,
	last_known_location, last_inspection_date, next_inspection_date, total_fills, total_scans,
	is_authentic, is_tampered, tamper_notes, auth_hash, secret_key, last_scanned_at,
	last_scanned_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCylinder(row rowScanner) (model.Cylinder, error) {
	var (
		c          model.Cylinder
		customerID sql.NullInt64
		orderID    sql.NullInt64
		lastInsp   sql.NullTime
		nextInsp   sql.NullTime
		scannedAt  sql.NullTime
		scannedBy  sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.UUID, &c.SerialNumber, &c.QRCode, &c.RFIDTag, &c.CylinderType,
		&c.CapacityKG, &c.Manufacturer, &c.ManufacturingDate, &c.ExpiryDate, &c.Status,
		&customerID, &orderID, &c.LastKnownLocation, &lastInsp, &nextInsp, &c.TotalFills,
		&c.TotalScans, &c.IsAuthentic, &c.IsTampered, &c.TamperNotes, &c.AuthHash,
		&c.SecretKey, &scannedAt, &scannedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if customerID.Valid {
		v := uint64(customerID.Int64)
		c.CurrentCustomerID = &v
	}
	if orderID.Valid {
		v := uint64(orderID.Int64)
		c.CurrentOrderID = &v
	}
	if lastInsp.Valid {
		t := lastInsp.Time
		c.LastInspectionDate = &t
	}
	if nextInsp.Valid {
		t := nextInsp.Time
		c.NextInspectionDate = &t
	}
	if scannedAt.Valid {
		t := scannedAt.Time
		c.LastScannedAt = &t
	}
	if scannedBy.Valid {
		v := uint64(scannedBy.Int64)
		c.LastScannedBy = &v
	}
	return c, nil
}

// CreateTx inserts a freshly registered cylinder and fills in its ID.
// Duplicate-key failures are split by index: a serial collision is a
// caller mistake, a code collision means generation must retry. A 1062
// failure leaves tx usable, so the caller can regenerate and re-insert
// without restarting the transaction.
func (r *CylinderRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Cylinder) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO cylinders
			(uuid, serial_number, qr_code, rfid_tag, cylinder_type, capacity_kg,
			 manufacturer, manufacturing_date, expiry_date, status,
			 is_authentic, is_tampered, tamper_notes, auth_hash, secret_key)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.UUID, c.SerialNumber, c.QRCode, c.RFIDTag, c.CylinderType, c.CapacityKG,
		c.Manufacturer, c.ManufacturingDate.Format("2006-01-02"), c.ExpiryDate.Format("2006-01-02"),
		c.Status, c.IsAuthentic, c.IsTampered, c.TamperNotes, c.AuthHash, c.SecretKey)
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(err.Error(), "serial_number") {
				return ErrSerialExists
			}
			return ErrCodeCollision
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID fetches a cylinder by primary key.
func (r *CylinderRepo) GetByID(ctx context.Context, id uint64) (model.Cylinder, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+cylinderColumns+" FROM cylinders WHERE id=? LIMIT 1", id)
	c, err := scanCylinder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// GetByCode resolves a cylinder from a scanned code. QR and RFID scans
// match only their own column; manual entry tries both.
func (r *CylinderRepo) GetByCode(ctx context.Context, code, scanType string) (model.Cylinder, error) {
	var where string
	args := []any{code}
	switch scanType {
	case model.ScanTypeQR:
		where = "qr_code=?"
	case model.ScanTypeRFID:
		where = "rfid_tag=?"
	default:
		where = "(qr_code=? OR rfid_tag=?)"
		args = append(args, code)
	}
	row := r.db.QueryRowContext(ctx,
		"SELECT "+cylinderColumns+" FROM cylinders WHERE "+where+" LIMIT 1", args...)
	c, err := scanCylinder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// GetByIDForUpdateTx fetches a cylinder inside tx and takes a row lock,
// serializing concurrent scans of the same cylinder.
func (r *CylinderRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Cylinder, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+cylinderColumns+" FROM cylinders WHERE id=? FOR UPDATE", id)
	c, err := scanCylinder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// ApplyScanTx bumps the scan counter and last-scanned metadata. The
// counter is incremented in SQL so the stored value can never lose an
// update, even outside the row lock.
func (r *CylinderRepo) ApplyScanTx(ctx context.Context, tx *sql.Tx, id uint64, scannedBy *uint64, location string, now time.Time) error {
	if location != "" {
		_, err := tx.ExecContext(ctx,
			`UPDATE cylinders
			 SET total_scans = total_scans + 1, last_scanned_at=?, last_scanned_by=?,
			     last_known_location=?, updated_at=UTC_TIMESTAMP()
			 WHERE id=?`,
			now, scannedBy, location, id)
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE cylinders
		 SET total_scans = total_scans + 1, last_scanned_at=?, last_scanned_by=?,
		     updated_at=UTC_TIMESTAMP()
		 WHERE id=?`,
		now, scannedBy, id)
	return err
}

// UpdateStatusTx moves a cylinder to newStatus. Moving to FILLED also
// counts a refill. An empty location leaves last_known_location alone.
func (r *CylinderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, newStatus, location string) error {
	fills := ""
	if newStatus == model.CylinderFilled {
		fills = ", total_fills = total_fills + 1"
	}
	if location != "" {
		_, err := tx.ExecContext(ctx,
			"UPDATE cylinders SET status=?, last_known_location=?, updated_at=UTC_TIMESTAMP()"+fills+" WHERE id=?",
			newStatus, location, id)
		return err
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE cylinders SET status=?, updated_at=UTC_TIMESTAMP()"+fills+" WHERE id=?",
		newStatus, id)
	return err
}

// AssignTx binds a cylinder to an order and its customer and forces the
// status to IN_DELIVERY.
func (r *CylinderRepo) AssignTx(ctx context.Context, tx *sql.Tx, id, orderID, customerID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE cylinders
		 SET current_order_id=?, current_customer_id=?, status=?, updated_at=UTC_TIMESTAMP()
		 WHERE id=?`,
		orderID, customerID, model.CylinderInDelivery, id)
	return err
}

// AssignCustomerTx binds a cylinder to a customer directly, clearing any
// order link. Status is left untouched.
func (r *CylinderRepo) AssignCustomerTx(ctx context.Context, tx *sql.Tx, id, customerID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE cylinders
		 SET current_customer_id=?, current_order_id=NULL, updated_at=UTC_TIMESTAMP()
		 WHERE id=?`,
		customerID, id)
	return err
}

// MarkTamperedTx sets the sticky tamper flag and appends to the tamper
// notes. Nothing ever clears the flag.
func (r *CylinderRepo) MarkTamperedTx(ctx context.Context, tx *sql.Tx, id uint64, notes string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE cylinders
		 SET is_tampered=1,
		     tamper_notes = CASE WHEN tamper_notes='' THEN ? ELSE CONCAT(tamper_notes, '\n', ?) END,
		     updated_at=UTC_TIMESTAMP()
		 WHERE id=?`,
		notes, notes, id)
	return err
}

// RecordInspectionTx stores the inspection dates. A failed inspection
// also revokes the authenticity flag.
func (r *CylinderRepo) RecordInspectionTx(ctx context.Context, tx *sql.Tx, id uint64, inspectedAt, nextDue time.Time, passed bool) error {
	if passed {
		_, err := tx.ExecContext(ctx,
			`UPDATE cylinders SET last_inspection_date=?, next_inspection_date=?, updated_at=UTC_TIMESTAMP() WHERE id=?`,
			inspectedAt.Format("2006-01-02"), nextDue.Format("2006-01-02"), id)
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE cylinders SET last_inspection_date=?, next_inspection_date=?, is_authentic=0, updated_at=UTC_TIMESTAMP() WHERE id=?`,
		inspectedAt.Format("2006-01-02"), nextDue.Format("2006-01-02"), id)
	return err
}

// CylinderFilter narrows List results. Zero values mean "no filter";
// CustomerID and DriverID scope visibility for non-staff callers.
type CylinderFilter struct {
	Status     string
	Type       string
	Tampered   bool
	Expired    bool
	CustomerID uint64
	DriverID   uint64
	Page       int
	PageSize   int
}

// List returns one page of cylinders plus the total row count for the
// same filter.
func (r *CylinderRepo) List(ctx context.Context, f CylinderFilter) ([]model.Cylinder, int64, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.Status != "" {
		where = append(where, "c.status=?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where = append(where, "c.cylinder_type=?")
		args = append(args, f.Type)
	}
	if f.Tampered {
		where = append(where, "c.is_tampered=1")
	}
	if f.Expired {
		where = append(where, "c.expiry_date < UTC_DATE()")
	}
	if f.CustomerID != 0 {
		where = append(where, "c.current_customer_id=?")
		args = append(args, f.CustomerID)
	}
	if f.DriverID != 0 {
		where = append(where, `c.current_order_id IN (
			SELECT d.order_id FROM deliveries d WHERE d.driver_id=?)`)
		args = append(args, f.DriverID)
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cylinders c WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.PageSize
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+cylinderColumns+" FROM cylinders c WHERE "+cond+
			" ORDER BY c.created_at DESC LIMIT ? OFFSET ?",
		append(args, f.PageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Cylinder
	for rows.Next() {
		c, err := scanCylinder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
