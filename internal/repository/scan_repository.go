package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// ScanRepo provides data access to the cylinder_scans ledger. Rows are
// append-only; there are no update or delete methods on purpose.
type ScanRepo struct {
	db *sql.DB
}

// NewScanRepo returns a new ScanRepo bound to the provided database.
func NewScanRepo(db *sql.DB) *ScanRepo { return &ScanRepo{db: db} }

const scanColumns = `id, cylinder_id, scanned_by_id, scanned_by_role, scan_type, scan_result,
	scanned_code, auth_token, latitude, longitude, location_name, order_id, delivery_id,
	ip_address, user_agent, is_suspicious, suspicious_reason, notes, created_at`

func scanScanRow(row rowScanner) (model.CylinderScan, error) {
	var (
		s          model.CylinderScan
		scannedBy  sql.NullInt64
		lat        sql.NullFloat64
		lng        sql.NullFloat64
		orderID    sql.NullInt64
		deliveryID sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.CylinderID, &scannedBy, &s.ScannedByRole, &s.ScanType,
		&s.ScanResult, &s.ScannedCode, &s.AuthToken, &lat, &lng, &s.LocationName,
		&orderID, &deliveryID, &s.IPAddress, &s.UserAgent,
		&s.IsSuspicious, &s.SuspiciousReason, &s.Notes, &s.CreatedAt)
	if err != nil {
		return s, err
	}
	if scannedBy.Valid {
		v := uint64(scannedBy.Int64)
		s.ScannedByID = &v
	}
	if lat.Valid {
		v := lat.Float64
		s.Latitude = &v
	}
	if lng.Valid {
		v := lng.Float64
		s.Longitude = &v
	}
	if orderID.Valid {
		v := uint64(orderID.Int64)
		s.OrderID = &v
	}
	if deliveryID.Valid {
		v := uint64(deliveryID.Int64)
		s.DeliveryID = &v
	}
	return s, nil
}

// InsertTx appends one scan row inside the caller's transaction and
// fills in its ID.
func (r *ScanRepo) InsertTx(ctx context.Context, tx *sql.Tx, s *model.CylinderScan) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO cylinder_scans
			(cylinder_id, scanned_by_id, scanned_by_role, scan_type, scan_result,
			 scanned_code, auth_token, latitude, longitude, location_name,
			 order_id, delivery_id, ip_address, user_agent,
			 is_suspicious, suspicious_reason, notes, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.CylinderID, s.ScannedByID, s.ScannedByRole, s.ScanType, s.ScanResult,
		s.ScannedCode, s.AuthToken, s.Latitude, s.Longitude, s.LocationName,
		s.OrderID, s.DeliveryID, s.IPAddress, s.UserAgent,
		s.IsSuspicious, s.SuspiciousReason, s.Notes, s.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// CountSince counts scans of one cylinder recorded at or after the
// given instant. Feeds the rapid-repeat rule.
func (r *ScanRepo) CountSince(ctx context.Context, cylinderID uint64, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cylinder_scans WHERE cylinder_id=? AND created_at >= ?",
		cylinderID, since).Scan(&n)
	return n, err
}

// LatestWithCoordinates returns the most recent scan of the cylinder
// carrying geocoordinates, or nil when none exists. Feeds the
// impossible-travel rule.
func (r *ScanRepo) LatestWithCoordinates(ctx context.Context, cylinderID uint64) (*model.CylinderScan, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+scanColumns+` FROM cylinder_scans
		 WHERE cylinder_id=? AND latitude IS NOT NULL AND longitude IS NOT NULL
		 ORDER BY created_at DESC LIMIT 1`,
		cylinderID)
	s, err := scanScanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByCylinder returns one page of a cylinder's scans, newest first,
// plus the total count.
func (r *ScanRepo) ListByCylinder(ctx context.Context, cylinderID uint64, page, pageSize int) ([]model.CylinderScan, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cylinder_scans WHERE cylinder_id=?", cylinderID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+scanColumns+` FROM cylinder_scans
		 WHERE cylinder_id=? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		cylinderID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.CylinderScan
	for rows.Next() {
		s, err := scanScanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
