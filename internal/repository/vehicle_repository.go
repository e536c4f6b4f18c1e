package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// VehicleRepo provides data access to the vehicles and
// driver_assignments tables.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo returns a new VehicleRepo bound to the provided database.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

// DB exposes the underlying handle for handler-owned transactions.
func (r *VehicleRepo) DB() *sql.DB { return r.db }

const vehicleColumns = "id, plate_number, model, capacity_kg, status, created_at, updated_at"

func scanVehicleRow(row rowScanner) (model.Vehicle, error) {
	var v model.Vehicle
	err := row.Scan(&v.ID, &v.PlateNumber, &v.Model, &v.CapacityKG, &v.Status,
		&v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// Create inserts a vehicle and fills in its ID. A duplicate plate
// number yields ErrConflict.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO vehicles (plate_number, model, capacity_kg, status) VALUES (?,?,?,?)",
		v.PlateNumber, v.Model, v.CapacityKG, v.Status)
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
	v.ID = uint64(id)
	return nil
}

// GetByID fetches a vehicle by primary key.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (model.Vehicle, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE id=? LIMIT 1", id)
	v, err := scanVehicleRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// GetActiveByID fetches a vehicle only when it is ACTIVE.
func (r *VehicleRepo) GetActiveByID(ctx context.Context, id uint64) (model.Vehicle, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE id=? AND status=? LIMIT 1",
		id, model.VehicleActive)
	v, err := scanVehicleRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// Update rewrites a vehicle's mutable fields.
func (r *VehicleRepo) Update(ctx context.Context, v model.Vehicle) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE vehicles SET plate_number=?, model=?, capacity_kg=?, status=?, updated_at=UTC_TIMESTAMP() WHERE id=?",
		v.PlateNumber, v.Model, v.CapacityKG, v.Status, v.ID)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// List returns one page of vehicles plus the total count, optionally
// narrowed to one status. availableOnly keeps only ACTIVE vehicles
// with no driver currently assigned.
func (r *VehicleRepo) List(ctx context.Context, status string, availableOnly bool, page, pageSize int) ([]model.Vehicle, int64, error) {
	cond := "1=1"
	args := []any{}
	if status != "" {
		cond = "status=?"
		args = append(args, status)
	}
	if availableOnly {
		cond += " AND status=? AND id NOT IN (SELECT vehicle_id FROM driver_assignments WHERE end_date IS NULL)"
		args = append(args, model.VehicleActive)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vehicles WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE "+cond+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Vehicle
	for rows.Next() {
		v, err := scanVehicleRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// AssignDriverTx closes the driver's open assignment, if any, and opens
// a new one on the given vehicle.
func (r *VehicleRepo) AssignDriverTx(ctx context.Context, tx *sql.Tx, driverID, vehicleID uint64, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE driver_assignments SET end_date=? WHERE driver_id=? AND end_date IS NULL",
		now, driverID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO driver_assignments (driver_id, vehicle_id, start_date) VALUES (?,?,?)",
		driverID, vehicleID, now)
	return err
}

// ReleaseVehicleTx closes every open assignment on the vehicle.
func (r *VehicleRepo) ReleaseVehicleTx(ctx context.Context, tx *sql.Tx, vehicleID uint64, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE driver_assignments SET end_date=? WHERE vehicle_id=? AND end_date IS NULL",
		now, vehicleID)
	return err
}

// OpenAssignmentForDriver returns the driver's current assignment.
func (r *VehicleRepo) OpenAssignmentForDriver(ctx context.Context, driverID uint64) (model.DriverAssignment, error) {
	var (
		a       model.DriverAssignment
		endDate sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, driver_id, vehicle_id, start_date, end_date
		 FROM driver_assignments WHERE driver_id=? AND end_date IS NULL LIMIT 1`,
		driverID).Scan(&a.ID, &a.DriverID, &a.VehicleID, &a.StartDate, &endDate)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if endDate.Valid {
		t := endDate.Time
		a.EndDate = &t
	}
	return a, err
}

// FindAvailableDriver picks the longest-assigned active driver who
// holds an open assignment on an ACTIVE vehicle and is not already out
// on an unfinished delivery. Used when dispatch does not name a driver.
func (r *VehicleRepo) FindAvailableDriver(ctx context.Context) (uint64, uint64, error) {
	var driverID, vehicleID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT da.driver_id, da.vehicle_id
		 FROM driver_assignments da
		 JOIN users u ON u.id = da.driver_id AND u.role = ? AND u.is_active = 1
		 JOIN vehicles v ON v.id = da.vehicle_id AND v.status = ?
		 WHERE da.end_date IS NULL
		   AND NOT EXISTS (
			SELECT 1 FROM deliveries dl
			WHERE dl.driver_id = da.driver_id AND dl.status IN (?,?))
		 ORDER BY da.start_date ASC
		 LIMIT 1`,
		model.RoleDriver, model.VehicleActive,
		model.DeliveryAssigned, model.DeliveryInProgress).Scan(&driverID, &vehicleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	return driverID, vehicleID, err
}
