package model

import "time"

// Vehicle statuses.
const (
	VehicleActive        = "ACTIVE"
	VehicleInMaintenance = "IN_MAINTENANCE"
	VehicleRetired       = "RETIRED"
)

// IsVehicleStatus reports whether s is a known vehicle status.
func IsVehicleStatus(s string) bool {
	return s == VehicleActive || s == VehicleInMaintenance || s == VehicleRetired
}

// Vehicle is a delivery truck in the fleet.
//
// Fields:
//  ID          – primary key identifier.
//  PlateNumber – unique registration plate.
//  Model       – vehicle make/model label.
//  CapacityKG  – maximum load in kilograms, never negative.
//  Status      – ACTIVE, IN_MAINTENANCE or RETIRED.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Vehicle struct {
	ID          uint64
	PlateNumber string
	Model       string
	CapacityKG  float64
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DriverAssignment links a driver to a vehicle for a period.  An
// assignment with a nil EndDate is open; a driver holds at most one
// open assignment at a time.
type DriverAssignment struct {
	ID        uint64
	DriverID  uint64
	VehicleID uint64
	StartDate time.Time
	EndDate   *time.Time
}
