package model

import "time"

// Delivery statuses.  Deliveries shadow the order workflow: an order
// moving to ON_ROUTE starts its delivery, DELIVERED completes it and
// CANCELLED fails it.
const (
	DeliveryAssigned   = "ASSIGNED"
	DeliveryInProgress = "IN_PROGRESS"
	DeliveryCompleted  = "COMPLETED"
	DeliveryFailed     = "FAILED"
)

// Delivery is the fulfilment record for one order.  Exactly one
// delivery exists per order.
//
// Fields:
//  ID            – primary key identifier.
//  OrderID       – order being fulfilled (unique).
//  DriverID      – driver carrying out the delivery.
//  VehicleID     – vehicle used.
//  AssignedByID  – dispatcher or admin who created the assignment.
//  AssignedAt    – assignment timestamp.
//  StartedAt     – when the driver went on route (nullable).
//  CompletedAt   – when the delivery finished (nullable).
//  Status        – see constants above.
//  DeliveryNotes – free-text delivery notes.
//  FailureReason – populated when the delivery fails.
type Delivery struct {
	ID            uint64
	OrderID       uint64
	DriverID      uint64
	VehicleID     uint64
	AssignedByID  uint64
	AssignedAt    time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Status        string
	DeliveryNotes string
	FailureReason string
}
