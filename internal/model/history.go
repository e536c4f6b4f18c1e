package model

import "time"

// History event types.  Each audit row records exactly one of these.
const (
	EventRegistered         = "REGISTERED"
	EventFilled             = "FILLED"
	EventDelivered          = "DELIVERED"
	EventReturned           = "RETURNED"
	EventScanned            = "SCANNED"
	EventInspected          = "INSPECTED"
	EventMaintenance        = "MAINTENANCE"
	EventStatusChange       = "STATUS_CHANGE"
	EventCustomerAssigned   = "CUSTOMER_ASSIGNED"
	EventCustomerUnassigned = "CUSTOMER_UNASSIGNED"
	EventTamperDetected     = "TAMPER_DETECTED"
	EventLocationUpdate     = "LOCATION_UPDATE"
)

// VerificationData is the structured payload attached to scan-produced
// history rows.  It is serialized to JSON in the verification_data column.
type VerificationData struct {
	ScanResult   string   `json:"scan_result"`
	IsSuspicious bool     `json:"is_suspicious"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// CylinderHistory is one immutable row in the lifecycle audit trail.
//
// Fields:
//  ID               – primary key identifier.
//  CylinderID       – cylinder the event belongs to.
//  EventType        – one of the Event* constants above.
//  PreviousStatus   – cylinder status before the event (empty if unchanged).
//  NewStatus        – cylinder status after the event (empty if unchanged).
//  OrderID          – related order, when the event involves one (nullable).
//  DeliveryID       – related delivery (nullable).
//  CustomerID       – related customer (nullable).
//  DriverID         – related driver (nullable).
//  PerformedByID    – user who caused the event (nullable).
//  Location         – free-text location label.
//  Latitude         – event latitude (nullable).
//  Longitude        – event longitude (nullable).
//  Notes            – human-readable event description.
//  VerificationData – structured scan verification payload (nullable).
//  CreatedAt        – event timestamp.
type CylinderHistory struct {
	ID               uint64
	CylinderID       uint64
	EventType        string
	PreviousStatus   string
	NewStatus        string
	OrderID          *uint64
	DeliveryID       *uint64
	CustomerID       *uint64
	DriverID         *uint64
	PerformedByID    *uint64
	Location         string
	Latitude         *float64
	Longitude        *float64
	Notes            string
	VerificationData *VerificationData
	CreatedAt        time.Time
}
