package model

import "time"

// Cylinder statuses. RETIRED is terminal; STOLEN may only recover to ACTIVE.
const (
	CylinderActive      = "ACTIVE"
	CylinderFilled      = "FILLED"
	CylinderInDelivery  = "IN_DELIVERY"
	CylinderEmpty       = "EMPTY"
	CylinderMaintenance = "MAINTENANCE"
	CylinderRetired     = "RETIRED"
	CylinderStolen      = "STOLEN"
)

// CylinderTypes enumerates the supported capacity classes.
var CylinderTypes = map[string]bool{
	"3KG":  true,
	"6KG":  true,
	"13KG": true,
	"22KG": true,
	"45KG": true,
}

// cylinderTransitions encodes the status machine.  A transition is legal
// only when the target appears in the list for the current status.
var cylinderTransitions = map[string][]string{
	CylinderActive:      {CylinderFilled, CylinderMaintenance, CylinderRetired, CylinderStolen},
	CylinderFilled:      {CylinderInDelivery, CylinderEmpty, CylinderMaintenance},
	CylinderInDelivery:  {CylinderFilled, CylinderEmpty},
	CylinderEmpty:       {CylinderFilled, CylinderMaintenance, CylinderRetired},
	CylinderMaintenance: {CylinderActive, CylinderRetired},
	CylinderRetired:     {},
	CylinderStolen:      {CylinderActive},
}

// IsCylinderStatus reports whether s is a known cylinder status.
func IsCylinderStatus(s string) bool {
	_, ok := cylinderTransitions[s]
	return ok
}

// CanTransitionCylinder reports whether the status machine permits
// moving a cylinder from one status to another.
func CanTransitionCylinder(from, to string) bool {
	for _, t := range cylinderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Cylinder represents a physical LPG tank tracked for its whole service
// life.  Security material (SecretKey, AuthHash) is assigned exactly once
// at registration and never changes; read APIs must not expose SecretKey.
//
// Fields:
//  ID                 – primary key identifier.
//  UUID               – opaque globally unique identifier.
//  SerialNumber       – unique human-assigned serial.
//  QRCode             – unique system-generated QR code.
//  RFIDTag            – unique system-generated RFID tag.
//  CylinderType       – capacity class (3KG, 6KG, 13KG, 22KG, 45KG).
//  CapacityKG         – declared capacity in kilograms.
//  Manufacturer       – manufacturer name.
//  ManufacturingDate  – date of manufacture.
//  ExpiryDate         – service expiry date; strictly after manufacture.
//  Status             – lifecycle status, see constants above.
//  CurrentCustomerID  – customer currently holding the cylinder (nullable).
//  CurrentOrderID     – order currently carrying the cylinder (nullable).
//  LastKnownLocation  – free-text location from scans or status updates.
//  LastInspectionDate – date of the most recent inspection (nullable).
//  NextInspectionDate – date the next inspection is due (nullable).
//  TotalFills         – number of refills recorded.
//  TotalScans         – number of scan attempts recorded.
//  IsAuthentic        – manually revocable authenticity flag.
//  IsTampered         – sticky tamper flag; never cleared once set.
//  TamperNotes        – free-text notes recorded when tampering is reported.
//  AuthHash           – SHA-256 digest of serial+qr+rfid+secret, set at creation.
//  SecretKey          – high-entropy secret, set at creation, never exposed.
//  LastScannedAt      – timestamp of the most recent scan (nullable).
//  LastScannedBy      – user who performed the most recent scan (nullable).
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Cylinder struct {
	ID                 uint64     // cylinders.id
	UUID               string     // cylinders.uuid
	SerialNumber       string     // cylinders.serial_number
	QRCode             string     // cylinders.qr_code
	RFIDTag            string     // cylinders.rfid_tag
	CylinderType       string     // cylinders.cylinder_type
	CapacityKG         float64    // cylinders.capacity_kg
	Manufacturer       string     // cylinders.manufacturer
	ManufacturingDate  time.Time  // cylinders.manufacturing_date
	ExpiryDate         time.Time  // cylinders.expiry_date
	Status             string     // cylinders.status
	CurrentCustomerID  *uint64    // cylinders.current_customer_id (nullable)
	CurrentOrderID     *uint64    // cylinders.current_order_id (nullable)
	LastKnownLocation  string     // cylinders.last_known_location
	LastInspectionDate *time.Time // cylinders.last_inspection_date (nullable)
	NextInspectionDate *time.Time // cylinders.next_inspection_date (nullable)
	TotalFills         uint32     // cylinders.total_fills
	TotalScans         uint64     // cylinders.total_scans
	IsAuthentic        bool       // cylinders.is_authentic
	IsTampered         bool       // cylinders.is_tampered
	TamperNotes        string     // cylinders.tamper_notes
	AuthHash           string     // cylinders.auth_hash
	SecretKey          string     // cylinders.secret_key
	LastScannedAt      *time.Time // cylinders.last_scanned_at (nullable)
	LastScannedBy      *uint64    // cylinders.last_scanned_by (nullable)
	CreatedAt          time.Time  // cylinders.created_at
	UpdatedAt          time.Time  // cylinders.updated_at
}

// IsExpired reports whether the cylinder's expiry date lies strictly
// before the given day.  Callers should pass a date truncated to
// midnight UTC so comparisons are date-level, matching the DATE column.
func (c *Cylinder) IsExpired(today time.Time) bool {
	return c.ExpiryDate.Before(today)
}
