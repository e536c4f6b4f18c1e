package model

import "time"

// Scan types, i.e. which identifier the scanner presented.
const (
	ScanTypeQR     = "QR"
	ScanTypeRFID   = "RFID"
	ScanTypeManual = "MANUAL"
)

// Scan results assigned after authenticity verification.
const (
	ScanSuccess    = "SUCCESS"
	ScanFailed     = "FAILED"
	ScanSuspicious = "SUSPICIOUS"
	ScanTampered   = "TAMPERED"
	ScanStolen     = "STOLEN"
	ScanExpired    = "EXPIRED"
)

// IsScanType reports whether t is a recognised scan type.
func IsScanType(t string) bool {
	return t == ScanTypeQR || t == ScanTypeRFID || t == ScanTypeManual
}

// CylinderScan is one immutable row in the scan ledger.  Every resolved
// scan attempt is recorded, successful or not; rows are never updated.
//
// Fields:
//  ID              – primary key identifier.
//  CylinderID      – scanned cylinder.
//  ScannedByID     – user who performed the scan (nullable).
//  ScannedByRole   – role of the scanning user at scan time.
//  ScanType        – QR, RFID or MANUAL.
//  ScanResult      – SUCCESS, FAILED, SUSPICIOUS, TAMPERED, STOLEN or EXPIRED.
//  ScannedCode     – normalized code as presented by the scanner.
//  AuthToken       – verification receipt, set only when the scan succeeded.
//  Latitude        – scanner latitude at scan time (nullable).
//  Longitude       – scanner longitude at scan time (nullable).
//  LocationName    – free-text location label.
//  OrderID         – order the scan was performed against (nullable).
//  DeliveryID      – delivery the scan was performed against (nullable).
//  IPAddress       – request origin address.
//  UserAgent       – scanning client description.
//  IsSuspicious    – anomaly flag assigned by detection.
//  SuspiciousReason– human-readable anomaly explanation.
//  Notes           – verification message recorded with the scan.
//  CreatedAt       – scan timestamp.
type CylinderScan struct {
	ID               uint64
	CylinderID       uint64
	ScannedByID      *uint64
	ScannedByRole    string
	ScanType         string
	ScanResult       string
	ScannedCode      string
	AuthToken        string
	Latitude         *float64
	Longitude        *float64
	LocationName     string
	OrderID          *uint64
	DeliveryID       *uint64
	IPAddress        string
	UserAgent        string
	IsSuspicious     bool
	SuspiciousReason string
	Notes            string
	CreatedAt        time.Time
}
