// Package queue defines message payloads exchanged over the message broker.
package queue

// SecurityAlertEvent is published after a scan that demands attention:
// a suspicious flag, a tampered or stolen outcome, or a manually filed
// tamper report. It carries enough context for downstream consumers to
// log or notify without querying the primary database.
type SecurityAlertEvent struct {
	CylinderID   uint64   `json:"cylinder_id"`
	SerialNumber string   `json:"serial_number"`
	ScanResult   string   `json:"scan_result"`
	Message      string   `json:"message"`
	IsSuspicious bool     `json:"is_suspicious"`
	Reason       string   `json:"reason,omitempty"`
	ScannedBy    uint64   `json:"scanned_by,omitempty"`
	Location     string   `json:"location,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	OccurredAt   string   `json:"occurred_at"`
}
