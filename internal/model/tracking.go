package model

import "time"

// TrackingLog is one GPS position report from a driver on an active
// delivery.  Rows are append-only; Speed is km/h, Heading degrees and
// Accuracy meters, all optional.
type TrackingLog struct {
	ID         uint64
	DeliveryID uint64
	Latitude   float64
	Longitude  float64
	Timestamp  time.Time
	Speed      *float64
	Heading    *float64
	Accuracy   *float64
}
