package security

import (
	"math"
	"time"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// Anomaly reasons.  ReasonImpossibleTravel keeps its leading space so it
// concatenates cleanly after a rapid-scan reason.
const (
	ReasonRapidScans       = "Multiple rapid scans detected - possible cloning attempt"
	ReasonImpossibleTravel = " Impossible location change detected."
)

// TravelRule judges whether a move between two coordinate pairs within
// the travel window is physically plausible.  Implementations must be
// deterministic.
type TravelRule interface {
	// Improbable reports whether moving from (lat1,lng1) to
	// (lat2,lng2) inside the travel window should be flagged.
	Improbable(lat1, lng1, lat2, lng2 float64) bool
}

// DegreeDeltaRule flags a move when either coordinate jumps by more
// than Threshold degrees.  Crude but cheap; this is the default rule.
type DegreeDeltaRule struct {
	Threshold float64
}

func (r DegreeDeltaRule) Improbable(lat1, lng1, lat2, lng2 float64) bool {
	return math.Abs(lat2-lat1) > r.Threshold || math.Abs(lng2-lng1) > r.Threshold
}

// HaversineRule flags a move when the great-circle distance between the
// two points exceeds MaxKM.  Swapping this in changes observable
// behavior relative to DegreeDeltaRule near the poles and across
// longitudes, which is why the rule is pluggable rather than hardwired.
type HaversineRule struct {
	MaxKM float64
}

const earthRadiusKM = 6371.0

func (r HaversineRule) Improbable(lat1, lng1, lat2, lng2 float64) bool {
	return haversineKM(lat1, lng1, lat2, lng2) > r.MaxKM
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Detector computes the suspicious flag for an incoming scan from the
// cylinder's recent scan history.  It only annotates; it never blocks
// the scan.
type Detector struct {
	RapidWindow  time.Duration // lookback for the rapid-repeat rule
	RapidLimit   int           // max in-window scans, incoming included
	TravelWindow time.Duration // max age of the prior located scan
	Travel       TravelRule
}

// NewDetector returns a Detector with the stock thresholds: six or more
// scans inside five minutes, and a half-degree coordinate jump within
// five minutes of the previous located scan.
func NewDetector() *Detector {
	return &Detector{
		RapidWindow:  5 * time.Minute,
		RapidLimit:   5,
		TravelWindow: 300 * time.Second,
		Travel:       DegreeDeltaRule{Threshold: 0.5},
	}
}

// Inspect evaluates both rules for a scan happening at now.
// recentCount is the number of scans already recorded for the cylinder
// inside RapidWindow; prior is the most recent earlier scan carrying
// coordinates, or nil.  Both rules may fire; reasons concatenate.
func (d *Detector) Inspect(now time.Time, recentCount int, lat, lng *float64, prior *model.CylinderScan) (bool, string) {
	suspicious := false
	reason := ""

	if recentCount+1 > d.RapidLimit {
		suspicious = true
		reason = ReasonRapidScans
	}

	if lat != nil && lng != nil && prior != nil &&
		prior.Latitude != nil && prior.Longitude != nil &&
		now.Sub(prior.CreatedAt) <= d.TravelWindow {
		if d.Travel.Improbable(*prior.Latitude, *prior.Longitude, *lat, *lng) {
			suspicious = true
			reason += ReasonImpossibleTravel
		}
	}

	return suspicious, reason
}
