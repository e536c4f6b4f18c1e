package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

func fptr(v float64) *float64 { return &v }

func TestDetectorRapidRepeat(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	// Four prior scans in the window: this is the fifth, still fine.
	flagged, reason := d.Inspect(now, 4, nil, nil, nil)
	require.False(t, flagged)
	require.Empty(t, reason)

	// Five prior scans: this is the sixth, flagged.
	flagged, reason = d.Inspect(now, 5, nil, nil, nil)
	require.True(t, flagged)
	require.Equal(t, ReasonRapidScans, reason)

	// Anything beyond stays flagged.
	flagged, _ = d.Inspect(now, 42, nil, nil, nil)
	require.True(t, flagged)
}

func TestDetectorImpossibleTravel(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	prior := &model.CylinderScan{
		CreatedAt: now.Add(-100 * time.Second),
		Latitude:  fptr(-1.2921),
		Longitude: fptr(36.8219),
	}

	// Jump of 0.6 degrees latitude inside the window.
	flagged, reason := d.Inspect(now, 0, fptr(-0.6921), fptr(36.8219), prior)
	require.True(t, flagged)
	require.Equal(t, ReasonImpossibleTravel, reason)

	// A half-degree delta is the boundary and passes.
	flagged, _ = d.Inspect(now, 0, fptr(-0.7921), fptr(36.8219), prior)
	require.False(t, flagged)

	// Longitude jumps count too.
	flagged, _ = d.Inspect(now, 0, fptr(-1.2921), fptr(37.4220), prior)
	require.True(t, flagged)

	// Prior scan outside the 300-second window is ignored.
	old := &model.CylinderScan{
		CreatedAt: now.Add(-301 * time.Second),
		Latitude:  fptr(-1.2921),
		Longitude: fptr(36.8219),
	}
	flagged, _ = d.Inspect(now, 0, fptr(10.0), fptr(10.0), old)
	require.False(t, flagged)

	// No incoming coordinates: rule never fires.
	flagged, _ = d.Inspect(now, 0, nil, nil, prior)
	require.False(t, flagged)

	// Prior scan without coordinates: rule never fires.
	bare := &model.CylinderScan{CreatedAt: now.Add(-10 * time.Second)}
	flagged, _ = d.Inspect(now, 0, fptr(10.0), fptr(10.0), bare)
	require.False(t, flagged)
}

func TestDetectorBothRulesConcatenate(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	prior := &model.CylinderScan{
		CreatedAt: now.Add(-60 * time.Second),
		Latitude:  fptr(0.0),
		Longitude: fptr(0.0),
	}

	flagged, reason := d.Inspect(now, 9, fptr(2.0), fptr(2.0), prior)
	require.True(t, flagged)
	require.Equal(t, ReasonRapidScans+ReasonImpossibleTravel, reason)
}

func TestHaversineRule(t *testing.T) {
	// Nairobi to Mombasa is roughly 440 km.
	r := HaversineRule{MaxKM: 300}
	require.True(t, r.Improbable(-1.2921, 36.8219, -4.0435, 39.6682))
	require.False(t, r.Improbable(-1.2921, 36.8219, -1.3000, 36.8300))

	wide := HaversineRule{MaxKM: 500}
	require.False(t, wide.Improbable(-1.2921, 36.8219, -4.0435, 39.6682))
}

func TestDetectorSwappableTravelRule(t *testing.T) {
	d := NewDetector()
	d.Travel = HaversineRule{MaxKM: 1}
	now := time.Now().UTC()

	prior := &model.CylinderScan{
		CreatedAt: now.Add(-30 * time.Second),
		Latitude:  fptr(0.0),
		Longitude: fptr(0.0),
	}

	// 0.1 degrees of latitude is ~11 km, far over a 1 km cap, yet
	// below the degree-delta threshold.
	flagged, _ := d.Inspect(now, 0, fptr(0.1), fptr(0.0), prior)
	require.True(t, flagged)

	d.Travel = DegreeDeltaRule{Threshold: 0.5}
	flagged, _ = d.Inspect(now, 0, fptr(0.1), fptr(0.0), prior)
	require.False(t, flagged)
}
