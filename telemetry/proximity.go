package telemetry

import (
	"math"
	"sync"
)

// Distance returns the great-circle distance between two points in
// kilometers, via the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth radius in kilometers

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// ProximityTracker remembers which orders already fired an approach alert.
// An order is evicted once the courier retreats past 1.5x the threshold,
// so a later approach alerts again.
type ProximityTracker struct {
	thresholdMeters float64
	mu              sync.Mutex
	alerted         map[string]struct{}
}

func NewProximityTracker(thresholdMeters float64) *ProximityTracker {
	return &ProximityTracker{
		thresholdMeters: thresholdMeters,
		alerted:         make(map[string]struct{}),
	}
}

// Check reports whether an alert should fire for the order at the given
// distance, updating the hysteresis set.
func (t *ProximityTracker) Check(orderID string, distanceMeters float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if distanceMeters <= t.thresholdMeters {
		if _, done := t.alerted[orderID]; done {
			return false
		}
		t.alerted[orderID] = struct{}{}
		return true
	}
	if distanceMeters > t.thresholdMeters*1.5 {
		delete(t.alerted, orderID)
	}
	return false
}

// Forget drops the order from the set, e.g. when it completes.
func (t *ProximityTracker) Forget(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.alerted, orderID)
}
