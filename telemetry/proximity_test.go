package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	t.Run("zero for identical points", func(t *testing.T) {
		assert.Zero(t, Distance(41.3, 69.2, 41.3, 69.2))
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		// One degree of latitude is ~111.19 km on a 6371 km sphere.
		d := Distance(41.0, 69.0, 42.0, 69.0)
		assert.InDelta(t, 111.19, d, 0.1)
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t,
			Distance(41.3, 69.2, 41.4, 69.3),
			Distance(41.4, 69.3, 41.3, 69.2),
			1e-9)
	})
}

func TestProximityHysteresis(t *testing.T) {
	tr := NewProximityTracker(200)

	assert.False(t, tr.Check("O1", 250), "outside threshold, no alert")
	assert.True(t, tr.Check("O1", 150), "crossing in fires once")
	assert.False(t, tr.Check("O1", 50), "still inside, no repeat")
	assert.False(t, tr.Check("O1", 250), "between 200 and 300 keeps the latch")
	assert.False(t, tr.Check("O1", 150), "re-entry without eviction stays silent")
	assert.False(t, tr.Check("O1", 350), "past 1.5x threshold evicts")
	assert.True(t, tr.Check("O1", 150), "re-approach fires a second alert")
}

func TestProximityPerOrder(t *testing.T) {
	tr := NewProximityTracker(200)

	assert.True(t, tr.Check("O1", 100))
	assert.True(t, tr.Check("O2", 100), "orders latch independently")

	tr.Forget("O1")
	assert.True(t, tr.Check("O1", 100), "forgotten order alerts again")
	assert.False(t, tr.Check("O2", 100))
}
