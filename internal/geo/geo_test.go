package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToECEFOrigin(t *testing.T) {
	p := ToECEF(0, 0, 0)
	assert.InDelta(t, SemiMajorAxisM, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)
	assert.InDelta(t, 0, p.Z, 1e-6)
}

func TestToECEFAltitudeIsMonotonic(t *testing.T) {
	// For a fixed lat/lon, increasing altitude must strictly increase the
	// distance from the origin.
	origin := ECEF{}
	prevDist := -1.0
	for _, alt := range []float64{-50, 0, 100, 10000, 50000} {
		p := ToECEF(48.8566, 2.3522, alt)
		d := Distance(origin, p)
		require.Greater(t, d, prevDist)
		prevDist = d
	}
}

func TestToECEFNegativeAltitudeStable(t *testing.T) {
	p := ToECEF(0, 0, -1000)
	assert.InDelta(t, SemiMajorAxisM-1000, p.X, 1e-6)
}

func TestDistanceSymmetric(t *testing.T) {
	a := ToECEF(10, 20, 100)
	b := ToECEF(10.01, 20.01, 150)
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestVelocityKnotsNonPositiveElapsed(t *testing.T) {
	a := ToECEF(0, 0, 0)
	b := ToECEF(1, 1, 0)
	assert.Equal(t, 0.0, VelocityKnots(a, b, 0))
	assert.Equal(t, 0.0, VelocityKnots(a, b, -1))
}

func TestVelocityKnotsKnownDistance(t *testing.T) {
	a := ECEF{X: 0, Y: 0, Z: 0}
	b := ECEF{X: 1.94384, Y: 0, Z: 0}
	assert.InDelta(t, 1.0, VelocityKnots(a, b, 1), 1e-9)
}
