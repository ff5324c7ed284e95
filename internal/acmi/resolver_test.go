package acmi

import (
	"testing"

	"github.com/dcstacview/tacview-ingest/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id int32, tacID uint32, color, typ string, alive bool, lastSeen float64, lat, lon, alt float64) *ObjectRec {
	r := &ObjectRec{
		ID:          id,
		TacID:       tacID,
		Color:       color,
		Type:        typ,
		Alive:       alive,
		LastSeen:    lastSeen,
		CartCoords:  geo.ToECEF(lat, lon, alt),
		CanBeParent: canBeParent(typ),
	}
	return r
}

func TestResolveParentPrefersClosestSameColor(t *testing.T) {
	store := NewStore()
	near := rec(1, 0x1, "Blue", "Air+FixedWing", true, 10, 10.0, 10.0, 5000)
	far := rec(2, 0x2, "Blue", "Air+FixedWing", true, 10, 10.1, 10.1, 5000)
	store.Insert(near)
	store.Insert(far)

	weapon := rec(0, 0x3, "Blue", "Weapon+Missile", true, 10, 10.0001, 10.0001, 5000)
	id, _, ok := ResolveParent(weapon, store, DefaultResolverConfig())
	require.True(t, ok)
	assert.Equal(t, int32(1), id)
}

func TestResolveParentRejectsBeyondMaxDist(t *testing.T) {
	store := NewStore()
	distant := rec(1, 0x1, "Blue", "Air+FixedWing", true, 10, 20.0, 20.0, 5000)
	store.Insert(distant)

	weapon := rec(0, 0x3, "Blue", "Weapon+Missile", true, 10, 10.0, 10.0, 5000)
	_, _, ok := ResolveParent(weapon, store, DefaultResolverConfig())
	assert.False(t, ok)
}

func TestResolveParentViolet(t *testing.T) {
	store := NewStore()
	red := rec(1, 0x1, "Red", "Air+FixedWing", true, 10, 10.0, 10.0, 5000)
	store.Insert(red)

	weapon := rec(0, 0x3, "Violet", "Weapon+Missile", true, 10, 10.0001, 10.0001, 5000)
	id, _, ok := ResolveParent(weapon, store, DefaultResolverConfig())
	require.True(t, ok)
	assert.Equal(t, int32(1), id)
}

func TestResolveParentExcludesStaleNonGroundCandidate(t *testing.T) {
	store := NewStore()
	stale := rec(1, 0x1, "Blue", "Air+FixedWing", true, 5, 10.0, 10.0, 5000)
	store.Insert(stale)

	weapon := rec(0, 0x3, "Blue", "Weapon+Missile", true, 10, 10.0001, 10.0001, 5000)
	_, _, ok := ResolveParent(weapon, store, DefaultResolverConfig())
	assert.False(t, ok, "candidate last seen more than 2.5s before subject should be excluded")
}

func TestResolveParentKeepsStaleLiveGroundCandidate(t *testing.T) {
	store := NewStore()
	ground := rec(1, 0x1, "Blue", "Ground+Vehicle", true, 5, 10.0, 10.0, 5000)
	store.Insert(ground)

	weapon := rec(0, 0x3, "Blue", "Weapon+Missile", true, 10, 10.0001, 10.0001, 5000)
	id, _, ok := ResolveParent(weapon, store, DefaultResolverConfig())
	require.True(t, ok)
	assert.Equal(t, int32(1), id)
}

// Weapon impact against a nearby Air+ target.
func TestResolveImpactAirTargetUnbounded(t *testing.T) {
	store := NewStore()
	target := rec(1, 0x1, "Red", "Air+FixedWing", true, 10, 50.0, 50.0, 5000)
	store.Insert(target)

	weapon := rec(0, 0x3, "Blue", "Weapon+Missile", true, 10, 50.0001, 50.0001, 5000)
	id, _, ok := ResolveImpact(weapon, store, DefaultResolverConfig())
	require.True(t, ok)
	assert.Equal(t, int32(1), id)
}

func TestResolveImpactIgnoresNonAirTargets(t *testing.T) {
	store := NewStore()
	ground := rec(1, 0x1, "Red", "Ground+Vehicle", true, 10, 50.0, 50.0, 5000)
	store.Insert(ground)

	weapon := rec(0, 0x3, "Blue", "Weapon+Missile", true, 10, 50.0001, 50.0001, 5000)
	_, _, ok := ResolveImpact(weapon, store, DefaultResolverConfig())
	assert.False(t, ok)
}

func TestResolveImpactHonorsConfiguredMaxDist(t *testing.T) {
	store := NewStore()
	distant := rec(1, 0x1, "Red", "Air+FixedWing", true, 10, 51.0, 51.0, 5000)
	store.Insert(distant)

	weapon := rec(0, 0x3, "Blue", "Weapon+Missile", true, 10, 50.0, 50.0, 5000)
	cfg := ResolverConfig{ParentMaxDistM: 200, ImpactMaxDistM: 1000}
	_, _, ok := ResolveImpact(weapon, store, cfg)
	assert.False(t, ok, "target farther than the configured impact bound should be rejected")
}
