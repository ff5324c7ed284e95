package acmi

import "github.com/dcstacview/tacview-ingest/internal/geo"

// ResolverConfig holds the two distance-rejection thresholds the nearest-
// neighbor searches apply. Both are configurable since real deployments have
// disagreed on the impact bound.
type ResolverConfig struct {
	// ParentMaxDistM rejects the otherwise-closest parent candidate if its
	// distance exceeds this many meters. Default: 200.
	ParentMaxDistM float64
	// ImpactMaxDistM rejects the otherwise-closest impact candidate if its
	// distance exceeds this many meters, when > 0. Default: unbounded (0
	// disables the check); some deployments have used 1000m instead.
	ImpactMaxDistM float64
}

// DefaultResolverConfig returns 200m for parent search and unbounded for
// impact search.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{ParentMaxDistM: 200, ImpactMaxDistM: 0}
}

const lookbackSecs = 2.5

// contact is a candidate match returned by the two search modes below.
type contact struct {
	id   int32
	dist float64
}

// acceptableParentColors returns the colors a subject of the given color may
// draw a parent from.
func acceptableParentColors(subjectColor string) []string {
	if subjectColor == "Violet" {
		return []string{"Red", "Blue", "Grey"}
	}
	return []string{subjectColor}
}

// acceptableImpactColors returns the colors a subject of the given color may
// draw an impact target from: the opposite side.
func acceptableImpactColors(subjectColor string) []string {
	if subjectColor == "Blue" {
		return []string{"Red"}
	}
	return []string{"Blue"}
}

func colorIn(color string, set []string) bool {
	for _, c := range set {
		if c == color {
			return true
		}
	}
	return false
}

// ResolveParent finds the closest eligible parent for rec at the moment of
// its creation. Returns false if no acceptable
// candidate exists or the closest one exceeds cfg.ParentMaxDistM.
func ResolveParent(rec *ObjectRec, store *Store, cfg ResolverConfig) (id int32, dist float64, ok bool) {
	colors := acceptableParentColors(rec.Color)
	best, found := search(rec, store, colors, false)
	if !found {
		return 0, 0, false
	}
	if best.dist > cfg.ParentMaxDistM {
		return 0, 0, false
	}
	return best.id, best.dist, true
}

// ResolveImpact finds the closest eligible target for a dying Weapon or
// Projectile. Candidates must be Type
// "Air+..." on the opposing color. No upper bound is applied unless
// cfg.ImpactMaxDistM > 0.
func ResolveImpact(rec *ObjectRec, store *Store, cfg ResolverConfig) (id int32, dist float64, ok bool) {
	colors := acceptableImpactColors(rec.Color)
	best, found := search(rec, store, colors, true)
	if !found {
		return 0, 0, false
	}
	if cfg.ImpactMaxDistM > 0 && best.dist > cfg.ImpactMaxDistM {
		return 0, 0, false
	}
	return best.id, best.dist, true
}

// search performs the shared linear scan used by both resolver modes.
// requireAirTarget restricts candidates to Type starting with "Air+", which
// only the impact search applies.
func search(rec *ObjectRec, store *Store, acceptColors []string, requireAirTarget bool) (contact, bool) {
	offsetTime := rec.LastSeen - lookbackSecs

	var best contact
	haveBest := false

	store.Range(func(near *ObjectRec) {
		if !near.CanBeParent || near.TacID == rec.TacID || !colorIn(near.Color, acceptColors) {
			return
		}
		if requireAirTarget && !hasAirPrefix(near.Type) {
			return
		}
		if offsetTime > near.LastSeen && !isLiveGroundUnit(near) {
			return
		}

		dist := geo.Distance(rec.CartCoords, near.CartCoords)
		if !haveBest || dist < best.dist {
			best = contact{id: near.ID, dist: dist}
			haveBest = true
		}
	})

	return best, haveBest
}

func hasAirPrefix(recType string) bool {
	return len(recType) >= 4 && recType[:4] == "Air+"
}
