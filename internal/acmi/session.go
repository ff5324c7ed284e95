package acmi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dcstacview/tacview-ingest/internal/geo"
)

// recordingTimeLayout matches RecordingTime values such as
// "2019-01-01T12:12:01.101Z".
const recordingTimeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// ApplyHeaderKV applies one recognized reference header key/value pair
// pair. Unrecognized keys, and header frames with no '=' in their
// trailing comma field (KV.Key == ""), are ignored. Once lat, lon and
// start_time are all known, AllRefs flips true exactly once; the caller
// (the ingest consumer) is responsible for binding SessionID at that
// transition and must not call ApplyHeaderKV again afterward: the
// pre-AllRefs gate is authoritative, so a stray header frame seen after
// binding is simply ignored.
func (s *Session) ApplyHeaderKV(kv KV) error {
	if kv.Key == "" {
		return nil
	}

	switch kv.Key {
	case "ReferenceLatitude":
		v, err := strconv.ParseFloat(kv.Value, 64)
		if err != nil {
			return fmt.Errorf("%w: ReferenceLatitude=%q: %v", ErrMalformedFrame, kv.Value, err)
		}
		s.Lat = v
		s.hasLat = true
	case "ReferenceLongitude":
		v, err := strconv.ParseFloat(kv.Value, 64)
		if err != nil {
			return fmt.Errorf("%w: ReferenceLongitude=%q: %v", ErrMalformedFrame, kv.Value, err)
		}
		s.Lon = v
		s.hasLon = true
	case "DataSource":
		s.DataSource = kv.Value
	case "Title":
		s.Title = kv.Value
	case "Author":
		s.Author = kv.Value
	case "FileVersion":
		v, err := strconv.ParseFloat(kv.Value, 64)
		if err != nil {
			return fmt.Errorf("%w: FileVersion=%q: %v", ErrMalformedFrame, kv.Value, err)
		}
		s.FileVersion = v
	case "RecordingTime":
		t, err := time.Parse(recordingTimeLayout, kv.Value)
		if err != nil {
			return fmt.Errorf("%w: RecordingTime=%q: %v", ErrMalformedFrame, kv.Value, err)
		}
		s.StartTime = t.Truncate(time.Second).UTC()
		s.hasStartTime = true
	default:
		// unrecognized key: ignored
	}

	s.AllRefs = s.hasLat && s.hasLon && s.hasStartTime
	return nil
}

// AdvanceTime processes a "#<seconds>" time-tick frame.
func (s *Session) AdvanceTime(offset float64) {
	s.TimeSinceLast = offset - s.TimeOffset
	s.TimeOffset = offset
}

// ApplyUpdate processes a create-or-update frame for tacID.
// It returns the affected record and whether it was newly created in this
// call: the caller must persist newly created records immediately with a
// single-row insert, before any batched event writes reference their id.
func (s *Session) ApplyUpdate(tacID uint32, kvs []KV, cfg ResolverConfig) (rec *ObjectRec, created bool, err error) {
	rec, existing := s.Store.Get(tacID)
	if existing {
		rec.SecsSinceLastSeen = s.TimeOffset - rec.LastSeen
		rec.LastSeen = s.TimeOffset
		rec.Updates++
	} else {
		rec = &ObjectRec{
			TacID:     tacID,
			SessionID: s.SessionID,
			FirstSeen: s.TimeOffset,
			LastSeen:  s.TimeOffset,
			Alive:     true,
			Updates:   1,
			Alt:       1.0,
		}
		s.Store.Insert(rec)
		created = true
	}

	for _, kv := range kvs {
		if err := applyFieldKV(rec, kv, s.Lat, s.Lon); err != nil {
			return rec, created, err
		}
	}

	newCart := geo.ToECEF(rec.Lat, rec.Lon, rec.Alt)
	if rec.hasCartCoords && rec.SecsSinceLastSeen > 0 {
		rec.VelocityKts = geo.VelocityKnots(rec.CartCoords, newCart, rec.SecsSinceLastSeen)
	}
	rec.CartCoords = newCart
	rec.hasCartCoords = true

	if rec.Updates == 1 && rec.ShouldHaveParent {
		if id, dist, ok := ResolveParent(rec, s.Store, cfg); ok {
			rec.Parent = &id
			rec.ParentDist = &dist
		}
	}

	return rec, created, nil
}

// ApplyRemoval processes a "-<hex-id>" removal frame. If the
// dying record is a Weapon or Projectile, impact resolution runs and, if a
// target is found, impact is non-nil and ready to be persisted.
func (s *Session) ApplyRemoval(tacID uint32, cfg ResolverConfig) (rec *ObjectRec, impact *Impact, err error) {
	rec, ok := s.Store.Get(tacID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: removal of unknown tac_id %x", ErrMalformedFrame, tacID)
	}

	rec.Alive = false
	rec.Updates++

	if isWeaponOrProjectile(rec.Type) {
		if id, dist, found := ResolveImpact(rec, s.Store, cfg); found {
			rec.Impacted = &id
			rec.ImpactedDist = &dist
			impact = &Impact{
				SessionID:  rec.SessionID,
				Killer:     rec.Parent,
				Target:     id,
				Weapon:     rec.ID,
				TimeOffset: s.TimeOffset,
				ImpactDist: dist,
			}
		}
	}

	return rec, impact, nil
}

// applyFieldKV applies one non-coordinate field KV to rec. Key "T" carries
// the coordinate tuple and is dispatched to applyCoordTuple; "Group" maps
// to the grp field.
func applyFieldKV(rec *ObjectRec, kv KV, refLat, refLon float64) error {
	switch kv.Key {
	case "T":
		return applyCoordTuple(rec, kv.Value, refLat, refLon)
	case "Name":
		rec.Name = kv.Value
	case "Color":
		rec.Color = kv.Value
	case "Country":
		rec.Country = kv.Value
	case "Group":
		rec.Group = kv.Value
	case "Pilot":
		rec.Pilot = kv.Value
	case "Type":
		rec.Type = kv.Value
		rec.ShouldHaveParent = shouldHaveParent(kv.Value)
		rec.CanBeParent = canBeParent(kv.Value)
	case "Coalition":
		rec.Coalition = kv.Value
	default:
		// unrecognized field key: ignored
	}
	return nil
}
