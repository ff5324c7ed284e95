// Package acmi implements the ACMI telemetry line grammar: the reference
// frame (session header, time base, object store), the per-line decoder,
// and the parent/impact relationship resolver.
package acmi

import (
	"time"

	"github.com/dcstacview/tacview-ingest/internal/geo"
)

// Status values a session can hold in the relational store.
const (
	StatusInProgress = "In Progress"
	StatusSuccess    = "Success"
	StatusError      = "Error"
)

// Session accumulates the reference header fields of one recording and owns
// the object store for the lifetime of the connection. It corresponds to
// the recording's reference frame and time base.
type Session struct {
	SessionID int32 // store-assigned once AllRefs transitions to true

	Lat, Lon       float64
	Title          string
	DataSource     string
	Author         string
	FileVersion    float64
	StartTime      time.Time
	ClientVersion  string
	Status         string
	TimeOffset     float64
	TimeSinceLast  float64
	AllRefs        bool

	Store *Store

	hasLat, hasLon, hasStartTime bool
}

// NewSession returns a Session with an empty object store and default status.
func NewSession() *Session {
	return &Session{
		Status: StatusInProgress,
		Store:  NewStore(),
	}
}

// ObjectRec is the in-memory record for one ACMI object, keyed by TacID.
// Field names mirror the relational object/event schema it is flushed to.
type ObjectRec struct {
	// Identity
	ID                 int32 // store-assigned after first persist
	TacID              uint32
	SessionID          int32
	FirstSeen          float64
	LastSeen           float64
	SecsSinceLastSeen  float64
	Updates            int32
	Written            bool

	// Descriptive
	Name      string
	Color     string
	Country   string
	Group     string
	Pilot     string
	Type      string
	Coalition string

	// Kinematic
	Lat, Lon, Alt                    float64
	Roll, Pitch, Yaw                 float64
	UCoord, VCoord                   float64
	Heading                          float64
	VelocityKts                      float64
	CartCoords                       geo.ECEF
	hasCartCoords                    bool

	// Relations
	Alive        bool
	Parent       *int32
	ParentDist   *float64
	Impacted     *int32
	ImpactedDist *float64

	// Derived predicates, computed once Type is known.
	ShouldHaveParent bool
	CanBeParent      bool
}

// Event is the append-only per-tick snapshot written to the event partition.
type Event struct {
	ID           int32
	SessionID    int32
	LastSeen     float64
	Alive        bool
	Lat, Lon     float64
	Alt          float64
	Roll, Pitch  float64
	Yaw          float64
	UCoord       float64
	VCoord       float64
	Heading      float64
	VelocityKts  float64
	Updates      int32
}

// EventFromRec snapshots the persistable fields of an ObjectRec into an Event.
func EventFromRec(rec *ObjectRec) Event {
	return Event{
		ID:          rec.ID,
		SessionID:   rec.SessionID,
		LastSeen:    rec.LastSeen,
		Alive:       rec.Alive,
		Lat:         rec.Lat,
		Lon:         rec.Lon,
		Alt:         rec.Alt,
		Roll:        rec.Roll,
		Pitch:       rec.Pitch,
		Yaw:         rec.Yaw,
		UCoord:      rec.UCoord,
		VCoord:      rec.VCoord,
		Heading:     rec.Heading,
		VelocityKts: rec.VelocityKts,
		Updates:     rec.Updates,
	}
}

// Impact records a weapon death resolved against a nearby target.
type Impact struct {
	SessionID  int32
	Killer     *int32
	Target     int32
	Weapon     int32
	TimeOffset float64
	ImpactDist float64
}
