package repository

import (
	"context"
	"fmt"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
)

// ObjectRepo persists the single-row "first time observed" insert for an
// ObjectRec; all subsequent updates for that record flow through the bulk
// writer's batched upsert instead.
type ObjectRepo struct {
	conn *DBConnection
}

// NewObjectRepo returns an ObjectRepo bound to conn.
func NewObjectRepo(conn *DBConnection) *ObjectRepo {
	return &ObjectRepo{conn: conn}
}

// InsertFirstSeen inserts rec's first snapshot and sets rec.ID from the
// RETURNING clause.
func (r *ObjectRepo) InsertFirstSeen(ctx context.Context, rec *acmi.ObjectRec) error {
	var id int32
	err := r.conn.DB.QueryRowxContext(ctx, `
		INSERT INTO object (
			tac_id, session_id, first_seen, last_seen, updates, written,
			name, color, country, grp, pilot, type, coalition,
			lat, lon, alt, roll, pitch, yaw, u_coord, v_coord, heading, velocity_kts,
			alive, parent, parent_dist, impacted, impacted_dist,
			should_have_parent, can_be_parent
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28,
			$29, $30
		) RETURNING id`,
		rec.TacID, rec.SessionID, rec.FirstSeen, rec.LastSeen, rec.Updates, true,
		nullable(rec.Name), nullable(rec.Color), nullable(rec.Country), nullable(rec.Group), nullable(rec.Pilot), nullable(rec.Type), nullable(rec.Coalition),
		rec.Lat, rec.Lon, rec.Alt, rec.Roll, rec.Pitch, rec.Yaw, rec.UCoord, rec.VCoord, rec.Heading, rec.VelocityKts,
		rec.Alive, rec.Parent, rec.ParentDist, rec.Impacted, rec.ImpactedDist,
		rec.ShouldHaveParent, rec.CanBeParent,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("inserting object tac_id=%x: %w", rec.TacID, err)
	}

	rec.ID = id
	rec.Written = true
	return nil
}

// nullable turns an empty string into a nil driver value so optional text
// and enum columns store SQL NULL instead of an empty string.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
