package repository

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
	"github.com/dcstacview/tacview-ingest/pkg/log"
)

// eventColumns is the column list shared by the event partitions and the
// staging table they are promoted through; its order must match
// internal/writer.EncodeEvent's packing exactly.
const eventColumns = "id, session_id, last_seen, alive, lat, lon, alt, roll, pitch, yaw, u_coord, v_coord, heading, velocity_kts, updates"

// PgEventStore implements writer.EventStore against the Postgres schema
// created by the embedded migrations.
type PgEventStore struct {
	conn *DBConnection
}

// NewPgEventStore returns a PgEventStore bound to conn.
func NewPgEventStore(conn *DBConnection) *PgEventStore {
	return &PgEventStore{conn: conn}
}

// PromoteBatch stages payload's binary COPY rows into a throwaway unlogged
// table, promotes them into the session's event partition, and upserts the
// highest-updates row per id into object.
func (s *PgEventStore) PromoteBatch(ctx context.Context, sessionID int32, payload *bytes.Buffer) error {
	staging := fmt.Sprintf("staging_event_%d", sessionID)
	partition := fmt.Sprintf("event_%d", sessionID)

	return s.conn.RawConn(ctx, func(pgConn *pgconn.PgConn) error {
		multi := pgConn.Exec(ctx, fmt.Sprintf(
			`BEGIN;
			 CREATE UNLOGGED TABLE %[1]s (LIKE %[2]s INCLUDING DEFAULTS);`,
			staging, partition,
		))
		if _, err := multi.ReadAll(); err != nil {
			return fmt.Errorf("creating staging table %s: %w", staging, err)
		}

		copySQL := fmt.Sprintf(`COPY %s (%s) FROM STDIN WITH (FORMAT binary)`, staging, eventColumns)
		if _, err := pgConn.CopyFrom(ctx, payload, copySQL); err != nil {
			_, _ = pgConn.Exec(ctx, "ROLLBACK;").ReadAll()
			return fmt.Errorf("copying into %s: %w", staging, err)
		}

		promote := pgConn.Exec(ctx, fmt.Sprintf(`
			CREATE INDEX ON %[1]s (id, updates DESC);

			INSERT INTO %[2]s (%[3]s)
			SELECT %[3]s FROM %[1]s;

			WITH latest AS (
				SELECT *, row_number() OVER (PARTITION BY id ORDER BY updates DESC) AS rn
				FROM %[1]s
			)
			INSERT INTO object (id, session_id, last_seen, alive, lat, lon, alt, roll, pitch, yaw, u_coord, v_coord, heading, velocity_kts, updates)
			SELECT id, session_id, last_seen, alive, lat, lon, alt, roll, pitch, yaw, u_coord, v_coord, heading, velocity_kts, updates
			FROM latest WHERE rn = 1
			ON CONFLICT (id) DO UPDATE SET
				last_seen = EXCLUDED.last_seen,
				alive = EXCLUDED.alive,
				lat = EXCLUDED.lat, lon = EXCLUDED.lon, alt = EXCLUDED.alt,
				roll = EXCLUDED.roll, pitch = EXCLUDED.pitch, yaw = EXCLUDED.yaw,
				u_coord = EXCLUDED.u_coord, v_coord = EXCLUDED.v_coord, heading = EXCLUDED.heading,
				velocity_kts = EXCLUDED.velocity_kts, updates = EXCLUDED.updates
			WHERE object.updates < EXCLUDED.updates;

			DROP TABLE %[1]s;
			COMMIT;`,
			staging, partition, eventColumns,
		))
		if _, err := promote.ReadAll(); err != nil {
			_, _ = pgConn.Exec(ctx, "ROLLBACK;").ReadAll()
			return fmt.Errorf("promoting %s into %s: %w", staging, partition, err)
		}

		log.Debugf("promoted batch into %s", partition)
		return nil
	})
}

// InsertImpacts persists a batch of resolved impacts via a single prepared
// statement executed once per row; impact rows are small and infrequent
// enough that batching into COPY is not worth the complexity.
func (s *PgEventStore) InsertImpacts(ctx context.Context, impacts []acmi.Impact) error {
	if len(impacts) == 0 {
		return nil
	}

	tx, err := s.conn.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning impact insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO impact (session_id, killer, target, weapon, time_offset, impact_dist)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("preparing impact insert: %w", err)
	}
	defer stmt.Close()

	for _, imp := range impacts {
		if _, err := stmt.ExecContext(ctx, imp.SessionID, imp.Killer, imp.Target, imp.Weapon, imp.TimeOffset, imp.ImpactDist); err != nil {
			return fmt.Errorf("inserting impact for weapon %d: %w", imp.Weapon, err)
		}
	}

	return tx.Commit()
}
