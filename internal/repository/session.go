package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
)

// pgUniqueViolation is the SQLSTATE Postgres returns for a unique
// constraint violation, used to detect a re-processed start_time.
const pgUniqueViolation = "23505"

// SessionRepo persists acmi.Session rows and the per-session event
// partition they own.
type SessionRepo struct {
	conn *DBConnection
}

// NewSessionRepo returns a SessionRepo bound to conn.
func NewSessionRepo(conn *DBConnection) *SessionRepo {
	return &SessionRepo{conn: conn}
}

// InsertSession binds s.SessionID by inserting its reference fields and
// creating the event_<id> partition on the fly. If overwrite is true and a
// session with the same start_time already exists, that session (and its
// cascaded object/event/impact rows) is deleted first. Without overwrite, a
// repeat start_time surfaces acmi.ErrDuplicateSession.
func (r *SessionRepo) InsertSession(ctx context.Context, s *acmi.Session, overwrite bool) error {
	if overwrite {
		var priorID int32
		err := r.conn.DB.QueryRowxContext(ctx, `SELECT session_id FROM session WHERE start_time = $1`, s.StartTime).Scan(&priorID)
		switch {
		case err == nil:
			if _, err := r.conn.DB.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS event_%d`, priorID)); err != nil {
				return fmt.Errorf("dropping prior event partition event_%d: %w", priorID, err)
			}
			if _, err := r.conn.DB.ExecContext(ctx, `DELETE FROM session WHERE session_id = $1`, priorID); err != nil {
				return fmt.Errorf("deleting prior session for overwrite: %w", err)
			}
		case errors.Is(err, sql.ErrNoRows):
			// nothing to overwrite
		default:
			return fmt.Errorf("looking up prior session for overwrite: %w", err)
		}
	}

	var sessionID int32
	err := r.conn.DB.QueryRowxContext(ctx, `
		INSERT INTO session (lat, lon, title, datasource, author, file_version, start_time, client_version, status, time_offset, time_since_last)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING session_id`,
		s.Lat, s.Lon, s.Title, s.DataSource, s.Author, s.FileVersion, s.StartTime, s.ClientVersion, s.Status, s.TimeOffset, s.TimeSinceLast,
	).Scan(&sessionID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return acmi.ErrDuplicateSession
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	partition := fmt.Sprintf("event_%d", sessionID)
	stmt := fmt.Sprintf(
		`CREATE TABLE %s PARTITION OF event FOR VALUES IN (%d)`,
		partition, sessionID,
	)
	if _, err := r.conn.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating event partition %s: %w", partition, err)
	}

	s.SessionID = sessionID
	return nil
}

// UpdateStatus sets the session's terminal status (Success or Error).
func (r *SessionRepo) UpdateStatus(ctx context.Context, sessionID int32, status string) error {
	_, err := r.conn.DB.ExecContext(ctx, `UPDATE session SET status = $1 WHERE session_id = $2`, status, sessionID)
	if err != nil {
		return fmt.Errorf("updating session %d status: %w", sessionID, err)
	}
	return nil
}
