package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/dcstacview/tacview-ingest/pkg/log"
)

var (
	dbConnOnce     sync.Once
	dbConnInstance *DBConnection
)

// DBConnection wraps the pool used for prepared-statement access. Raw
// binary COPY traffic bypasses this pool's query logging and goes through a
// dedicated pgx connection obtained via RawConn.
type DBConnection struct {
	DB *sqlx.DB
}

// Connect opens (once) a hook-wrapped connection pool to url, a standard
// postgres:// connection string, and verifies the schema version.
func Connect(url string) {
	dbConnOnce.Do(func() {
		sql.Register("pgxWithHooks", sqlhooks.Wrap(stdlib.GetDefaultDriver(), &Hooks{}))
		dbHandle, err := sqlx.Open("pgxWithHooks", url)
		if err != nil {
			log.Fatalf("sqlx.Open() error: %v", err)
		}

		dbHandle.SetConnMaxLifetime(time.Minute * 3)
		dbHandle.SetMaxOpenConns(10)
		dbHandle.SetMaxIdleConns(10)

		if err := dbHandle.Ping(); err != nil {
			log.Fatalf("database ping failed: %v", err)
		}

		dbConnInstance = &DBConnection{DB: dbHandle}
		checkDBVersion(dbHandle.DB)
	})
}

// GetConnection returns the process-wide connection pool. Connect must have
// been called first.
func GetConnection() *DBConnection {
	if dbConnInstance == nil {
		log.Fatalf("database connection not initialized")
	}
	return dbConnInstance
}

// RawConn lends the underlying *pgconn.PgConn of one pooled connection to fn
// for the duration of the call, for use by the binary COPY path which needs
// pgconn's CopyFrom directly rather than a database/sql Exec.
func (c *DBConnection) RawConn(ctx context.Context, fn func(pgConn *pgconn.PgConn) error) error {
	conn, err := c.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring raw connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		stdlibConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", driverConn)
		}
		return fn(stdlibConn.Conn().PgConn())
	})
}
