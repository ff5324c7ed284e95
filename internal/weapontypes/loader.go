// Package weapontypes loads the static weapon/category CSV into the
// weapon_types table so the impact analytic views can group impacts by
// category instead of raw Type string.
package weapontypes

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/dcstacview/tacview-ingest/pkg/log"
)

// Entry is one row of the source CSV: a Type substring and the category it
// maps to.
type Entry struct {
	Type     string
	Category string
}

// Load parses a two-column, headered CSV (type,category) from r.
func Load(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing weapon types csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] { // skip header row
		entries = append(entries, Entry{Type: rec[0], Category: rec[1]})
	}
	return entries, nil
}

// Upsert writes entries into weapon_types, replacing the category of any
// type already present.
func Upsert(ctx context.Context, db *sqlx.DB, entries []Entry) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning weapon_types transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO weapon_types (type, category) VALUES ($1, $2)
		ON CONFLICT (type) DO UPDATE SET category = EXCLUDED.category`)
	if err != nil {
		return fmt.Errorf("preparing weapon_types upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Type, e.Category); err != nil {
			return fmt.Errorf("upserting weapon type %q: %w", e.Type, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing weapon_types upsert: %w", err)
	}

	log.Infof("loaded %d weapon types", len(entries))
	return nil
}
