package repository

import (
	"context"
	"time"

	"github.com/dcstacview/tacview-ingest/pkg/log"
)

type hookTimingKey struct{}

// Hooks satisfies the sqlhooks.Hooks interface
type Hooks struct{}

// Before hook will print the query with its args and return the context with the timestamp
func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("SQL query %s %q", query, args)
	return context.WithValue(ctx, hookTimingKey{}, time.Now()), nil
}

// After hook will get the timestamp registered on the Before hook and print the elapsed time
func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin := ctx.Value(hookTimingKey{}).(time.Time)
	log.Debugf("Took: %s", time.Since(begin))
	return ctx, nil
}
