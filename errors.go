package vitalsbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel error kinds. Everything database-adjacent is converted to one of
// these before it crosses into transport code; raw pgx errors never reach
// message rendering.
var (
	// ErrCatalogUnavailable means the database could not be reached for
	// introspection. Transient: callers retry on the next user action.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrDomainUnavailable means no candidate table satisfied a domain's
	// required fields. Not a failure — a first-class state, surfaced as
	// "data not found" rather than an error dialog.
	ErrDomainUnavailable = errors.New("domain unavailable: table not found or columns unresolvable")

	// ErrPoolTimeout means all connection slots stayed busy for the whole
	// acquire window. Surfaced as "try again shortly".
	ErrPoolTimeout = errors.New("connection pool timeout")

	// ErrTableNotFound is returned by Catalog.Describe for unknown tables.
	ErrTableNotFound = errors.New("table not found")

	// errSchemaMismatch classifies execution failures caused by a stale
	// domain mapping (dropped/renamed relation or column). It triggers a
	// single re-resolution before the domain flips to unavailable.
	errSchemaMismatch = errors.New("schema mismatch")
)

// Postgres error codes that indicate the cached schema no longer matches.
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// classifyExecError converts a pgx/pgconn error into one of the sentinel
// kinds. Unrecognized errors are returned wrapped but unclassified.
func classifyExecError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedTable, pgUndefinedColumn:
			return fmt.Errorf("%w: %s", errSchemaMismatch, pgErr.Message)
		}
		return fmt.Errorf("query failed: %s", pgErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("query timed out: %w", err)
	}
	// Network-level failures (dial errors, broken connections) mean the
	// database is unreachable, not that data is absent.
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

// IsSchemaMismatch reports whether err was classified as a stale-schema
// execution failure.
func IsSchemaMismatch(err error) bool {
	return errors.Is(err, errSchemaMismatch)
}
