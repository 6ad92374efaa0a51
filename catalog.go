package vitalsbot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// One pass over information_schema builds the whole snapshot: every public
// base table with its columns in ordinal order.
const snapshotSQL = `
SELECT
    c.table_schema,
    c.table_name,
    c.column_name,
    c.data_type,
    CASE c.is_nullable WHEN 'YES' THEN true ELSE false END AS nullable,
    COALESCE(c.column_default, '') AS default_val
FROM information_schema.columns c
JOIN information_schema.tables t
    ON t.table_schema = c.table_schema
    AND t.table_name = c.table_name
WHERE c.table_schema = 'public'
  AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position;
`

const freshColumnsSQL = `
SELECT
    c.column_name,
    c.data_type,
    CASE c.is_nullable WHEN 'YES' THEN true ELSE false END AS nullable,
    COALESCE(c.column_default, '') AS default_val
FROM information_schema.columns c
WHERE c.table_schema = 'public'
  AND c.table_name = $1
ORDER BY c.ordinal_position;
`

const indexesSQL = `
SELECT indexname, indexdef
FROM pg_catalog.pg_indexes
WHERE schemaname = 'public'
  AND tablename = $1
ORDER BY indexname;
`

// Snapshot is an immutable view of the public schema at one refresh.
// Concurrent readers share it without locking; a refresh builds a new
// snapshot and swaps the pointer.
type Snapshot struct {
	tables map[string]TableDescriptor
	names  []string
}

// Table returns the descriptor for name, if present.
func (s *Snapshot) Table(name string) (TableDescriptor, bool) {
	t, ok := s.tables[strings.ToLower(name)]
	return t, ok
}

// Names returns all table names in stable alphabetical order.
func (s *Snapshot) Names() []string {
	return s.names
}

// Catalog introspects the database schema and caches the result for the
// process lifetime. The schema is assumed stable while the process runs;
// Refresh rebuilds the snapshot on demand.
type Catalog struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  zerolog.Logger
	snap    atomic.Pointer[Snapshot]
}

// NewCatalog creates a Catalog over pool. Call Refresh before first use.
func NewCatalog(pool *pgxpool.Pool, timeout time.Duration, logger zerolog.Logger) *Catalog {
	if timeout <= 0 {
		panic("vitalsbot: catalog timeout must be > 0")
	}
	return &Catalog{pool: pool, timeout: timeout, logger: logger}
}

// Refresh rebuilds the snapshot from the live database and swaps it in
// atomically. In-flight readers keep the old snapshot until they finish.
func (c *Catalog) Refresh(ctx context.Context) error {
	startTime := time.Now()

	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.pool.Query(queryCtx, snapshotSQL)
	if err != nil {
		return fmt.Errorf("%w: schema introspection failed: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	tables := make(map[string]TableDescriptor)
	var order []string
	for rows.Next() {
		var schema, table string
		var col ColumnDescriptor
		if err := rows.Scan(&schema, &table, &col.Name, &col.Type, &col.Nullable, &col.Default); err != nil {
			return fmt.Errorf("%w: schema scan failed: %v", ErrCatalogUnavailable, err)
		}
		col.Category = categorize(col.Type)
		key := strings.ToLower(table)
		desc, ok := tables[key]
		if !ok {
			desc = TableDescriptor{Schema: schema, Name: table}
			order = append(order, table)
		}
		desc.Columns = append(desc.Columns, col)
		tables[key] = desc
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: schema introspection failed: %v", ErrCatalogUnavailable, err)
	}

	sort.Strings(order)
	c.snap.Store(&Snapshot{tables: tables, names: order})

	c.logger.Info().
		Int("table_count", len(order)).
		Dur("duration", time.Since(startTime)).
		Msg("schema snapshot refreshed")
	return nil
}

// Snapshot returns the current cached snapshot, loading it on first use.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := c.snap.Load(); s != nil {
		return s, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c.snap.Load(), nil
}

// TableExists reports whether the named table exists. A connectivity
// failure is ErrCatalogUnavailable, never "absent".
func (c *Catalog) TableExists(ctx context.Context, name string) (bool, error) {
	s, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	_, ok := s.Table(name)
	return ok, nil
}

// Describe returns the cached descriptor for the named table.
func (c *Catalog) Describe(ctx context.Context, name string) (TableDescriptor, error) {
	s, err := c.Snapshot(ctx)
	if err != nil {
		return TableDescriptor{}, err
	}
	t, ok := s.Table(name)
	if !ok {
		return TableDescriptor{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// ListTables returns all known table names, stable alphabetical.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	s, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Names(), nil
}

// ForceDescribe always reads the live database, bypassing the cache, so the
// operator-facing /describe stays accurate even if the schema drifted after
// startup. Also returns the table's indexes.
func (c *Catalog) ForceDescribe(ctx context.Context, name string) (TableDescriptor, []IndexDescriptor, error) {
	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.pool.Query(queryCtx, freshColumnsSQL, name)
	if err != nil {
		return TableDescriptor{}, nil, fmt.Errorf("%w: describe failed: %v", ErrCatalogUnavailable, err)
	}
	desc := TableDescriptor{Schema: "public", Name: name}
	for rows.Next() {
		var col ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default); err != nil {
			rows.Close()
			return TableDescriptor{}, nil, fmt.Errorf("%w: describe scan failed: %v", ErrCatalogUnavailable, err)
		}
		col.Category = categorize(col.Type)
		desc.Columns = append(desc.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return TableDescriptor{}, nil, fmt.Errorf("%w: describe failed: %v", ErrCatalogUnavailable, err)
	}
	if len(desc.Columns) == 0 {
		return TableDescriptor{}, nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	idxRows, err := c.pool.Query(queryCtx, indexesSQL, name)
	if err != nil {
		return TableDescriptor{}, nil, fmt.Errorf("%w: index introspection failed: %v", ErrCatalogUnavailable, err)
	}
	defer idxRows.Close()

	var indexes []IndexDescriptor
	for idxRows.Next() {
		var idx IndexDescriptor
		if err := idxRows.Scan(&idx.Name, &idx.Definition); err != nil {
			return TableDescriptor{}, nil, fmt.Errorf("%w: index scan failed: %v", ErrCatalogUnavailable, err)
		}
		indexes = append(indexes, idx)
	}
	if err := idxRows.Err(); err != nil {
		return TableDescriptor{}, nil, fmt.Errorf("%w: index introspection failed: %v", ErrCatalogUnavailable, err)
	}

	return desc, indexes, nil
}

// categorize maps an information_schema data_type to a coarse category.
func categorize(dataType string) ColumnCategory {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint", "decimal", "numeric",
		"real", "double precision", "smallserial", "serial", "bigserial", "money":
		return CategoryNumeric
	case "timestamp without time zone", "timestamp with time zone",
		"date", "time without time zone", "time with time zone", "interval":
		return CategoryTimestamp
	case "character varying", "character", "text", "citext", "uuid":
		return CategoryText
	case "boolean":
		return CategoryBoolean
	default:
		return CategoryOther
	}
}
