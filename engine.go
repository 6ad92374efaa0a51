package vitalsbot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Engine is the core read-only access layer: connection pool, schema
// catalog, domain resolver, and the query execution pipeline. All exported
// methods are safe for concurrent use from multiple goroutines.
type Engine struct {
	config   Config
	pool     *pgxpool.Pool
	slots    *slotGate
	catalog  *Catalog
	resolver *Resolver
	logger   zerolog.Logger

	startedAt time.Time
	lastQuery atomic.Pointer[time.Time]
}

// New creates an Engine. connString is the PostgreSQL connection string.
// Panics on invalid config; returns an error only for runtime failures
// (pool creation, bad connection string).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*Engine, error) {
	if connString == "" {
		panic("vitalsbot: connString must be non-empty")
	}

	// Fill zero values with defaults, then validate.
	def := defaultConfig()
	if config.Pool.MaxConns == 0 {
		config.Pool.MaxConns = def.Pool.MaxConns
	}
	if config.Pool.MinConns == 0 {
		config.Pool.MinConns = def.Pool.MinConns
	}
	if config.Pool.AcquireTimeoutSeconds == 0 {
		config.Pool.AcquireTimeoutSeconds = def.Pool.AcquireTimeoutSeconds
	}
	if config.Query.TimeoutSeconds == 0 {
		config.Query.TimeoutSeconds = def.Query.TimeoutSeconds
	}
	if config.Query.CatalogTimeout == 0 {
		config.Query.CatalogTimeout = def.Query.CatalogTimeout
	}
	if config.Query.MaxRows == 0 {
		config.Query.MaxRows = def.Query.MaxRows
	}
	if config.Query.PageSize == 0 {
		config.Query.PageSize = def.Query.PageSize
	}
	if config.Query.BrowsePageSize == 0 {
		config.Query.BrowsePageSize = def.Query.BrowsePageSize
	}
	if config.Query.MaxPageSize == 0 {
		config.Query.MaxPageSize = def.Query.MaxPageSize
	}

	if config.Pool.MaxConns < 2 {
		panic("vitalsbot: pool.max_conns must be >= 2")
	}
	if config.Pool.MinConns < 0 || config.Pool.MinConns > config.Pool.MaxConns {
		panic("vitalsbot: pool.min_conns must be between 0 and pool.max_conns")
	}
	if config.Pool.AcquireTimeoutSeconds <= 0 {
		panic("vitalsbot: pool.acquire_timeout_seconds must be > 0")
	}
	if config.Query.TimeoutSeconds <= 0 {
		panic("vitalsbot: query.timeout_seconds must be > 0")
	}
	if config.Query.MaxRows <= 0 {
		panic("vitalsbot: query.max_rows must be > 0")
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("vitalsbot: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("vitalsbot: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}

	// Session-level guard: even if a statement slipped past both validation
	// layers, the session refuses writes.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
		if config.Timezone != "" {
			escaped := strings.ReplaceAll(config.Timezone, "'", "''")
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	catalogTimeout := time.Duration(config.Query.CatalogTimeout) * time.Second
	catalog := NewCatalog(pool, catalogTimeout, logger)

	return &Engine{
		config:    config,
		pool:      pool,
		slots:     newSlotGate(config.Pool.MaxConns, time.Duration(config.Pool.AcquireTimeoutSeconds)*time.Second),
		catalog:   catalog,
		resolver:  NewResolver(catalog, BuiltinDomains(), logger),
		logger:    logger,
		startedAt: time.Now(),
	}, nil
}

// Catalog returns the schema catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Resolver returns the domain resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Config returns the effective engine configuration.
func (e *Engine) Config() Config { return e.config }

// Close closes the connection pool.
func (e *Engine) Close() {
	e.pool.Close()
}

// Ping verifies database connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := e.pool.Ping(queryCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return nil
}

// HealthInfo is the /health report.
type HealthInfo struct {
	Uptime      time.Duration  `json:"uptime"`
	DBReachable bool           `json:"db_reachable"`
	LastQueryAt *time.Time     `json:"last_query_at,omitempty"`
	Domains     []DomainStatus `json:"domains"`
}

// Health gathers process uptime, pool reachability, the last successful
// query timestamp, and per-domain availability.
func (e *Engine) Health(ctx context.Context) HealthInfo {
	return HealthInfo{
		Uptime:      time.Since(e.startedAt),
		DBReachable: e.Ping(ctx) == nil,
		LastQueryAt: e.lastQuery.Load(),
		Domains:     e.resolver.Statuses(),
	}
}

func (e *Engine) touch() {
	now := time.Now()
	e.lastQuery.Store(&now)
}

// slotGate bounds concurrent query slots independently of pgxpool's own
// queueing, so exhaustion fails fast with ErrPoolTimeout instead of piling
// up behind the pool.
type slotGate struct {
	slots   chan struct{}
	timeout time.Duration
}

func newSlotGate(n int, timeout time.Duration) *slotGate {
	if n <= 0 || timeout <= 0 {
		panic("vitalsbot: slot count and acquire timeout must be > 0")
	}
	return &slotGate{slots: make(chan struct{}, n), timeout: timeout}
}

// acquire blocks until a slot is free, the timeout elapses (ErrPoolTimeout),
// or ctx is cancelled. The returned release must be called exactly once.
func (g *slotGate) acquire(ctx context.Context) (release func(), err error) {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()
	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: all %d slots busy for %s", ErrPoolTimeout, cap(g.slots), g.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("cancelled while waiting for a slot: %w", ctx.Err())
	}
}
