package vitalsbot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Logical field names shared by the built-in domains. Every domain resolves
// at least FieldTimestamp and FieldValue; the rest are optional extras.
const (
	FieldTimestamp = "timestamp"
	FieldValue     = "value"
	FieldSource    = "source"
	FieldMin       = "min"
	FieldMax       = "max"
	FieldEnd       = "end"
	FieldStages    = "stages"
)

// FieldSpec lists candidate column names for one logical field, in priority
// order. Required fields gate resolution; optional ones resolve best-effort.
type FieldSpec struct {
	Name       string
	Candidates []string
	Required   bool
}

// DomainSpec declares the candidate physical schemas for one logical
// domain. Defined statically, never mutated at runtime.
type DomainSpec struct {
	ID     string
	Tables []string
	Fields []FieldSpec
}

// ResolvedDomain is the chosen table plus the logical-field → column
// mapping. Created once per successful resolution and cached; replaced only
// atomically between requests.
type ResolvedDomain struct {
	ID      string
	Table   TableDescriptor
	Columns map[string]string
}

// Column returns the physical column for a logical field, or "" when the
// optional field did not resolve.
func (d *ResolvedDomain) Column(field string) string {
	return d.Columns[field]
}

// BuiltinDomains returns the health-data domains the bot knows about, with
// candidate names in priority order.
func BuiltinDomains() []DomainSpec {
	return []DomainSpec{
		{
			ID:     "weight",
			Tables: []string{"measurements_weight", "weight", "weight_measurements", "body_weight"},
			Fields: []FieldSpec{
				{Name: FieldTimestamp, Candidates: []string{"date", "measured_at", "timestamp", "created_at", "time"}, Required: true},
				{Name: FieldValue, Candidates: []string{"weight_kg", "weight", "value", "kg"}, Required: true},
				{Name: FieldSource, Candidates: []string{"source", "data_source", "origin"}},
			},
		},
		{
			ID:     "steps",
			Tables: []string{"steps_daily", "steps", "daily_steps", "activity_steps"},
			Fields: []FieldSpec{
				{Name: FieldTimestamp, Candidates: []string{"date", "measured_at", "timestamp", "created_at", "day"}, Required: true},
				{Name: FieldValue, Candidates: []string{"steps", "step_count", "value", "total_steps"}, Required: true},
				{Name: FieldSource, Candidates: []string{"source", "data_source", "origin"}},
			},
		},
		{
			ID:     "heart",
			Tables: []string{"heart_rate_daily", "heart_rate_samples", "heart_rate", "heartrate", "hr_data"},
			Fields: []FieldSpec{
				{Name: FieldTimestamp, Candidates: []string{"date", "measured_at", "timestamp", "created_at", "time", "day"}, Required: true},
				{Name: FieldValue, Candidates: []string{"bpm", "heart_rate", "avg_bpm", "value", "resting_hr", "avg_hr"}, Required: true},
				{Name: FieldMin, Candidates: []string{"min_bpm", "min_hr", "resting_hr"}},
				{Name: FieldMax, Candidates: []string{"max_bpm", "max_hr"}},
			},
		},
		{
			ID:     "sleep",
			Tables: []string{"sleep_sessions", "sleep", "sleep_data", "sleep_records"},
			Fields: []FieldSpec{
				{Name: FieldTimestamp, Candidates: []string{"start", "start_time", "sleep_start", "bedtime", "started_at", "date", "night", "created_at"}, Required: true},
				{Name: FieldValue, Candidates: []string{"duration", "duration_minutes", "total_minutes", "sleep_duration"}, Required: true},
				{Name: FieldEnd, Candidates: []string{"end", "end_time", "sleep_end", "wake_time", "ended_at"}},
				{Name: FieldStages, Candidates: []string{"stages", "stages_summary", "sleep_stages"}},
			},
		},
	}
}

// ResolveDomain is a pure function from (spec, snapshot) to a resolved
// mapping. Candidate order is authoritative: the first table satisfying
// every required field wins, with no scoring and no partial resolution
// across tables.
func ResolveDomain(spec DomainSpec, snap *Snapshot) (*ResolvedDomain, bool) {
	for _, tableName := range spec.Tables {
		table, ok := snap.Table(tableName)
		if !ok {
			continue
		}
		columns := make(map[string]string, len(spec.Fields))
		satisfied := true
		for _, field := range spec.Fields {
			col, found := firstColumn(table, field.Candidates)
			if found {
				columns[field.Name] = col
			} else if field.Required {
				satisfied = false
				break
			}
		}
		if satisfied {
			return &ResolvedDomain{ID: spec.ID, Table: table, Columns: columns}, true
		}
	}
	return nil, false
}

func firstColumn(table TableDescriptor, candidates []string) (string, bool) {
	for _, cand := range candidates {
		if col, ok := table.Column(cand); ok {
			return col.Name, true
		}
	}
	return "", false
}

// Resolver caches resolved domains for the process lifetime. Reads are
// lock-free against the cached map; resolution performs copy-and-swap so
// in-flight readers never observe a half-updated mapping.
type Resolver struct {
	catalog *Catalog
	specs   []DomainSpec
	logger  zerolog.Logger

	cache atomic.Pointer[map[string]*ResolvedDomain]
	// Serializes re-resolution so concurrent schema-mismatch retries do not
	// stampede the catalog.
	refreshMu sync.Mutex
}

// NewResolver creates a Resolver over the given specs.
func NewResolver(catalog *Catalog, specs []DomainSpec, logger zerolog.Logger) *Resolver {
	r := &Resolver{catalog: catalog, specs: specs, logger: logger}
	empty := make(map[string]*ResolvedDomain)
	r.cache.Store(&empty)
	return r
}

// ResolveAll resolves every spec against a fresh snapshot and swaps the
// whole cache in one step. Returns a status record per domain for startup
// logging.
func (r *Resolver) ResolveAll(ctx context.Context) ([]DomainStatus, error) {
	snap, err := r.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]*ResolvedDomain, len(r.specs))
	statuses := make([]DomainStatus, 0, len(r.specs))
	for _, spec := range r.specs {
		d, ok := ResolveDomain(spec, snap)
		status := DomainStatus{DomainID: spec.ID, Available: ok}
		if ok {
			resolved[spec.ID] = d
			status.Table = d.Table.Name
			r.logger.Info().
				Str("domain", spec.ID).
				Str("table", d.Table.Name).
				Str("timestamp_col", d.Column(FieldTimestamp)).
				Str("value_col", d.Column(FieldValue)).
				Msg("domain ready")
		} else {
			status.Reason = "table not found or columns unresolvable"
			r.logger.Info().
				Str("domain", spec.ID).
				Msg("domain unavailable (table not found or columns unresolvable)")
		}
		statuses = append(statuses, status)
	}
	r.cache.Store(&resolved)
	return statuses, nil
}

// Domain returns the cached mapping for id, or ErrDomainUnavailable.
func (r *Resolver) Domain(id string) (*ResolvedDomain, error) {
	if d, ok := (*r.cache.Load())[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDomainUnavailable, id)
}

// Available reports whether the domain currently has a cached mapping.
func (r *Resolver) Available(id string) bool {
	_, ok := (*r.cache.Load())[id]
	return ok
}

// Reresolve refreshes the catalog and re-resolves a single domain after a
// schema-mismatch failure. The cache entry is replaced (or removed) via
// copy-and-swap; callers bound this to one attempt per request.
func (r *Resolver) Reresolve(ctx context.Context, id string) (*ResolvedDomain, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	var spec *DomainSpec
	for i := range r.specs {
		if r.specs[i].ID == id {
			spec = &r.specs[i]
			break
		}
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", ErrDomainUnavailable, id)
	}

	if err := r.catalog.Refresh(ctx); err != nil {
		return nil, err
	}
	snap, err := r.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	old := *r.cache.Load()
	next := make(map[string]*ResolvedDomain, len(old))
	for k, v := range old {
		next[k] = v
	}

	d, ok := ResolveDomain(*spec, snap)
	if ok {
		next[id] = d
	} else {
		delete(next, id)
	}
	r.cache.Store(&next)

	if !ok {
		r.logger.Warn().Str("domain", id).Msg("re-resolution failed, domain now unavailable")
		return nil, fmt.Errorf("%w: %s", ErrDomainUnavailable, id)
	}
	r.logger.Info().Str("domain", id).Str("table", d.Table.Name).Msg("domain re-resolved")
	return d, nil
}

// Statuses reports the current availability of every spec'd domain.
func (r *Resolver) Statuses() []DomainStatus {
	cache := *r.cache.Load()
	statuses := make([]DomainStatus, 0, len(r.specs))
	for _, spec := range r.specs {
		status := DomainStatus{DomainID: spec.ID}
		if d, ok := cache[spec.ID]; ok {
			status.Available = true
			status.Table = d.Table.Name
		} else {
			status.Reason = "table not found or columns unresolvable"
		}
		statuses = append(statuses, status)
	}
	return statuses
}
