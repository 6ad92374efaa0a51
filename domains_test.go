package vitalsbot

import (
	"errors"
	"strings"
	"testing"
)

func testSnapshot(tables ...TableDescriptor) *Snapshot {
	snap := &Snapshot{tables: make(map[string]TableDescriptor, len(tables))}
	for _, t := range tables {
		snap.tables[strings.ToLower(t.Name)] = t
		snap.names = append(snap.names, t.Name)
	}
	return snap
}

func table(name string, cols ...string) TableDescriptor {
	t := TableDescriptor{Schema: "public", Name: name}
	for _, c := range cols {
		t.Columns = append(t.Columns, ColumnDescriptor{Name: c, Type: "text"})
	}
	return t
}

func weightSpec() DomainSpec {
	for _, spec := range BuiltinDomains() {
		if spec.ID == "weight" {
			return spec
		}
	}
	panic("no weight spec")
}

// --- Resolution ordering ---

func TestResolveDomain_FirstTableWins(t *testing.T) {
	t.Parallel()
	snap := testSnapshot(
		table("weight", "date", "kg"),
		table("measurements_weight", "measured_at", "weight_kg"),
	)
	d, ok := ResolveDomain(weightSpec(), snap)
	if !ok {
		t.Fatal("expected resolution")
	}
	// measurements_weight is first in candidate order regardless of what
	// else exists.
	if d.Table.Name != "measurements_weight" {
		t.Fatalf("expected measurements_weight, got %s", d.Table.Name)
	}
}

func TestResolveDomain_FirstColumnCandidateWins(t *testing.T) {
	t.Parallel()
	snap := testSnapshot(table("weight", "measured_at", "date", "weight", "kg"))
	d, ok := ResolveDomain(weightSpec(), snap)
	if !ok {
		t.Fatal("expected resolution")
	}
	if got := d.Column(FieldTimestamp); got != "date" {
		t.Fatalf("expected date (first candidate), got %s", got)
	}
	if got := d.Column(FieldValue); got != "weight" {
		t.Fatalf("expected weight (first candidate), got %s", got)
	}
}

func TestResolveDomain_AllOrNothingPerTable(t *testing.T) {
	t.Parallel()
	// measurements_weight exists but has no value column; resolution must
	// fall through to the next candidate table, not mix columns.
	snap := testSnapshot(
		table("measurements_weight", "date", "note"),
		table("weight", "measured_at", "kg"),
	)
	d, ok := ResolveDomain(weightSpec(), snap)
	if !ok {
		t.Fatal("expected resolution")
	}
	if d.Table.Name != "weight" {
		t.Fatalf("expected fallthrough to weight, got %s", d.Table.Name)
	}
}

func TestResolveDomain_OptionalFieldMayBeMissing(t *testing.T) {
	t.Parallel()
	snap := testSnapshot(table("weight", "date", "kg"))
	d, ok := ResolveDomain(weightSpec(), snap)
	if !ok {
		t.Fatal("expected resolution without the optional source column")
	}
	if got := d.Column(FieldSource); got != "" {
		t.Fatalf("expected empty source column, got %s", got)
	}
}

func TestResolveDomain_Unavailable(t *testing.T) {
	t.Parallel()
	snap := testSnapshot(table("unrelated", "id"))
	if _, ok := ResolveDomain(weightSpec(), snap); ok {
		t.Fatal("expected no resolution")
	}
}

func TestResolveDomain_CaseInsensitiveColumns(t *testing.T) {
	t.Parallel()
	snap := testSnapshot(table("weight", "Date", "KG"))
	d, ok := ResolveDomain(weightSpec(), snap)
	if !ok {
		t.Fatal("expected resolution")
	}
	// The mapping carries the physical spelling, not the candidate's.
	if got := d.Column(FieldValue); got != "KG" {
		t.Fatalf("expected physical column KG, got %s", got)
	}
}

func TestResolveDomain_EmptySnapshot(t *testing.T) {
	t.Parallel()
	if _, ok := ResolveDomain(weightSpec(), testSnapshot()); ok {
		t.Fatal("expected no resolution against an empty schema")
	}
}

// --- Built-in specs ---

func TestBuiltinDomains_Shape(t *testing.T) {
	t.Parallel()
	specs := BuiltinDomains()
	if len(specs) != 4 {
		t.Fatalf("expected 4 domains, got %d", len(specs))
	}
	for _, spec := range specs {
		if len(spec.Tables) == 0 {
			t.Fatalf("domain %s has no table candidates", spec.ID)
		}
		var hasTS, hasValue bool
		for _, f := range spec.Fields {
			if f.Name == FieldTimestamp && f.Required {
				hasTS = true
			}
			if f.Name == FieldValue && f.Required {
				hasValue = true
			}
		}
		if !hasTS || !hasValue {
			t.Fatalf("domain %s is missing required timestamp/value fields", spec.ID)
		}
	}
}

// --- Error classification ---

func TestDomainUnavailableError(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil, BuiltinDomains(), testLogger())
	_, err := r.Domain("weight")
	if !errors.Is(err, ErrDomainUnavailable) {
		t.Fatalf("expected ErrDomainUnavailable, got %v", err)
	}
	if r.Available("weight") {
		t.Fatal("nothing resolved yet, weight must be unavailable")
	}
}

func TestResolverStatuses_BeforeResolution(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil, BuiltinDomains(), testLogger())
	statuses := r.Statuses()
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		if s.Available {
			t.Fatalf("domain %s should be unavailable before resolution", s.DomainID)
		}
		if s.Reason == "" {
			t.Fatalf("domain %s should carry an unavailability reason", s.DomainID)
		}
	}
}
