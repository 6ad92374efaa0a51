package vitalsbot

import "time"

// ColumnCategory is a coarse classification of a column's declared type,
// used by the resolver and the guided builder to pick sensible defaults.
type ColumnCategory string

const (
	CategoryNumeric   ColumnCategory = "numeric"
	CategoryTimestamp ColumnCategory = "timestamp"
	CategoryText      ColumnCategory = "text"
	CategoryBoolean   ColumnCategory = "boolean"
	CategoryOther     ColumnCategory = "other"
)

// ColumnDescriptor describes one column of an introspected table.
// Immutable once fetched.
type ColumnDescriptor struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Category ColumnCategory `json:"category"`
	Nullable bool           `json:"nullable"`
	Default  string         `json:"default,omitempty"`
}

// TableDescriptor describes one introspected table. Identity is
// (Schema, Name); immutable once fetched.
type TableDescriptor struct {
	Schema  string             `json:"schema"`
	Name    string             `json:"name"`
	Columns []ColumnDescriptor `json:"columns"`
}

// Column returns the descriptor for the named column, matched
// case-insensitively the way Postgres folds unquoted identifiers.
func (t TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range t.Columns {
		if equalFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// HasColumn reports whether the table has the named column.
func (t TableDescriptor) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (t TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IndexDescriptor describes one index on a table (operator-facing /describe).
type IndexDescriptor struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// QueryResult is the outcome of one read-only execution, consumed by
// formatting. Never retained beyond one interaction.
type QueryResult struct {
	Columns      []string      `json:"columns"`
	Rows         [][]any       `json:"rows"`
	AppliedLimit int           `json:"applied_limit"`
	Elapsed      time.Duration `json:"elapsed"`
}

// DomainStatus is the startup-logging record for one domain.
type DomainStatus struct {
	DomainID  string `json:"domain_id"`
	Available bool   `json:"available"`
	Table     string `json:"table,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// equalFold is ASCII-only case folding; identifier names coming out of
// information_schema never contain multibyte runes we care about.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
