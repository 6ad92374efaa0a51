// Package builder constructs parameterized SELECT statements from structured
// user choices. This is the one place identifier interpolation is permitted,
// and only for identifiers verified against a live catalog snapshot
// immediately before use. All literal values travel as bound parameters.
package builder

import (
	"fmt"
	"strings"
)

// Table is the builder's view of a catalog descriptor: the exact column set
// the identifiers are checked against, plus the column used for default
// ordering (the domain timestamp, when one is known).
type Table struct {
	Name           string
	Columns        []string
	OrderByDefault string
}

// CompareOp is a closed set of filter operators.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNeq CompareOp = "<>"
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// Filter compares a column against a bound value.
type Filter struct {
	Column string
	Op     CompareOp
	Value  any
}

// Order names a sort column and direction.
type Order struct {
	Column string
	Desc   bool
}

// PageRequest selects one offset/limit page.
type PageRequest struct {
	Page int
	Size int
}

// Choice is the full set of structured selections for one guided query.
// Nil Filter/Order mean "no filter" and "default order".
type Choice struct {
	Columns []string
	Filter  *Filter
	Order   *Order
	Page    PageRequest
}

// Build assembles the SQL text and its bound parameters. Every identifier is
// validated against tbl before interpolation; unknown identifiers are
// rejected outright as a defense against check/use drift.
func Build(tbl Table, choice Choice, maxPageSize int) (string, []any, error) {
	if tbl.Name == "" || len(tbl.Columns) == 0 {
		return "", nil, fmt.Errorf("builder: empty table descriptor")
	}
	if maxPageSize <= 0 {
		panic("builder: maxPageSize must be > 0")
	}

	cols := "*"
	if len(choice.Columns) > 0 {
		quoted := make([]string, len(choice.Columns))
		for i, c := range choice.Columns {
			if !hasColumn(tbl, c) {
				return "", nil, fmt.Errorf("builder: unknown column %q in table %q", c, tbl.Name)
			}
			quoted[i] = quoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, quoteIdent(tbl.Name))

	if f := choice.Filter; f != nil {
		if !hasColumn(tbl, f.Column) {
			return "", nil, fmt.Errorf("builder: unknown filter column %q in table %q", f.Column, tbl.Name)
		}
		if !validOp(f.Op) {
			return "", nil, fmt.Errorf("builder: unsupported operator %q", f.Op)
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, " WHERE %s %s $%d", quoteIdent(f.Column), f.Op, len(args))
	}

	orderCol, desc := tbl.OrderByDefault, true
	if o := choice.Order; o != nil {
		orderCol, desc = o.Column, o.Desc
	}
	if orderCol != "" {
		if !hasColumn(tbl, orderCol) {
			return "", nil, fmt.Errorf("builder: unknown order column %q in table %q", orderCol, tbl.Name)
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", quoteIdent(orderCol), dir)
	}

	size := choice.Page.Size
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}
	page := choice.Page.Page
	if page < 0 {
		page = 0
	}
	args = append(args, size)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, page*size)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	return sb.String(), args, nil
}

func hasColumn(tbl Table, name string) bool {
	for _, c := range tbl.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

func validOp(op CompareOp) bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// quoteIdent escapes a SQL identifier: doubles embedded double-quotes and
// wraps in double-quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
