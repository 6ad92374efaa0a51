package builder

import (
	"strings"
	"testing"
)

func weightTable() Table {
	return Table{
		Name:           "weight",
		Columns:        []string{"id", "ts", "kg", "source"},
		OrderByDefault: "ts",
	}
}

func mustBuild(t *testing.T, tbl Table, choice Choice) (string, []any) {
	t.Helper()
	sql, args, err := Build(tbl, choice, 100)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return sql, args
}

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()
	sql, args := mustBuild(t, weightTable(), Choice{})
	want := `SELECT * FROM "weight" ORDER BY "ts" DESC LIMIT $1 OFFSET $2`
	if sql != want {
		t.Fatalf("sql mismatch:\n got %q\nwant %q", sql, want)
	}
	if len(args) != 2 || args[0] != 100 || args[1] != 0 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuild_ColumnsAndFilter(t *testing.T) {
	t.Parallel()
	sql, args := mustBuild(t, weightTable(), Choice{
		Columns: []string{"ts", "kg"},
		Filter:  &Filter{Column: "kg", Op: OpGt, Value: 80.0},
		Page:    PageRequest{Page: 2, Size: 10},
	})
	want := `SELECT "ts", "kg" FROM "weight" WHERE "kg" > $1 ORDER BY "ts" DESC LIMIT $2 OFFSET $3`
	if sql != want {
		t.Fatalf("sql mismatch:\n got %q\nwant %q", sql, want)
	}
	if len(args) != 3 || args[0] != 80.0 || args[1] != 10 || args[2] != 20 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuild_ExplicitOrder(t *testing.T) {
	t.Parallel()
	sql, _ := mustBuild(t, weightTable(), Choice{
		Order: &Order{Column: "kg", Desc: false},
	})
	if !strings.Contains(sql, `ORDER BY "kg" ASC`) {
		t.Fatalf("expected ascending kg order, got %q", sql)
	}
}

func TestBuild_UnknownIdentifiersRejected(t *testing.T) {
	t.Parallel()
	cases := []Choice{
		{Columns: []string{"nope"}},
		{Filter: &Filter{Column: "nope", Op: OpEq, Value: 1}},
		{Order: &Order{Column: "nope"}},
	}
	for _, choice := range cases {
		if _, _, err := Build(weightTable(), choice, 100); err == nil {
			t.Fatalf("expected rejection for choice %+v", choice)
		}
	}
}

func TestBuild_InjectionAttemptIsJustAnUnknownColumn(t *testing.T) {
	t.Parallel()
	choice := Choice{Columns: []string{`kg"; DROP TABLE weight; --`}}
	if _, _, err := Build(weightTable(), choice, 100); err == nil {
		t.Fatal("expected rejection of injected identifier")
	}
}

func TestBuild_UnsupportedOperator(t *testing.T) {
	t.Parallel()
	choice := Choice{Filter: &Filter{Column: "kg", Op: CompareOp("LIKE"), Value: "%"}}
	if _, _, err := Build(weightTable(), choice, 100); err == nil {
		t.Fatal("expected rejection of unsupported operator")
	}
}

func TestBuild_PageSizeClamped(t *testing.T) {
	t.Parallel()
	_, args := mustBuild(t, weightTable(), Choice{Page: PageRequest{Page: 0, Size: 9999}})
	if args[0] != 100 {
		t.Fatalf("expected size clamped to 100, got %v", args[0])
	}
}

func TestBuild_NegativePageTreatedAsFirst(t *testing.T) {
	t.Parallel()
	_, args := mustBuild(t, weightTable(), Choice{Page: PageRequest{Page: -3, Size: 10}})
	if args[1] != 0 {
		t.Fatalf("expected offset 0, got %v", args[1])
	}
}

func TestBuild_CaseInsensitiveColumnMatch(t *testing.T) {
	t.Parallel()
	sql, _ := mustBuild(t, weightTable(), Choice{Columns: []string{"KG"}})
	if !strings.Contains(sql, `"KG"`) {
		t.Fatalf("expected quoted identifier, got %q", sql)
	}
}

func TestBuild_EmptyTableRejected(t *testing.T) {
	t.Parallel()
	if _, _, err := Build(Table{}, Choice{}, 100); err == nil {
		t.Fatal("expected rejection of empty table descriptor")
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("unexpected quoting: %q", got)
	}
}
