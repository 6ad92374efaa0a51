package format

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func fp(v float64) *float64 { return &v }

func TestMonoTable_AlignsColumns(t *testing.T) {
	t.Parallel()
	out := MonoTable([]string{"ts", "kg"}, [][]any{
		{"2025-01-01", 82.5},
		{"2025-01-02", 81.0},
	})
	if !strings.HasPrefix(out, "<pre>") || !strings.HasSuffix(out, "</pre>") {
		t.Fatalf("expected <pre> wrapping, got %q", out)
	}
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "<pre>"), "</pre>"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ts") {
		t.Fatalf("unexpected header line %q", lines[0])
	}
}

func TestMonoTable_TruncatesWideCells(t *testing.T) {
	t.Parallel()
	wide := strings.Repeat("x", 80)
	out := MonoTable([]string{"note"}, [][]any{{wide}})
	if strings.Contains(out, wide) {
		t.Fatal("cell was not truncated")
	}
	if !strings.Contains(out, strings.Repeat("x", MaxCell)) {
		t.Fatal("truncated cell prefix missing")
	}
}

func TestMonoTable_TruncatesMultibyteCellsByRune(t *testing.T) {
	t.Parallel()
	out := MonoTable([]string{"note"}, [][]any{{strings.Repeat("ß", 40)}})
	if !utf8.ValidString(out) {
		t.Fatalf("table is not valid UTF-8: %q", out)
	}
	if !strings.Contains(out, strings.Repeat("ß", MaxCell)) {
		t.Fatal("expected the cell cut after MaxCell runes")
	}
	if strings.Contains(out, strings.Repeat("ß", MaxCell+1)) {
		t.Fatal("cell was not truncated")
	}
}

func TestMonoTable_EscapesHTML(t *testing.T) {
	t.Parallel()
	out := MonoTable([]string{"v"}, [][]any{{"<script>"}})
	if strings.Contains(out, "<script>") {
		t.Fatal("cell content was not escaped")
	}
}

func TestSparkline(t *testing.T) {
	t.Parallel()
	out := Sparkline([]*float64{fp(0), fp(50), fp(100)})
	runes := []rune(out)
	if len(runes) != 3 {
		t.Fatalf("expected 3 runes, got %d (%q)", len(runes), out)
	}
	if runes[0] != '▁' || runes[2] != '█' {
		t.Fatalf("expected min/max at the ends, got %q", out)
	}
}

func TestSparkline_NilBecomesSpace(t *testing.T) {
	t.Parallel()
	out := Sparkline([]*float64{fp(1), nil, fp(2)})
	if []rune(out)[1] != ' ' {
		t.Fatalf("expected space for nil, got %q", out)
	}
}

func TestSparkline_FlatAndEmpty(t *testing.T) {
	t.Parallel()
	if out := Sparkline([]*float64{fp(5), fp(5)}); strings.ContainsRune(out, '█') {
		t.Fatalf("flat series should sit low, got %q", out)
	}
	if out := Sparkline(nil); out != "" {
		t.Fatalf("empty series should render empty, got %q", out)
	}
	if out := Sparkline([]*float64{nil, nil}); out != "" {
		t.Fatalf("all-nil series should render empty, got %q", out)
	}
}

func TestTrendArrow(t *testing.T) {
	t.Parallel()
	if got := TrendArrow(fp(82), fp(80)); got != "↑ +2.0" {
		t.Fatalf("got %q", got)
	}
	if got := TrendArrow(fp(80), fp(82)); got != "↓ -2.0" {
		t.Fatalf("got %q", got)
	}
	if got := TrendArrow(fp(80.01), fp(80)); got != "→ steady" {
		t.Fatalf("got %q", got)
	}
	if got := TrendArrow(nil, fp(80)); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestSafeMessage_TruncatesAndClosesPre(t *testing.T) {
	t.Parallel()
	long := "<pre>" + strings.Repeat("a", 200)
	out := SafeMessage(long, 100)
	if len(out) > 100 {
		t.Fatalf("message exceeds the cap: %d bytes", len(out))
	}
	if strings.Count(out, "<pre>") != strings.Count(out, "</pre>") {
		t.Fatalf("unbalanced <pre> in %q", out)
	}
}

func TestSafeMessage_CutsOnRuneBoundary(t *testing.T) {
	t.Parallel()
	// Sparkline runes are 3 bytes each; a byte-offset cut would slice one
	// in half and Telegram rejects invalid UTF-8 outright.
	out := SafeMessage("<b>T</b>\n"+strings.Repeat("▃", 50), 20)
	if !utf8.ValidString(out) {
		t.Fatalf("truncated message is not valid UTF-8: %q", out)
	}
	if len(out) > 20 {
		t.Fatalf("message exceeds the cap: %d bytes", len(out))
	}
}

func TestSafeMessage_MultibytePreBlock(t *testing.T) {
	t.Parallel()
	out := SafeMessage("<pre>"+strings.Repeat("é", 100), 60)
	if !utf8.ValidString(out) {
		t.Fatalf("truncated message is not valid UTF-8: %q", out)
	}
	if len(out) > 60 {
		t.Fatalf("message exceeds the cap: %d bytes", len(out))
	}
	if strings.Count(out, "<pre>") != strings.Count(out, "</pre>") {
		t.Fatalf("unbalanced <pre> in %q", out)
	}
}

func TestSafeMessage_ShortPassthrough(t *testing.T) {
	t.Parallel()
	if got := SafeMessage("hello", 100); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestStringify(t *testing.T) {
	t.Parallel()
	if got := Stringify(nil); got != "NULL" {
		t.Fatalf("nil: got %q", got)
	}
	if got := Stringify(82.50); got != "82.5" {
		t.Fatalf("float: got %q", got)
	}
	if got := Stringify(80.0); got != "80" {
		t.Fatalf("whole float: got %q", got)
	}
	ts := time.Date(2025, 3, 1, 7, 45, 0, 0, time.UTC)
	if got := Stringify(ts); got != "2025-03-01 07:45" {
		t.Fatalf("time: got %q", got)
	}
}
