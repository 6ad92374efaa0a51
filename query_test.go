package vitalsbot

import (
	"math"
	"strings"
	"testing"
)

// --- cell value conversion ---

func TestConvertValue_SpecialFloats(t *testing.T) {
	t.Parallel()
	if got := convertValue(math.NaN()); got != "NaN" {
		t.Fatalf("NaN: got %v", got)
	}
	if got := convertValue(math.Inf(1)); got != "Infinity" {
		t.Fatalf("+Inf: got %v", got)
	}
	if got := convertValue(math.Inf(-1)); got != "-Infinity" {
		t.Fatalf("-Inf: got %v", got)
	}
	if got := convertValue(82.5); got != 82.5 {
		t.Fatalf("plain float: got %v", got)
	}
}

func TestConvertValue_UUID(t *testing.T) {
	t.Parallel()
	var uuid [16]byte
	for i := range uuid {
		uuid[i] = byte(i)
	}
	got, ok := convertValue(uuid).(string)
	if !ok {
		t.Fatalf("expected string, got %T", convertValue(uuid))
	}
	if got != "00010203-0405-0607-0809-0a0b0c0d0e0f" {
		t.Fatalf("uuid: got %q", got)
	}
}

func TestConvertValue_ByteaToBase64(t *testing.T) {
	t.Parallel()
	got := convertValue([]byte{0xde, 0xad})
	if got != "3q0=" {
		t.Fatalf("bytea: got %v", got)
	}
}

func TestConvertValue_RecursesIntoContainers(t *testing.T) {
	t.Parallel()
	in := map[string]any{"deep": []any{math.NaN()}}
	out := convertValue(in).(map[string]any)
	if out["deep"].([]any)[0] != "NaN" {
		t.Fatalf("nested NaN not normalized: %v", out)
	}
}

func TestConvertValue_NilAndPassthrough(t *testing.T) {
	t.Parallel()
	if convertValue(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if got := convertValue("text"); got != "text" {
		t.Fatalf("string: got %v", got)
	}
	if got := convertValue(int64(7)); got != int64(7) {
		t.Fatalf("int64: got %v", got)
	}
}

// --- numeric coercion helpers ---

func TestAsFloat(t *testing.T) {
	t.Parallel()
	if f := asFloat(int64(5)); f == nil || *f != 5 {
		t.Fatalf("int64: got %v", f)
	}
	if f := asFloat(2.5); f == nil || *f != 2.5 {
		t.Fatalf("float64: got %v", f)
	}
	if f := asFloat("nope"); f != nil {
		t.Fatalf("string should not coerce, got %v", *f)
	}
	if f := asFloat(nil); f != nil {
		t.Fatalf("nil should not coerce, got %v", *f)
	}
}

func TestAsInt64(t *testing.T) {
	t.Parallel()
	if got := asInt64(int64(9)); got != 9 {
		t.Fatalf("int64: got %d", got)
	}
	if got := asInt64(9.9); got != 9 {
		t.Fatalf("float64: got %d", got)
	}
	if got := asInt64("x"); got != 0 {
		t.Fatalf("string: got %d", got)
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("S", 300)
	got := truncateForLog(long, 200)
	if len(got) != 200+len("...[truncated]") {
		t.Fatalf("unexpected length %d", len(got))
	}
	if got := truncateForLog("short", 200); got != "short" {
		t.Fatalf("short input rewritten: %q", got)
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()
	if got := quoteIdent("weight"); got != `"weight"` {
		t.Fatalf("got %q", got)
	}
	if got := quoteIdent(`bad"name`); got != `"bad""name"` {
		t.Fatalf("got %q", got)
	}
}
