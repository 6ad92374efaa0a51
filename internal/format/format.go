// Package format renders query results and domain stats as Telegram HTML.
// Everything here returns strings ready to send with parse_mode=HTML, capped
// below Telegram's 4096-byte message limit.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxCell truncates individual table cells so wide rows stay readable
	// on a phone screen.
	MaxCell = 20
)

// Section renders a bold title with a body underneath.
func Section(title, body string) string {
	return "<b>" + EscapeHTML(title) + "</b>\n" + body
}

// NoData renders the friendly "nothing here" message.
func NoData(msg string) string {
	return "ℹ️ " + EscapeHTML(msg)
}

// MonoTable renders a fixed-width table inside <pre> tags. Columns are
// auto-sized; cells are stringified and truncated to MaxCell.
func MonoTable(headers []string, rows [][]any) string {
	cell := func(v any) string {
		s := Stringify(v)
		if utf8.RuneCountInString(s) > MaxCell {
			s = string([]rune(s)[:MaxCell])
		}
		return s
	}

	strRows := make([][]string, len(rows))
	for i, row := range rows {
		strRows[i] = make([]string, len(row))
		for j, v := range row {
			strRows[i][j] = cell(v)
		}
	}
	strHeaders := make([]string, len(headers))
	for i, h := range headers {
		strHeaders[i] = cell(h)
	}

	widths := make([]int, len(strHeaders))
	for i, h := range strHeaders {
		widths[i] = len(h)
	}
	for _, row := range strRows {
		for i, c := range row {
			if i < len(widths) && len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	fmtRow := func(cells []string) string {
		parts := make([]string, 0, len(cells))
		for i, c := range cells {
			if i >= len(widths) {
				break
			}
			parts = append(parts, c+strings.Repeat(" ", widths[i]-len(c)))
		}
		return strings.TrimRight(strings.Join(parts, " "), " ")
	}

	total := 0
	for _, w := range widths {
		total += w
	}
	lines := []string{fmtRow(strHeaders), strings.Repeat("-", total+len(widths)-1)}
	for _, row := range strRows {
		lines = append(lines, fmtRow(row))
	}
	return "<pre>" + EscapeHTML(strings.Join(lines, "\n")) + "</pre>"
}

var sparkChars = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a unicode sparkline, oldest first. Nil entries
// become spaces.
func Sparkline(values []*float64) string {
	var lo, hi float64
	found := false
	for _, v := range values {
		if v == nil {
			continue
		}
		if !found {
			lo, hi = *v, *v
			found = true
			continue
		}
		if *v < lo {
			lo = *v
		}
		if *v > hi {
			hi = *v
		}
	}
	if !found {
		return ""
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	var sb strings.Builder
	for _, v := range values {
		if v == nil {
			sb.WriteByte(' ')
			continue
		}
		idx := int((*v - lo) / span * float64(len(sparkChars)-1))
		sb.WriteRune(sparkChars[idx])
	}
	return sb.String()
}

// TrendArrow renders the delta between a recent and a previous average.
func TrendArrow(recent, previous *float64) string {
	if recent == nil || previous == nil {
		return ""
	}
	delta := *recent - *previous
	switch {
	case delta > 0.05:
		return fmt.Sprintf("↑ +%.1f", delta)
	case delta < -0.05:
		return fmt.Sprintf("↓ %.1f", delta)
	default:
		return "→ steady"
	}
}

const truncationSuffix = "\n…(truncated)"

// SafeMessage truncates a rendered message so the result never exceeds
// maxLen bytes. The truncation marker and a closing tag for a dangling
// <pre> block are carved out of the budget, and the cut backs off to a
// rune boundary so the output stays valid UTF-8.
func SafeMessage(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	budget := maxLen - len(truncationSuffix) - len("</pre>")
	if budget < 0 {
		budget = 0
	}
	for budget > 0 && !utf8.RuneStart(s[budget]) {
		budget--
	}
	cut := s[:budget]
	if strings.Count(cut, "<pre>") > strings.Count(cut, "</pre>") {
		cut += "</pre>"
	}
	return cut + truncationSuffix
}

// Stringify renders any result cell compactly.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02 15:04")
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", val), "0"), ".")
	case float32:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", val), "0"), ".")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// EscapeHTML escapes the characters Telegram's HTML parse mode treats
// specially.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
