// Package sqlguard validates user-supplied SQL before it can reach the
// database. It is a deliberately simple, auditable token scanner — not a SQL
// parser. Validation is all-or-nothing: a ValidatedQuery is only ever built
// from text that passed every rule.
package sqlguard

import (
	"fmt"
	"strconv"
	"strings"
)

// Reason is a stable rejection code consumed for user-facing messaging.
type Reason string

const (
	ReasonMultiStatement   Reason = "multiStatement"
	ReasonNotSelect        Reason = "notSelect"
	ReasonBlockedKeyword   Reason = "blockedKeyword"
	ReasonCommentInjection Reason = "commentInjection"
	ReasonLimitExceeded    Reason = "limitExceeded"
)

// RejectionError carries the reason code and a human-readable detail.
type RejectionError struct {
	Reason Reason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("query rejected (%s): %s", e.Reason, e.Detail)
}

// ValidatedQuery is sanitized single-statement SELECT text plus the row
// limit that will be enforced. Value object; never retained beyond one
// execution.
type ValidatedQuery struct {
	SQL          string
	AppliedLimit int
}

// Mutating, DDL and DCL keywords rejected as whole tokens. Token-boundary
// matching only: identifiers like update_time must pass.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "CREATE", "CALL", "COPY", "EXECUTE", "MERGE",
}

// Validate applies the rules in order, short-circuiting on the first
// violation. On success the returned query carries the exact validated text
// with a LIMIT clause guaranteed present and within maxRows.
func Validate(raw string, maxRows int) (ValidatedQuery, error) {
	if maxRows <= 0 {
		panic("sqlguard: maxRows must be > 0")
	}

	sql := strings.TrimSpace(raw)
	// A single trailing semicolon is tolerated and stripped.
	sql = strings.TrimSuffix(sql, ";")
	sql = strings.TrimRight(sql, " \t\r\n")

	if sql == "" {
		return ValidatedQuery{}, &RejectionError{ReasonNotSelect, "empty statement"}
	}

	// Rule 1: no additional statement separators.
	if strings.Contains(sql, ";") {
		return ValidatedQuery{}, &RejectionError{ReasonMultiStatement, "multiple statements are not allowed"}
	}

	tokens := scanTokens(sql)

	// Rule 2: first keyword must be SELECT.
	if len(tokens) == 0 || !strings.EqualFold(tokens[0].text, "SELECT") {
		first := "<none>"
		if len(tokens) > 0 {
			first = tokens[0].text
		}
		return ValidatedQuery{}, &RejectionError{ReasonNotSelect, fmt.Sprintf("only SELECT statements are allowed, got %s", strings.ToUpper(first))}
	}

	// Rule 3: denylisted keywords as whole tokens, case-insensitive.
	for _, tok := range tokens {
		for _, kw := range blockedKeywords {
			if strings.EqualFold(tok.text, kw) {
				return ValidatedQuery{}, &RejectionError{ReasonBlockedKeyword, fmt.Sprintf("keyword %s is not allowed", kw)}
			}
		}
	}

	// Rule 4: comment-opening sequences block keyword obfuscation.
	if strings.Contains(sql, "--") || strings.Contains(sql, "/*") {
		return ValidatedQuery{}, &RejectionError{ReasonCommentInjection, "comments are not allowed"}
	}

	// Rule 5: enforce the row limit. Present and over budget is a rejection,
	// never a silent clamp; absent means we append one.
	limit, hasLimit, err := findLimit(tokens)
	if err != nil {
		return ValidatedQuery{}, &RejectionError{ReasonLimitExceeded, err.Error()}
	}
	if hasLimit {
		if limit > maxRows {
			return ValidatedQuery{}, &RejectionError{ReasonLimitExceeded, fmt.Sprintf("limit %d exceeds the maximum of %d rows", limit, maxRows)}
		}
		return ValidatedQuery{SQL: sql, AppliedLimit: limit}, nil
	}
	return ValidatedQuery{
		SQL:          sql + " LIMIT " + strconv.Itoa(maxRows),
		AppliedLimit: maxRows,
	}, nil
}

// token is one identifier/keyword with the parenthesis nesting depth it
// occurs at. Depth 0 is the outer statement.
type token struct {
	text  string
	depth int
}

// scanTokens splits SQL into identifier/keyword tokens at non-word
// boundaries, tracking parenthesis depth. Single-quoted string literals are
// skipped whole so their contents never look like keywords.
func scanTokens(sql string) []token {
	var tokens []token
	var cur strings.Builder
	inString := false
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, token{text: cur.String(), depth: depth})
			cur.Reset()
		}
	}
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if inString {
			if c == '\'' {
				// '' is an escaped quote inside the literal
				if i+1 < len(sql) && sql[i+1] == '\'' {
					i++
					continue
				}
				inString = false
			}
			continue
		}
		switch {
		case c == '\'':
			flush()
			inString = true
		case c == '(':
			flush()
			depth++
		case c == ')':
			flush()
			if depth > 0 {
				depth--
			}
		case isWordByte(c):
			cur.WriteByte(c)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// findLimit locates the outer statement's LIMIT token and parses its
// argument. A LIMIT inside parentheses bounds only a subquery, never the
// outer result set, so it does not count.
func findLimit(tokens []token) (int, bool, error) {
	for i, tok := range tokens {
		if tok.depth != 0 || !strings.EqualFold(tok.text, "LIMIT") {
			continue
		}
		if i+1 >= len(tokens) {
			return 0, true, fmt.Errorf("LIMIT clause has no row count")
		}
		n, err := strconv.Atoi(tokens[i+1].text)
		if err != nil {
			return 0, true, fmt.Errorf("LIMIT value %q could not be verified", tokens[i+1].text)
		}
		return n, true, nil
	}
	return 0, false, nil
}

func isWordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
