// Package cursor encodes pagination state as opaque callback tokens.
//
// Telegram caps callback_data at 64 bytes, so the token is compact:
// a versioned colon-joined record, base64url-encoded. The fingerprint binds
// a cursor to the filter/sort context it was produced under; a token decoded
// under a different context is invalid and pagination restarts at page zero.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// ErrInvalidCursor marks tampered, foreign, or stale tokens. Callers reset
// to the first page instead of failing the interaction.
var ErrInvalidCursor = errors.New("invalid cursor")

const version = "v1"

// Cursor is the decoded pagination state.
type Cursor struct {
	Page        int
	Fingerprint uint64
	TotalKnown  bool
}

// Fingerprint hashes a filter/sort context into the value a cursor is bound
// to. Same parts, same order, same fingerprint.
func Fingerprint(parts ...string) uint64 {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return h.Sum64()
}

// Encode builds the opaque token for c.
func Encode(c Cursor) string {
	tk := "0"
	if c.TotalKnown {
		tk = "1"
	}
	raw := strings.Join([]string{
		version,
		strconv.Itoa(c.Page),
		tk,
		strconv.FormatUint(c.Fingerprint, 16),
	}, ":")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token and verifies it against the currently active
// fingerprint. Any structural defect or fingerprint mismatch yields
// ErrInvalidCursor — never a panic.
func Decode(token string, current uint64) (Cursor, error) {
	c, err := decode(token)
	if err != nil {
		return Cursor{}, err
	}
	if c.Fingerprint != current {
		return Cursor{}, fmt.Errorf("%w: fingerprint mismatch", ErrInvalidCursor)
	}
	return c, nil
}

func decode(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 4 || parts[0] != version {
		return Cursor{}, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil || page < 0 {
		return Cursor{}, fmt.Errorf("%w: bad page index", ErrInvalidCursor)
	}
	if parts[2] != "0" && parts[2] != "1" {
		return Cursor{}, fmt.Errorf("%w: bad total flag", ErrInvalidCursor)
	}
	fp, err := strconv.ParseUint(parts[3], 16, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad fingerprint", ErrInvalidCursor)
	}
	return Cursor{Page: page, Fingerprint: fp, TotalKnown: parts[2] == "1"}, nil
}
