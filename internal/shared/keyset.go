package shared

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStaleCursor indicates a cursor minted under a different filter or sort.
	ErrStaleCursor = errors.New("pagination: stale cursor")
	// ErrInvalidPagination indicates a malformed paging request.
	ErrInvalidPagination = errors.New("pagination: invalid request")
)

// Cursor is the decoded form of an opaque keyset-pagination token. It pins
// the sort spec and a fingerprint of the applied filters so a replayed token
// can be rejected when the surrounding query changed.
type Cursor struct {
	SortField   string `json:"s"`
	Desc        bool   `json:"d"`
	Fingerprint string `json:"f"`
	LastValue   string `json:"v"`
	LastID      int64  `json:"i"`
}

// Encode serialises the cursor into an opaque URL-safe token.
func (c Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque token back into a Cursor.
func DecodeCursor(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPagination, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPagination, err)
	}
	return c, nil
}

// Validate rejects the cursor when its embedded sort spec or filter
// fingerprint does not match the current request.
func (c Cursor) Validate(sortField string, desc bool, fingerprint string) error {
	if c.SortField != sortField || c.Desc != desc || c.Fingerprint != fingerprint {
		return ErrStaleCursor
	}
	return nil
}

// Fingerprint derives a stable digest from the canonical filter values of a
// listing request.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:8])
}

// PageInfo carries the cursors needed to resume paging in either direction.
type PageInfo struct {
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
	HasNext bool   `json:"has_next"`
	HasPrev bool   `json:"has_prev"`
}

// ParseSort picks the first recognised term of a comma-separated sort spec
// ("field" or "-field"). Unrecognised specs fall back to the supplied default
// in ascending order.
func ParseSort(spec string, allowed map[string]bool, fallback string) (string, bool) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		key := strings.TrimPrefix(part, "-")
		if allowed[key] {
			return key, desc
		}
	}
	return fallback, false
}
