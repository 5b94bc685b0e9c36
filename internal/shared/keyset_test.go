package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{
		SortField:   "date",
		Desc:        true,
		Fingerprint: Fingerprint("12", "VE", "", "", ""),
		LastValue:   "2024-03-01",
		LastID:      991,
	}
	decoded, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90IGpzb24", ""} {
		if _, err := DecodeCursor(token); !errors.Is(err, ErrInvalidPagination) {
			t.Fatalf("DecodeCursor(%q) expected ErrInvalidPagination, got %v", token, err)
		}
	}
}

func TestCursorValidate(t *testing.T) {
	fp := Fingerprint("12", "VE")
	c := Cursor{SortField: "date", Fingerprint: fp}
	require.NoError(t, c.Validate("date", false, fp))

	require.ErrorIs(t, c.Validate("debit", false, fp), ErrStaleCursor)
	require.ErrorIs(t, c.Validate("date", true, fp), ErrStaleCursor)
	require.ErrorIs(t, c.Validate("date", false, Fingerprint("12", "BQ")), ErrStaleCursor)
}

func TestFingerprintIsOrderSensitive(t *testing.T) {
	if Fingerprint("a", "b") == Fingerprint("b", "a") {
		t.Fatal("fingerprint must distinguish filter positions")
	}
	if Fingerprint("ab", "") == Fingerprint("a", "b") {
		t.Fatal("fingerprint must not be concatenation-ambiguous")
	}
}

func TestParseSort(t *testing.T) {
	allowed := map[string]bool{"date": true, "debit": true, "id": true}

	field, desc := ParseSort("-debit,date", allowed, "date")
	require.Equal(t, "debit", field)
	require.True(t, desc)

	field, desc = ParseSort("bogus,-date", allowed, "date")
	require.Equal(t, "date", field)
	require.True(t, desc)

	field, desc = ParseSort("nothing,known", allowed, "date")
	require.Equal(t, "date", field)
	require.False(t, desc)

	field, desc = ParseSort("", allowed, "date")
	require.Equal(t, "date", field)
	require.False(t, desc)
}
