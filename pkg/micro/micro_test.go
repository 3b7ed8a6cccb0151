package micro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalRoundTrip(t *testing.T) {
	a := FromUnits(50)
	assert.Equal(t, "50.000000", a.Decimal())

	parsed, err := ParseDecimal(a.Decimal())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"50", 50_000000},
		{"50.5", 50_500000},
		{"0.000001", 1},
		{"12.345678", 12_345678},
	}
	for _, tc := range cases {
		got, err := ParseDecimal(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseDecimalRejects(t *testing.T) {
	for _, in := range []string{"", "-1", "1.2345678", "abc", "1.2x"} {
		_, err := ParseDecimal(in)
		assert.Error(t, err, in)
	}
}

func TestParseDecimalOverflowBoundary(t *testing.T) {
	// math.MaxUint64 micro-units is 18446744073709.551615 units.
	got, err := ParseDecimal("18446744073709.551615")
	require.NoError(t, err)
	assert.Equal(t, Amount(1<<64-1), got)

	for _, in := range []string{
		"18446744073709.551616",
		"18446744073709.551626",
		"18446744073710",
		"99999999999999999999",
	} {
		_, err := ParseDecimal(in)
		assert.Error(t, err, in)
	}
}
