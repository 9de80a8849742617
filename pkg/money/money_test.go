package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseOrZero(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"   ", "0"},
		{"abc", "0"},
		{"12,000", "0"},
		{"50000", "50000"},
		{" 1500.50 ", "1500.5"},
		{"-20", "-20"},
	}
	for _, tc := range cases {
		got := ParseOrZero(tc.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "input %q: got %s", tc.in, got)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "0", Normalize(""))
	assert.Equal(t, "0", Normalize("  "))
	assert.Equal(t, "50000.00", Normalize(" 50000.00 "))
}

func TestSumAndFormat(t *testing.T) {
	total := Sum("100", "", "bad", "250.25")
	assert.Equal(t, "350.25", Format(total))
	assert.Equal(t, "50000", Format(ParseOrZero("50000.00")))
	assert.True(t, IsZero("0.00"))
	assert.False(t, IsZero("1"))
}

func TestFitsLedger(t *testing.T) {
	for _, s := range []string{"", "abc", "0", "50000", "12500.50", "9999999999999.99", "-20.1"} {
		assert.True(t, FitsLedger(s), s)
	}
	for _, s := range []string{"0.001", "10000000000000", "1e13", "-10000000000000.5"} {
		assert.False(t, FitsLedger(s), s)
	}
}
