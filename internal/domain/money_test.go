package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{name: "whole units", input: "90", expected: 9000},
		{name: "one fraction digit", input: "12.5", expected: 1250},
		{name: "two fraction digits", input: "12.50", expected: 1250},
		{name: "fraction only", input: ".25", expected: 25},
		{name: "zero", input: "0", expected: 0},
		{name: "negative", input: "-3.10", expected: -310},
		{name: "surrounding whitespace", input: "  7.07  ", expected: 707},
		{name: "largest representable", input: "92233720368547758.07", expected: 9223372036854775807},
		{name: "too many fraction digits", input: "1.234", wantErr: true},
		{name: "whole part wraps int64", input: "184467440737095517", wantErr: true},
		{name: "just past the int64 ceiling", input: "92233720368547758.08", wantErr: true},
		{name: "astronomical", input: "99999999999999999999", wantErr: true},
		{name: "explicit plus sign", input: "+5", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "bare dot", input: ".", wantErr: true},
		{name: "not a number", input: "ten", wantErr: true},
		{name: "embedded letters", input: "1x.00", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := ParseAmount(tc.input)

			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedAmount)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, amount)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	testCases := []struct {
		amount   int64
		expected string
	}{
		{amount: 9000, expected: "90.00"},
		{amount: 1250, expected: "12.50"},
		{amount: 25, expected: "0.25"},
		{amount: 0, expected: "0.00"},
		{amount: -310, expected: "-3.10"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, FormatAmount(tc.amount))
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, input := range []string{"90.00", "0.01", "12.50", "100000.99"} {
		amount, err := ParseAmount(input)
		assert.NoError(t, err)
		assert.Equal(t, input, FormatAmount(amount))
	}
}
