package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Balances are stored as int64 minor units with two fraction digits,
// so 9000 means 90.00 units.
const minorUnitsPerUnit = 100

// ErrMalformedAmount is returned when a user-supplied amount cannot be parsed.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount converts user input such as "12", "12.5" or "12.50" into minor
// units. At most two fraction digits are accepted.
func ParseAmount(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "+") {
		return 0, ErrMalformedAmount
	}

	negative := strings.HasPrefix(text, "-")
	if negative {
		text = text[1:]
	}

	whole := text
	frac := ""
	if idx := strings.IndexByte(text, '.'); idx >= 0 {
		whole, frac = text[:idx], text[idx+1:]
	}

	if whole == "" && frac == "" {
		return 0, ErrMalformedAmount
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, ErrMalformedAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	wholePart, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrMalformedAmount
	}

	fracPart := int64(0)
	if frac != "00" {
		fracPart, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrMalformedAmount
		}
	}

	// fracPart is at most 99; anything past this bound would wrap int64.
	if wholePart > (math.MaxInt64-fracPart)/minorUnitsPerUnit {
		return 0, ErrMalformedAmount
	}

	amount := wholePart*minorUnitsPerUnit + fracPart
	if negative {
		amount = -amount
	}

	return amount, nil
}

// Units converts minor units to whole ledger units as a float, for metrics only.
func Units(amount int64) float64 {
	return float64(amount) / minorUnitsPerUnit
}

// FormatAmount renders minor units as a decimal string, e.g. 9000 -> "90.00".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	return fmt.Sprintf("%s%d.%02d", sign, amount/minorUnitsPerUnit, amount%minorUnitsPerUnit)
}
