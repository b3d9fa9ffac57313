package category

import (
	"github.com/shopspring/decimal"
)

// DecimalPlaces returns the number of decimals implied by a pip size,
// e.g. 0.001 -> 3. Non-positive pips give 0.
func DecimalPlaces(pip float64) int {
	d := decimal.NewFromFloat(pip)
	if d.Sign() <= 0 {
		return 0
	}
	if exp := d.Exponent(); exp < 0 {
		return int(-exp)
	}
	return 0
}

// FormatPrice renders price with the given number of decimals.
func FormatPrice(price float64, places int) string {
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(price).StringFixed(int32(places))
}
