package analytics

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percent returns num/den as a whole percentage, rounded half away from zero.
// A zero denominator yields 0.
func Percent(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(num)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(den))).
		Round(0).
		IntPart())
}

// Average returns num/den rounded to a whole number. A zero denominator
// yields 0.
func Average(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(num)).
		Div(decimal.NewFromInt(int64(den))).
		Round(0).
		IntPart())
}
