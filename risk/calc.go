package risk

import "math"

// DrawdownPct is the percentage decline of value from peak. It is zero
// when no peak has been recorded.
func DrawdownPct(value, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (value - peak) / peak * 100
}

// PctChange is the percentage move from base to price.
func PctChange(price, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (price - base) / base * 100
}

// Level offsets price by pct percent. Negative pct gives a stop below price.
func Level(price, pct float64) float64 {
	return price * (1 + pct/100)
}

// SizeQuantity is the whole number of shares budget can buy at price.
func SizeQuantity(budget, price float64) int {
	if price <= 0 || budget <= 0 {
		return 0
	}
	return int(math.Floor(budget / price))
}

// Round2 rounds to cents.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
