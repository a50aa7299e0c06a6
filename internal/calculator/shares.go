package calculator

import (
	"github.com/shopspring/decimal"
)

// Policy selects how an expense amount is divided among its participants.
type Policy int

const (
	// RoundEach rounds every participant's share to cents independently.
	// Shares may not add up to the amount; the drift is at most n × 0.005.
	RoundEach Policy = iota

	// LargestRemainder allocates whole cents so that shares add up exactly.
	// Leftover cents go one each to participants in split order.
	LargestRemainder
)

// String returns the policy name used in flags and logs.
func (p Policy) String() string {
	switch p {
	case RoundEach:
		return "round-each"
	case LargestRemainder:
		return "largest-remainder"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a policy name back to its value.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "round-each":
		return RoundEach, true
	case "largest-remainder":
		return LargestRemainder, true
	default:
		return RoundEach, false
	}
}

// ShareOf computes one participant's share: round(amount / n, 2).
// Rounding is half away from zero. A non-positive n yields zero.
func ShareOf(amount decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// Allocate splits amount into n cent-exact shares that add up to the
// amount rounded to cents. The first amount%n participants receive one
// extra cent.
func Allocate(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := amount.Round(2).Shift(2).IntPart()
	base := cents / int64(n)
	rem := cents % int64(n)
	if rem < 0 {
		// Negative amounts borrow the cent from the last participants instead.
		base--
		rem += int64(n)
	}

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		c := base
		if int64(i) < rem {
			c++
		}
		shares[i] = decimal.New(c, -2)
	}
	return shares
}
