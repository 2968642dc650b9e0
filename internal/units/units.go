// Package units provides fixed-point arithmetic for token and native-currency
// amounts. Amounts are unsigned 256-bit integers in base units with an
// 18-decimal convention (1 token == 10^18 base units, 1 native == 1e18 wei).
//
// Every arithmetic helper is checked: overflow and underflow are reported as
// errors instead of wrapping, so callers can abort a settlement atomically.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the fixed-point scale used for token and native amounts.
const Decimals = 18

var (
	// ErrOverflow is returned when a result does not fit in 256 bits.
	ErrOverflow = errors.New("amount overflow")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("amount underflow")
	// ErrBadAmount is returned for unparsable, negative or fractional inputs.
	ErrBadAmount = errors.New("invalid amount")
)

// Zero returns a fresh zero amount.
func Zero() *uint256.Int { return new(uint256.Int) }

// Add returns x + y.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns x - y.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrUnderflow
	}
	return z, nil
}

// Mul returns x * y.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Percent returns floor(x * pct / 100). pct must be <= 100.
func Percent(x *uint256.Int, pct uint64) (*uint256.Int, error) {
	if pct > 100 {
		return nil, fmt.Errorf("%w: percentage %d > 100", ErrBadAmount, pct)
	}
	prod, err := Mul(x, uint256.NewInt(pct))
	if err != nil {
		return nil, err
	}
	return prod.Div(prod, uint256.NewInt(100)), nil
}

// Split divides total into (share, remainder) where share = floor(total*pct/100)
// and remainder = total - share. The remainder absorbs any rounding dust so
// share + remainder == total always holds.
func Split(total *uint256.Int, pct uint64) (share, remainder *uint256.Int, err error) {
	share, err = Percent(total, pct)
	if err != nil {
		return nil, nil, err
	}
	remainder, err = Sub(total, share)
	if err != nil {
		return nil, nil, err
	}
	return share, remainder, nil
}

// ParseBase parses a decimal string of base units ("1000000000000000").
func ParseBase(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrBadAmount
	}
	v, err := uint256.FromDecimal(s)
	if errors.Is(err, uint256.ErrBig256Range) {
		return nil, ErrOverflow
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	return v, nil
}

// ParseUnits parses a human decimal ("0.001") and scales it to base units.
// Inputs with more than Decimals fractional digits are rejected rather than
// silently truncated.
func ParseUnits(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative %q", ErrBadAmount, s)
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrBadAmount, s, Decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// MustParseUnits is ParseUnits for constants; it panics on error.
func MustParseUnits(s string) *uint256.Int {
	v, err := ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders base units as a human decimal ("0.0008").
func Format(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -Decimals).String()
}

// Float64 approximates v in whole units. Only for metrics and logs.
func Float64(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v.ToBig(), -Decimals).InexactFloat64()
}
