// Package fixed implements exact non-negative decimal amounts stored as scaled
// integers. All reserve, fee and LP-token quantities in the engine use it.
package fixed

import (
	"encoding/json"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional decimal digits carried by an Amount.
const Scale = 10

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10_000

var (
	unit     = new(big.Int).Exp(big.NewInt(10), big.NewInt(Scale), nil)
	maxValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), sdkmath.MaxBitLen), big.NewInt(1))
)

// Amount is an exact non-negative decimal with Scale fractional digits.
// The zero value is a valid zero amount.
type Amount struct {
	raw sdkmath.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{raw: sdkmath.ZeroInt()}
}

// NewAmount returns an amount of whole units.
func NewAmount(units int64) Amount {
	if units < 0 {
		panic("fixed: negative amount")
	}
	return Amount{raw: sdkmath.NewInt(units).Mul(sdkmath.NewIntFromBigInt(unit))}
}

// FromRaw builds an amount from its scaled integer representation.
func FromRaw(raw *big.Int) (Amount, error) {
	if raw == nil {
		return Zero(), nil
	}
	if raw.Sign() < 0 {
		return Amount{}, ErrInvalidAmount.Wrapf("negative raw value %s", raw)
	}
	if raw.Cmp(maxValue) > 0 {
		return Amount{}, ErrOverflow.Wrapf("raw value exceeds %d bits", sdkmath.MaxBitLen)
	}
	return Amount{raw: sdkmath.NewIntFromBigInt(raw)}, nil
}

// MustParse is ParseAmount for constants and tests.
func MustParse(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAmount parses a decimal string such as "12.5". Negative values and
// values with more than Scale fractional digits are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount.Wrap("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount.Wrapf("parse %q: %v", s, err)
	}
	if d.IsNegative() {
		return Amount{}, ErrInvalidAmount.Wrapf("negative amount %s", s)
	}
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return Amount{}, ErrInvalidAmount.Wrapf("%s has more than %d fractional digits", s, Scale)
	}
	return FromRaw(shifted.BigInt())
}

func (a Amount) int() sdkmath.Int {
	if a.raw.IsNil() {
		return sdkmath.ZeroInt()
	}
	return a.raw
}

// Raw returns a copy of the scaled integer.
func (a Amount) Raw() *big.Int {
	return new(big.Int).Set(a.int().BigInt())
}

// Decimal returns the amount as a shopspring decimal, for display and
// ratio reporting only.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.int().BigInt(), -Scale)
}

// String renders the amount with exactly Scale fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

func (a Amount) IsZero() bool        { return a.int().IsZero() }
func (a Amount) IsPositive() bool    { return a.int().IsPositive() }
func (a Amount) Equal(b Amount) bool { return a.int().Equal(b.int()) }
func (a Amount) LT(b Amount) bool    { return a.int().LT(b.int()) }
func (a Amount) LTE(b Amount) bool   { return a.int().LTE(b.int()) }
func (a Amount) GT(b Amount) bool    { return a.int().GT(b.int()) }
func (a Amount) GTE(b Amount) bool   { return a.int().GTE(b.int()) }
func (a Amount) Cmp(b Amount) int    { return a.int().BigInt().Cmp(b.int().BigInt()) }

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, err := a.int().SafeAdd(b.int())
	if err != nil {
		return Amount{}, ErrOverflow.Wrapf("%s + %s", a, b)
	}
	return fromInt(sum)
}

// Sub returns a-b and fails with ErrUnderflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.LT(b) {
		return Amount{}, ErrUnderflow.Wrapf("%s - %s", a, b)
	}
	return Amount{raw: a.int().Sub(b.int())}, nil
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.LTE(b) {
		return a
	}
	return b
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts only a decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidAmount.Wrapf("amount must be a decimal string: %v", err)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func fromInt(i sdkmath.Int) (Amount, error) {
	if i.IsNegative() {
		return Amount{}, ErrUnderflow.Wrapf("negative result %s", i)
	}
	return Amount{raw: i}, nil
}
