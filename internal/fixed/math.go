package fixed

import (
	"math/big"
)

// MulDiv returns ⌊a·b/c⌋. The product is formed in a full-width big.Int
// so it cannot overflow before the division.
func MulDiv(a, b, c Amount) (Amount, error) {
	return mulDiv(a.int().BigInt(), b.int().BigInt(), c.int().BigInt(), false)
}

// MulDivUp returns ⌈a·b/c⌉.
func MulDivUp(a, b, c Amount) (Amount, error) {
	return mulDiv(a.int().BigInt(), b.int().BigInt(), c.int().BigInt(), true)
}

// MulBps returns ⌊a·bps/10000⌋.
func MulBps(a Amount, bps uint32) (Amount, error) {
	return mulDiv(a.int().BigInt(), big.NewInt(int64(bps)), big.NewInt(BpsDenominator), false)
}

// MulBpsUp returns ⌈a·bps/10000⌉.
func MulBpsUp(a Amount, bps uint32) (Amount, error) {
	return mulDiv(a.int().BigInt(), big.NewInt(int64(bps)), big.NewInt(BpsDenominator), true)
}

// RatioBps returns ⌊num·10000/den⌋ as a plain integer.
func RatioBps(num, den Amount) (uint64, error) {
	if den.IsZero() {
		return 0, ErrDivisionByZero.Wrap("ratio denominator")
	}
	q := new(big.Int).Mul(num.int().BigInt(), big.NewInt(BpsDenominator))
	q.Quo(q, den.int().BigInt())
	if !q.IsUint64() {
		return 0, ErrOverflow.Wrapf("ratio %s does not fit in uint64", q)
	}
	return q.Uint64(), nil
}

// SqrtProduct returns ⌊√(a·b)⌋ on the scaled representation. Because both
// operands carry the same scale, the result carries it too.
func SqrtProduct(a, b Amount) (Amount, error) {
	product := new(big.Int).Mul(a.int().BigInt(), b.int().BigInt())
	return FromRaw(product.Sqrt(product))
}

// CmpBps compares a with limit·bps/10000 without dividing.
func CmpBps(a, limit Amount, bps uint32) int {
	lhs := new(big.Int).Mul(a.int().BigInt(), big.NewInt(BpsDenominator))
	rhs := new(big.Int).Mul(limit.int().BigInt(), big.NewInt(int64(bps)))
	return lhs.Cmp(rhs)
}

// ExceedsBps reports whether a > limit·bps/10000.
func ExceedsBps(a, limit Amount, bps uint32) bool {
	return CmpBps(a, limit, bps) > 0
}

func mulDiv(a, b, c *big.Int, roundUp bool) (Amount, error) {
	if c.Sign() == 0 {
		return Amount{}, ErrDivisionByZero.Wrapf("%s * %s / 0", a, b)
	}
	product := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(product, c, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return FromRaw(q)
}

// K is the full-width product of two reserves.
type K struct {
	v *big.Int
}

// Product returns a·b on the scaled representations.
func Product(a, b Amount) K {
	return K{v: new(big.Int).Mul(a.int().BigInt(), b.int().BigInt())}
}

// Cmp compares two products.
func (k K) Cmp(o K) int {
	return k.big().Cmp(o.big())
}

func (k K) LT(o K) bool { return k.Cmp(o) < 0 }

func (k K) String() string {
	return k.big().String()
}

func (k K) big() *big.Int {
	if k.v == nil {
		return new(big.Int)
	}
	return k.v
}
