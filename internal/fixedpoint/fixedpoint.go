// Package fixedpoint provides checked 128-bit fixed-point arithmetic for the
// slab engine. All prices are Q6 (six implicit decimals); all bps values are
// parts-per-10,000. Division is floor for unsigned and truncated-toward-zero
// for signed unless a call site documents otherwise. Overflow of the declared
// 128-bit range is always an error, never a silent wrap.
package fixedpoint

import (
	"math/big"
	"sync"

	"percolat/internal/apperrors"
)

const (
	// PriceScale is the Q6 scale applied to all prices.
	PriceScale = 1_000_000
	// BpsDenom is the parts-per-10,000 denominator used for all bps math.
	BpsDenom = 10_000
)

var (
	minI128 = new(big.Int).Lsh(big.NewInt(-1), 127)
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// bigIntPool amortizes allocation for the hot settlement/margin paths, the
// way the teacher's internal/math/fixedpoint.go pools *big.Int for the same
// reason at a smaller (int64) scale.
var bigIntPool = &sync.Pool{
	New: func() interface{} { return new(big.Int) },
}

func get() *big.Int  { return bigIntPool.Get().(*big.Int) }
func put(v *big.Int) { v.SetInt64(0); bigIntPool.Put(v) }

// I128 is a checked signed 128-bit integer.
type I128 struct{ v big.Int }

// U128 is a checked unsigned 128-bit integer, always >= 0.
type U128 struct{ v big.Int }

func FromI64(x int64) I128 { var r I128; r.v.SetInt64(x); return r }
func FromU64(x uint64) U128 { var r U128; r.v.SetUint64(x); return r }

func (a I128) Big() *big.Int { return new(big.Int).Set(&a.v) }
func (a U128) Big() *big.Int { return new(big.Int).Set(&a.v) }

func (a I128) Sign() int { return a.v.Sign() }
func (a I128) IsZero() bool { return a.v.Sign() == 0 }
func (a U128) IsZero() bool { return a.v.Sign() == 0 }

func (a I128) Cmp(b I128) int { return a.v.Cmp(&b.v) }
func (a U128) Cmp(b U128) int { return a.v.Cmp(&b.v) }

func (a I128) Int64() int64 {
	return a.v.Int64()
}

func (a U128) Uint64() uint64 {
	return a.v.Uint64()
}

func (a I128) String() string { return a.v.String() }
func (a U128) String() string { return a.v.String() }

func checkI128(v *big.Int) (I128, error) {
	if v.Cmp(minI128) < 0 || v.Cmp(maxI128) > 0 {
		return I128{}, apperrors.ErrArithmeticOverflow
	}
	var r I128
	r.v.Set(v)
	return r, nil
}

func checkU128(v *big.Int) (U128, error) {
	if v.Sign() < 0 || v.Cmp(maxU128) > 0 {
		return U128{}, apperrors.ErrArithmeticOverflow
	}
	var r U128
	r.v.Set(v)
	return r, nil
}

// FromBigI wraps a *big.Int already computed by a caller (typically a
// multi-step formula not expressible as a single checked op) into a
// range-checked I128.
func FromBigI(v *big.Int) (I128, error) { return checkI128(v) }

// FromBigU wraps a *big.Int already computed by a caller into a
// range-checked U128.
func FromBigU(v *big.Int) (U128, error) { return checkU128(v) }

// AddI adds two signed values, erroring on overflow of the 128-bit range.
func AddI(a, b I128) (I128, error) {
	t := get()
	defer put(t)
	t.Add(&a.v, &b.v)
	return checkI128(t)
}

// SubI subtracts b from a.
func SubI(a, b I128) (I128, error) {
	t := get()
	defer put(t)
	t.Sub(&a.v, &b.v)
	return checkI128(t)
}

// MulI multiplies two signed values.
func MulI(a, b I128) (I128, error) {
	t := get()
	defer put(t)
	t.Mul(&a.v, &b.v)
	return checkI128(t)
}

// AddU adds two unsigned values.
func AddU(a, b U128) (U128, error) {
	t := get()
	defer put(t)
	t.Add(&a.v, &b.v)
	return checkU128(t)
}

// SubU subtracts b from a; errors (rather than wraps) if the result would be
// negative. Account capital must never go negative, so callers route through
// this instead of raw big.Int subtraction.
func SubU(a, b U128) (U128, error) {
	t := get()
	defer put(t)
	t.Sub(&a.v, &b.v)
	return checkU128(t)
}

// MulU multiplies two unsigned values.
func MulU(a, b U128) (U128, error) {
	t := get()
	defer put(t)
	t.Mul(&a.v, &b.v)
	return checkU128(t)
}

// DivUFloor computes floor(a/b) for unsigned operands.
func DivUFloor(a, b U128) (U128, error) {
	if b.IsZero() {
		return U128{}, apperrors.ErrDivisionByZero
	}
	t := get()
	defer put(t)
	t.Div(&a.v, &b.v)
	return checkU128(t)
}

// DivITrunc computes a/b truncated toward zero for signed operands.
func DivITrunc(a, b I128) (I128, error) {
	if b.IsZero() {
		return I128{}, apperrors.ErrDivisionByZero
	}
	t := get()
	defer put(t)
	t.Quo(&a.v, &b.v)
	return checkI128(t)
}

// MulDivFloor computes floor(a*num/den) for unsigned operands without
// overflowing an intermediate 128-bit value — the big.Int product is taken at
// full precision, then floor-divided. Used for notional and PnL accrual.
func MulDivFloor(a U128, num, den uint64) (U128, error) {
	if den == 0 {
		return U128{}, apperrors.ErrDivisionByZero
	}
	t := get()
	defer put(t)
	t.Mul(&a.v, big.NewInt(0).SetUint64(num))
	t.Div(t, big.NewInt(0).SetUint64(den))
	return checkU128(t)
}

// MulDivCeil computes ceil(a*num/den), the rounding direction margin
// requirements use: (x*bps + denom - 1) / denom generalized to 128 bits.
func MulDivCeil(a U128, num, den uint64) (U128, error) {
	if den == 0 {
		return U128{}, apperrors.ErrDivisionByZero
	}
	t := get()
	defer put(t)
	t.Mul(&a.v, big.NewInt(0).SetUint64(num))
	denom := big.NewInt(0).SetUint64(den)
	t.Add(t, denom)
	t.Sub(t, big.NewInt(1))
	t.Div(t, denom)
	return checkU128(t)
}

// BpsOfCeil returns ceil(notional * bps / BpsDenom), the rounding direction
// margin requirements always use.
func BpsOfCeil(notional U128, bps uint64) (U128, error) {
	return MulDivCeil(notional, bps, BpsDenom)
}

// BpsOfFloor returns floor(notional * bps / BpsDenom), the rounding-down
// counterpart of BpsOfCeil; the fee sites charge with BpsOfCeil.
func BpsOfFloor(notional U128, bps uint64) (U128, error) {
	return MulDivFloor(notional, bps, BpsDenom)
}

// AbsI returns |a| as an unsigned value.
func AbsI(a I128) U128 {
	t := get()
	defer put(t)
	t.Abs(&a.v)
	var r U128
	r.v.Set(t)
	return r
}

// Neg returns -a.
func Neg(a I128) I128 {
	var r I128
	r.v.Neg(&a.v)
	return r
}

// ToI converts an unsigned value to signed, erroring if it exceeds the
// signed 128-bit range (it never will at any realistic collateral scale, but
// the check keeps the contract honest).
func ToI(a U128) (I128, error) {
	return checkI128(&a.v)
}

// ToU converts a signed non-negative value to unsigned, erroring if negative.
func ToU(a I128) (U128, error) {
	if a.v.Sign() < 0 {
		return U128{}, apperrors.ErrArithmeticOverflow
	}
	return checkU128(&a.v)
}

// ZeroI and ZeroU return the additive identity for I128/U128.
func ZeroI() I128 { return I128{} }
func ZeroU() U128 { return U128{} }

// LE encodes a as 16 little-endian bytes, the on-slab representation for
// every u128 field.
func (a U128) LE() [16]byte {
	var buf, be [16]byte
	b := a.v.Bytes()
	copy(be[16-len(b):], b)
	for i, j := 0, 15; i < j; i, j = i+1, j-1 {
		be[i], be[j] = be[j], be[i]
	}
	buf = be
	return buf
}

// U128FromLE decodes 16 little-endian bytes into a U128.
func U128FromLE(b [16]byte) U128 {
	be := b
	for i, j := 0, 15; i < j; i, j = i+1, j-1 {
		be[i], be[j] = be[j], be[i]
	}
	var r U128
	r.v.SetBytes(be[:])
	return r
}

// LE encodes a as 16 little-endian two's-complement bytes, the on-slab
// representation for every i128 field.
func (a I128) LE() [16]byte {
	v := new(big.Int).Set(&a.v)
	if v.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		v.Add(v, mod)
	}
	var be [16]byte
	b := v.Bytes()
	copy(be[16-len(b):], b)
	for i, j := 0, 15; i < j; i, j = i+1, j-1 {
		be[i], be[j] = be[j], be[i]
	}
	return be
}

// I128FromLE decodes 16 little-endian two's-complement bytes into an I128.
func I128FromLE(b [16]byte) I128 {
	be := b
	for i, j := 0, 15; i < j; i, j = i+1, j-1 {
		be[i], be[j] = be[j], be[i]
	}
	v := new(big.Int).SetBytes(be[:])
	half := new(big.Int).Lsh(big.NewInt(1), 127)
	if v.Cmp(half) >= 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		v.Sub(v, mod)
	}
	var r I128
	r.v.Set(v)
	return r
}

// MaxU returns the larger of a, b.
func MaxU(a, b U128) U128 {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// MinU returns the smaller of a, b.
func MinU(a, b U128) U128 {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
