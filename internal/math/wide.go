package math

import (
	"fmt"
	"math/big"
	"sync"
)

// Amounts are token quantities of up to 128 bits upstream, so every
// fee/share computation runs through big.Int with a 256-bit intermediate.
// The pool mirrors the allocation discipline used for PnL math.
var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	intPool.Put(v)
}

// Zero returns a fresh zero-valued amount.
func Zero() *big.Int {
	return new(big.Int)
}

// Clone returns an independent copy of v (nil-safe, nil → 0).
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// IsZero reports whether v is nil or zero.
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// MulQuo computes a * num / den with a 256-bit intermediate, truncating
// toward zero. den must be positive.
func MulQuo(a *big.Int, num, den int64) *big.Int {
	if den <= 0 {
		panic(fmt.Sprintf("FATAL: MulQuo with non-positive denominator %d", den))
	}
	prod := getInt()
	prod.Mul(a, big.NewInt(num))
	result := new(big.Int).Quo(prod, big.NewInt(den))
	putInt(prod)
	return result
}

// Share computes value * numerator / den / count, the per-claimant cut of a
// pool. Division order matters: dividing by den before count matches the
// leftover-tracking arithmetic the pools rely on.
func Share(value *big.Int, numerator, den, count int64) *big.Int {
	if den <= 0 || count <= 0 {
		panic(fmt.Sprintf("FATAL: Share with non-positive divisor (den=%d, count=%d)", den, count))
	}
	prod := getInt()
	prod.Mul(value, big.NewInt(numerator))
	prod.Quo(prod, big.NewInt(den))
	result := new(big.Int).Quo(prod, big.NewInt(count))
	putInt(prod)
	return result
}

// AddMul accumulates acc += price * amount without allocating the product
// on the heap per call.
func AddMul(acc, price, amount *big.Int) {
	prod := getInt()
	prod.Mul(price, amount)
	acc.Add(acc, prod)
	putInt(prod)
}

// FormatValue encodes an amount as a decimal string. Final values cross
// process and storage boundaries as strings to avoid precision loss.
func FormatValue(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ParseValue decodes a decimal string into an amount. The empty string is
// an unset value and parses to zero.
func ParseValue(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal value %q", s)
	}
	return v, nil
}
