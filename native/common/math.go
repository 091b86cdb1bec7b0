package common

import (
	"errors"
	"math/big"
)

var (
	// BpsDenominator is the basis-point scale shared by every fee and
	// multiplier in the platform: 10,000 = 100%.
	BpsDenominator = big.NewInt(10_000)
	// Scale is the 18-decimal fixed-point unit used for all token amounts.
	Scale = mustBigInt("1000000000000000000")
)

var (
	errNilOperand      = errors.New("fixedpoint: nil operand")
	errNegativeOperand = errors.New("fixedpoint: negative operand")
	errZeroDenominator = errors.New("fixedpoint: zero denominator")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// MulDiv computes floor(a*b/den) over non-negative operands. It is the single
// fixed-point multiply-divide used by every engine so rounding behaviour stays
// uniform across the platform.
func MulDiv(a, b, den *big.Int) (*big.Int, error) {
	if a == nil || b == nil || den == nil {
		return nil, errNilOperand
	}
	if a.Sign() < 0 || b.Sign() < 0 || den.Sign() < 0 {
		return nil, errNegativeOperand
	}
	if den.Sign() == 0 {
		return nil, errZeroDenominator
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, den), nil
}

// ApplyBps scales amount by bps/10000 with floor rounding. Negative or nil
// amounts yield zero.
func ApplyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	out, err := MulDiv(amount, new(big.Int).SetUint64(uint64(bps)), BpsDenominator)
	if err != nil {
		return big.NewInt(0)
	}
	return out
}

// CloneBigInt returns a defensive copy, mapping nil to zero.
func CloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
