package fpmath

import (
	"errors"
	"math/big"
)

// ErrOverflow indicates an intermediate or final value exceeded the 256-bit
// working width of the ledger's fixed-point arithmetic.
var ErrOverflow = errors.New("fpmath: amount exceeds 256-bit working width")

// ErrNegativeAmount indicates a negative amount reached the conversion
// pipeline. Ledger amounts are unsigned by contract.
var ErrNegativeAmount = errors.New("fpmath: amount must be non-negative")

// ErrZeroDivisor indicates a rate base (or rate, on the inverse path) of
// zero reached a division site. Callers are expected to reject zero bases at
// configuration time; this is the last line of defence.
var ErrZeroDivisor = errors.New("fpmath: division by zero")

// maxAmount is the inclusive ceiling for every amount handled by the ledger,
// 2^256 - 1. math/big never overflows on its own, so the cap is enforced
// explicitly at every multiplication site.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var ten = big.NewInt(10)

func checkAmount(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ErrNegativeAmount
	}
	if v.Cmp(maxAmount) > 0 {
		return ErrOverflow
	}
	return nil
}

func pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(exp)), nil)
}

// Rescale converts amount between decimal precisions. Upscaling multiplies by
// a power of ten and is exact; downscaling floor-divides and may truncate.
// Truncation is intentional and must never round up.
func Rescale(amount *big.Int, fromDecimals, toDecimals uint8) (*big.Int, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	switch {
	case fromDecimals == toDecimals:
		return new(big.Int).Set(amount), nil
	case fromDecimals < toDecimals:
		scaled := new(big.Int).Mul(amount, pow10(toDecimals-fromDecimals))
		if scaled.Cmp(maxAmount) > 0 {
			return nil, ErrOverflow
		}
		return scaled, nil
	default:
		return new(big.Int).Quo(amount, pow10(fromDecimals-toDecimals)), nil
	}
}

// ApplyRate returns floor(amount * rate / rateBase).
func ApplyRate(amount, rate, rateBase *big.Int) (*big.Int, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if rate == nil || rate.Sign() < 0 || rateBase == nil || rateBase.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if rateBase.Sign() == 0 {
		return nil, ErrZeroDivisor
	}
	product := new(big.Int).Mul(amount, rate)
	if product.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	return product.Quo(product, rateBase), nil
}

// UnapplyRate returns floor(amount * rateBase / rate), the inverse of
// ApplyRate under the ledger's floor-everywhere rounding policy.
func UnapplyRate(amount, rate, rateBase *big.Int) (*big.Int, error) {
	if rate != nil && rate.Sign() == 0 {
		return nil, ErrZeroDivisor
	}
	return ApplyRate(amount, rateBase, rate)
}

// ConvertToNative runs the forward conversion pipeline: rescale the base
// amount into native decimals first, then apply rate/rateBase. The
// composition order is load-bearing; swapping the two steps changes rounding
// results.
func ConvertToNative(baseAmount *big.Int, baseDecimals, nativeDecimals uint8, rate, rateBase *big.Int) (*big.Int, error) {
	rescaled, err := Rescale(baseAmount, baseDecimals, nativeDecimals)
	if err != nil {
		return nil, err
	}
	return ApplyRate(rescaled, rate, rateBase)
}

// ConvertToBase inverts ConvertToNative: undo the rate first, then rescale
// back to base decimals. Both divisions floor, so round-tripping a native
// amount never yields more base collateral than the forward path consumed;
// rounding dust stays in custody.
func ConvertToBase(nativeAmount *big.Int, baseDecimals, nativeDecimals uint8, rate, rateBase *big.Int) (*big.Int, error) {
	unrated, err := UnapplyRate(nativeAmount, rate, rateBase)
	if err != nil {
		return nil, err
	}
	return Rescale(unrated, nativeDecimals, baseDecimals)
}
