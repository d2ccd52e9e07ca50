package fpmath_test

import (
	"errors"
	"math/big"
	"testing"

	"WrapLedger/internal/fpmath"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test literal: " + s)
	}
	return v
}

// ============================================================================
// Test: Rescale
// ============================================================================

func TestRescale_UpscaleExact(t *testing.T) {
	got, err := fpmath.Rescale(big.NewInt(120000), 6, 18)
	if err != nil {
		t.Fatalf("Rescale failed: %v", err)
	}
	want := bi("120000000000000000")
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestRescale_DownscaleFloors(t *testing.T) {
	// 1999 at 3 decimals -> 1 at 0 decimals; never rounds up.
	got, err := fpmath.Rescale(big.NewInt(1999), 3, 0)
	if err != nil {
		t.Fatalf("Rescale failed: %v", err)
	}
	if got.Int64() != 1 {
		t.Errorf("got %s, want 1", got)
	}
}

func TestRescale_SameDecimalsIdentity(t *testing.T) {
	in := big.NewInt(42)
	got, err := fpmath.Rescale(in, 18, 18)
	if err != nil {
		t.Fatalf("Rescale failed: %v", err)
	}
	if got.Cmp(in) != 0 {
		t.Errorf("got %s, want 42", got)
	}
	if got == in {
		t.Error("Rescale must return a fresh value, not alias its input")
	}
}

func TestRescale_OverflowDetected(t *testing.T) {
	nearMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := fpmath.Rescale(nearMax, 0, 18)
	if !errors.Is(err, fpmath.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

func TestRescale_NegativeRejected(t *testing.T) {
	_, err := fpmath.Rescale(big.NewInt(-1), 6, 18)
	if !errors.Is(err, fpmath.ErrNegativeAmount) {
		t.Errorf("got %v, want ErrNegativeAmount", err)
	}
}

// ============================================================================
// Test: ApplyRate
// ============================================================================

func TestApplyRate_Floors(t *testing.T) {
	// 7 * 1 / 2 = 3.5 -> 3
	got, err := fpmath.ApplyRate(big.NewInt(7), big.NewInt(1), big.NewInt(2))
	if err != nil {
		t.Fatalf("ApplyRate failed: %v", err)
	}
	if got.Int64() != 3 {
		t.Errorf("got %s, want 3", got)
	}
}

func TestApplyRate_ZeroBase(t *testing.T) {
	_, err := fpmath.ApplyRate(big.NewInt(7), big.NewInt(1), big.NewInt(0))
	if !errors.Is(err, fpmath.ErrZeroDivisor) {
		t.Errorf("got %v, want ErrZeroDivisor", err)
	}
}

func TestApplyRate_RateAboveOne(t *testing.T) {
	// rate/rateBase is not required to be <= 1.
	got, err := fpmath.ApplyRate(big.NewInt(100), big.NewInt(3), big.NewInt(2))
	if err != nil {
		t.Fatalf("ApplyRate failed: %v", err)
	}
	if got.Int64() != 150 {
		t.Errorf("got %s, want 150", got)
	}
}

// ============================================================================
// Test: conversion pipeline
// ============================================================================

func TestConvertToNative_RoundingVector(t *testing.T) {
	// 120000 @ 6 decimals into 18 decimals at rate 25/10000:
	// 120000 * 10^12 * 25 / 10000 = 300000000000000000 exactly.
	got, err := fpmath.ConvertToNative(big.NewInt(120000), 6, 18, big.NewInt(25), big.NewInt(10000))
	if err != nil {
		t.Fatalf("ConvertToNative failed: %v", err)
	}
	want := bi("300000000000000000")
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestConvertToNative_CompositionOrder(t *testing.T) {
	// Rescale before rate: 7 @ 0 decimals -> 2 decimals at rate 1/3.
	// rescale-then-rate: floor(700/3) = 233. rate-then-rescale would give
	// floor(7/3)*100 = 200 — the pipeline must produce 233.
	got, err := fpmath.ConvertToNative(big.NewInt(7), 0, 2, big.NewInt(1), big.NewInt(3))
	if err != nil {
		t.Fatalf("ConvertToNative failed: %v", err)
	}
	if got.Int64() != 233 {
		t.Errorf("got %s, want 233", got)
	}
}

func TestConvertToBase_NeverExceedsForwardInput(t *testing.T) {
	rate, rateBase := big.NewInt(25), big.NewInt(10000)
	for _, base := range []int64{1, 399, 120000, 999999, 7000000000} {
		native, err := fpmath.ConvertToNative(big.NewInt(base), 6, 18, rate, rateBase)
		if err != nil {
			t.Fatalf("forward(%d) failed: %v", base, err)
		}
		back, err := fpmath.ConvertToBase(native, 6, 18, rate, rateBase)
		if err != nil {
			t.Fatalf("inverse(%d) failed: %v", base, err)
		}
		if back.Cmp(big.NewInt(base)) > 0 {
			t.Errorf("base=%d: inverse %s exceeds forward input", base, back)
		}
	}
}

func TestConvertToBase_ZeroRate(t *testing.T) {
	_, err := fpmath.ConvertToBase(big.NewInt(100), 6, 18, big.NewInt(0), big.NewInt(1))
	if !errors.Is(err, fpmath.ErrZeroDivisor) {
		t.Errorf("got %v, want ErrZeroDivisor", err)
	}
}
