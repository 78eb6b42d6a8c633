package margin

import (
	"testing"

	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

func newAccount(t *testing.T) *slab.Account {
	t.Helper()
	v := slab.New()
	acc, err := v.Account(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return acc
}

func TestNotionalComputation(t *testing.T) {
	n, err := Notional(fixedpoint.FromI64(-1000), fixedpoint.FromU64(88_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Uint64() != 88_000 {
		t.Fatalf("expected 88_000, got %d", n.Uint64())
	}
}

func TestUnrealizedPnLLongProfit(t *testing.T) {
	u, err := UnrealizedPnL(fixedpoint.FromI64(1000), 90_000_000, 88_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Int64() != 2_000 {
		t.Fatalf("expected profit 2_000, got %d", u.Int64())
	}
}

func TestUnrealizedPnLShortLoss(t *testing.T) {
	u, err := UnrealizedPnL(fixedpoint.FromI64(-1000), 90_000_000, 88_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Int64() != -2_000 {
		t.Fatalf("expected loss -2_000, got %d", u.Int64())
	}
}

func TestEffectiveEquityExcludesPositiveRealized(t *testing.T) {
	acc := newAccount(t)
	acc.SetCapital(fixedpoint.FromU64(1_000_000))
	acc.SetPnlRealized(fixedpoint.FromI64(500_000)) // positive, unwarmed
	e, err := EffectiveEquity(acc, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Int64() != 1_000_000 {
		t.Fatalf("expected unwarmed positive pnl excluded, got %d", e.Int64())
	}
}

func TestEffectiveEquityChargesNegativeRealized(t *testing.T) {
	acc := newAccount(t)
	acc.SetCapital(fixedpoint.FromU64(1_000_000))
	acc.SetPnlRealized(fixedpoint.FromI64(-300_000))
	e, err := EffectiveEquity(acc, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Int64() != 700_000 {
		t.Fatalf("expected negative realized charged, got %d", e.Int64())
	}
}

func TestMarginRequirementsRoundUp(t *testing.T) {
	notional := fixedpoint.FromU64(1_000_001)
	im, err := InitialRequirement(notional, 1000) // 10%
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1_000_001 * 1000 / 10000 = 100000.1 -> ceil 100001
	if im.Uint64() != 100_001 {
		t.Fatalf("expected ceil rounding 100001, got %d", im.Uint64())
	}
}

func TestCheckHealthTransitions(t *testing.T) {
	mm := fixedpoint.FromU64(500)
	im := fixedpoint.FromU64(1000)

	h, err := CheckHealth(fixedpoint.FromI64(2000), im, mm)
	if err != nil || h != HealthHealthy {
		t.Fatalf("expected healthy, got %v err=%v", h, err)
	}
	h, err = CheckHealth(fixedpoint.FromI64(700), im, mm)
	if err != nil || h != HealthAtRisk {
		t.Fatalf("expected at-risk, got %v err=%v", h, err)
	}
	h, err = CheckHealth(fixedpoint.FromI64(100), im, mm)
	if err != nil || h != HealthLiquidatable {
		t.Fatalf("expected liquidatable, got %v err=%v", h, err)
	}
}
