package fixedpoint

import "testing"

func TestBpsOfCeilRoundsUp(t *testing.T) {
	n := U128{}
	n.v.SetUint64(1_000_001)
	got, err := BpsOfCeil(n, 10) // 10bps
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1_000_001 * 10 / 10_000 = 1000.001 -> ceil = 1001
	if got.Uint64() != 1001 {
		t.Fatalf("expected 1001, got %d", got.Uint64())
	}
}

func TestBpsOfFloorRoundsDown(t *testing.T) {
	n := U128{}
	n.v.SetUint64(1_000_001)
	got, err := BpsOfFloor(n, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 1000 {
		t.Fatalf("expected 1000, got %d", got.Uint64())
	}
}

func TestSubUNegativeErrors(t *testing.T) {
	a := FromU64(5)
	b := FromU64(10)
	if _, err := SubU(a, b); err == nil {
		t.Fatalf("expected error on negative unsigned subtraction")
	}
}

func TestMulIOverflow(t *testing.T) {
	big1 := I128{}
	big1.v.Set(maxI128)
	if _, err := MulI(big1, FromI64(2)); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestDivITruncTowardZero(t *testing.T) {
	a := FromI64(-7)
	b := FromI64(2)
	got, err := DivITrunc(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Int64() != -3 {
		t.Fatalf("expected -3 (trunc toward zero), got %d", got.Int64())
	}
}

func TestAbsAndNeg(t *testing.T) {
	a := FromI64(-42)
	if AbsI(a).Uint64() != 42 {
		t.Fatalf("expected abs 42")
	}
	if Neg(a).Int64() != 42 {
		t.Fatalf("expected neg -(-42) == 42")
	}
}
