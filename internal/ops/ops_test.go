package ops

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"percolat/internal/oracle"
	"percolat/internal/slab"
)

func putU16(b []byte, off int, x uint16) { binary.LittleEndian.PutUint16(b[off:off+2], x) }
func putU64(b []byte, off int, x uint64) { binary.LittleEndian.PutUint64(b[off:off+8], x) }

func newMarketWithRisk(t *testing.T) *slab.View {
	t.Helper()
	v := slab.New()
	v.SetMaxAccounts(8)
	v.SetNewAccountFeeU64(100)
	v.SetInitialMarginBps(1000)
	v.SetMaintenanceMarginBps(500)
	v.SetMaxCrankStalenessSlots(1000)
	return v
}

// authorityPriceEnv stamps an authority override price onto v so Dispatch's
// oracle.Read calls resolve without needing a live external feed payload.
func authorityPriceEnv(v *slab.View, priceE6 uint64, nowSec int64) Env {
	v.SetAuthorityPriceE6(priceE6)
	v.SetAuthorityTimestamp(nowSec)
	return Env{NowSec: nowSec, CurrentSlot: 1, Reading: oracle.Reading{}, Log: zerolog.Nop()}
}

func TestDispatchInitUserAllocatesAccount(t *testing.T) {
	v := newMarketWithRisk(t)
	env := Env{Signer: solana.NewWallet().PublicKey()}

	payload := make([]byte, 8)
	putU64(payload, 0, 1_000)

	if _, err := Dispatch(v, env, TagInitUser, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.NumUsedAccounts() != 1 {
		t.Fatalf("expected one account allocated, got %d", v.NumUsedAccounts())
	}
}

func TestDispatchDepositThenWithdrawCollateral(t *testing.T) {
	v := newMarketWithRisk(t)
	env := authorityPriceEnv(v, 100_000_000, 1000)
	env.Signer = solana.NewWallet().PublicKey()

	initPayload := make([]byte, 8)
	putU64(initPayload, 0, 1_000)
	if _, err := Dispatch(v, env, TagInitUser, initPayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	depositPayload := make([]byte, 10)
	putU16(depositPayload, 0, 0)
	putU64(depositPayload, 2, 500)
	if _, err := Dispatch(v, env, TagDepositCollateral, depositPayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acc, _ := v.Account(0)
	if acc.Capital().Uint64() != 1_400 {
		t.Fatalf("expected capital 1400 after deposit, got %d", acc.Capital().Uint64())
	}

	withdrawPayload := make([]byte, 10)
	putU16(withdrawPayload, 0, 0)
	putU64(withdrawPayload, 2, 1_400)
	if _, err := Dispatch(v, env, TagWithdrawCollateral, withdrawPayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Capital().Uint64() != 0 {
		t.Fatalf("expected capital drained, got %d", acc.Capital().Uint64())
	}
}

func TestDispatchUnknownTagFails(t *testing.T) {
	v := newMarketWithRisk(t)
	if _, err := Dispatch(v, Env{}, Tag(99), nil); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}

func TestDispatchUpdateAdminRequiresSigner(t *testing.T) {
	v := newMarketWithRisk(t)
	admin := solana.NewWallet().PublicKey()
	v.SetAdmin(admin)

	payload := make([]byte, 32)
	newAdmin := solana.NewWallet().PublicKey()
	copy(payload, newAdmin[:])

	if _, err := Dispatch(v, Env{Signer: admin}, TagUpdateAdmin, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Admin() != newAdmin {
		t.Fatalf("expected admin swapped")
	}
}

func TestDispatchTopUpInsurance(t *testing.T) {
	v := newMarketWithRisk(t)
	admin := solana.NewWallet().PublicKey()
	v.SetAdmin(admin)

	payload := make([]byte, 8)
	putU64(payload, 0, 2_000)
	if _, err := Dispatch(v, Env{Signer: admin}, TagTopUpInsurance, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.InsuranceBalance().Uint64() != 2_000 {
		t.Fatalf("expected insurance credited 2000, got %d", v.InsuranceBalance().Uint64())
	}
}

func TestDispatchCloseSlabRejectsWhileAccountsOpen(t *testing.T) {
	v := newMarketWithRisk(t)
	admin := solana.NewWallet().PublicKey()
	v.SetAdmin(admin)
	v.SetNumUsedAccounts(1)

	if _, err := Dispatch(v, Env{Signer: admin}, TagCloseSlab, nil); err == nil {
		t.Fatalf("expected error while accounts are open")
	}
}
