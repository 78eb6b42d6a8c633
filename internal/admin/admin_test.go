package admin

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

func newMarket(t *testing.T, admin solana.PublicKey) *slab.View {
	t.Helper()
	v := slab.New()
	v.SetAdmin(admin)
	return v
}

func TestUpdateAdminRequiresCurrentAdmin(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	v := newMarket(t, admin)
	intruder := solana.NewWallet().PublicKey()
	if err := UpdateAdmin(v, intruder, solana.NewWallet().PublicKey()); !errors.Is(err, apperrors.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestUpdateAdminSwapsKeyAndBumpsNonce(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	v := newMarket(t, admin)
	newAdmin := solana.NewWallet().PublicKey()
	if err := UpdateAdmin(v, admin, newAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Admin() != newAdmin {
		t.Fatalf("expected admin swapped")
	}
	if v.Nonce() != 1 {
		t.Fatalf("expected nonce bumped to 1, got %d", v.Nonce())
	}
}

func TestPushOraclePriceRequiresDelegatedAuthority(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	v := newMarket(t, admin)
	authority := solana.NewWallet().PublicKey()
	if err := PushOraclePrice(v, authority, 100_000_000, 1000); !errors.Is(err, apperrors.ErrNotOracleAuthority) {
		t.Fatalf("expected ErrNotOracleAuthority before delegation, got %v", err)
	}

	if err := SetOracleAuthority(v, admin, authority); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := PushOraclePrice(v, authority, 100_000_000, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.AuthorityPriceE6() != 100_000_000 || v.AuthorityTimestamp() != 1000 {
		t.Fatalf("expected authority price recorded")
	}
}

func TestPushOraclePriceRejectsZeroPrice(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	v := newMarket(t, admin)
	authority := solana.NewWallet().PublicKey()
	if err := SetOracleAuthority(v, admin, authority); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := PushOraclePrice(v, authority, 0, 1000); !errors.Is(err, apperrors.ErrOraclePriceInvalid) {
		t.Fatalf("expected ErrOraclePriceInvalid, got %v", err)
	}
}

func TestTopUpInsuranceCreditsVaultAndInsurance(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	v := newMarket(t, admin)
	if err := TopUpInsurance(v, admin, fixedpoint.FromU64(5_000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Vault().Uint64() != 5_000 || v.InsuranceBalance().Uint64() != 5_000 {
		t.Fatalf("expected vault and insurance both credited 5000")
	}
}

func TestCloseSlabRejectsWhileAccountsOpen(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	v := newMarket(t, admin)
	v.SetNumUsedAccounts(1)
	if err := CloseSlab(v, admin); !errors.Is(err, apperrors.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestCloseSlabSucceedsWhenEmpty(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	v := newMarket(t, admin)
	if err := CloseSlab(v, admin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
