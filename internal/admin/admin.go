// Package admin implements the handful of privileged operations that
// mutate market configuration directly instead of through trading or the
// crank: swapping the admin key, retuning the risk-reduction threshold,
// delegating oracle authority, pushing an authority-signed price, topping
// up the insurance fund, and closing an empty market.
package admin

import (
	"github.com/gagliardetto/solana-go"

	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

func requireAdmin(v *slab.View, signer solana.PublicKey) error {
	if signer != v.Admin() {
		return apperrors.ErrNotAdmin
	}
	return nil
}

func requireOracleAuthority(v *slab.View, signer solana.PublicKey) error {
	if !v.OracleAuthoritySet() || signer != v.OracleAuthority() {
		return apperrors.ErrNotOracleAuthority
	}
	return nil
}

// UpdateAdmin reassigns the market's admin key, bumping the nonce so a
// replayed instruction signed under the old admin cannot reapply.
func UpdateAdmin(v *slab.View, signer, newAdmin solana.PublicKey) error {
	if err := requireAdmin(v, signer); err != nil {
		return err
	}
	v.SetAdmin(newAdmin)
	v.IncrementNonce()
	return nil
}

// SetRiskThreshold overrides the risk_reduction_threshold the crank would
// otherwise only adjust by its own bounded EWMA step.
func SetRiskThreshold(v *slab.View, signer solana.PublicKey, threshold fixedpoint.U128) error {
	if err := requireAdmin(v, signer); err != nil {
		return err
	}
	v.SetRiskReductionThreshold(threshold)
	return nil
}

// SetOracleAuthority delegates authority-priced overrides to authority,
// or clears the delegation entirely if authority is the zero key.
func SetOracleAuthority(v *slab.View, signer, authority solana.PublicKey) error {
	if err := requireAdmin(v, signer); err != nil {
		return err
	}
	if authority == (solana.PublicKey{}) {
		v.SetOracleAuthoritySet(false)
		v.SetOracleAuthority(solana.PublicKey{})
		return nil
	}
	v.SetOracleAuthoritySet(true)
	v.SetOracleAuthority(authority)
	return nil
}

// PushOraclePrice records an authority-signed override price. It never
// accepts a non-positive price: a bad push would otherwise poison every
// margin check until it expires on its own staleness window.
func PushOraclePrice(v *slab.View, signer solana.PublicKey, priceE6 uint64, nowSec int64) error {
	if err := requireOracleAuthority(v, signer); err != nil {
		return err
	}
	if priceE6 == 0 {
		return apperrors.ErrOraclePriceInvalid
	}
	v.SetAuthorityPriceE6(priceE6)
	v.SetAuthorityTimestamp(nowSec)
	return nil
}

// TopUpInsurance records a collateral deposit made directly to the
// insurance fund. The corresponding token transfer into the market vault
// is the host's job; this only updates the accounting the slab tracks.
func TopUpInsurance(v *slab.View, signer solana.PublicKey, amount fixedpoint.U128) error {
	if err := requireAdmin(v, signer); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	newVault, err := fixedpoint.AddU(v.Vault(), amount)
	if err != nil {
		return err
	}
	v.SetVault(newVault)
	newInsurance, err := fixedpoint.AddU(v.InsuranceBalance(), amount)
	if err != nil {
		return err
	}
	v.SetInsuranceBalance(newInsurance)
	return nil
}

// CloseSlab validates that a market is safe to tear down: no open
// accounts, no open interest, no socialized loss still outstanding. The
// actual account closure and lamport reclaim happens on the host side;
// this only gates it.
func CloseSlab(v *slab.View, signer solana.PublicKey) error {
	if err := requireAdmin(v, signer); err != nil {
		return err
	}
	if v.NumUsedAccounts() != 0 {
		return apperrors.ErrInvariantViolation
	}
	if !v.TotalOpenInterest().IsZero() {
		return apperrors.ErrInvariantViolation
	}
	if !v.LossAccum().IsZero() {
		return apperrors.ErrInvariantViolation
	}
	return nil
}
