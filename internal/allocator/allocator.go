// Package allocator implements the bitmap-indexed account slot allocator:
// scan for a free slot, mint a monotonic account id into it, and free a
// slot back to the pool without ever reusing an id.
package allocator

import (
	"percolat/internal/apperrors"
	"percolat/internal/slab"
)

// Alloc scans v's bitmap for the first clear bit below the deployment's
// runtime max_accounts, sets it, mints the next account id into the new
// slot, and bumps num_used_accounts. It fails with ErrMarketFull if no
// slot is free.
func Alloc(v *slab.View) (idx uint32, accountID uint64, err error) {
	limit := v.MaxAccounts()
	idx, ok := v.FirstClearBit(limit)
	if !ok {
		return 0, 0, apperrors.ErrMarketFull
	}
	v.SetBit(idx)
	v.SetNumUsedAccounts(v.NumUsedAccounts() + 1)

	accountID = v.NextAccountID()
	v.SetNextAccountID(accountID + 1)

	acc, err := v.Account(idx)
	if err != nil {
		return 0, 0, err
	}
	acc.SetAccountID(accountID)
	return idx, accountID, nil
}

// Free clears idx's bitmap bit, decrements num_used_accounts, and zeroes
// the fixed record. The account id minted into idx is never reused: only
// next_account_id moves forward, never backward.
func Free(v *slab.View, idx uint32) error {
	if !v.TestBit(idx) {
		return apperrors.ErrInvalidIndex
	}
	acc, err := v.Account(idx)
	if err != nil {
		return err
	}
	acc.Zero()
	v.ClearBit(idx)
	v.SetNumUsedAccounts(v.NumUsedAccounts() - 1)
	return nil
}

// CheckBitmapIntegrity verifies popcount(bitmap) == num_used_accounts, the
// allocator-side half of invariant P2.
func CheckBitmapIntegrity(v *slab.View) error {
	if v.PopCount() != int(v.NumUsedAccounts()) {
		return apperrors.ErrBitmapInconsistent
	}
	return nil
}
