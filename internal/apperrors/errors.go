// Package apperrors registers the stable, host-visible error taxonomy for
// the slab engine. Codes are never renumbered across versions — only
// appended — so a host dispatching on exit code keeps working release to
// release.
package apperrors

import (
	"cosmossdk.io/errors"
)

const codespace = "percolat"

var (
	// Invariant / integrity
	ErrInvalidMagic         = errors.Register(codespace, 1, "invalid magic")
	ErrUnsupportedVersion   = errors.Register(codespace, 2, "unsupported slab version")
	ErrBitmapInconsistent   = errors.Register(codespace, 3, "bitmap inconsistent with num_used_accounts")
	ErrDuplicateAccountID   = errors.Register(codespace, 4, "duplicate account id")
	ErrInvariantViolation   = errors.Register(codespace, 5, "invariant violation")

	// Auth
	ErrNotAdmin           = errors.Register(codespace, 10, "signer is not admin")
	ErrNotOracleAuthority = errors.Register(codespace, 11, "signer is not the oracle authority")
	ErrNotAccountOwner    = errors.Register(codespace, 12, "signer does not own account")
	ErrReentrancy         = errors.Register(codespace, 13, "reentrant call into slab")

	// Input
	ErrInvalidIndex    = errors.Register(codespace, 20, "invalid account index")
	ErrMarketFull      = errors.Register(codespace, 21, "market is full")
	ErrDuplicateOwner  = errors.Register(codespace, 22, "owner already has an account")
	ErrZeroSize        = errors.Register(codespace, 23, "zero size is not a valid trade")
	ErrInvalidFeedID   = errors.Register(codespace, 24, "invalid oracle feed id")
	ErrSlabSizeMismatch = errors.Register(codespace, 25, "slab byte length mismatch")

	// Arithmetic
	ErrArithmeticOverflow = errors.Register(codespace, 30, "arithmetic overflow")
	ErrDivisionByZero     = errors.Register(codespace, 31, "division by zero")

	// Market state
	ErrStaleCrank           = errors.Register(codespace, 40, "crank is stale")
	ErrRiskReductionOnly    = errors.Register(codespace, 41, "market is in risk-reduction-only mode")
	ErrWarmupPaused         = errors.Register(codespace, 42, "warmup is paused")
	ErrInsufficientMargin   = errors.Register(codespace, 43, "insufficient margin")
	ErrInsufficientCapital  = errors.Register(codespace, 44, "insufficient capital")
	ErrInsufficientInsurance = errors.Register(codespace, 45, "insufficient insurance fund balance")

	// Oracle
	ErrOracleUnavailable    = errors.Register(codespace, 50, "oracle unavailable")
	ErrOracleStale          = errors.Register(codespace, 51, "oracle price stale")
	ErrOraclePriceInvalid   = errors.Register(codespace, 52, "oracle price invalid")
	ErrConfidenceTooWide    = errors.Register(codespace, 53, "oracle confidence interval too wide")
	ErrAuthorityPriceExpired = errors.Register(codespace, 54, "authority price expired")

	// Matcher
	ErrMatcherRejected         = errors.Register(codespace, 60, "matcher rejected the trade")
	ErrMatcherContextInvalid   = errors.Register(codespace, 61, "matcher context invalid")
	ErrMatcherReturnedBadPrice = errors.Register(codespace, 62, "matcher returned a non-positive price")

	// Liquidation
	ErrAccountHealthy      = errors.Register(codespace, 70, "account is not undermargined")
	ErrLiquidationTooSmall = errors.Register(codespace, 71, "liquidation close amount too small")

	// Fatal
	ErrCorruptedSlab = errors.Register(codespace, 90, "corrupted slab, aborting without commit")
)
