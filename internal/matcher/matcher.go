// Package matcher models the trade pipeline's single cross-program-style
// call into an LP's external matcher: a read-only oracle/LP context goes
// out, a fill price or a rejection comes back, and the call can never
// reenter the slab it was invoked from.
package matcher

import (
	"github.com/gagliardetto/solana-go"

	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
)

// Context is the read-only view the core passes to a matcher: the oracle
// mark, the LP's own matcher_context key, the LP's PDA, and the signed
// trade size being proposed.
type Context struct {
	MarkE6         fixedpoint.U128
	MatcherContext solana.PublicKey
	LPAccount      solana.PublicKey
	Size           fixedpoint.I128
}

// Fill is what a matcher returns on success: a single fill price.
type Fill struct {
	PriceE6 fixedpoint.U128
}

// Invoker calls into an LP's matcher program. Production wiring dispatches
// this to the actual on-chain cross-program invocation; tests supply a
// stub.
type Invoker interface {
	Invoke(program solana.PublicKey, ctx Context) (Fill, error)
}

// Guard enforces that a single call is in flight against a given slab at
// once. The trade pipeline holds one per slab instance for the lifetime of
// the process; a real deployment's reentrancy Guard is the host's runtime
// call stack, this is the equivalent in-process safeguard for tests and
// the crank's sequential processing model.
type Guard struct{ active bool }

// Call invokes program's matcher under g's reentrancy Guard, failing with
// ErrReentrancy if a call is already in flight, and with
// ErrMatcherReturnedBadPrice if the matcher's fill price is non-positive.
// Invoker implementations report their own rejections (typically
// ErrMatcherRejected or ErrMatcherContextInvalid) — Call does not
// second-guess or rewrap whatever error the invoker returns, so a
// reentrancy failure surfacing from a nested call is never masked.
func Call(g *Guard, inv Invoker, program solana.PublicKey, ctx Context) (Fill, error) {
	if g.active {
		return Fill{}, apperrors.ErrReentrancy
	}
	g.active = true
	defer func() { g.active = false }()

	fill, err := inv.Invoke(program, ctx)
	if err != nil {
		return Fill{}, err
	}
	if fill.PriceE6.IsZero() {
		return Fill{}, apperrors.ErrMatcherReturnedBadPrice
	}
	return fill, nil
}

// NewGuard returns a fresh reentrancy Guard for one slab's matcher calls.
func NewGuard() *Guard { return &Guard{} }
