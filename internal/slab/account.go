package slab

import "github.com/gagliardetto/solana-go"

// AccountKind tags whether a slot is a User or an LP account.
type AccountKind uint8

const (
	AccountKindUser AccountKind = 0
	AccountKindLP   AccountKind = 1
)

// LiquidationState tracks an account's liquidation progress. This is a
// bookkeeping supplement: it changes no economic outcome, it only makes
// partial/full liquidation progress explicit and queryable instead of
// having to be inferred from position_size deltas.
type LiquidationState uint8

const (
	LiquidationHealthy             LiquidationState = 0
	LiquidationAtRisk              LiquidationState = 1
	LiquidationInProgress          LiquidationState = 2
	LiquidationPartiallyLiquidated LiquidationState = 3
	LiquidationClosed              LiquidationState = 4
)

func (s LiquidationState) String() string {
	switch s {
	case LiquidationHealthy:
		return "Healthy"
	case LiquidationAtRisk:
		return "AtRisk"
	case LiquidationInProgress:
		return "InLiquidation"
	case LiquidationPartiallyLiquidated:
		return "PartiallyLiquidated"
	case LiquidationClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates a liquidation-state transition.
func (s LiquidationState) CanTransitionTo(next LiquidationState) bool {
	allowed := map[LiquidationState][]LiquidationState{
		LiquidationHealthy:             {LiquidationAtRisk},
		LiquidationAtRisk:              {LiquidationHealthy, LiquidationInProgress},
		LiquidationInProgress:          {LiquidationPartiallyLiquidated, LiquidationClosed},
		LiquidationPartiallyLiquidated: {LiquidationInProgress, LiquidationClosed, LiquidationHealthy},
		LiquidationClosed:              {},
	}
	for _, n := range allowed[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Account field offsets, relative to an account record's base offset.
const (
	aOffAccountID             = 0
	aOffKind                  = 8
	aOffOwner                 = 16
	aOffCapital               = 48
	aOffPnlRealized           = 64
	aOffPnlReserved           = 80
	aOffWarmupStartedAtSlot   = 96
	aOffWarmupSlopePerStep    = 104
	aOffPositionSize          = 120
	aOffEntryPrice            = 136
	aOffFundingIndexSnapshot  = 144
	aOffFeeCredits            = 160
	aOffMatcherProgram        = 176
	aOffMatcherContext        = 208
	aOffLiquidationState      = 240
)

// Account is a cursor over one account record's bytes within a View.
type Account struct {
	v      *View
	base   int
	Idx    uint32
}

// Account returns a cursor over the record at idx. It does not check
// whether the slot's bitmap bit is set; callers resolve that through the
// allocator first.
func (v *View) Account(idx uint32) (*Account, error) {
	base, err := accountOffset(idx)
	if err != nil {
		return nil, err
	}
	return &Account{v: v, base: base, Idx: idx}, nil
}

// Zero clears the full record, used by free_slot.
func (a *Account) Zero() {
	b := a.v.Bytes[a.base : a.base+AccountStride]
	for i := range b {
		b[i] = 0
	}
}

func (a *Account) AccountID() uint64 { return a.v.u64(a.base + aOffAccountID) }
func (a *Account) SetAccountID(x uint64) { a.v.putU64(a.base+aOffAccountID, x) }

func (a *Account) Kind() AccountKind { return AccountKind(a.v.u8(a.base + aOffKind)) }
func (a *Account) SetKind(k AccountKind) { a.v.putU8(a.base+aOffKind, uint8(k)) }

func (a *Account) Owner() solana.PublicKey { return a.v.pubkey(a.base + aOffOwner) }
func (a *Account) SetOwner(pk solana.PublicKey) { a.v.putPubkey(a.base+aOffOwner, pk) }

func (a *Account) Capital() U128 { return a.v.u128(a.base + aOffCapital) }
func (a *Account) SetCapital(x U128) { a.v.putU128(a.base+aOffCapital, x) }

func (a *Account) PnlRealized() I128 { return a.v.i128(a.base + aOffPnlRealized) }
func (a *Account) SetPnlRealized(x I128) { a.v.putI128(a.base+aOffPnlRealized, x) }

func (a *Account) PnlReserved() U128 { return a.v.u128(a.base + aOffPnlReserved) }
func (a *Account) SetPnlReserved(x U128) { a.v.putU128(a.base+aOffPnlReserved, x) }

func (a *Account) WarmupStartedAtSlot() uint64 { return a.v.u64(a.base + aOffWarmupStartedAtSlot) }
func (a *Account) SetWarmupStartedAtSlot(x uint64) {
	a.v.putU64(a.base+aOffWarmupStartedAtSlot, x)
}

func (a *Account) WarmupSlopePerStep() U128 { return a.v.u128(a.base + aOffWarmupSlopePerStep) }
func (a *Account) SetWarmupSlopePerStep(x U128) {
	a.v.putU128(a.base+aOffWarmupSlopePerStep, x)
}

func (a *Account) PositionSize() I128 { return a.v.i128(a.base + aOffPositionSize) }
func (a *Account) SetPositionSize(x I128) { a.v.putI128(a.base+aOffPositionSize, x) }

func (a *Account) EntryPrice() uint64 { return a.v.u64(a.base + aOffEntryPrice) }
func (a *Account) SetEntryPrice(x uint64) { a.v.putU64(a.base+aOffEntryPrice, x) }

func (a *Account) FundingIndexSnapshot() I128 {
	return a.v.i128(a.base + aOffFundingIndexSnapshot)
}
func (a *Account) SetFundingIndexSnapshot(x I128) {
	a.v.putI128(a.base+aOffFundingIndexSnapshot, x)
}

func (a *Account) FeeCredits() I128 { return a.v.i128(a.base + aOffFeeCredits) }
func (a *Account) SetFeeCredits(x I128) { a.v.putI128(a.base+aOffFeeCredits, x) }

func (a *Account) MatcherProgram() solana.PublicKey { return a.v.pubkey(a.base + aOffMatcherProgram) }
func (a *Account) SetMatcherProgram(pk solana.PublicKey) {
	a.v.putPubkey(a.base+aOffMatcherProgram, pk)
}

func (a *Account) MatcherContext() solana.PublicKey { return a.v.pubkey(a.base + aOffMatcherContext) }
func (a *Account) SetMatcherContext(pk solana.PublicKey) {
	a.v.putPubkey(a.base+aOffMatcherContext, pk)
}

func (a *Account) LiquidationState() LiquidationState {
	return LiquidationState(a.v.u8(a.base + aOffLiquidationState))
}

// SetLiquidationState writes next unconditionally; callers that need the
// transition validated should check CanTransitionTo first.
func (a *Account) SetLiquidationState(next LiquidationState) {
	a.v.putU8(a.base+aOffLiquidationState, uint8(next))
}

// IsFlat reports whether the account currently carries no position.
func (a *Account) IsFlat() bool { return a.PositionSize().IsZero() }
