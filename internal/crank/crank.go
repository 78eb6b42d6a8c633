// Package crank implements the keeper-triggered maintenance sweep: refresh
// the oracle mark, advance the funding index, settle funding and accrue
// maintenance fees across every allocated account, flag undermargined
// accounts for liquidation, advance warmup, and adjust the market's
// risk-reduction posture. It is the one operation that walks the whole
// account table in a single call, the way the teacher's DeterministicCore
// walks its in-memory position book once per processed batch.
package crank

import (
	"github.com/rs/zerolog"

	"percolat/internal/fixedpoint"
	"percolat/internal/funding"
	"percolat/internal/margin"
	"percolat/internal/oracle"
	"percolat/internal/slab"
	"percolat/internal/warmup"
)

// thresholdEwmaAlphaBps is the EWMA weight applied to each new
// risk_reduction_threshold observation, in bps (10% per crank step).
const thresholdEwmaAlphaBps = 1000

// thresholdMaxStepBps bounds how far one crank step can move the
// threshold, in bps of the prior threshold (5%).
const thresholdMaxStepBps = 500

// thresholdUpdateIntervalSlots rate-limits threshold recalculation so it
// does not chase noise on every single crank call.
const thresholdUpdateIntervalSlots = 450

// Cranker runs the periodic maintenance sweep. AllowPanic controls what
// happens when a single account's settlement fails: false skips and logs
// it (the sweep keeps going), true aborts the whole crank so the caller
// can investigate before the next attempt.
type Cranker struct {
	Log        zerolog.Logger
	AllowPanic bool
}

// New returns a Cranker that logs through log.
func New(log zerolog.Logger, allowPanic bool) *Cranker {
	return &Cranker{Log: log, AllowPanic: allowPanic}
}

// Report summarizes one crank call for the caller's own event emission.
type Report struct {
	Processed            int
	Skipped              int
	LiquidatableAccounts  []uint32
	EnteredRiskReduction  bool
	ExitedRiskReduction   bool
	TriggeredAutoRecovery bool
}

// Run executes one full maintenance sweep against v at currentSlot, with
// reading as the fresh oracle sample for this call.
func (c *Cranker) Run(v *slab.View, reading oracle.Reading, nowSec int64, currentSlot uint64) (Report, error) {
	price, err := oracle.Read(v, nowSec, reading)
	if err != nil {
		return Report{}, err
	}
	markE6 := price.PriceE6

	lastCrankSlot := v.LastCrankSlot()
	elapsed := uint64(0)
	if currentSlot > lastCrankSlot {
		elapsed = currentSlot - lastCrankSlot
	}

	lpNet, err := c.sumLPNetNotional(v, markE6)
	if err != nil {
		return Report{}, err
	}
	if err := funding.UpdateIndex(v, currentSlot, lpNet); err != nil {
		return Report{}, err
	}

	report := Report{}
	var touched []*slab.Account
	totalOI := fixedpoint.ZeroU()

	for idx := uint32(0); idx < slab.MaxAccountsCapacity; idx++ {
		if !v.TestBit(idx) {
			continue
		}
		acc, err := v.Account(idx)
		if err != nil {
			return Report{}, err
		}

		if err := c.processAccount(v, acc, elapsed, currentSlot); err != nil {
			if c.AllowPanic {
				return Report{}, err
			}
			c.Log.Error().Uint32("account_idx", idx).Err(err).Msg("crank: skipping account after settlement error")
			report.Skipped++
			continue
		}
		touched = append(touched, acc)
		report.Processed++

		totalOI, err = fixedpoint.AddU(totalOI, fixedpoint.AbsI(acc.PositionSize()))
		if err != nil {
			return Report{}, err
		}

		health, herr := accountHealth(acc, markE6, v)
		if herr != nil {
			return Report{}, herr
		}
		if health == margin.HealthLiquidatable {
			report.LiquidatableAccounts = append(report.LiquidatableAccounts, idx)
		}
	}

	if len(touched) > 0 {
		if err := warmup.TwoPass(v, touched); err != nil {
			return Report{}, err
		}
	}
	v.SetTotalOpenInterest(totalOI)

	if err := c.updateRiskPosture(v, currentSlot, &report); err != nil {
		return Report{}, err
	}

	v.SetLastCrankSlot(currentSlot)
	v.SetLastFullSweepStartSlot(currentSlot)
	return report, nil
}

func (c *Cranker) sumLPNetNotional(v *slab.View, markE6 fixedpoint.U128) (fixedpoint.I128, error) {
	net := fixedpoint.ZeroI()
	for idx := uint32(0); idx < slab.MaxAccountsCapacity; idx++ {
		if !v.TestBit(idx) {
			continue
		}
		acc, err := v.Account(idx)
		if err != nil {
			return fixedpoint.I128{}, err
		}
		if acc.Kind() != slab.AccountKindLP {
			continue
		}
		notional, err := fixedpoint.MulI(acc.PositionSize(), fixedpoint.FromU64(markE6.Uint64()))
		if err != nil {
			return fixedpoint.I128{}, err
		}
		notional, err = fixedpoint.DivITrunc(notional, fixedpoint.FromI64(fixedpoint.PriceScale))
		if err != nil {
			return fixedpoint.I128{}, err
		}
		net, err = fixedpoint.AddI(net, notional)
		if err != nil {
			return fixedpoint.I128{}, err
		}
	}
	return net, nil
}

func (c *Cranker) processAccount(v *slab.View, acc *slab.Account, elapsed, currentSlot uint64) error {
	if err := funding.SettleAccount(v, acc); err != nil {
		return err
	}
	if err := chargeMaintenanceFee(v, acc, elapsed); err != nil {
		return err
	}
	if !v.WarmupPaused() {
		if err := warmup.AdvanceOne(v, acc, currentSlot); err != nil {
			return err
		}
	}
	return nil
}

// chargeMaintenanceFee debits maintenance_fee_per_slot*elapsed from acc's
// capital, spilling into fee_credits (which can run negative) rather than
// ever blocking the sweep on an undercapitalized account.
func chargeMaintenanceFee(v *slab.View, acc *slab.Account, elapsed uint64) error {
	if elapsed == 0 {
		return nil
	}
	perSlot := v.MaintenanceFeePerSlot()
	if perSlot.IsZero() {
		return nil
	}
	owed, err := fixedpoint.MulU(perSlot, fixedpoint.FromU64(elapsed))
	if err != nil {
		return err
	}
	charged := owed
	if acc.Capital().Cmp(owed) < 0 {
		charged = acc.Capital()
	}
	newCapital, err := fixedpoint.SubU(acc.Capital(), charged)
	if err != nil {
		return err
	}
	acc.SetCapital(newCapital)

	shortfall, err := fixedpoint.SubU(owed, charged)
	if err != nil {
		return err
	}
	if !shortfall.IsZero() {
		shortfallI, err := fixedpoint.ToI(shortfall)
		if err != nil {
			return err
		}
		newCredits, err := fixedpoint.SubI(acc.FeeCredits(), shortfallI)
		if err != nil {
			return err
		}
		acc.SetFeeCredits(newCredits)
	}

	chargedI, err := fixedpoint.ToI(charged)
	if err != nil {
		return err
	}
	if chargedI.IsZero() {
		return nil
	}
	newInsurance, err := fixedpoint.AddU(v.InsuranceBalance(), charged)
	if err != nil {
		return err
	}
	v.SetInsuranceBalance(newInsurance)
	newRevenue, err := fixedpoint.AddU(v.InsuranceFeeRevenue(), charged)
	if err != nil {
		return err
	}
	v.SetInsuranceFeeRevenue(newRevenue)
	return nil
}

func accountHealth(acc *slab.Account, markE6 fixedpoint.U128, v *slab.View) (margin.Health, error) {
	equity, err := margin.EffectiveEquity(acc, markE6.Uint64())
	if err != nil {
		return margin.HealthLiquidatable, err
	}
	notional, err := margin.Notional(acc.PositionSize(), markE6)
	if err != nil {
		return margin.HealthLiquidatable, err
	}
	im, err := margin.InitialRequirement(notional, v.InitialMarginBps())
	if err != nil {
		return margin.HealthLiquidatable, err
	}
	mm, err := margin.MaintenanceRequirement(notional, v.MaintenanceMarginBps())
	if err != nil {
		return margin.HealthLiquidatable, err
	}
	health, err := margin.CheckHealth(equity, im, mm)
	if err != nil {
		return margin.HealthLiquidatable, err
	}

	switch health {
	case margin.HealthLiquidatable, margin.HealthAtRisk:
		if acc.LiquidationState() == slab.LiquidationHealthy && acc.LiquidationState().CanTransitionTo(slab.LiquidationAtRisk) {
			acc.SetLiquidationState(slab.LiquidationAtRisk)
		}
	case margin.HealthHealthy:
		if acc.LiquidationState() == slab.LiquidationAtRisk && acc.LiquidationState().CanTransitionTo(slab.LiquidationHealthy) {
			acc.SetLiquidationState(slab.LiquidationHealthy)
		}
	}
	return health, nil
}

// updateRiskPosture recomputes the EWMA risk_reduction_threshold (rate
// limited to once per thresholdUpdateIntervalSlots), flips
// risk_reduction_only based on insurance.balance crossing it, and runs
// auto-recovery once the market has fully delevered.
func (c *Cranker) updateRiskPosture(v *slab.View, currentSlot uint64, report *Report) error {
	if currentSlot >= v.LastThresholdUpdateSlot()+thresholdUpdateIntervalSlots {
		if err := stepThreshold(v); err != nil {
			return err
		}
		v.SetLastThresholdUpdateSlot(currentSlot)
	}

	threshold := v.RiskReductionThreshold()
	wasReduced := v.RiskReductionOnly()

	if !wasReduced && v.InsuranceBalance().Cmp(threshold) < 0 {
		v.SetRiskReductionOnly(true)
		v.SetWarmupPaused(true)
		report.EnteredRiskReduction = true
		c.Log.Warn().Msg("crank: entering risk-reduction-only, insurance balance below threshold")
	} else if wasReduced && v.InsuranceBalance().Cmp(threshold) >= 0 && v.LossAccum().IsZero() {
		v.SetRiskReductionOnly(false)
		v.SetWarmupPaused(false)
		report.ExitedRiskReduction = true
		c.Log.Info().Msg("crank: exiting risk-reduction-only, insurance restored above threshold")
	}

	if v.RiskReductionOnly() && !v.LossAccum().IsZero() && v.TotalOpenInterest().IsZero() {
		if err := c.autoRecover(v); err != nil {
			return err
		}
		report.TriggeredAutoRecovery = true
		c.Log.Warn().Msg("crank: auto-recovery triggered, market fully delevered with residual bad debt")
	}
	return nil
}

func stepThreshold(v *slab.View) error {
	insurance := v.InsuranceBalance()
	prior := v.RiskReductionThreshold()

	target, err := fixedpoint.MulDivFloor(insurance, thresholdEwmaAlphaBps, fixedpoint.BpsDenom)
	if err != nil {
		return err
	}
	priorWeighted, err := fixedpoint.MulDivFloor(prior, fixedpoint.BpsDenom-thresholdEwmaAlphaBps, fixedpoint.BpsDenom)
	if err != nil {
		return err
	}
	next, err := fixedpoint.AddU(target, priorWeighted)
	if err != nil {
		return err
	}

	maxStep, err := fixedpoint.MulDivFloor(prior, thresholdMaxStepBps, fixedpoint.BpsDenom)
	if err != nil {
		return err
	}
	if next.Cmp(prior) > 0 {
		capped, err := fixedpoint.AddU(prior, maxStep)
		if err != nil {
			return err
		}
		next = fixedpoint.MinU(next, capped)
	} else if next.Cmp(prior) < 0 {
		floorVal := fixedpoint.ZeroU()
		if prior.Cmp(maxStep) > 0 {
			floorVal, err = fixedpoint.SubU(prior, maxStep)
			if err != nil {
				return err
			}
		}
		if next.Cmp(floorVal) < 0 {
			next = floorVal
		}
	}
	v.SetRiskReductionThreshold(next)
	return nil
}

// autoRecover clears bad debt once every position in the market has been
// closed: it zeros every survivor's positive pnl_realized and its
// pnl_reserved, sweeps any vault surplus into the insurance fund, and clears
// loss_accum.
func (c *Cranker) autoRecover(v *slab.View) error {
	for idx := uint32(0); idx < slab.MaxAccountsCapacity; idx++ {
		if !v.TestBit(idx) {
			continue
		}
		acc, err := v.Account(idx)
		if err != nil {
			return err
		}
		if acc.PnlRealized().Sign() > 0 {
			acc.SetPnlRealized(fixedpoint.ZeroI())
		}
		if !acc.PnlReserved().IsZero() {
			acc.SetPnlReserved(fixedpoint.ZeroU())
		}
	}
	// Every surviving account's positive pnl_realized/pnl_reserved was just
	// wiped above, so their aggregate pnl_pos_tot is wiped with them.
	v.SetPnlPosTot(fixedpoint.ZeroU())

	sumCapital, err := warmup.SumCapital(v)
	if err != nil {
		return err
	}
	residual, err := v.Residual(sumCapital)
	if err != nil {
		return err
	}
	if residual.Sign() > 0 {
		surplus, err := fixedpoint.ToU(residual)
		if err != nil {
			return err
		}
		newInsurance, err := fixedpoint.AddU(v.InsuranceBalance(), surplus)
		if err != nil {
			return err
		}
		v.SetInsuranceBalance(newInsurance)
	}

	v.SetLossAccum(fixedpoint.ZeroI())
	v.SetRiskReductionOnly(false)
	v.SetWarmupPaused(false)
	return nil
}
