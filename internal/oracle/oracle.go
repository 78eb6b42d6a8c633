// Package oracle implements the price gate: admin authority override,
// pull/push feed validation, staleness and confidence filtering, and the
// Q6 conversion/inversion/rescale pipeline that turns a raw feed reading
// into the price the margin and trading packages consume.
package oracle

import (
	"github.com/gagliardetto/solana-go"

	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

// Reading is a raw external price observation, shaped after a Pyth pull
// price update: a feed identity, a signed mantissa, a confidence interval
// in the same mantissa units, a power-of-ten exponent, and a publish time
// in unix seconds. A Chainlink-style push feed is read through the same
// struct — its "feed identity" is the pushing account's key instead of a
// feed id, and Conf is typically zero.
type Reading struct {
	FeedIdentity solana.PublicKey
	Price        int64
	Conf         uint64
	Expo         int32
	PublishTime  int64
}

// Price is the gate's output: a Q6 price and the unix-second timestamp it
// was observed at (or the authority override's stamped timestamp).
type Price struct {
	PriceE6   fixedpoint.U128
	Timestamp int64
}

// Read resolves the current price for v's configured market, preferring a
// live admin authority override, falling back to the external reading.
func Read(v *slab.View, nowSec int64, reading Reading) (Price, error) {
	if p, ok, err := tryAuthorityOverride(v, nowSec); err != nil {
		return Price{}, err
	} else if ok {
		return p, nil
	}
	return readExternalFeed(v, nowSec, reading)
}

func tryAuthorityOverride(v *slab.View, nowSec int64) (Price, bool, error) {
	authPrice := v.AuthorityPriceE6()
	if authPrice == 0 {
		return Price{}, false, nil
	}
	authTs := v.AuthorityTimestamp()
	if nowSec-authTs > int64(v.MaxStalenessSecs()) {
		return Price{}, false, nil
	}
	return Price{PriceE6: fixedpoint.FromU64(authPrice), Timestamp: authTs}, true, nil
}

func readExternalFeed(v *slab.View, nowSec int64, r Reading) (Price, error) {
	if r.FeedIdentity != v.PriceFeedIdentity() {
		return Price{}, apperrors.ErrInvalidFeedID
	}
	if r.Price <= 0 {
		return Price{}, apperrors.ErrOraclePriceInvalid
	}
	if nowSec-r.PublishTime > int64(v.MaxStalenessSecs()) {
		return Price{}, apperrors.ErrOracleStale
	}
	if confTooWide(r, v.ConfFilterBps()) {
		return Price{}, apperrors.ErrConfidenceTooWide
	}

	priceE6, err := toQ6(r.Price, r.Expo)
	if err != nil {
		return Price{}, err
	}
	if v.Invert() {
		priceE6, err = invert(priceE6)
		if err != nil {
			return Price{}, err
		}
	}
	if scale := v.UnitScale(); scale != 0 {
		priceE6, err = fixedpoint.MulDivFloor(priceE6, uint64(scale), fixedpoint.PriceScale)
		if err != nil {
			return Price{}, err
		}
	}
	return Price{PriceE6: priceE6, Timestamp: r.PublishTime}, nil
}

// confTooWide reports conf/price > filterBps/10000 using integer math:
// conf * 10000 > price * filterBps.
func confTooWide(r Reading, filterBps uint16) bool {
	if filterBps == 0 {
		return false
	}
	lhs := r.Conf * fixedpoint.BpsDenom
	rhs := uint64(r.Price) * uint64(filterBps)
	return lhs > rhs
}

// toQ6 rescales a (mantissa, exponent) pair to the engine's fixed Q6
// scale: actual_price = mantissa * 10^expo, so price_e6 = mantissa *
// 10^(6+expo).
func toQ6(mantissa int64, expo int32) (fixedpoint.U128, error) {
	shift := 6 + int(expo)
	m := fixedpoint.FromU64(uint64(mantissa))
	if shift >= 0 {
		scale := pow10(shift)
		return fixedpoint.MulU(m, fixedpoint.FromU64(scale))
	}
	scale := pow10(-shift)
	return fixedpoint.DivUFloor(m, fixedpoint.FromU64(scale))
}

func pow10(n int) uint64 {
	p := uint64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

// invert turns a base-quote price into a quote-base price: 10^12 / price,
// the fixed-point identity for inverting a Q6 value (10^6 * 10^6).
func invert(priceE6 fixedpoint.U128) (fixedpoint.U128, error) {
	if priceE6.IsZero() {
		return fixedpoint.U128{}, apperrors.ErrOraclePriceInvalid
	}
	numerator := fixedpoint.FromU64(1)
	num, err := fixedpoint.MulU(numerator, fixedpoint.FromU64(1_000_000_000_000))
	if err != nil {
		return fixedpoint.U128{}, err
	}
	return fixedpoint.DivUFloor(num, priceE6)
}
