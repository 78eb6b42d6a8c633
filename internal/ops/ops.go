// Package ops decodes the wire operation tag and its packed little-endian
// payload and routes to the core package that implements it, mirroring the
// dispatch-by-type switch a real on-chain program entrypoint uses.
package ops

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"percolat/internal/accountops"
	"percolat/internal/admin"
	"percolat/internal/apperrors"
	"percolat/internal/crank"
	"percolat/internal/fixedpoint"
	"percolat/internal/liquidation"
	"percolat/internal/matcher"
	"percolat/internal/oracle"
	"percolat/internal/slab"
	"percolat/internal/trading"
)

// Tag identifies an operation's wire encoding.
type Tag uint8

const (
	TagInitMarket          Tag = 0
	TagInitUser            Tag = 1
	TagInitLP              Tag = 2
	TagDepositCollateral   Tag = 3
	TagWithdrawCollateral  Tag = 4
	TagKeeperCrank         Tag = 5
	TagTradeNoCpi          Tag = 6
	TagLiquidateAtOracle   Tag = 7
	TagCloseAccount        Tag = 8
	TagTopUpInsurance      Tag = 9
	TagTradeCpi            Tag = 10
	TagSetRiskThreshold    Tag = 11
	TagUpdateAdmin         Tag = 12
	TagCloseSlab           Tag = 13
)

// PermissionlessCallerIdx marks a KeeperCrank call with no designated
// caller account, per the wire table's 0xFFFF sentinel.
const PermissionlessCallerIdx = 0xFFFF

// Env bundles the ambient inputs every dispatch needs beyond the decoded
// instruction payload: the signer, current slot/wall-time, the external
// price reading for this call, a matcher invoker and reentrancy guard for
// CPI trades, and a logger for the crank.
type Env struct {
	Signer      solana.PublicKey
	NowSec      int64
	CurrentSlot uint64
	Reading     oracle.Reading
	Invoker     matcher.Invoker
	Guard       *matcher.Guard
	Log         zerolog.Logger
}

// Dispatch decodes tag and payload against v and runs the corresponding
// operation. It returns the crank's report when tag is KeeperCrank, nil
// otherwise.
func Dispatch(v *slab.View, env Env, tag Tag, payload []byte) (*crank.Report, error) {
	switch tag {
	case TagInitMarket:
		return nil, dispatchInitMarket(v, env, payload)
	case TagInitUser:
		return nil, dispatchInitUser(v, env, payload)
	case TagInitLP:
		return nil, dispatchInitLP(v, env, payload)
	case TagDepositCollateral:
		return nil, dispatchDepositCollateral(v, payload)
	case TagWithdrawCollateral:
		return nil, dispatchWithdrawCollateral(v, env, payload)
	case TagKeeperCrank:
		return dispatchKeeperCrank(v, env, payload)
	case TagTradeNoCpi:
		return nil, dispatchTradeNoCpi(v, env, payload)
	case TagLiquidateAtOracle:
		return nil, dispatchLiquidateAtOracle(v, env, payload)
	case TagCloseAccount:
		return nil, dispatchCloseAccount(v, payload)
	case TagTopUpInsurance:
		return nil, dispatchTopUpInsurance(v, env, payload)
	case TagTradeCpi:
		return nil, dispatchTradeCpi(v, env, payload)
	case TagSetRiskThreshold:
		return nil, dispatchSetRiskThreshold(v, env, payload)
	case TagUpdateAdmin:
		return nil, dispatchUpdateAdmin(v, env, payload)
	case TagCloseSlab:
		return nil, admin.CloseSlab(v, env.Signer)
	default:
		return nil, apperrors.ErrInvalidIndex
	}
}

func readPubkey(b []byte) solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], b)
	return pk
}

func readU128(b []byte) fixedpoint.U128 {
	var a [16]byte
	copy(a[:], b)
	return fixedpoint.U128FromLE(a)
}

func readI128(b []byte) fixedpoint.I128 {
	var a [16]byte
	copy(a[:], b)
	return fixedpoint.I128FromLE(a)
}

// dispatchInitMarket decodes: admin(32), mint(32), feed_id(32),
// max_staleness_secs(u64), conf_filter_bps(u16), invert(u8),
// unit_scale(u32), risk params packed as 18 little-endian fields
// (mirroring the field order internal/slab/risk.go stores them in).
func dispatchInitMarket(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 106 {
		return apperrors.ErrSlabSizeMismatch
	}
	adminKey := readPubkey(payload[0:32])
	mint := readPubkey(payload[32:64])
	feedID := readPubkey(payload[64:96])
	maxStalenessSecs := binary.LittleEndian.Uint64(payload[96:104])
	confFilterBps := binary.LittleEndian.Uint16(payload[104:106])
	if len(payload) < 107 {
		return apperrors.ErrSlabSizeMismatch
	}
	invertFlag := payload[106] != 0
	if len(payload) < 111 {
		return apperrors.ErrSlabSizeMismatch
	}
	unitScale := binary.LittleEndian.Uint32(payload[107:111])

	risk := payload[111:]
	cfg, err := decodeRiskParams(risk)
	if err != nil {
		return err
	}
	cfg.CollateralMint = mint
	cfg.FeedIdentity = feedID
	cfg.MaxStalenessSecs = maxStalenessSecs
	cfg.ConfFilterBps = confFilterBps
	cfg.Invert = invertFlag
	cfg.UnitScale = unitScale

	return accountops.InitMarket(v, 0, adminKey, cfg)
}

// decodeRiskParams unpacks the 18 little-endian risk fields in the same
// order internal/slab/risk.go lays them out at fixed offsets.
func decodeRiskParams(b []byte) (accountops.MarketConfig, error) {
	const want = 192
	if len(b) < want {
		return accountops.MarketConfig{}, apperrors.ErrSlabSizeMismatch
	}
	u64 := func(off int) uint64 { return binary.LittleEndian.Uint64(b[off : off+8]) }
	u128 := func(off int) fixedpoint.U128 { return readU128(b[off : off+16]) }

	return accountops.MarketConfig{
		WarmupPeriodSlots:      u64(0),
		MaintenanceMarginBps:   u64(8),
		InitialMarginBps:       u64(16),
		TradingFeeBps:          u64(24),
		MaxAccounts:            u64(32),
		NewAccountFee:          u64(40),
		RiskReductionThreshold: u128(56),
		MaintenanceFeePerSlot:  u128(72),
		MaxCrankStalenessSlots: u64(88),
		LiquidationFeeBps:      u64(96),
		LiquidationFeeCap:      u128(104),
		LiquidationBufferBps:   u64(120),
		MinLiquidationAbs:      u128(128),
		FundingHorizonSlots:    u64(144),
		FundingKBps:            u64(152),
		FundingScaleNotional:   u128(160),
		FundingMaxPremiumBps:   u64(176),
		FundingMaxBpsPerSlot:   u64(184),
	}, nil
}

func dispatchInitUser(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 8 {
		return apperrors.ErrSlabSizeMismatch
	}
	fee := binary.LittleEndian.Uint64(payload[0:8])
	_, err := accountops.InitUser(v, env.Signer, fixedpoint.FromU64(fee))
	return err
}

func dispatchInitLP(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 72 {
		return apperrors.ErrSlabSizeMismatch
	}
	matcherProgram := readPubkey(payload[0:32])
	matcherContext := readPubkey(payload[32:64])
	fee := binary.LittleEndian.Uint64(payload[64:72])
	_, err := accountops.InitLP(v, env.Signer, matcherProgram, matcherContext, fixedpoint.FromU64(fee))
	return err
}

func dispatchDepositCollateral(v *slab.View, payload []byte) error {
	if len(payload) < 10 {
		return apperrors.ErrSlabSizeMismatch
	}
	idx := binary.LittleEndian.Uint16(payload[0:2])
	amount := binary.LittleEndian.Uint64(payload[2:10])
	acc, err := v.Account(uint32(idx))
	if err != nil {
		return err
	}
	return accountops.DepositCollateral(v, acc, fixedpoint.FromU64(amount))
}

func dispatchWithdrawCollateral(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 10 {
		return apperrors.ErrSlabSizeMismatch
	}
	idx := binary.LittleEndian.Uint16(payload[0:2])
	amount := binary.LittleEndian.Uint64(payload[2:10])
	acc, err := v.Account(uint32(idx))
	if err != nil {
		return err
	}
	price, err := oracle.Read(v, env.NowSec, env.Reading)
	if err != nil {
		return err
	}
	return accountops.WithdrawCollateral(v, acc, fixedpoint.FromU64(amount), price.PriceE6)
}

func dispatchKeeperCrank(v *slab.View, env Env, payload []byte) (*crank.Report, error) {
	if len(payload) < 3 {
		return nil, apperrors.ErrSlabSizeMismatch
	}
	callerIdx := binary.LittleEndian.Uint16(payload[0:2])
	allowPanic := payload[2] != 0
	if callerIdx != PermissionlessCallerIdx {
		if _, err := v.Account(uint32(callerIdx)); err != nil {
			return nil, err
		}
	}
	c := crank.New(env.Log, allowPanic)
	report, err := c.Run(v, env.Reading, env.NowSec, env.CurrentSlot)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func decodeTradeIdxAndSize(payload []byte) (lpIdx, userIdx uint16, size fixedpoint.I128, err error) {
	if len(payload) < 20 {
		err = apperrors.ErrSlabSizeMismatch
		return
	}
	lpIdx = binary.LittleEndian.Uint16(payload[0:2])
	userIdx = binary.LittleEndian.Uint16(payload[2:4])
	size = readI128(payload[4:20])
	return
}

func dispatchTradeNoCpi(v *slab.View, env Env, payload []byte) error {
	lpIdx, userIdx, size, err := decodeTradeIdxAndSize(payload)
	if err != nil {
		return err
	}
	lp, err := v.Account(uint32(lpIdx))
	if err != nil {
		return err
	}
	user, err := v.Account(uint32(userIdx))
	if err != nil {
		return err
	}
	price, err := oracle.Read(v, env.NowSec, env.Reading)
	if err != nil {
		return err
	}
	return trading.ExecuteNoCpi(v, trading.Request{
		LP:          lp,
		User:        user,
		Size:        size,
		MarkE6:      price.PriceE6,
		CurrentSlot: env.CurrentSlot,
	})
}

func dispatchTradeCpi(v *slab.View, env Env, payload []byte) error {
	lpIdx, userIdx, size, err := decodeTradeIdxAndSize(payload)
	if err != nil {
		return err
	}
	lp, err := v.Account(uint32(lpIdx))
	if err != nil {
		return err
	}
	user, err := v.Account(uint32(userIdx))
	if err != nil {
		return err
	}
	price, err := oracle.Read(v, env.NowSec, env.Reading)
	if err != nil {
		return err
	}
	return trading.ExecuteCpi(v, env.Guard, env.Invoker, trading.Request{
		LP:          lp,
		User:        user,
		Size:        size,
		MarkE6:      price.PriceE6,
		CurrentSlot: env.CurrentSlot,
	})
}

func dispatchLiquidateAtOracle(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 2 {
		return apperrors.ErrSlabSizeMismatch
	}
	targetIdx := binary.LittleEndian.Uint16(payload[0:2])
	acc, err := v.Account(uint32(targetIdx))
	if err != nil {
		return err
	}
	if acc.Kind() != slab.AccountKindUser {
		return apperrors.ErrInvalidIndex
	}
	_, lp, err := findCounterpartyLP(v)
	if err != nil {
		return err
	}
	price, err := oracle.Read(v, env.NowSec, env.Reading)
	if err != nil {
		return err
	}
	_, err = liquidation.Liquidate(v, liquidation.Request{
		Account:     acc,
		LP:          lp,
		MarkE6:      price.PriceE6,
		CurrentSlot: env.CurrentSlot,
	})
	return err
}

// findCounterpartyLP scans for the first used LP slot. A real deployment
// with multiple LPs would pass the counterparty index in the payload;
// the wire table's LiquidateAtOracle carries only target_idx, so with one
// LP per market the counterparty is unambiguous.
func findCounterpartyLP(v *slab.View) (uint32, *slab.Account, error) {
	for i := uint32(0); i < uint32(v.MaxAccounts()); i++ {
		acc, err := v.Account(i)
		if err != nil {
			continue
		}
		if acc.Kind() == slab.AccountKindLP {
			return i, acc, nil
		}
	}
	return 0, nil, apperrors.ErrInvalidIndex
}

func dispatchCloseAccount(v *slab.View, payload []byte) error {
	if len(payload) < 2 {
		return apperrors.ErrSlabSizeMismatch
	}
	idx := binary.LittleEndian.Uint16(payload[0:2])
	return accountops.CloseAccount(v, uint32(idx))
}

func dispatchTopUpInsurance(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 8 {
		return apperrors.ErrSlabSizeMismatch
	}
	amount := binary.LittleEndian.Uint64(payload[0:8])
	return admin.TopUpInsurance(v, env.Signer, fixedpoint.FromU64(amount))
}

func dispatchSetRiskThreshold(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 16 {
		return apperrors.ErrSlabSizeMismatch
	}
	threshold := readU128(payload[0:16])
	return admin.SetRiskThreshold(v, env.Signer, threshold)
}

func dispatchUpdateAdmin(v *slab.View, env Env, payload []byte) error {
	if len(payload) < 32 {
		return apperrors.ErrSlabSizeMismatch
	}
	newAdmin := readPubkey(payload[0:32])
	return admin.UpdateAdmin(v, env.Signer, newAdmin)
}
