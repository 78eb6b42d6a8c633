// Package indexer mirrors committed slab state off-chain: every archived
// snapshot is a best-effort record for keeper bots and a query API, never
// a source of truth and never fed back into slab mutation.
package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

// SnapshotStore archives slab snapshots to Postgres; cmd/percolatd saves one
// after each crank run.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Snapshot is the serializable projection of a slab's engine/account state
// taken right after a crank run.
type Snapshot struct {
	Slot             uint64             `json:"slot"`
	StateHash        []byte             `json:"state_hash"`
	PrevHash         []byte             `json:"prev_hash"`
	Vault            string             `json:"vault"`
	InsuranceBalance string             `json:"insurance_balance"`
	TotalOpenInterest string            `json:"total_open_interest"`
	LossAccum        string             `json:"loss_accum"`
	RiskReductionOnly bool              `json:"risk_reduction_only"`
	WarmupPaused     bool               `json:"warmup_paused"`
	Accounts         []AccountSnapshot  `json:"accounts"`
	CreatedAt        time.Time          `json:"created_at"`
}

// AccountSnapshot is a serializable account record.
type AccountSnapshot struct {
	Idx              uint32 `json:"idx"`
	Kind             uint8  `json:"kind"`
	Capital          string `json:"capital"`
	PositionSize     string `json:"position_size"`
	EntryPrice       uint64 `json:"entry_price"`
	PnlRealized      string `json:"pnl_realized"`
	PnlReserved      string `json:"pnl_reserved"`
	LiquidationState uint8  `json:"liquidation_state"`
}

// BuildSnapshot walks v's used accounts and captures the fields the query
// API and keeper bots need, chaining onto prevHash the way the slab's own
// commit order would.
func BuildSnapshot(v *slab.View, slot uint64, prevHash [32]byte, hasher *StateHasher) (Snapshot, error) {
	snap := Snapshot{
		Slot:              slot,
		PrevHash:          prevHash[:],
		Vault:             v.Vault().String(),
		InsuranceBalance:  v.InsuranceBalance().String(),
		TotalOpenInterest: v.TotalOpenInterest().String(),
		LossAccum:         v.LossAccum().String(),
		RiskReductionOnly: v.RiskReductionOnly(),
		WarmupPaused:      v.WarmupPaused(),
		CreatedAt:         time.Now(),
	}

	for i := uint32(0); i < uint32(v.MaxAccounts()); i++ {
		acc, err := v.Account(i)
		if err != nil {
			break
		}
		if acc.Owner() == (solana.PublicKey{}) {
			continue
		}
		snap.Accounts = append(snap.Accounts, AccountSnapshot{
			Idx:              i,
			Kind:             uint8(acc.Kind()),
			Capital:          acc.Capital().String(),
			PositionSize:     acc.PositionSize().String(),
			EntryPrice:       acc.EntryPrice(),
			PnlRealized:      acc.PnlRealized().String(),
			PnlReserved:      acc.PnlReserved().String(),
			LiquidationState: uint8(acc.LiquidationState()),
		})
	}

	digest, err := json.Marshal(snap.Accounts)
	if err != nil {
		return Snapshot{}, err
	}
	hash := hasher.ComputeHash(int64(slot), digest)
	snap.StateHash = hash[:]
	return snap, nil
}

// Save persists a snapshot, keyed by slot, upserting on conflict so a
// re-archived slot (after a retry) overwrites rather than duplicates.
func (s *SnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO percolat.snapshots (snapshot_id, slot, data, state_hash, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slot) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $5
	`, id, snap.Slot, data, snap.StateHash, len(data), snap.CreatedAt)
	return err
}

// LoadLatest loads the most recently archived snapshot, or nil on an empty
// table (cold start).
func (s *SnapshotStore) LoadLatest(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM percolat.snapshots ORDER BY slot DESC LIMIT 1
	`)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// u128ToString is a convenience used by callers building query responses
// directly from fixedpoint values rather than an already-built Snapshot.
func u128ToString(x fixedpoint.U128) string { return x.String() }
