package indexer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Notifier publishes best-effort NATS notifications for the events keeper
// bots care about: a crank sweep completed, a liquidation fired, or
// auto-recovery kicked in. Subjects follow percolat.events.{kind}.
type Notifier struct {
	conn *nats.Conn
}

func NewNotifier(conn *nats.Conn) *Notifier {
	return &Notifier{conn: conn}
}

// CrankEvent reports one completed keeper crank sweep.
type CrankEvent struct {
	Slot                 uint64   `json:"slot"`
	Processed            int      `json:"processed"`
	LiquidatableAccounts []uint32 `json:"liquidatable_accounts"`
	EnteredRiskReduction bool     `json:"entered_risk_reduction"`
	ExitedRiskReduction  bool     `json:"exited_risk_reduction"`
	TriggeredAutoRecovery bool    `json:"triggered_auto_recovery"`
	Timestamp            time.Time `json:"timestamp"`
}

// LiquidationEvent reports one completed liquidation.
type LiquidationEvent struct {
	Slot       uint64    `json:"slot"`
	AccountIdx uint32    `json:"account_idx"`
	ClosedAbs  string    `json:"closed_abs"`
	FeeCharged string    `json:"fee_charged"`
	FullClose  bool      `json:"full_close"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecoveryEvent reports an auto-recovery write-off firing during a crank.
type RecoveryEvent struct {
	Slot      uint64    `json:"slot"`
	Timestamp time.Time `json:"timestamp"`
}

func (n *Notifier) publish(subject string, v interface{}) error {
	if n.conn == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.conn.Publish(subject, data)
}

func (n *Notifier) PublishCrank(evt CrankEvent) error {
	return n.publish("percolat.events.crank", evt)
}

func (n *Notifier) PublishLiquidation(evt LiquidationEvent) error {
	return n.publish("percolat.events.liquidation", evt)
}

func (n *Notifier) PublishRecovery(evt RecoveryEvent) error {
	return n.publish("percolat.events.recovery", evt)
}
