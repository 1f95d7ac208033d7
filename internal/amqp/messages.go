package amqp

import (
	"encoding/json"
	"time"
)

// BalanceRecalcMessage asks the worker to recompute player balances.
// An empty PlayerID means every player. Reason records what triggered
// the recalc (import batch, payment created, manual).
type BalanceRecalcMessage struct {
	PlayerID  string    `json:"player_id,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBalanceRecalcMessage creates a recalc message for one player, or
// for all players when playerID is empty.
func NewBalanceRecalcMessage(playerID, reason string) *BalanceRecalcMessage {
	return &BalanceRecalcMessage{
		PlayerID:  playerID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BalanceRecalcMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func BalanceRecalcMessageFromJSON(data []byte) (*BalanceRecalcMessage, error) {
	var msg BalanceRecalcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
