package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Reasons carried by LedgerChangedMessage.
const (
	ReasonImport      = "import"
	ReasonTransaction = "transaction"
	ReasonCategory    = "category"
	ReasonDelete      = "delete"
)

// LedgerChangedMessage tells consumers that a user's ledger changed. It
// carries no ledger data; consumers re-read the store and recompute.
type LedgerChangedMessage struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

var errMissingUser = errors.New("ledger changed message without user_id")

func NewLedgerChangedMessage(userID, reason string, count int) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		Reason:    reason,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes and validates a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errMissingUser
	}
	return &msg, nil
}
