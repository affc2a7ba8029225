package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage announces that a user's ledger document was committed
// at the given version. Origin carries the publishing process tag so a
// process can ignore its own broadcasts; consumers only invalidate their
// cached snapshot and re-read from the store on the next query.
type LedgerChangedMessage struct {
	UserID    string    `json:"user_id"`
	Version   int64     `json:"version"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage creates a change notification.
func NewLedgerChangedMessage(userID string, version int64, origin string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		Version:   version,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON creates a message from JSON bytes.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
