package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"txfilter/internal/core"
)

// TransactionBatchMessage carries transactions to be ingested into a
// writable dataset backend. ID identifies the batch for idempotent ingestion.
type TransactionBatchMessage struct {
	ID           string             `json:"id"`
	Source       string             `json:"source,omitempty"`
	Transactions []core.Transaction `json:"transactions"`
	Timestamp    time.Time          `json:"timestamp"`
}

// NewTransactionBatchMessage creates a batch with a fresh id.
func NewTransactionBatchMessage(source string, txs []core.Transaction) *TransactionBatchMessage {
	if txs == nil {
		txs = []core.Transaction{}
	}
	return &TransactionBatchMessage{
		ID:           uuid.NewString(),
		Source:       source,
		Transactions: txs,
		Timestamp:    time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionBatchMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionBatchMessageFromJSON parses a message and checks it carries an id.
func TransactionBatchMessageFromJSON(data []byte) (*TransactionBatchMessage, error) {
	var msg TransactionBatchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("batch message without id")
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, err
	}
	return &msg, nil
}
