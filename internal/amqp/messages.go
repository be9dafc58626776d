package amqp

import (
	"encoding/json"
	"time"
)

// TransactionRecordedMessage tells the report worker that a transaction was
// stored and scored. It carries only the ID; the worker fetches the full row.
type TransactionRecordedMessage struct {
	TransactionID int64     `json:"transaction_id"`
	InstrumentID  int64     `json:"instrument_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionRecordedMessage creates a new report message
func NewTransactionRecordedMessage(transactionID, instrumentID int64) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		InstrumentID:  instrumentID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON creates a message from JSON bytes
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RuleChangedMessage notifies other processes that the rule set for an
// instrument type changed and cached rules must be dropped.
type RuleChangedMessage struct {
	RuleID           string    `json:"rule_id"`
	InstrumentTypeID int64     `json:"instrument_type_id"`
	Action           string    `json:"action"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewRuleChangedMessage creates a rule change notification
func NewRuleChangedMessage(ruleID string, instrumentTypeID int64, action string) *RuleChangedMessage {
	return &RuleChangedMessage{
		RuleID:           ruleID,
		InstrumentTypeID: instrumentTypeID,
		Action:           action,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RuleChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RuleChangedMessageFromJSON creates a message from JSON bytes
func RuleChangedMessageFromJSON(data []byte) (*RuleChangedMessage, error) {
	var msg RuleChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
