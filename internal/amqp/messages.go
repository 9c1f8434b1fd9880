package amqp

import (
	"encoding/json"
	"time"
)

// DatasetUpdatedMessage announces that a new dataset import is stored.
// Consumers reload from their own backend; the message carries no records.
type DatasetUpdatedMessage struct {
	ImportID    int64     `json:"import_id"`
	Source      string    `json:"source"`
	RecordCount int       `json:"record_count"`
	TotalBudget float64   `json:"total_budget"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewDatasetUpdatedMessage(importID int64, source string, recordCount int, totalBudget float64) *DatasetUpdatedMessage {
	return &DatasetUpdatedMessage{
		ImportID:    importID,
		Source:      source,
		RecordCount: recordCount,
		TotalBudget: totalBudget,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetUpdatedMessageFromJSON creates a message from JSON bytes
func DatasetUpdatedMessageFromJSON(data []byte) (*DatasetUpdatedMessage, error) {
	var msg DatasetUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FilterChangedMessage records one applied filter change of a session.
type FilterChangedMessage struct {
	SessionID string    `json:"session_id"`
	Dimension string    `json:"dimension"`
	Filter    string    `json:"filter"`
	Selected  int       `json:"selected"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *FilterChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
