package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
)

// DatasetRefreshedMessage announces that a new dataset replaced the cached one.
// It carries only the headline numbers; consumers reload the source themselves.
type DatasetRefreshedMessage struct {
	Source      string          `json:"source"`
	Rows        int             `json:"rows"`
	DroppedRows int             `json:"dropped_rows"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewDatasetRefreshedMessage builds the message for a freshly loaded dataset.
func NewDatasetRefreshedMessage(d *core.Dataset) *DatasetRefreshedMessage {
	msg := &DatasetRefreshedMessage{
		TotalSales: decimal.Zero,
		Timestamp:  time.Now(),
	}
	if d == nil {
		return msg
	}
	msg.Source = d.Source
	msg.Rows = d.Len()
	msg.DroppedRows = d.Stats.DroppedRows()
	msg.FetchedAt = d.FetchedAt
	msg.TotalSales = core.Summarize(d).TotalSales
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *DatasetRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ErrMissingSource rejects a message that does not name its dataset.
var ErrMissingSource = errors.New("message has no source")

// DatasetRefreshedMessageFromJSON decodes a message body. A message without
// a source is malformed.
func DatasetRefreshedMessageFromJSON(data []byte) (*DatasetRefreshedMessage, error) {
	var msg DatasetRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Source == "" {
		return nil, ErrMissingSource
	}
	return &msg, nil
}
