package query

import (
	"encoding/json"
	"time"
)

// EventEntry is an event-log row for API reads. Hashes are hex
// encoded; the payload is passed through as stored.
type EventEntry struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Account   string          `json:"account"`
	Height    int64           `json:"height"`
	Payload   json.RawMessage `json:"payload"`
	StateHash string          `json:"state_hash"`
	PrevHash  string          `json:"prev_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventPage is a cursor-paginated slice of the event log. NextCursor
// is zero when the page reached the start of the log.
type EventPage struct {
	Events       []EventEntry `json:"events"`
	NextCursor   int64        `json:"next_cursor,omitempty"`
	AsOfSequence int64        `json:"as_of_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	SupplyDelta     string  `json:"supply_delta,omitempty"`
}
