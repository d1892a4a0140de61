package domain

import (
	"time"
)

// Field is one sensor channel of a gateway push, in payload order.
type Field struct {
	Key   string
	Value string
}

// Payload represents one unprocessed push from a gateway.
type Payload struct {
	Station     string // PASSKEY
	StationType string
	Model       string
	Frequency   string
	DateUTC     string
	Fields      []Field
	ReceivedAt  time.Time
}

// Reading is the calculated form of a payload, destined for the publishers.
type Reading struct {
	Station   string                         `json:"station"`
	Model     string                         `json:"model,omitempty"`
	Timestamp time.Time                      `json:"timestamp"`
	Data      map[string]CalculatedDataPoint `json:"data"`

	// Raw holds the untouched form values when calculations are disabled.
	Raw map[string]string `json:"raw,omitempty"`
}

// OutputMessage is the serialized form destined for a publisher.
type OutputMessage struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
