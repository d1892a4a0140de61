package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrUnencodable marks a reading that cannot be encoded for a sink. Retrying
// the same reading cannot succeed.
var ErrUnencodable = errors.New("reading cannot be encoded")

// Gateway metadata keys. They are case-sensitive on the wire.
const (
	KeyPassKey     = "PASSKEY"
	KeyStationType = "stationtype"
	KeyModel       = "model"
	KeyFrequency   = "freq"
	KeyDateUTC     = "dateutc"
)

// ParsePayload splits a gateway form body into metadata and sensor fields.
// Sensor fields are sorted by key so downstream output is deterministic.
func ParsePayload(form url.Values) Payload {
	p := Payload{
		Station:     form.Get(KeyPassKey),
		StationType: form.Get(KeyStationType),
		Model:       form.Get(KeyModel),
		Frequency:   form.Get(KeyFrequency),
		DateUTC:     form.Get(KeyDateUTC),
		ReceivedAt:  Now(),
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		if isMetadataKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p.Fields = make([]Field, 0, len(keys))
	for _, k := range keys {
		p.Fields = append(p.Fields, Field{Key: k, Value: form.Get(k)})
	}
	return p
}

func isMetadataKey(key string) bool {
	switch key {
	case KeyPassKey, KeyStationType, KeyModel, KeyFrequency, KeyDateUTC:
		return true
	default:
		return false
	}
}

// ReadingTime picks the gateway's own dateutc stamp when it parses, and the
// receive time otherwise. Gateways without an RTC send "now".
func ReadingTime(p Payload) time.Time {
	s := strings.TrimSpace(p.DateUTC)
	if s == "" || strings.EqualFold(s, "now") {
		return p.ReceivedAt
	}
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		return p.ReceivedAt
	}
	return t.UTC()
}

// FlattenReading produces the flat key -> value object published on MQTT.
// Uncalculated values become null; raw readings keep their text unless it is
// a finite number.
func FlattenReading(r Reading) map[string]any {
	if r.Raw != nil {
		out := make(map[string]any, len(r.Raw))
		for k, v := range r.Raw {
			if n, ok := ParseRawValue(v).Float(); ok {
				out[k] = n
				continue
			}
			out[k] = v
		}
		return out
	}

	out := make(map[string]any, len(r.Data))
	for k, p := range r.Data {
		if !p.Valid() {
			out[k] = nil
			continue
		}
		out[k] = *p.Value
	}
	return out
}

// SerializeReading marshals a reading into a keyed message with its units preserved.
func SerializeReading(r Reading) (OutputMessage, error) {
	if r.Data != nil {
		data := make(map[string]CalculatedDataPoint, len(r.Data))
		for k, p := range r.Data {
			if !p.Valid() {
				p = NoDataPoint()
			}
			data[k] = p
		}
		r.Data = data
	}

	data, err := json.Marshal(r)
	if err != nil {
		return OutputMessage{}, fmt.Errorf("serialize reading: %w: %w", ErrUnencodable, err)
	}
	return OutputMessage{
		Key:   []byte(r.Station),
		Value: data,
		Headers: map[string]string{
			"station":   r.Station,
			"timestamp": r.Timestamp.UTC().Format(time.RFC3339),
		},
	}, nil
}
