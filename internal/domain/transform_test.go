package domain

import (
	"encoding/json"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassKey = "ABC123"

func TestParsePayload(t *testing.T) {
	received := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(received))
	t.Cleanup(func() { SetClock(nil) })

	form := url.Values{
		"PASSKEY":       {testPassKey},
		"stationtype":   {"GW2000A_V2.2.4"},
		"model":         {"GW2000A"},
		"freq":          {"868M"},
		"dateutc":       {"2024-04-26 15:09:58"},
		"tempf":         {"58.1"},
		"lightning_num": {"5"},
		"humidity":      {"81"},
	}

	p := ParsePayload(form)

	assert.Equal(t, testPassKey, p.Station)
	assert.Equal(t, "GW2000A_V2.2.4", p.StationType)
	assert.Equal(t, "GW2000A", p.Model)
	assert.Equal(t, "868M", p.Frequency)
	assert.Equal(t, received, p.ReceivedAt)
	assert.Equal(t, []Field{
		{Key: "humidity", Value: "81"},
		{Key: "lightning_num", Value: "5"},
		{Key: "tempf", Value: "58.1"},
	}, p.Fields)
}

func TestReadingTime(t *testing.T) {
	received := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)

	t.Run("gateway stamp", func(t *testing.T) {
		got := ReadingTime(Payload{DateUTC: "2024-04-26 15:09:58", ReceivedAt: received})
		assert.Equal(t, time.Date(2024, 4, 26, 15, 9, 58, 0, time.UTC), got)
	})

	t.Run("now sentinel", func(t *testing.T) {
		assert.Equal(t, received, ReadingTime(Payload{DateUTC: "now", ReceivedAt: received}))
	})

	t.Run("garbage falls back", func(t *testing.T) {
		assert.Equal(t, received, ReadingTime(Payload{DateUTC: "yesterday", ReceivedAt: received}))
	})
}

func TestFlattenReading(t *testing.T) {
	t.Run("calculated", func(t *testing.T) {
		r := Reading{Data: map[string]CalculatedDataPoint{
			"tempin":    DataPoint(22.5, "°C"),
			"lightning": NoDataPoint(),
		}}
		out := FlattenReading(r)
		assert.Equal(t, 22.5, out["tempin"])
		v, ok := out["lightning"]
		assert.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("raw", func(t *testing.T) {
		r := Reading{Raw: map[string]string{"tempf": "58.1", "wh65batt": "--"}}
		out := FlattenReading(r)
		assert.Equal(t, 58.1, out["tempf"])
		assert.Equal(t, "--", out["wh65batt"])
	})
}

func TestSerializeReading(t *testing.T) {
	ts := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	r := Reading{
		Station:   testPassKey,
		Timestamp: ts,
		Data: map[string]CalculatedDataPoint{
			"lightning_num": DataPoint(5, "strikes"),
		},
	}

	out, err := SerializeReading(r)
	require.NoError(t, err)
	assert.Equal(t, []byte(testPassKey), out.Key)
	assert.Equal(t, testPassKey, out.Headers["station"])
	assert.Equal(t, "2024-04-26T15:10:00Z", out.Headers["timestamp"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, testPassKey, decoded["station"])
	assert.Contains(t, string(out.Value), `"lightning_num":{"value":5,"unit":"strikes"}`)
}

func TestFlattenReading_NonFinite(t *testing.T) {
	t.Run("raw tokens stay text", func(t *testing.T) {
		r := Reading{Raw: map[string]string{"tempf": "70", "soilmoisture1": "NaN", "uv": "Inf", "solarradiation": "-Infinity"}}
		out := FlattenReading(r)
		assert.Equal(t, 70.0, out["tempf"])
		assert.Equal(t, "NaN", out["soilmoisture1"])
		assert.Equal(t, "Inf", out["uv"])
		assert.Equal(t, "-Infinity", out["solarradiation"])

		_, err := json.Marshal(out)
		require.NoError(t, err)
	})

	t.Run("calculated values become null", func(t *testing.T) {
		inf := math.Inf(1)
		r := Reading{Data: map[string]CalculatedDataPoint{
			"tempf":    DataPoint(21.1, "°C"),
			"humidity": {Value: &inf, Unit: "%"},
		}}
		out := FlattenReading(r)
		assert.Equal(t, 21.1, out["tempf"])
		assert.Nil(t, out["humidity"])

		_, err := json.Marshal(out)
		require.NoError(t, err)
	})
}

func TestSerializeReading_NonFinite(t *testing.T) {
	nan := math.NaN()
	r := Reading{
		Station: testPassKey,
		Data: map[string]CalculatedDataPoint{
			"tempf":    DataPoint(21.1, "°C"),
			"humidity": {Value: &nan, Unit: "%"},
		},
	}

	out, err := SerializeReading(r)
	require.NoError(t, err)
	assert.Contains(t, string(out.Value), `"humidity":{"value":null}`)
	assert.Contains(t, string(out.Value), `"tempf":{"value":21.1,"unit":"°C"}`)
	assert.Same(t, &nan, r.Data["humidity"].Value, "input reading is not modified")
}
