package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownUnitSystem is returned when a unit system name is not recognized.
var ErrUnknownUnitSystem = errors.New("unknown unit system")

// ErrUnknownBatteryStrategy is returned when a battery strategy name is not recognized.
var ErrUnknownBatteryStrategy = errors.New("unknown battery strategy")

// UnitSystem selects which unit calculators emit.
type UnitSystem string

const (
	UnitSystemMetric   UnitSystem = "metric"
	UnitSystemImperial UnitSystem = "imperial"
)

// ParseUnitSystem matches a unit system name case-insensitively.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(UnitSystemMetric):
		return UnitSystemMetric, nil
	case string(UnitSystemImperial):
		return UnitSystemImperial, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUnitSystem, s)
	}
}

// BatteryStrategy is the interpretation applied to a battery channel.
type BatteryStrategy string

const (
	// BatteryStrategyBoolean treats 0 as ok and anything else as low.
	BatteryStrategyBoolean BatteryStrategy = "boolean"
	// BatteryStrategyNumeric reports the raw reading as a voltage.
	BatteryStrategyNumeric BatteryStrategy = "numeric"
	// BatteryStrategyPercentage maps a 0-5 bar level onto 0-100%.
	BatteryStrategyPercentage BatteryStrategy = "percentage"
)

// ParseBatteryStrategy matches a strategy name case-insensitively.
func ParseBatteryStrategy(s string) (BatteryStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(BatteryStrategyBoolean):
		return BatteryStrategyBoolean, nil
	case string(BatteryStrategyNumeric):
		return BatteryStrategyNumeric, nil
	case string(BatteryStrategyPercentage):
		return BatteryStrategyPercentage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBatteryStrategy, s)
	}
}

// RawValue is a single value taken from an inbound payload: either a number or
// a token that did not parse as one.
type RawValue struct {
	text    string
	number  float64
	numeric bool
}

// ParseRawValue parses a form value. NaN and infinities are kept as text.
func ParseRawValue(s string) RawValue {
	text := strings.TrimSpace(s)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || !finite(v) {
		return RawValue{text: text}
	}
	return RawValue{text: text, number: v, numeric: true}
}

// NumberValue wraps an already numeric value.
func NumberValue(v float64) RawValue {
	return RawValue{text: strconv.FormatFloat(v, 'f', -1, 64), number: v, numeric: true}
}

// Float returns the numeric value and whether the raw value was numeric.
func (v RawValue) Float() (float64, bool) {
	return v.number, v.numeric
}

// String returns the value as it appeared in the payload.
func (v RawValue) String() string {
	return v.text
}

// CalculatedDataPoint is the result of applying a calculator to a raw value.
// A nil Value means the value could not be calculated this cycle.
type CalculatedDataPoint struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit,omitempty"`
}

// DataPoint builds a calculated data point carrying a value. NaN and
// infinities cannot be published, so they yield NoDataPoint.
func DataPoint(value float64, unit string) CalculatedDataPoint {
	if !finite(value) {
		return NoDataPoint()
	}
	return CalculatedDataPoint{Value: &value, Unit: unit}
}

// NoDataPoint is the "could not calculate" result.
func NoDataPoint() CalculatedDataPoint {
	return CalculatedDataPoint{}
}

// Valid reports whether the data point carries a publishable value.
func (p CalculatedDataPoint) Valid() bool {
	return p.Value != nil && finite(*p.Value)
}

// Round returns a copy of p with its value rounded to precision decimal places.
// A negative precision leaves the value untouched.
func (p CalculatedDataPoint) Round(precision int) CalculatedDataPoint {
	if !p.Valid() || precision < 0 {
		return p
	}
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(*p.Value*scale) / scale
	if !finite(rounded) {
		return p
	}
	return DataPoint(rounded, p.Unit)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
