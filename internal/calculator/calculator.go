// Package calculator turns raw gateway values into calculated data points.
//
// Each sensor channel is owned by exactly one Calculator, chosen by the
// Registry from a fixed catalog of keys and key patterns. Calculators never
// fail: a value that is not a number yields a data point with no value.
package calculator

import (
	"log/slog"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
	"github.com/couchcryptid/ecowitt2mqtt/internal/units"
)

// Units of measurement for calculators with a single fixed output.
const (
	UnitStrikes         = "strikes"
	UnitPercent         = "%"
	UnitDegrees         = "°"
	UnitUVIndex         = "UV index"
	UnitIrradiance      = "W/m²"
	UnitVolts           = "V"
	UnitPartsPerMillion = "ppm"
	UnitMicrogramsM3    = "µg/m³"
	UnitSeconds         = "s"
)

// Settings is the slice of runtime configuration calculators read on every
// call. A config store satisfies it, so a reload takes effect immediately.
type Settings interface {
	UnitSystems() (input, output domain.UnitSystem)
	BatteryStrategy(key string) domain.BatteryStrategy
}

// Calculator computes one data point from one raw value. The set of
// implementations is closed to this package.
type Calculator interface {
	CalculateFromValue(value domain.RawValue) domain.CalculatedDataPoint

	// calculate uses settings in place of the ones bound at construction.
	calculate(settings Settings, value domain.RawValue) domain.CalculatedDataPoint
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// number extracts the numeric form of value, logging when there is none.
func number(logger *slog.Logger, value domain.RawValue) (float64, bool) {
	n, ok := value.Float()
	if !ok {
		logger.Debug("Can't convert value to number", "value", value.String())
	}
	return n, ok
}

// SimpleCalculator passes numbers through under one fixed unit.
type SimpleCalculator struct {
	unit   string
	logger *slog.Logger
}

// NewSimple returns a calculator that reports numbers unchanged in unit.
func NewSimple(unit string, logger *slog.Logger) *SimpleCalculator {
	return &SimpleCalculator{unit: unit, logger: orDiscard(logger)}
}

// LightningStrikeCount reports strike counts, identical in every unit system.
func LightningStrikeCount(logger *slog.Logger) *SimpleCalculator {
	return NewSimple(UnitStrikes, logger)
}

func (c *SimpleCalculator) CalculateFromValue(value domain.RawValue) domain.CalculatedDataPoint {
	return c.calculate(nil, value)
}

func (c *SimpleCalculator) calculate(_ Settings, value domain.RawValue) domain.CalculatedDataPoint {
	n, ok := number(c.logger, value)
	if !ok {
		return domain.NoDataPoint()
	}
	return domain.DataPoint(n, c.unit)
}

// PassthroughCalculator is the fallback for channels outside the catalog.
type PassthroughCalculator struct {
	logger *slog.Logger
}

// NewPassthrough returns the fallback calculator.
func NewPassthrough(logger *slog.Logger) *PassthroughCalculator {
	return &PassthroughCalculator{logger: orDiscard(logger)}
}

func (c *PassthroughCalculator) CalculateFromValue(value domain.RawValue) domain.CalculatedDataPoint {
	return c.calculate(nil, value)
}

func (c *PassthroughCalculator) calculate(_ Settings, value domain.RawValue) domain.CalculatedDataPoint {
	n, ok := number(c.logger, value)
	if !ok {
		return domain.NoDataPoint()
	}
	return domain.DataPoint(n, "")
}

// ConversionCalculator converts between the units one dimension takes in the
// input and output unit systems. When fixedInput is set the gateway always
// reports in that unit regardless of the input unit system.
type ConversionCalculator[U units.Unit] struct {
	converter  units.Converter[U]
	fixedInput U
	settings   Settings
	logger     *slog.Logger
}

// NewConversion returns a calculator whose input is in the input unit system's
// default unit for the converter's dimension.
func NewConversion[U units.Unit](converter units.Converter[U], settings Settings, logger *slog.Logger) *ConversionCalculator[U] {
	return &ConversionCalculator[U]{converter: converter, settings: settings, logger: orDiscard(logger)}
}

// NewFixedConversion returns a calculator whose input is always in unit from.
func NewFixedConversion[U units.Unit](converter units.Converter[U], from U, settings Settings, logger *slog.Logger) *ConversionCalculator[U] {
	return &ConversionCalculator[U]{converter: converter, fixedInput: from, settings: settings, logger: orDiscard(logger)}
}

// LightningStrikeDistance reports strike distance. Gateways always send
// kilometers.
func LightningStrikeDistance(settings Settings, logger *slog.Logger) *ConversionCalculator[units.DistanceUnit] {
	return NewFixedConversion(units.Distance, units.Kilometers, settings, logger)
}

// OutputUnit is the unit the calculator currently emits.
func (c *ConversionCalculator[U]) OutputUnit() U {
	_, out := c.settings.UnitSystems()
	return c.converter.DefaultUnit(out)
}

func (c *ConversionCalculator[U]) CalculateFromValue(value domain.RawValue) domain.CalculatedDataPoint {
	return c.calculate(c.settings, value)
}

func (c *ConversionCalculator[U]) calculate(settings Settings, value domain.RawValue) domain.CalculatedDataPoint {
	n, ok := number(c.logger, value)
	if !ok {
		return domain.NoDataPoint()
	}

	in, out := settings.UnitSystems()
	from := c.fixedInput
	if from == "" {
		from = c.converter.DefaultUnit(in)
	}
	to := c.converter.DefaultUnit(out)
	return domain.DataPoint(c.converter.Convert(n, from, to), string(to))
}

// BatteryCalculator interprets one battery channel with the strategy
// configured for its key.
type BatteryCalculator struct {
	key      string
	settings Settings
	logger   *slog.Logger
}

// NewBattery returns the calculator for the battery channel key.
func NewBattery(key string, settings Settings, logger *slog.Logger) *BatteryCalculator {
	return &BatteryCalculator{key: key, settings: settings, logger: orDiscard(logger)}
}

// Strategy is the strategy currently applied to the channel.
func (c *BatteryCalculator) Strategy() domain.BatteryStrategy {
	return c.settings.BatteryStrategy(c.key)
}

func (c *BatteryCalculator) CalculateFromValue(value domain.RawValue) domain.CalculatedDataPoint {
	return c.calculate(c.settings, value)
}

func (c *BatteryCalculator) calculate(settings Settings, value domain.RawValue) domain.CalculatedDataPoint {
	n, ok := number(c.logger, value)
	if !ok {
		return domain.NoDataPoint()
	}

	switch settings.BatteryStrategy(c.key) {
	case domain.BatteryStrategyNumeric:
		return domain.DataPoint(n, UnitVolts)
	case domain.BatteryStrategyPercentage:
		return domain.DataPoint(min(n*20, 100), UnitPercent)
	default:
		// Gateways send 0 for a healthy battery.
		if n == 0 {
			return domain.DataPoint(0, "")
		}
		return domain.DataPoint(1, "")
	}
}
