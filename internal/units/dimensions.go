package units

import (
	"fmt"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

// DistanceUnit measures how far away something is (lightning, visibility).
type DistanceUnit string

const (
	Kilometers DistanceUnit = "km"
	Miles      DistanceUnit = "mi"
	Meters     DistanceUnit = "m"
	Feet       DistanceUnit = "ft"
)

// Distance converts distances. Base unit: meter.
var Distance Converter[DistanceUnit] = ratioConverter[DistanceUnit]{
	name: "distance",
	ratios: map[DistanceUnit]float64{
		Meters:     1,
		Kilometers: 1 / 1000.0,
		Miles:      1 / 1609.344,
		Feet:       1 / 0.3048,
	},
	metric:   Kilometers,
	imperial: Miles,
}

// LengthUnit measures small lengths such as rainfall depth.
type LengthUnit string

const (
	Millimeters LengthUnit = "mm"
	Centimeters LengthUnit = "cm"
	Inches      LengthUnit = "in"
)

// Length converts small lengths. Base unit: millimeter.
var Length Converter[LengthUnit] = ratioConverter[LengthUnit]{
	name: "length",
	ratios: map[LengthUnit]float64{
		Millimeters: 1,
		Centimeters: 1 / 10.0,
		Inches:      1 / 25.4,
	},
	metric:   Millimeters,
	imperial: Inches,
}

// RateUnit measures precipitation intensity.
type RateUnit string

const (
	MillimetersPerHour RateUnit = "mm/hr"
	InchesPerHour      RateUnit = "in/hr"
)

// Rate converts precipitation rates. Base unit: mm/hr.
var Rate Converter[RateUnit] = ratioConverter[RateUnit]{
	name: "rate",
	ratios: map[RateUnit]float64{
		MillimetersPerHour: 1,
		InchesPerHour:      1 / 25.4,
	},
	metric:   MillimetersPerHour,
	imperial: InchesPerHour,
}

// PressureUnit measures barometric pressure.
type PressureUnit string

const (
	Hectopascals  PressureUnit = "hPa"
	Kilopascals   PressureUnit = "kPa"
	Millibars     PressureUnit = "mbar"
	InchesMercury PressureUnit = "inHg"
	MillimetersHg PressureUnit = "mmHg"
	PoundsPerSqIn PressureUnit = "psi"
)

// Pressure converts pressures. Base unit: hectopascal.
var Pressure Converter[PressureUnit] = ratioConverter[PressureUnit]{
	name: "pressure",
	ratios: map[PressureUnit]float64{
		Hectopascals:  1,
		Kilopascals:   1 / 10.0,
		Millibars:     1,
		InchesMercury: 1 / 33.86389,
		MillimetersHg: 1 / 1.333224,
		PoundsPerSqIn: 1 / 68.94757,
	},
	metric:   Hectopascals,
	imperial: InchesMercury,
}

// SpeedUnit measures wind speed.
type SpeedUnit string

const (
	KilometersPerHour SpeedUnit = "km/h"
	MilesPerHour      SpeedUnit = "mph"
	MetersPerSecond   SpeedUnit = "m/s"
	Knots             SpeedUnit = "kn"
	FeetPerSecond     SpeedUnit = "ft/s"
)

// Speed converts speeds. Base unit: meter per second.
var Speed Converter[SpeedUnit] = ratioConverter[SpeedUnit]{
	name: "speed",
	ratios: map[SpeedUnit]float64{
		MetersPerSecond:   1,
		KilometersPerHour: 3.6,
		MilesPerHour:      3600 / 1609.344,
		Knots:             3600 / 1852.0,
		FeetPerSecond:     1 / 0.3048,
	},
	metric:   KilometersPerHour,
	imperial: MilesPerHour,
}

// TemperatureUnit measures temperature.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "°C"
	Fahrenheit TemperatureUnit = "°F"
	Kelvin     TemperatureUnit = "K"
)

// Temperature converts temperatures. The scales are affine, not proportional.
var Temperature Converter[TemperatureUnit] = temperatureConverter{}

type temperatureConverter struct{}

func (temperatureConverter) Convert(value float64, from, to TemperatureUnit) float64 {
	if from == to {
		return value
	}
	var celsius float64
	switch from {
	case Fahrenheit:
		celsius = (value - 32) * 5 / 9
	case Kelvin:
		celsius = value - 273.15
	default:
		celsius = value
	}
	switch to {
	case Fahrenheit:
		return celsius*9/5 + 32
	case Kelvin:
		return celsius + 273.15
	default:
		return celsius
	}
}

func (c temperatureConverter) ConvertChecked(value float64, from, to TemperatureUnit) (float64, error) {
	for _, u := range []TemperatureUnit{from, to} {
		switch u {
		case Celsius, Fahrenheit, Kelvin:
		default:
			return 0, fmt.Errorf("temperature: %w %q", ErrUnknownUnit, u)
		}
	}
	return c.Convert(value, from, to), nil
}

func (temperatureConverter) DefaultUnit(system domain.UnitSystem) TemperatureUnit {
	if system == domain.UnitSystemImperial {
		return Fahrenheit
	}
	return Celsius
}
