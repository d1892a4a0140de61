package units

import (
	"testing"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_Convert(t *testing.T) {
	assert.InDelta(t, 621.371192, Distance.Convert(1000, Kilometers, Miles), 1e-6)
	assert.InDelta(t, 1.609344, Distance.Convert(1, Miles, Kilometers), 1e-9)
	assert.InDelta(t, 3280.8399, Distance.Convert(1, Kilometers, Feet), 1e-4)
	assert.Equal(t, 12.0, Distance.Convert(12, Kilometers, Kilometers))
}

func TestDistance_DefaultUnit(t *testing.T) {
	assert.Equal(t, Kilometers, Distance.DefaultUnit(domain.UnitSystemMetric))
	assert.Equal(t, Miles, Distance.DefaultUnit(domain.UnitSystemImperial))
}

func TestLength_Convert(t *testing.T) {
	assert.InDelta(t, 25.4, Length.Convert(1, Inches, Millimeters), 1e-9)
	assert.InDelta(t, 2.54, Length.Convert(1, Inches, Centimeters), 1e-9)
}

func TestRate_Convert(t *testing.T) {
	assert.InDelta(t, 12.7, Rate.Convert(0.5, InchesPerHour, MillimetersPerHour), 1e-9)
}

func TestPressure_Convert(t *testing.T) {
	assert.InDelta(t, 1013.25, Pressure.Convert(29.921, InchesMercury, Hectopascals), 0.05)
	assert.InDelta(t, 101.325, Pressure.Convert(1013.25, Hectopascals, Kilopascals), 1e-9)
	assert.InDelta(t, 14.696, Pressure.Convert(1013.25, Millibars, PoundsPerSqIn), 1e-3)
	assert.Equal(t, InchesMercury, Pressure.DefaultUnit(domain.UnitSystemImperial))
}

func TestSpeed_Convert(t *testing.T) {
	assert.InDelta(t, 16.09344, Speed.Convert(10, MilesPerHour, KilometersPerHour), 1e-9)
	assert.InDelta(t, 10, Speed.Convert(36, KilometersPerHour, MetersPerSecond), 1e-9)
	assert.InDelta(t, 1.943844, Speed.Convert(1, MetersPerSecond, Knots), 1e-6)
}

func TestTemperature_Convert(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		from, to TemperatureUnit
		want     float64
	}{
		{"freezing F to C", 32, Fahrenheit, Celsius, 0},
		{"boiling C to F", 100, Celsius, Fahrenheit, 212},
		{"absolute zero", 0, Kelvin, Celsius, -273.15},
		{"F to K", 212, Fahrenheit, Kelvin, 373.15},
		{"identity", 21.5, Celsius, Celsius, 21.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Temperature.Convert(tt.value, tt.from, tt.to), 1e-9)
		})
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	v := 42.42
	assert.InDelta(t, v, Distance.Convert(Distance.Convert(v, Kilometers, Miles), Miles, Kilometers), 1e-9)
	assert.InDelta(t, v, Pressure.Convert(Pressure.Convert(v, InchesMercury, MillimetersHg), MillimetersHg, InchesMercury), 1e-9)
	assert.InDelta(t, v, Temperature.Convert(Temperature.Convert(v, Fahrenheit, Kelvin), Kelvin, Fahrenheit), 1e-9)
}

func TestConvertChecked_UnknownUnit(t *testing.T) {
	_, err := Distance.ConvertChecked(1, Kilometers, DistanceUnit("furlong"))
	require.ErrorIs(t, err, ErrUnknownUnit)
	assert.Contains(t, err.Error(), "furlong")

	_, err = Temperature.ConvertChecked(1, TemperatureUnit("°R"), Celsius)
	require.ErrorIs(t, err, ErrUnknownUnit)

	got, err := Speed.ConvertChecked(1, MetersPerSecond, KilometersPerHour)
	require.NoError(t, err)
	assert.InDelta(t, 3.6, got, 1e-9)
}
