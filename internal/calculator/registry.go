package calculator

import (
	"log/slog"
	"regexp"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
	"github.com/couchcryptid/ecowitt2mqtt/internal/units"
)

// DefaultMemoSize bounds how many pattern lookups a Registry remembers.
const DefaultMemoSize = 256

type pattern struct {
	re    *regexp.Regexp
	build func(key string) Calculator
}

// Registry maps channel keys to the calculator that owns them. The catalog is
// fixed at construction: exact keys are consulted first, then patterns in
// order, then the passthrough fallback.
type Registry struct {
	exact    map[string]Calculator
	patterns []pattern
	fallback Calculator
	memo     *lruCache
	settings Settings
}

// NewRegistry builds the catalog of known Ecowitt channels.
func NewRegistry(settings Settings, logger *slog.Logger) *Registry {
	logger = orDiscard(logger)

	temperature := NewConversion(units.Temperature, settings, logger)
	pressure := NewConversion(units.Pressure, settings, logger)
	speed := NewConversion(units.Speed, settings, logger)
	rainfall := NewConversion(units.Length, settings, logger)
	rainRate := NewConversion(units.Rate, settings, logger)
	percent := NewSimple(UnitPercent, logger)

	exact := map[string]Calculator{
		"baromabsin":        pressure,
		"baromrelin":        pressure,
		"co2":               NewSimple(UnitPartsPerMillion, logger),
		"co2_24h":           NewSimple(UnitPartsPerMillion, logger),
		"co2in":             NewSimple(UnitPartsPerMillion, logger),
		"co2in_24h":         NewSimple(UnitPartsPerMillion, logger),
		"dewpointf":         temperature,
		"feelslikef":        temperature,
		"heatindexf":        temperature,
		"lightning":         LightningStrikeDistance(settings, logger),
		"lightning_num":     LightningStrikeCount(logger),
		"lightning_time":    NewPassthrough(logger),
		"maxdailygust":      speed,
		"rainratein":        rainRate,
		"rrain_piezo":       rainRate,
		"solarradiation":    NewSimple(UnitIrradiance, logger),
		"uv":                NewSimple(UnitUVIndex, logger),
		"windchillf":        temperature,
		"winddir":           NewSimple(UnitDegrees, logger),
		"winddir_avg10m":    NewSimple(UnitDegrees, logger),
		"windgustmph":       speed,
		"windspdmph_avg10m": speed,
		"windspeedmph":      speed,
	}

	static := func(c Calculator) func(string) Calculator {
		return func(string) Calculator { return c }
	}
	battery := func(key string) Calculator { return NewBattery(key, settings, logger) }

	patterns := []pattern{
		{regexp.MustCompile(`^temp(in|\d+)?f$`), static(temperature)},
		{regexp.MustCompile(`^tf_ch\d+$`), static(temperature)},
		{regexp.MustCompile(`^(event|hourly|daily|weekly|monthly|yearly|total)rainin$`), static(rainfall)},
		{regexp.MustCompile(`^[ehdwmyt]rain_piezo$`), static(rainfall)},
		{regexp.MustCompile(`^humidity(in|\d+)?$`), static(percent)},
		{regexp.MustCompile(`^humi_co2$`), static(percent)},
		{regexp.MustCompile(`^(soilmoisture|leafwetness_ch)\d+$`), static(percent)},
		{regexp.MustCompile(`^pm(25|10)(_avg)?(_24h)?(_ch\d+|_co2|_in)?(_24h)?$`), static(NewSimple(UnitMicrogramsM3, logger))},
		{regexp.MustCompile(`batt(_co2|_lightning|\d+)?$`), battery},
	}

	return &Registry{
		exact:    exact,
		patterns: patterns,
		fallback: NewPassthrough(logger),
		memo:     newLRUCache(DefaultMemoSize),
		settings: settings,
	}
}

// Lookup returns the calculator that owns key, or the passthrough fallback.
func (r *Registry) Lookup(key string) Calculator {
	if c, ok := r.exact[key]; ok {
		return c
	}
	if c, ok := r.memo.get(key); ok {
		return c
	}

	c := r.fallback
	for _, p := range r.patterns {
		if p.re.MatchString(key) {
			c = p.build(key)
			break
		}
	}
	r.memo.put(key, c)
	return c
}

// Calculate runs the calculator that owns key over value.
func (r *Registry) Calculate(key string, value domain.RawValue) domain.CalculatedDataPoint {
	return r.Lookup(key).CalculateFromValue(value)
}

// CalculateAll runs every field of a payload through its calculator.
func (r *Registry) CalculateAll(fields []domain.Field) map[string]domain.CalculatedDataPoint {
	return r.CalculateAllWith(r.settings, fields)
}

// CalculateAllWith is CalculateAll with every field reading the same settings,
// so a reload mid-payload cannot mix unit systems within one reading.
func (r *Registry) CalculateAllWith(settings Settings, fields []domain.Field) map[string]domain.CalculatedDataPoint {
	out := make(map[string]domain.CalculatedDataPoint, len(fields))
	for _, f := range fields {
		out[f.Key] = r.Lookup(f.Key).calculate(settings, domain.ParseRawValue(f.Value))
	}
	return out
}
