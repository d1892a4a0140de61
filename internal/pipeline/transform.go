package pipeline

import (
	"errors"

	"github.com/couchcryptid/ecowitt2mqtt/internal/calculator"
	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

// ErrMissingStation is returned for payloads without a PASSKEY.
var ErrMissingStation = errors.New("payload has no PASSKEY")

// Calculator resolves every sensor field of a payload against one settings snapshot.
type Calculator interface {
	CalculateAllWith(settings calculator.Settings, fields []domain.Field) map[string]domain.CalculatedDataPoint
}

// ReadingTransformer implements Transformer using the calculator registry and
// the active configuration snapshot.
type ReadingTransformer struct {
	calc  Calculator
	store *config.Store
}

// NewTransformer creates a ReadingTransformer.
func NewTransformer(calc Calculator, store *config.Store) *ReadingTransformer {
	return &ReadingTransformer{calc: calc, store: store}
}

func (t *ReadingTransformer) Transform(p domain.Payload) (domain.Reading, error) {
	if p.Station == "" {
		return domain.Reading{}, ErrMissingStation
	}

	cfg := t.store.Load()
	r := domain.Reading{
		Station:   p.Station,
		Model:     p.Model,
		Timestamp: domain.ReadingTime(p),
	}

	if cfg.RawData {
		r.Raw = make(map[string]string, len(p.Fields))
		for _, f := range p.Fields {
			r.Raw[f.Key] = f.Value
		}
		return r, nil
	}

	r.Data = t.calc.CalculateAllWith(cfg, p.Fields)
	for k, dp := range r.Data {
		r.Data[k] = dp.Round(cfg.Precision)
	}
	return r, nil
}
