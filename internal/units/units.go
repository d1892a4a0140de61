// Package units converts scalar measurements between units of one physical
// dimension. Every dimension has its own unit type, so a distance can never be
// handed to the pressure converter.
package units

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

// ErrUnknownUnit is returned when a unit is not part of a converter's table.
var ErrUnknownUnit = errors.New("unknown unit")

// Unit is the constraint shared by all per-dimension unit types.
type Unit interface {
	~string
}

// Converter converts values between units of the dimension U.
type Converter[U Unit] interface {
	// Convert maps value from one unit to another. Both units must belong to
	// the converter's table; constants exported by this package always do.
	Convert(value float64, from, to U) float64
	// ConvertChecked is Convert for units that came from user input.
	ConvertChecked(value float64, from, to U) (float64, error)
	// DefaultUnit is the unit a unit system reports this dimension in.
	DefaultUnit(system domain.UnitSystem) U
}

// ratioConverter handles dimensions whose units differ by a constant factor.
// ratios holds how many of each unit make up one base unit.
type ratioConverter[U Unit] struct {
	name     string
	ratios   map[U]float64
	metric   U
	imperial U
}

func (c ratioConverter[U]) Convert(value float64, from, to U) float64 {
	if from == to {
		return value
	}
	return value / c.ratios[from] * c.ratios[to]
}

func (c ratioConverter[U]) ConvertChecked(value float64, from, to U) (float64, error) {
	if _, ok := c.ratios[from]; !ok {
		return 0, fmt.Errorf("%s: %w %q", c.name, ErrUnknownUnit, from)
	}
	if _, ok := c.ratios[to]; !ok {
		return 0, fmt.Errorf("%s: %w %q", c.name, ErrUnknownUnit, to)
	}
	return c.Convert(value, from, to), nil
}

func (c ratioConverter[U]) DefaultUnit(system domain.UnitSystem) U {
	if system == domain.UnitSystemImperial {
		return c.imperial
	}
	return c.metric
}
