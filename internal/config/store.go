package config

import (
	"sync/atomic"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

// Store holds the active Config. Readers always see a complete snapshot;
// Reload swaps in a new one only when it builds cleanly.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore returns a Store serving cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Load returns the active snapshot.
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Reload builds a new snapshot with build. On error the active snapshot is kept.
func (s *Store) Reload(build func() (*Config, error)) (*Config, error) {
	cfg, err := build()
	if err != nil {
		return nil, err
	}
	s.current.Store(cfg)
	return cfg, nil
}

// UnitSystems returns the active snapshot's unit systems.
func (s *Store) UnitSystems() (input, output domain.UnitSystem) {
	return s.Load().UnitSystems()
}

// BatteryStrategy returns the active snapshot's strategy for key.
func (s *Store) BatteryStrategy(key string) domain.BatteryStrategy {
	return s.Load().BatteryStrategy(key)
}
