package config

import (
	"sort"
	"strings"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

// BatteryOverride is one parsed KEY=STRATEGY token.
type BatteryOverride struct {
	Key      string
	Strategy domain.BatteryStrategy
}

// ParseBatteryOverride parses a single KEY=STRATEGY token.
func ParseBatteryOverride(token string) (BatteryOverride, error) {
	parts := strings.Split(token, "=")
	if len(parts) != 2 {
		return BatteryOverride{}, errorf(nil, "Unable to parse battery override %q: expected KEY=STRATEGY", token)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return BatteryOverride{}, errorf(nil, "Unable to parse battery override %q: empty sensor key", token)
	}
	strategy, err := domain.ParseBatteryStrategy(parts[1])
	if err != nil {
		return BatteryOverride{}, errorf(err, "Invalid battery strategy in override %q", token)
	}
	return BatteryOverride{Key: key, Strategy: strategy}, nil
}

// FormatBatteryOverride is the inverse of ParseBatteryOverride.
func FormatBatteryOverride(o BatteryOverride) string {
	return o.Key + "=" + string(o.Strategy)
}

// ParseBatteryOverrides normalizes the three shapes overrides arrive in: a
// mapping from a config file, a token list from repeated CLI flags, or a
// semicolon-delimited string from the environment.
func ParseBatteryOverrides(v any) (map[string]domain.BatteryStrategy, error) {
	out := make(map[string]domain.BatteryStrategy)

	switch val := v.(type) {
	case nil:
		return out, nil
	case map[string]domain.BatteryStrategy:
		for k, s := range val {
			out[k] = s
		}
		return out, nil
	case map[string]any:
		for k, raw := range val {
			s, ok := raw.(string)
			if !ok {
				return nil, errorf(nil, "Invalid battery strategy for %s: %v", k, raw)
			}
			if err := addOverride(out, k, s); err != nil {
				return nil, err
			}
		}
		return out, nil
	case map[string]string:
		for k, s := range val {
			if err := addOverride(out, k, s); err != nil {
				return nil, err
			}
		}
		return out, nil
	case string:
		return parseOverrideTokens(out, strings.Split(val, ";"))
	case []string:
		return parseOverrideTokens(out, val)
	case []any:
		tokens := make([]string, 0, len(val))
		for _, t := range val {
			s, ok := t.(string)
			if !ok {
				return nil, errorf(nil, "Unable to parse battery override %v: expected KEY=STRATEGY", t)
			}
			tokens = append(tokens, s)
		}
		return parseOverrideTokens(out, tokens)
	default:
		return nil, errorf(nil, "Unable to parse battery overrides of type %T", v)
	}
}

func addOverride(out map[string]domain.BatteryStrategy, key, strategy string) error {
	s, err := domain.ParseBatteryStrategy(strategy)
	if err != nil {
		return errorf(err, "Invalid battery strategy for %s", key)
	}
	out[key] = s
	return nil
}

func parseOverrideTokens(out map[string]domain.BatteryStrategy, tokens []string) (map[string]domain.BatteryStrategy, error) {
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		o, err := ParseBatteryOverride(token)
		if err != nil {
			return nil, err
		}
		out[o.Key] = o.Strategy
	}
	return out, nil
}

// resolveBatteryOverrides merges overrides from every layer: a sensor key set
// by a later layer replaces the same key from earlier ones, other keys survive.
func resolveBatteryOverrides(layers []Layer) (map[string]domain.BatteryStrategy, error) {
	merged := make(map[string]domain.BatteryStrategy)
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		v, ok := layer.Get(KeyBatteryOverrides)
		if !ok {
			continue
		}
		parsed, err := ParseBatteryOverrides(v)
		if err != nil {
			return nil, errorf(err, "Invalid battery overrides from %s", describeLayer(layer))
		}
		for k, s := range parsed {
			merged[k] = s
		}
	}
	return merged, nil
}

// formatBatteryOverrides renders overrides as the environment-variable form,
// sorted by key.
func formatBatteryOverrides(m map[string]domain.BatteryStrategy) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tokens := make([]string, len(keys))
	for i, k := range keys {
		tokens[i] = FormatBatteryOverride(BatteryOverride{Key: k, Strategy: m[k]})
	}
	return strings.Join(tokens, ";")
}

func (o BatteryOverride) String() string {
	return FormatBatteryOverride(o)
}
