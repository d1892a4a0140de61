package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// FileLayer reads a JSON or YAML config file. The document must be a mapping
// of settings keys.
func FileLayer(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errorf(err, "Config file does not exist: %s", path)
		}
		return nil, errorf(err, "Unable to read config file %s", path)
	}

	values, err := parseConfigDocument(data)
	if err != nil {
		return nil, errorf(err, "Unable to parse config file %s", path)
	}
	return namedLayer{name: "file", values: values}, nil
}

// parseConfigDocument tries JSON first, then YAML. YAML accepts most JSON too,
// but JSON errors are the more useful ones for JSON-looking input.
func parseConfigDocument(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	var values map[string]any
	jsonErr := json.Unmarshal(data, &values)
	if jsonErr == nil && values != nil {
		return values, nil
	}

	values = nil
	yamlErr := yaml.Unmarshal(data, &values)
	if yamlErr == nil && values != nil {
		return values, nil
	}
	if yamlErr == nil {
		yamlErr = errors.New("document is not a mapping")
	}
	return nil, fmt.Errorf("not JSON (%v) and not YAML (%w)", jsonErr, yamlErr)
}

// EnvLayer reads the current ECOWITT2MQTT_* variables.
func EnvLayer(env Environment) Layer {
	values := make(map[string]any)
	for _, key := range settingKeys {
		if v, ok := lookupSet(env, envName(key)); ok {
			values[key] = v
		}
	}
	return namedLayer{name: "env", values: values}
}

// LegacyEnvLayer reads deprecated variables into their replacement's key and
// logs one warning per variable found.
func LegacyEnvLayer(env Environment, logger *slog.Logger) Layer {
	values := make(map[string]any)

	legacy := make([]LegacyVariable, len(LegacyVariables))
	copy(legacy, LegacyVariables)
	sort.Slice(legacy, func(i, j int) bool { return legacy[i].Legacy < legacy[j].Legacy })

	for _, lv := range legacy {
		v, ok := lookupSet(env, lv.Legacy)
		if !ok {
			continue
		}
		logger.Warn(
			fmt.Sprintf("Environment variable %s is deprecated; use %s instead", lv.Legacy, lv.Current),
			"legacy", lv.Legacy,
			"replacement", lv.Current,
		)
		values[lv.Key] = v
	}
	return namedLayer{name: "legacy env", values: values}
}
