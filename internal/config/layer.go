package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Layer is one source of settings. Get reports whether the layer has a value
// for the settings key; values keep the shape the source produced them in
// (strings from the environment, typed values from files and flags).
type Layer interface {
	Name() string
	Get(key string) (any, bool)
}

// MapLayer is a Layer backed by a plain map. Tests use it to stand in for any source.
type MapLayer map[string]any

// Name implements Layer.
func (MapLayer) Name() string { return "map" }

// Get implements Layer.
func (m MapLayer) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

type namedLayer struct {
	name   string
	values map[string]any
}

func (l namedLayer) Name() string { return l.name }

func (l namedLayer) Get(key string) (any, bool) {
	v, ok := l.values[key]
	return v, ok
}

// Resolve folds layers in ascending precedence: a key present in a later layer
// replaces the value from every earlier one. Keys absent everywhere are absent
// from the result.
func Resolve(keys []string, layers ...Layer) map[string]any {
	out := make(map[string]any, len(keys))
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		for _, k := range keys {
			if v, ok := layer.Get(k); ok {
				out[k] = v
			}
		}
	}
	return out
}

// Environment is the process-environment capability config reads from.
type Environment interface {
	LookupEnv(key string) (string, bool)
}

// MapEnv is an in-memory Environment.
type MapEnv map[string]string

// LookupEnv implements Environment.
func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

type osEnv struct {
	dotenv map[string]string
}

func (e osEnv) LookupEnv(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok
}

// OSEnvironment binds Environment to the real process environment, with values
// from a dotenv file filling in variables the process does not set. An empty
// path reads ./.env when it exists; an explicit path must exist.
func OSEnvironment(dotenvPath string) (Environment, error) {
	path := dotenvPath
	if path == "" {
		path = ".env"
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if dotenvPath == "" && errors.Is(err, fs.ErrNotExist) {
			return osEnv{}, nil
		}
		return nil, errorf(err, "Unable to read env file %s", path)
	}
	return osEnv{dotenv: values}, nil
}

// lookupSet returns an environment value only when it is non-empty.
func lookupSet(env Environment, key string) (string, bool) {
	v, ok := env.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func describeLayer(l Layer) string {
	if l == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s layer", l.Name())
}
