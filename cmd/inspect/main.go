// Command inspect runs captured gateway payloads through the calculators and
// prints the readings that would be published. It uses the same domain,
// config, and calculator packages as the service so the output matches real
// pipeline behavior.
//
// Usage:
//
//	go run ./cmd/inspect \
//	  -in data/mock/gateway_payloads.json \
//	  -output-unit-system metric \
//	  -out readings.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ecowitt2mqtt/internal/calculator"
	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
	"github.com/couchcryptid/ecowitt2mqtt/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", filepath.Join("data", "mock", "gateway_payloads.json"), "JSON array of captured gateway payloads")
	out := flag.String("out", "", "output path for calculated readings (default stdout)")
	input := flag.String("input-unit-system", "imperial", "unit system the gateway reports in")
	output := flag.String("output-unit-system", "imperial", "unit system to publish in")
	precision := flag.Int("precision", -1, "decimal places to round values to")
	raw := flag.Bool("raw-data", false, "skip calculations")
	flag.Parse()

	settings := config.MapLayer{
		config.KeyMQTTBroker:       "localhost",
		config.KeyInputUnitSystem:  *input,
		config.KeyOutputUnitSystem: *output,
		config.KeyRawData:          *raw,
	}
	if *precision >= 0 {
		settings[config.KeyPrecision] = *precision
	}
	cfg, err := config.Build(settings, config.MapEnv{}, nil)
	if err != nil {
		return err
	}
	store := config.NewStore(cfg)

	// Fixed clock for reproducible timestamps on payloads sent with dateutc=now.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 26, 15, 10, 30, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rows, err := readPayloads(*in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *in, err)
	}

	tfm := pipeline.NewTransformer(calculator.NewRegistry(store, nil), store)
	readings := make([]domain.Reading, 0, len(rows))
	for i, row := range rows {
		r, err := tfm.Transform(domain.ParsePayload(row))
		if err != nil {
			return fmt.Errorf("payload %d: %w", i, err)
		}
		readings = append(readings, r)
	}

	if err := writeJSON(*out, readings); err != nil {
		return fmt.Errorf("writing readings: %w", err)
	}
	printStats(readings)
	return nil
}

func readPayloads(path string) ([]url.Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []map[string]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	forms := make([]url.Values, 0, len(rows))
	for _, row := range rows {
		form := make(url.Values, len(row))
		for k, v := range row {
			form.Set(k, v)
		}
		forms = append(forms, form)
	}
	return forms, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// printStats logs how many data points each unit received and how many were empty.
func printStats(readings []domain.Reading) {
	unitCounts := map[string]int{}
	empty := 0
	for _, r := range readings {
		for _, p := range r.Data {
			if !p.Valid() {
				empty++
				continue
			}
			unit := p.Unit
			if unit == "" {
				unit = "(none)"
			}
			unitCounts[unit]++
		}
	}

	units := make([]string, 0, len(unitCounts))
	for u := range unitCounts {
		units = append(units, u)
	}
	sort.Strings(units)

	log.Printf("readings: %d", len(readings))
	for _, u := range units {
		log.Printf("  %-10s %d", u, unitCounts[u])
	}
	log.Printf("  %-10s %d", "empty", empty)
}
