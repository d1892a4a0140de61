package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagEnvFile names the dotenv file flag. It selects an environment source
// rather than a setting, so it never reaches a layer.
const FlagEnvFile = "env-file"

// NewFlagSet registers every CLI flag. Defaults live in Config, not here, so an
// unset flag never masks a lower layer.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringP(flagName(KeyConfig), "c", "", "path to a JSON or YAML config file")
	fs.StringP(flagName(KeyEndpoint), "e", "", "relative path the gateway posts to (default /data/report)")
	fs.IntP(flagName(KeyPort), "p", 0, "port to listen on (default 8080)")
	fs.StringP(flagName(KeyMQTTBroker), "b", "", "MQTT broker hostname or IP address")
	fs.Int(flagName(KeyMQTTPort), 0, "MQTT broker port (default 1883)")
	fs.StringP(flagName(KeyMQTTUsername), "u", "", "MQTT broker username")
	fs.StringP(flagName(KeyMQTTPassword), "P", "", "MQTT broker password")
	fs.String(flagName(KeyMQTTTopic), "", "MQTT topic to publish to (default ecowitt2mqtt/<PASSKEY>)")
	fs.Bool(flagName(KeyMQTTTLS), false, "connect to the MQTT broker over TLS")
	fs.Bool(flagName(KeyHassDiscovery), false, "publish for Home Assistant MQTT discovery")
	fs.String(flagName(KeyHassDiscoveryPrefix), "", "Home Assistant discovery prefix (default homeassistant)")
	fs.String(flagName(KeyHassEntityIDPrefix), "", "prefix for Home Assistant entity IDs")
	fs.String(flagName(KeyInputUnitSystem), "", "unit system the gateway reports in: imperial or metric (default imperial)")
	fs.String(flagName(KeyOutputUnitSystem), "", "unit system to publish in: imperial or metric (default imperial)")
	fs.Bool(flagName(KeyRawData), false, "publish raw gateway values without calculations")
	fs.BoolP(flagName(KeyVerbose), "v", false, "enable debug logging")
	fs.StringArray(flagName(KeyBatteryOverrides), nil, "battery strategy for one sensor as KEY=STRATEGY (repeatable)")
	fs.String(flagName(KeyDefaultBatteryStrategy), "", "battery strategy for sensors without an override (default boolean)")
	fs.Int(flagName(KeyPrecision), -1, "decimal places to round published values to")
	fs.String(flagName(KeyKafkaBrokers), "", "comma-separated Kafka brokers; enables the Kafka sink")
	fs.String(flagName(KeyKafkaTopic), "", "Kafka topic for readings (default ecowitt-readings)")
	fs.Duration(flagName(KeyShutdownTimeout), 0, "graceful shutdown timeout (default 10s)")
	fs.String(flagName(KeyLogFormat), "", "log format: json or text (default json)")
	fs.String(FlagEnvFile, "", "dotenv file to read environment variables from (default .env)")

	return fs
}

// CLILayer exposes the flags the user actually passed.
func CLILayer(fs *pflag.FlagSet) Layer {
	values := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == FlagEnvFile {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if f.Name == flagName(KeyBatteryOverrides) {
			key = KeyBatteryOverrides
		}
		if v, ok := flagValue(fs, f); ok {
			values[key] = v
		}
	})
	return namedLayer{name: "cli", values: values}
}

func flagValue(fs *pflag.FlagSet, f *pflag.Flag) (any, bool) {
	var (
		v   any
		err error
	)
	switch f.Value.Type() {
	case "bool":
		v, err = fs.GetBool(f.Name)
	case "int":
		v, err = fs.GetInt(f.Name)
	case "duration":
		var d time.Duration
		d, err = fs.GetDuration(f.Name)
		v = d
	case "stringArray":
		v, err = fs.GetStringArray(f.Name)
	default:
		v = f.Value.String()
	}
	return v, err == nil
}
