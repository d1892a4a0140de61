package config

import "strings"

// Settings keys. Config files use them verbatim; environment variables are the
// upper-cased key behind EnvPrefix; CLI flags are the key with dashes.
const (
	KeyBatteryOverrides       = "battery_overrides"
	KeyConfig                 = "config"
	KeyDefaultBatteryStrategy = "default_battery_strategy"
	KeyEndpoint               = "endpoint"
	KeyHassDiscovery          = "hass_discovery"
	KeyHassDiscoveryPrefix    = "hass_discovery_prefix"
	KeyHassEntityIDPrefix     = "hass_entity_id_prefix"
	KeyInputUnitSystem        = "input_unit_system"
	KeyKafkaBrokers           = "kafka_brokers"
	KeyKafkaTopic             = "kafka_topic"
	KeyLogFormat              = "log_format"
	KeyMQTTBroker             = "mqtt_broker"
	KeyMQTTPassword           = "mqtt_password"
	KeyMQTTPort               = "mqtt_port"
	KeyMQTTTLS                = "mqtt_tls"
	KeyMQTTTopic              = "mqtt_topic"
	KeyMQTTUsername           = "mqtt_username"
	KeyOutputUnitSystem       = "output_unit_system"
	KeyPort                   = "port"
	KeyPrecision              = "precision"
	KeyRawData                = "raw_data"
	KeyShutdownTimeout        = "shutdown_timeout"
	KeyVerbose                = "verbose"
)

// EnvPrefix namespaces every current environment variable.
const EnvPrefix = "ECOWITT2MQTT_"

// Current environment variable names that tests and docs refer to directly.
const (
	EnvBatteryOverride        = EnvPrefix + "BATTERY_OVERRIDE"
	EnvConfig                 = EnvPrefix + "CONFIG"
	EnvDefaultBatteryStrategy = EnvPrefix + "DEFAULT_BATTERY_STRATEGY"
	EnvEndpoint               = EnvPrefix + "ENDPOINT"
	EnvHassDiscovery          = EnvPrefix + "HASS_DISCOVERY"
	EnvHassDiscoveryPrefix    = EnvPrefix + "HASS_DISCOVERY_PREFIX"
	EnvHassEntityIDPrefix     = EnvPrefix + "HASS_ENTITY_ID_PREFIX"
	EnvInputUnitSystem        = EnvPrefix + "INPUT_UNIT_SYSTEM"
	EnvMQTTBroker             = EnvPrefix + "MQTT_BROKER"
	EnvMQTTPassword           = EnvPrefix + "MQTT_PASSWORD"
	EnvMQTTPort               = EnvPrefix + "MQTT_PORT"
	EnvMQTTTopic              = EnvPrefix + "MQTT_TOPIC"
	EnvMQTTUsername           = EnvPrefix + "MQTT_USERNAME"
	EnvOutputUnitSystem       = EnvPrefix + "OUTPUT_UNIT_SYSTEM"
	EnvPort                   = EnvPrefix + "PORT"
	EnvRawData                = EnvPrefix + "RAW_DATA"
	EnvVerbose                = EnvPrefix + "VERBOSE"
)

// settingKeys lists every key a layer may supply.
var settingKeys = []string{
	KeyBatteryOverrides,
	KeyConfig,
	KeyDefaultBatteryStrategy,
	KeyEndpoint,
	KeyHassDiscovery,
	KeyHassDiscoveryPrefix,
	KeyHassEntityIDPrefix,
	KeyInputUnitSystem,
	KeyKafkaBrokers,
	KeyKafkaTopic,
	KeyLogFormat,
	KeyMQTTBroker,
	KeyMQTTPassword,
	KeyMQTTPort,
	KeyMQTTTLS,
	KeyMQTTTopic,
	KeyMQTTUsername,
	KeyOutputUnitSystem,
	KeyPort,
	KeyPrecision,
	KeyRawData,
	KeyShutdownTimeout,
	KeyVerbose,
}

// LegacyVariable pairs a deprecated environment variable with its replacement.
type LegacyVariable struct {
	Legacy  string
	Current string
	Key     string
}

// LegacyVariables is every deprecated variable still honored.
var LegacyVariables = []LegacyVariable{
	{Legacy: "ENDPOINT", Current: EnvEndpoint, Key: KeyEndpoint},
	{Legacy: "HASS_DISCOVERY", Current: EnvHassDiscovery, Key: KeyHassDiscovery},
	{Legacy: "HASS_DISCOVERY_PREFIX", Current: EnvHassDiscoveryPrefix, Key: KeyHassDiscoveryPrefix},
	{Legacy: "HASS_ENTITY_ID_PREFIX", Current: EnvHassEntityIDPrefix, Key: KeyHassEntityIDPrefix},
	{Legacy: "INPUT_UNIT_SYSTEM", Current: EnvInputUnitSystem, Key: KeyInputUnitSystem},
	{Legacy: "LOG_LEVEL", Current: EnvVerbose, Key: KeyVerbose},
	{Legacy: "MQTT_BROKER", Current: EnvMQTTBroker, Key: KeyMQTTBroker},
	{Legacy: "MQTT_PASSWORD", Current: EnvMQTTPassword, Key: KeyMQTTPassword},
	{Legacy: "MQTT_PORT", Current: EnvMQTTPort, Key: KeyMQTTPort},
	{Legacy: "MQTT_TOPIC", Current: EnvMQTTTopic, Key: KeyMQTTTopic},
	{Legacy: "MQTT_USERNAME", Current: EnvMQTTUsername, Key: KeyMQTTUsername},
	{Legacy: "OUTPUT_UNIT_SYSTEM", Current: EnvOutputUnitSystem, Key: KeyOutputUnitSystem},
	{Legacy: "PORT", Current: EnvPort, Key: KeyPort},
	{Legacy: "RAW_DATA", Current: EnvRawData, Key: KeyRawData},
}

// envName maps a settings key to its current environment variable.
func envName(key string) string {
	if key == KeyBatteryOverrides {
		return EnvBatteryOverride
	}
	return EnvPrefix + strings.ToUpper(key)
}

// flagName maps a settings key to its CLI flag.
func flagName(key string) string {
	if key == KeyBatteryOverrides {
		return "battery-override"
	}
	return strings.ReplaceAll(key, "_", "-")
}
