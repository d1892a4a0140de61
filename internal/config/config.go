package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/pflag"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

// Defaults applied when no layer supplies a value.
const (
	DefaultEndpoint            = "/data/report"
	DefaultPort                = 8080
	DefaultMQTTPort            = 1883
	DefaultHassDiscoveryPrefix = "homeassistant"
	DefaultKafkaTopic          = "ecowitt-readings"
	DefaultShutdownTimeout     = 10 * time.Second
	DefaultLogFormat           = "json"
	defaultTopicPrefix         = "ecowitt2mqtt"

	// MaxPrecision is the most decimal places a float64 can carry meaningfully.
	MaxPrecision = 15
)

// Config is a resolved, validated snapshot of all runtime settings. It is never
// mutated after Build returns; reloading produces a new Config.
type Config struct {
	ConfigPath string

	Endpoint string
	Port     int

	MQTTBroker   string
	MQTTPort     int
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string
	MQTTTLS      bool

	HassDiscovery       bool
	HassDiscoveryPrefix string
	HassEntityIDPrefix  string

	InputUnitSystem  domain.UnitSystem
	OutputUnitSystem domain.UnitSystem

	DefaultBatteryStrategy domain.BatteryStrategy
	batteryOverrides       map[string]domain.BatteryStrategy

	RawData   bool
	Verbose   bool
	Precision int // negative disables rounding

	KafkaBrokers []string
	KafkaTopic   string

	ShutdownTimeout time.Duration
	LogFormat       string
}

// Error reports an invalid or incomplete configuration. It is fatal to startup.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(cause error, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Err: cause}
}

// Options feeds Load. A nil Env reads the process environment plus the dotenv
// file named by --env-file (or ./.env); a nil Logger discards warnings.
type Options struct {
	Args   []string
	Env    Environment
	Logger *slog.Logger
}

// Load parses CLI arguments and builds a Config from every layer. A -h/--help
// argument yields an error matching pflag.ErrHelp.
func Load(opts Options) (*Config, error) {
	fs := NewFlagSet("ecowitt2mqtt")
	if err := fs.Parse(opts.Args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errorf(err, "Invalid command line")
	}

	env := opts.Env
	if env == nil {
		envFile, _ := fs.GetString(FlagEnvFile)
		var err error
		if env, err = OSEnvironment(envFile); err != nil {
			return nil, err
		}
	}
	return Build(CLILayer(fs), env, opts.Logger)
}

// Build resolves settings from, in ascending precedence: the config file, legacy
// environment variables, current environment variables and cli. The config file
// path itself comes from cli or the environment.
func Build(cli Layer, env Environment, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if env == nil {
		env = MapEnv{}
	}

	path := configPath(cli, env)
	var file Layer
	if path != "" {
		var err error
		if file, err = FileLayer(path); err != nil {
			return nil, err
		}
	}

	layers := []Layer{file, LegacyEnvLayer(env, logger), EnvLayer(env), cli}

	overrides, err := resolveBatteryOverrides(layers)
	if err != nil {
		return nil, err
	}

	cfg, err := fromSettings(Resolve(settingKeys, layers...), overrides)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = path
	return cfg, nil
}

func configPath(cli Layer, env Environment) string {
	if cli != nil {
		if v, ok := cli.Get(KeyConfig); ok {
			if s, err := asString(v); err == nil && s != "" {
				return s
			}
		}
	}
	v, _ := lookupSet(env, EnvConfig)
	return v
}

// fromSettings applies defaults, coerces merged values and validates the result.
func fromSettings(settings map[string]any, overrides map[string]domain.BatteryStrategy) (*Config, error) {
	cfg := &Config{
		Endpoint:               DefaultEndpoint,
		Port:                   DefaultPort,
		MQTTPort:               DefaultMQTTPort,
		HassDiscoveryPrefix:    DefaultHassDiscoveryPrefix,
		InputUnitSystem:        domain.UnitSystemImperial,
		OutputUnitSystem:       domain.UnitSystemImperial,
		DefaultBatteryStrategy: domain.BatteryStrategyBoolean,
		batteryOverrides:       overrides,
		Precision:              -1,
		KafkaTopic:             DefaultKafkaTopic,
		ShutdownTimeout:        DefaultShutdownTimeout,
		LogFormat:              DefaultLogFormat,
	}
	if cfg.batteryOverrides == nil {
		cfg.batteryOverrides = map[string]domain.BatteryStrategy{}
	}

	d := decoder{settings: settings}
	d.string(KeyEndpoint, &cfg.Endpoint)
	d.int(KeyPort, &cfg.Port)
	d.string(KeyMQTTBroker, &cfg.MQTTBroker)
	d.int(KeyMQTTPort, &cfg.MQTTPort)
	d.string(KeyMQTTUsername, &cfg.MQTTUsername)
	d.string(KeyMQTTPassword, &cfg.MQTTPassword)
	d.string(KeyMQTTTopic, &cfg.MQTTTopic)
	d.bool(KeyMQTTTLS, &cfg.MQTTTLS)
	d.bool(KeyHassDiscovery, &cfg.HassDiscovery)
	d.string(KeyHassDiscoveryPrefix, &cfg.HassDiscoveryPrefix)
	d.string(KeyHassEntityIDPrefix, &cfg.HassEntityIDPrefix)
	d.unitSystem(KeyInputUnitSystem, &cfg.InputUnitSystem)
	d.unitSystem(KeyOutputUnitSystem, &cfg.OutputUnitSystem)
	d.batteryStrategy(KeyDefaultBatteryStrategy, &cfg.DefaultBatteryStrategy)
	d.bool(KeyRawData, &cfg.RawData)
	d.verbose(KeyVerbose, &cfg.Verbose)
	d.int(KeyPrecision, &cfg.Precision)
	d.brokers(KeyKafkaBrokers, &cfg.KafkaBrokers)
	d.string(KeyKafkaTopic, &cfg.KafkaTopic)
	d.duration(KeyShutdownTimeout, &cfg.ShutdownTimeout)
	d.string(KeyLogFormat, &cfg.LogFormat)
	if d.err != nil {
		return nil, d.err
	}

	if _, set := settings[KeyPrecision]; set && (cfg.Precision < 0 || cfg.Precision > MaxPrecision) {
		return nil, errorf(nil, "Invalid value for --precision: must be between 0 and %d, got %d", MaxPrecision, cfg.Precision)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.MQTTBroker) == "" {
		return errorf(nil, "Missing required option: --mqtt-broker")
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		c.Endpoint = "/" + c.Endpoint
	}
	if c.Port < 1 || c.Port > 65535 {
		return errorf(nil, "Invalid value for --port: %d is not a valid port", c.Port)
	}
	if c.MQTTPort < 1 || c.MQTTPort > 65535 {
		return errorf(nil, "Invalid value for --mqtt-port: %d is not a valid port", c.MQTTPort)
	}
	if c.ShutdownTimeout <= 0 {
		return errorf(nil, "Invalid value for --shutdown-timeout: must be positive")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errorf(nil, "Invalid value for --log-format: %q (want json or text)", c.LogFormat)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errorf(nil, "Missing required option: --kafka-topic")
	}
	return nil
}

// BatteryOverrides returns a copy of the per-sensor battery strategies.
func (c *Config) BatteryOverrides() map[string]domain.BatteryStrategy {
	return maps.Clone(c.batteryOverrides)
}

// BatteryStrategy returns the strategy for a battery sensor key.
func (c *Config) BatteryStrategy(key string) domain.BatteryStrategy {
	if s, ok := c.batteryOverrides[key]; ok {
		return s
	}
	return c.DefaultBatteryStrategy
}

// UnitSystems returns the unit system the gateway reports in and the one to publish in.
func (c *Config) UnitSystems() (input, output domain.UnitSystem) {
	return c.InputUnitSystem, c.OutputUnitSystem
}

// MQTTTopicFor returns the topic readings from a station are published on.
func (c *Config) MQTTTopicFor(station string) string {
	if c.MQTTTopic != "" {
		return c.MQTTTopic
	}
	return defaultTopicPrefix + "/" + station
}

// KafkaEnabled reports whether readings are also written to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// LogValue implements slog.LogValuer. Credentials are redacted.
func (c *Config) LogValue() slog.Value {
	password := ""
	if c.MQTTPassword != "" {
		password = "********"
	}
	return slog.GroupValue(
		slog.String("config_path", c.ConfigPath),
		slog.String("endpoint", c.Endpoint),
		slog.Int("port", c.Port),
		slog.String("mqtt_broker", c.MQTTBroker),
		slog.Int("mqtt_port", c.MQTTPort),
		slog.String("mqtt_username", c.MQTTUsername),
		slog.String("mqtt_password", password),
		slog.Bool("mqtt_tls", c.MQTTTLS),
		slog.String("input_unit_system", string(c.InputUnitSystem)),
		slog.String("output_unit_system", string(c.OutputUnitSystem)),
		slog.String("default_battery_strategy", string(c.DefaultBatteryStrategy)),
		slog.String("battery_overrides", formatBatteryOverrides(c.batteryOverrides)),
		slog.Bool("raw_data", c.RawData),
		slog.Int("precision", c.Precision),
		slog.Any("kafka_brokers", c.KafkaBrokers),
	)
}

// decoder coerces merged settings into typed fields, keeping the first error.
type decoder struct {
	settings map[string]any
	err      error
}

func (d *decoder) lookup(key string) (any, bool) {
	if d.err != nil {
		return nil, false
	}
	v, ok := d.settings[key]
	return v, ok && v != nil
}

func (d *decoder) fail(key string, err error) {
	d.err = errorf(err, "Invalid value for --%s", flagName(key))
}

func (d *decoder) string(key string, dst *string) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	s, err := asString(v)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = s
}

func (d *decoder) bool(key string, dst *bool) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	b, err := asBool(v)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = b
}

func (d *decoder) int(key string, dst *int) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	n, err := asInt(v)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = n
}

func (d *decoder) duration(key string, dst *time.Duration) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	dur, err := asDuration(v)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = dur
}

func (d *decoder) unitSystem(key string, dst *domain.UnitSystem) {
	var s string
	d.string(key, &s)
	if d.err != nil || s == "" {
		return
	}
	u, err := domain.ParseUnitSystem(s)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = u
}

func (d *decoder) batteryStrategy(key string, dst *domain.BatteryStrategy) {
	var s string
	d.string(key, &s)
	if d.err != nil || s == "" {
		return
	}
	bs, err := domain.ParseBatteryStrategy(s)
	if err != nil {
		d.fail(key, err)
		return
	}
	*dst = bs
}

// verbose accepts booleans and, for LOG_LEVEL compatibility, log level names.
func (d *decoder) verbose(key string, dst *bool) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	if s, isString := v.(string); isString {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "debug":
			*dst = true
			return
		case "info", "warn", "warning", "error", "critical":
			*dst = false
			return
		}
	}
	d.bool(key, dst)
}

func (d *decoder) brokers(key string, dst *[]string) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	switch val := v.(type) {
	case []string:
		*dst = val
	case []any:
		out := make([]string, 0, len(val))
		for _, b := range val {
			s, err := asString(b)
			if err != nil {
				d.fail(key, err)
				return
			}
			out = append(out, s)
		}
		*dst = out
	default:
		s, err := asString(v)
		if err != nil {
			d.fail(key, err)
			return
		}
		if strings.TrimSpace(s) == "" {
			*dst = nil
			return
		}
		*dst = sharedcfg.ParseBrokers(s)
	}
}
