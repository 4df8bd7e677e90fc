package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARKETSIM_"

// Config holds all simulator configuration.
type Config struct {
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8100" validate:"min=1,max=65535"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"5s" validate:"gt=0"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"log"`

	Simulation struct {
		// Seed 0 picks a random seed at start-up.
		Seed                 int64         `yaml:"seed"`
		Autostart            bool          `yaml:"autostart" default:"true"`
		TickInterval         time.Duration `yaml:"tick_interval" default:"3s" validate:"gt=0"`
		RegimeInterval       time.Duration `yaml:"regime_interval" default:"60s" validate:"gtfield=TickInterval"`
		ShockDecayMinPeriods int           `yaml:"shock_decay_min_periods" default:"2" validate:"min=1"`
		ShockDecayMaxPeriods int           `yaml:"shock_decay_max_periods" default:"5" validate:"gtefield=ShockDecayMinPeriods"`
		FlashRecoveryDelay   time.Duration `yaml:"flash_recovery_delay" default:"5s" validate:"gt=0"`
		FlashRestoreDelay    time.Duration `yaml:"flash_restore_delay" default:"20s" validate:"gt=0"`
		SectorBiasDecay      float64       `yaml:"sector_bias_decay" default:"0.85" validate:"min=0,max=1"`
		EventLogLimit        int           `yaml:"event_log_limit" validate:"min=0"`
		Selected             string        `yaml:"selected" default:"SAP.DE" validate:"required"`
	} `yaml:"simulation"`

	Stream struct {
		SendBuffer int `yaml:"send_buffer" default:"256" validate:"min=1"`
	} `yaml:"stream"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
	} `yaml:"metrics"`

	Kafka struct {
		Brokers      []string      `yaml:"brokers" validate:"dive,hostname_port"`
		QuoteTopic   string        `yaml:"quote_topic" default:"marketsim.quotes" validate:"required"`
		EventTopic   string        `yaml:"event_topic" default:"marketsim.regime" validate:"required"`
		QueueSize    int           `yaml:"queue_size" default:"1024" validate:"min=1"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"100ms" validate:"gt=0"`
		Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	} `yaml:"kafka"`

	// File is the YAML file the configuration was read from, if any.
	File string `yaml:"-"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// Load builds the configuration from, in increasing priority: struct
// defaults, the YAML file named by -config or MARKETSIM_CONFIG, MARKETSIM_*
// environment variables and command-line flags. A .env file in the working
// directory is loaded into the environment first when present.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	fs := newFlagSet(c)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })

	if c.File == "" {
		c.File = os.Getenv(EnvPrefix + "CONFIG")
	}
	if c.File != "" {
		if err := c.loadFile(c.File); err != nil {
			return nil, err
		}
	}

	// environment then flags, both through the flag parsers
	var overrideErr error
	fs.VisitAll(func(f *flag.Flag) {
		v, ok := os.LookupEnv(envName(f.Name))
		if !ok || overrideErr != nil {
			return
		}
		if err := fs.Set(f.Name, v); err != nil {
			overrideErr = fmt.Errorf("%w: %s: %w", ErrInvalid, envName(f.Name), err)
		}
	})
	if overrideErr != nil {
		return nil, overrideErr
	}
	for name, v := range explicit {
		if err := fs.Set(name, v); err != nil {
			return nil, fmt.Errorf("%w: -%s: %w", ErrInvalid, name, err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Failures wrap ErrInvalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// envName maps a flag name such as "tick-interval" to MARKETSIM_TICK_INTERVAL.
func envName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func newFlagSet(c *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("marketsim", flag.ContinueOnError)

	fs.StringVar(&c.File, "config", "", "YAML configuration file")

	fs.StringVar(&c.Server.Host, "host", c.Server.Host, "Listen host")
	fs.IntVar(&c.Server.Port, "port", c.Server.Port, "HTTP and WebSocket port")
	fs.DurationVar(&c.Server.ShutdownTimeout, "shutdown-timeout", c.Server.ShutdownTimeout, "Graceful shutdown timeout")

	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "Log format (json, console)")

	fs.Int64Var(&c.Simulation.Seed, "seed", c.Simulation.Seed, "PRNG seed (0 = random)")
	fs.BoolVar(&c.Simulation.Autostart, "autostart", c.Simulation.Autostart, "Start the simulation clock on boot")
	fs.DurationVar(&c.Simulation.TickInterval, "tick-interval", c.Simulation.TickInterval, "Price refresh period")
	fs.DurationVar(&c.Simulation.RegimeInterval, "regime-interval", c.Simulation.RegimeInterval, "Regime evaluation period")
	fs.IntVar(&c.Simulation.ShockDecayMinPeriods, "shock-decay-min", c.Simulation.ShockDecayMinPeriods, "Minimum regime periods before a shock decays")
	fs.IntVar(&c.Simulation.ShockDecayMaxPeriods, "shock-decay-max", c.Simulation.ShockDecayMaxPeriods, "Maximum regime periods before a shock decays")
	fs.DurationVar(&c.Simulation.FlashRecoveryDelay, "flash-recovery", c.Simulation.FlashRecoveryDelay, "Delay before a flash crash partially recovers")
	fs.DurationVar(&c.Simulation.FlashRestoreDelay, "flash-restore", c.Simulation.FlashRestoreDelay, "Delay after recovery before the prior trend returns")
	fs.Float64Var(&c.Simulation.SectorBiasDecay, "sector-bias-decay", c.Simulation.SectorBiasDecay, "Share of a rotation bias kept per tick")
	fs.IntVar(&c.Simulation.EventLogLimit, "event-log-limit", c.Simulation.EventLogLimit, "Regime event log cap (0 = unbounded)")
	fs.StringVar(&c.Simulation.Selected, "selected", c.Simulation.Selected, "Initially selected symbol")

	fs.IntVar(&c.Stream.SendBuffer, "send-buffer", c.Stream.SendBuffer, "Per-client send buffer size")

	fs.BoolVar(&c.Metrics.Enabled, "metrics", c.Metrics.Enabled, "Expose Prometheus metrics")
	fs.StringVar(&c.Metrics.Path, "metrics-path", c.Metrics.Path, "Prometheus metrics path")

	fs.Var((*stringList)(&c.Kafka.Brokers), "kafka-brokers", "Comma-separated Kafka brokers (empty = publishing disabled)")
	fs.StringVar(&c.Kafka.QuoteTopic, "kafka-quote-topic", c.Kafka.QuoteTopic, "Kafka topic for quotes")
	fs.StringVar(&c.Kafka.EventTopic, "kafka-event-topic", c.Kafka.EventTopic, "Kafka topic for regime events")
	fs.IntVar(&c.Kafka.QueueSize, "kafka-queue", c.Kafka.QueueSize, "Publish queue size")
	fs.DurationVar(&c.Kafka.BatchTimeout, "kafka-batch-timeout", c.Kafka.BatchTimeout, "Kafka writer batch timeout")
	fs.StringVar(&c.Kafka.Compression, "kafka-compression", c.Kafka.Compression, "Kafka compression (none, gzip, snappy, lz4, zstd)")

	return fs
}

// stringList is a comma-separated flag value. Setting it replaces the list.
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = nil
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}
