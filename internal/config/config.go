// Package config loads the aggregator's configuration from a YAML file and
// overlays it with environment variables under the OBA_ prefix.
//
// Settings load in layers: built-in defaults, then a YAML file (read with
// gopkg.in/yaml.v3) that can set every field including the nested
// exchange list and backoff block, then environment variables that
// override the top-level, server and backoff scalars. Per-exchange fields
// come from the file only.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "OBA_"

// Duration wraps time.Duration so it unmarshals from YAML's convenient
// string form ("100ms", "1s") instead of a raw nanosecond integer, which
// is all yaml.v3 gives a bare time.Duration field.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the wrapped value as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Exchange is one producer's configuration.
type Exchange struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Depth    int      `yaml:"depth"`
	Interval Duration `yaml:"interval"`
	Sorted   bool     `yaml:"sort"`
}

// Backoff is the supervisor's retry schedule.
type Backoff struct {
	Retries int      `yaml:"retries"`
	Min     Duration `yaml:"min"`
	Max     Duration `yaml:"max"`
}

// Server is the gRPC server's bind configuration.
type Server struct {
	Port int `yaml:"port"`
}

// Config is the aggregator's full configuration.
type Config struct {
	Symbol              string     `yaml:"symbol"`
	MaxAggregatedLevels int        `yaml:"max_aggregated_levels"`
	ChannelSize         int        `yaml:"channel_size"`
	Exchanges           []Exchange `yaml:"exchanges"`
	Server              Server     `yaml:"server"`
	Backoff             Backoff    `yaml:"backoff"`
}

// Default returns a Config with reasonable values for every scalar field;
// the exchange list is left empty, so Default alone does not pass
// Validate. File and environment values layer on top of this.
func Default() Config {
	return Config{
		Symbol:              "ethbtc",
		MaxAggregatedLevels: 10,
		ChannelSize:         256,
		Server:              Server{Port: 50051},
		Backoff:             Backoff{Retries: 5, Min: Duration(100 * time.Millisecond), Max: Duration(10 * time.Second)},
	}
}

// Load reads path (if non-empty and present) as YAML on top of Default,
// then overlays environment variables under the OBA_ prefix, and finally
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// A missing file is not fatal: defaults plus environment may be
			// a complete configuration (e.g. in tests or containers).
		default:
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	applyEnvOverlay(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs basic startup sanity checks before any component is
// constructed, so a misconfigured deployment fails fast with a diagnostic
// instead of partway through bringing up producers.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("config: symbol must not be empty")
	}
	if c.MaxAggregatedLevels <= 0 {
		return fmt.Errorf("config: max_aggregated_levels must be positive, got %d", c.MaxAggregatedLevels)
	}
	if c.ChannelSize <= 0 {
		return fmt.Errorf("config: channel_size must be positive, got %d", c.ChannelSize)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is not a valid TCP port", c.Server.Port)
	}
	if c.Backoff.Retries < 0 {
		return fmt.Errorf("config: backoff.retries must be >= 0, got %d", c.Backoff.Retries)
	}
	if c.Backoff.Min.Duration() <= 0 || c.Backoff.Max.Duration() <= 0 {
		return fmt.Errorf("config: backoff.min and backoff.max must be positive")
	}
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("config: at least one exchange must be configured")
	}
	for _, ex := range c.Exchanges {
		if ex.Name == "" || ex.URL == "" {
			return fmt.Errorf("config: exchange entries require both name and url")
		}
		if ex.Depth <= 0 {
			return fmt.Errorf("config: exchange %q: depth must be positive", ex.Name)
		}
	}
	return nil
}

// applyEnvOverlay overrides scalar top-level fields from the environment.
// Per-exchange fields are not individually overridable from the
// environment (there is no stable way to name "the third exchange" in an
// env var); the exchange list is expected to come from the file.
func applyEnvOverlay(cfg *Config) {
	if v, ok := lookupEnv("SYMBOL"); ok {
		cfg.Symbol = v
	}
	if v, ok := lookupEnvInt("MAX_AGGREGATED_LEVELS"); ok {
		cfg.MaxAggregatedLevels = v
	}
	if v, ok := lookupEnvInt("CHANNEL_SIZE"); ok {
		cfg.ChannelSize = v
	}
	if v, ok := lookupEnvInt("SERVER_PORT"); ok {
		cfg.Server.Port = v
	}
	if v, ok := lookupEnvInt("BACKOFF_RETRIES"); ok {
		cfg.Backoff.Retries = v
	}
	if v, ok := lookupEnvDuration("BACKOFF_MIN"); ok {
		cfg.Backoff.Min = Duration(v)
	}
	if v, ok := lookupEnvDuration("BACKOFF_MAX"); ok {
		cfg.Backoff.Max = Duration(v)
	}
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func lookupEnvInt(name string) (int, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvDuration(name string) (time.Duration, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
