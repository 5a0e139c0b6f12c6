package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	TrafficLog TrafficLogConfig `yaml:"traffic_log"`
	Events     EventsConfig     `yaml:"events"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggerConfig selects slog format, level and output.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// TracerConfig controls OpenTelemetry tracing.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout or noop
}

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	PerMinute int           `yaml:"per_minute"`
	Burst     int           `yaml:"burst"`
	IdleTTL   time.Duration `yaml:"idle_ttl"` // REST buckets unused this long are dropped
	// TrustClientHeader keys REST clients by X-Client-ID instead of remote
	// address. Enable only behind a proxy that sets the header.
	TrustClientHeader bool `yaml:"trust_client_header"`
}

// TrafficLogConfig enables the CBOR protocol traffic recorder.
type TrafficLogConfig struct {
	Path string `yaml:"path"` // empty disables recording
}

// EventsConfig sizes event delivery queues.
type EventsConfig struct {
	BufferSize       int `yaml:"buffer_size"`
	SignalBufferSize int `yaml:"signal_buffer_size"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
		RateLimit: RateLimitConfig{
			PerMinute: 600,
			Burst:     100,
			IdleTTL:   10 * time.Minute,
		},
		Events: EventsConfig{
			BufferSize:       64,
			SignalBufferSize: 64,
		},
	}
}

// Load reads a YAML file over the defaults and applies BTEMU_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BTEMU_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("BTEMU_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("BTEMU_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("BTEMU_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("BTEMU_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("BTEMU_TRAFFIC_LOG"); v != "" {
		cfg.TrafficLog.Path = v
	}
	if v := os.Getenv("BTEMU_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("BTEMU_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("BTEMU_RATE_TRUST_CLIENT_HEADER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RateLimit.TrustClientHeader = b
		}
	}
	if v := os.Getenv("BTEMU_EVENT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Events.BufferSize = n
		}
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.per_minute and rate_limit.burst must be positive")
	}
	if c.RateLimit.IdleTTL <= 0 {
		return fmt.Errorf("rate_limit.idle_ttl must be positive")
	}
	if c.Events.BufferSize <= 0 || c.Events.SignalBufferSize <= 0 {
		return fmt.Errorf("events buffer sizes must be positive")
	}
	switch c.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		return fmt.Errorf("tracer.exporter %q is not supported", c.Tracer.Exporter)
	}
	return nil
}
