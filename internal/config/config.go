// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/acpipe/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `acpipe:` root key in YAML.
type GlobalConfig struct {
	Channel  ChannelConfig  `mapstructure:"channel" yaml:"channel"`
	Protocol ProtocolConfig `mapstructure:"protocol" yaml:"protocol"`
	Sinks    SinksConfig    `mapstructure:"sinks" yaml:"sinks"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	PIDFile  string         `mapstructure:"pid_file" yaml:"pid_file"`
}

// ─── Channel ───

// ChannelConfig configures the local report channel.
type ChannelConfig struct {
	Socket               string `mapstructure:"socket" yaml:"socket"`
	MaxPeers             int    `mapstructure:"max_peers" yaml:"max_peers"`
	ReadTimeout          string `mapstructure:"read_timeout" yaml:"read_timeout"` // "" or "0" = no timeout
	MaxConsecutiveErrors int    `mapstructure:"max_consecutive_errors" yaml:"max_consecutive_errors"`
}

// ReadTimeoutDuration returns the parsed read timeout. Call after
// ValidateAndApplyDefaults.
func (c ChannelConfig) ReadTimeoutDuration() time.Duration {
	d, _ := parseOptionalDuration(c.ReadTimeout)
	return d
}

// ─── Protocol ───

// ProtocolConfig holds the build-time contract shared with the peer.
type ProtocolConfig struct {
	ByteOrder string `mapstructure:"byte_order" yaml:"byte_order"` // little / big
}

// ─── Sinks ───

// SinksConfig configures consumers of decoded reports. The log sink is
// always active.
type SinksConfig struct {
	Kafka KafkaSinkConfig `mapstructure:"kafka" yaml:"kafka"`
}

// KafkaSinkConfig configures publishing decoded reports to Kafka.
type KafkaSinkConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string `mapstructure:"brokers" yaml:"brokers"`
	Topic        string   `mapstructure:"topic" yaml:"topic"`
	BatchSize    int      `mapstructure:"batch_size" yaml:"batch_size"`
	BatchTimeout string   `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	Compression  string   `mapstructure:"compression" yaml:"compression"` // none|gzip|snappy|lz4
	MaxAttempts  int      `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level" yaml:"level"`   // debug / info / warn / error
	Format     string           `mapstructure:"format" yaml:"format"` // json / text / pattern
	Pattern    string           `mapstructure:"pattern" yaml:"pattern"`
	TimeFormat string           `mapstructure:"time_format" yaml:"time_format"`
	Outputs    LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `acpipe: ...`.
type configRoot struct {
	ACPipe GlobalConfig `mapstructure:"acpipe"`
}

// Load loads configuration from file.
// Env vars use the ACPIPE_ prefix (e.g., ACPIPE_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

// Default returns the configuration used when no file is given. Env
// overrides still apply.
func Default() (*GlobalConfig, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*GlobalConfig, error) {
	// Key "acpipe.log.level" maps to env "ACPIPE_LOG_LEVEL".
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.ACPipe

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "acpipe." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("acpipe.pid_file", "/var/run/acpipe.pid")

	// Channel defaults
	v.SetDefault("acpipe.channel.socket", "/var/run/acpipe.sock")
	v.SetDefault("acpipe.channel.max_peers", 1)
	v.SetDefault("acpipe.channel.read_timeout", "")
	v.SetDefault("acpipe.channel.max_consecutive_errors", 8)

	// Protocol defaults
	v.SetDefault("acpipe.protocol.byte_order", "little")

	// Log defaults
	v.SetDefault("acpipe.log.level", "info")
	v.SetDefault("acpipe.log.format", "json")
	v.SetDefault("acpipe.log.pattern", "%time [%level] %msg %field\n")
	v.SetDefault("acpipe.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("acpipe.log.outputs.file.enabled", false)
	v.SetDefault("acpipe.log.outputs.file.path", "/var/log/acpipe/acpipe.log")
	v.SetDefault("acpipe.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("acpipe.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("acpipe.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("acpipe.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("acpipe.metrics.enabled", false)
	v.SetDefault("acpipe.metrics.listen", "127.0.0.1:9095")
	v.SetDefault("acpipe.metrics.path", "/metrics")

	// Kafka sink defaults
	v.SetDefault("acpipe.sinks.kafka.enabled", false)
	v.SetDefault("acpipe.sinks.kafka.topic", "acpipe-reports")
	v.SetDefault("acpipe.sinks.kafka.batch_size", 100)
	v.SetDefault("acpipe.sinks.kafka.batch_timeout", "100ms")
	v.SetDefault("acpipe.sinks.kafka.compression", "snappy")
	v.SetDefault("acpipe.sinks.kafka.max_attempts", 3)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "pattern":
	default:
		return fmt.Errorf("%w: invalid log format: %s (must be json/text/pattern)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Channel validation ──
	if cfg.Channel.Socket == "" {
		return fmt.Errorf("%w: channel.socket is required", core.ErrConfigInvalid)
	}
	if cfg.Channel.MaxPeers <= 0 {
		cfg.Channel.MaxPeers = 1
	}
	if cfg.Channel.MaxConsecutiveErrors <= 0 {
		cfg.Channel.MaxConsecutiveErrors = 8
	}
	if _, err := parseOptionalDuration(cfg.Channel.ReadTimeout); err != nil {
		return fmt.Errorf("%w: channel.read_timeout: %v", core.ErrConfigInvalid, err)
	}

	// ── Protocol validation ──
	switch strings.ToLower(cfg.Protocol.ByteOrder) {
	case "little", "big":
		cfg.Protocol.ByteOrder = strings.ToLower(cfg.Protocol.ByteOrder)
	default:
		return fmt.Errorf("%w: invalid protocol.byte_order: %s (must be little/big)", core.ErrConfigInvalid, cfg.Protocol.ByteOrder)
	}

	// ── Kafka sink validation ──
	if cfg.Sinks.Kafka.Enabled {
		if len(cfg.Sinks.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: sinks.kafka.brokers is required when sinks.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.Sinks.Kafka.Topic == "" {
			return fmt.Errorf("%w: sinks.kafka.topic is required when sinks.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if _, err := parseOptionalDuration(cfg.Sinks.Kafka.BatchTimeout); err != nil {
			return fmt.Errorf("%w: sinks.kafka.batch_timeout: %v", core.ErrConfigInvalid, err)
		}
	}

	return nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %s", s)
	}
	return d, nil
}
