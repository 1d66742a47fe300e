// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/satrx/internal/core"
)

// EnvPrefix is the environment prefix derived from the `satrx:` root key.
const EnvPrefix = "SATRX"

// Config represents the top-level static configuration.
// Maps to the `satrx:` root key in YAML.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Receiver  ReceiverConfig  `mapstructure:"receiver" yaml:"receiver"`
	Source    SourceConfig    `mapstructure:"source" yaml:"source"`
	Assembler AssemblerConfig `mapstructure:"assembler" yaml:"assembler"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"`     // trace / debug / info / warn / error
	Format  string           `mapstructure:"format" yaml:"format"`   // json / text / pattern
	Pattern string           `mapstructure:"pattern" yaml:"pattern"` // used by format=pattern
	Time    string           `mapstructure:"time" yaml:"time"`       // Go time layout for pattern output
	File    FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures rotating file log output.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Receiver ───

// ReceiverConfig tunes the chunk receiver.
type ReceiverConfig struct {
	BaseOffset int    `mapstructure:"base_offset" yaml:"base_offset"` // Rebasing origin before the first image-start chunk
	IDPrefix   string `mapstructure:"id_prefix" yaml:"id_prefix"`
}

// ─── Source ───

// SourceConfig selects the frame source. Options are decoded by the source itself.
type SourceConfig struct {
	Type    string         `mapstructure:"type" yaml:"type"` // pcap | hex | udp
	Options map[string]any `mapstructure:"options" yaml:"options"`
}

// ─── Assembly & output ───

// AssemblerConfig configures image reassembly.
type AssemblerConfig struct {
	MaxImageSize int  `mapstructure:"max_image_size" yaml:"max_image_size"`
	KeepPartial  bool `mapstructure:"keep_partial" yaml:"keep_partial"` // Keep images that never saw an end chunk
}

// OutputConfig configures where reconstructed images are written.
type OutputConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	Extension string `mapstructure:"extension" yaml:"extension"`
}

// PipelineConfig configures the processing pipeline.
type PipelineConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `satrx: ...`.
type configRoot struct {
	Satrx Config `mapstructure:"satrx" yaml:"satrx"`
}

// SourceTypes lists the accepted source.type values.
var SourceTypes = []string{"pcap", "hex", "udp"}

// Load loads configuration from file. An empty path yields defaults plus
// environment overrides (e.g. SATRX_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Key "satrx.log.level" maps to env "SATRX_LOG_LEVEL" via the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Satrx

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "satrx." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("satrx.log.level", "info")
	v.SetDefault("satrx.log.format", "text")
	v.SetDefault("satrx.log.pattern", "%time [%level] %field %msg\n")
	v.SetDefault("satrx.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("satrx.log.file.enabled", false)
	v.SetDefault("satrx.log.file.path", "/var/log/satrx/satrx.log")
	v.SetDefault("satrx.log.file.max_size_mb", 100)
	v.SetDefault("satrx.log.file.max_age_days", 30)
	v.SetDefault("satrx.log.file.max_backups", 5)
	v.SetDefault("satrx.log.file.compress", true)

	// Metrics defaults
	v.SetDefault("satrx.metrics.enabled", false)
	v.SetDefault("satrx.metrics.listen", ":9108")
	v.SetDefault("satrx.metrics.path", "/metrics")

	// Receiver defaults
	v.SetDefault("satrx.receiver.base_offset", int(core.DefaultBaseOffset))
	v.SetDefault("satrx.receiver.id_prefix", "GEOSCAN")

	// Source defaults
	v.SetDefault("satrx.source.type", "hex")

	// Assembly defaults
	v.SetDefault("satrx.assembler.max_image_size", DefaultMaxImageSize)
	v.SetDefault("satrx.assembler.keep_partial", true)
	v.SetDefault("satrx.output.dir", "images")
	v.SetDefault("satrx.output.extension", ".jpg")

	v.SetDefault("satrx.pipeline.buffer_size", 1024)
}

// DefaultMaxImageSize covers the largest placement a 16-bit offset plus one payload can reach.
const DefaultMaxImageSize = 0x10000 + core.MaxPayloadLen

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: log level %q (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "pattern":
	default:
		return fmt.Errorf("%w: log format %q (must be json/text/pattern)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Receiver ──
	if cfg.Receiver.BaseOffset < 0 || cfg.Receiver.BaseOffset > 0xFFFF {
		return fmt.Errorf("%w: receiver.base_offset %d out of 16-bit range", core.ErrConfigInvalid, cfg.Receiver.BaseOffset)
	}

	// ── Source ──
	cfg.Source.Type = strings.ToLower(cfg.Source.Type)
	known := false
	for _, t := range SourceTypes {
		if cfg.Source.Type == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: source.type %q (must be one of %s)", core.ErrConfigInvalid,
			cfg.Source.Type, strings.Join(SourceTypes, "/"))
	}
	if cfg.Source.Options == nil {
		cfg.Source.Options = map[string]any{}
	}

	// ── Assembly ──
	if cfg.Assembler.MaxImageSize <= 0 {
		return fmt.Errorf("%w: assembler.max_image_size must be positive", core.ErrConfigInvalid)
	}
	if cfg.Output.Dir == "" {
		return fmt.Errorf("%w: output.dir is required", core.ErrConfigInvalid)
	}
	if cfg.Output.Extension != "" && !strings.HasPrefix(cfg.Output.Extension, ".") {
		cfg.Output.Extension = "." + cfg.Output.Extension
	}

	if cfg.Pipeline.BufferSize <= 0 {
		cfg.Pipeline.BufferSize = 1024
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}

// Dump renders the configuration as YAML under the `satrx:` root key.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(configRoot{Satrx: *cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
