package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Global      GlobalConfig      `yaml:"global" json:"global"`
	Signer      SignerConfig      `yaml:"signer" json:"signer"`
	Fingerprint FingerprintConfig `yaml:"fingerprint" json:"fingerprint"`
	Batch       BatchConfig       `yaml:"batch" json:"batch"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

type GlobalConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	Debug    bool   `yaml:"debug" json:"debug"`
	Output   string `yaml:"output" json:"output"`
}

type SignerConfig struct {
	AppID      string `yaml:"app_id" json:"app_id"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
	RandomSeed *int64 `yaml:"random_seed,omitempty" json:"random_seed,omitempty"`
	XSCommon   bool   `yaml:"xs_common" json:"xs_common"`
	TraceIDs   bool   `yaml:"trace_ids" json:"trace_ids"`
}

type FingerprintConfig struct {
	Referer         string        `yaml:"referer" json:"referer"`
	DefaultLocation string        `yaml:"default_location" json:"default_location"`
	SessionMaxAge   time.Duration `yaml:"session_max_age" json:"session_max_age"`
}

type BatchConfig struct {
	Workers       int           `yaml:"workers" json:"workers"`
	RatePerSecond float64       `yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int           `yaml:"burst" json:"burst"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Address        string `yaml:"address" json:"address"`
	RuntimeMetrics bool   `yaml:"runtime_metrics" json:"runtime_metrics"`
}

type LoggingConfig struct {
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

func DefaultConfig() *Config {
	crypto := DefaultCryptoConfig()
	return &Config{
		Global: GlobalConfig{
			LogLevel: "info",
			Debug:    false,
			Output:   "json",
		},
		Signer: SignerConfig{
			AppID:     crypto.DefaultAppID,
			UserAgent: crypto.PublicUserAgent,
			XSCommon:  true,
			TraceIDs:  true,
		},
		Fingerprint: FingerprintConfig{
			Referer:         "https://www.xiaohongshu.com/",
			DefaultLocation: "https://www.xiaohongshu.com/explore",
			SessionMaxAge:   30 * time.Minute,
		},
		Batch: BatchConfig{
			Workers:       4,
			RatePerSecond: 20,
			Burst:         5,
			Timeout:       5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled:        false,
			Address:        "127.0.0.1:9464",
			RuntimeMetrics: true,
		},
		Logging: LoggingConfig{
			Format:     "json",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		},
	}
}

// CryptoConfig derives the protocol constants for this application config.
func (c *Config) CryptoConfig() CryptoConfig {
	opts := []CryptoOption{}
	if c.Signer.AppID != "" {
		opts = append(opts, WithDefaultAppID(c.Signer.AppID))
	}
	if c.Signer.RandomSeed != nil {
		opts = append(opts, WithRandomSeed(*c.Signer.RandomSeed))
	}
	return DefaultCryptoConfig().With(opts...)
}

func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Global.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		errs = append(errs, "global.log_level must be one of trace|debug|info|warn|error|fatal|panic")
	}
	switch c.Global.Output {
	case "json", "yaml", "text":
	default:
		errs = append(errs, fmt.Sprintf("global.output %q is not supported", c.Global.Output))
	}

	if strings.TrimSpace(c.Signer.AppID) == "" {
		errs = append(errs, "signer.app_id must not be empty")
	}
	if strings.TrimSpace(c.Signer.UserAgent) == "" {
		errs = append(errs, "signer.user_agent must not be empty")
	}

	if c.Fingerprint.DefaultLocation == "" {
		errs = append(errs, "fingerprint.default_location must not be empty")
	}
	if c.Fingerprint.SessionMaxAge < 0 {
		errs = append(errs, "fingerprint.session_max_age must be >= 0")
	}

	if c.Batch.Workers <= 0 {
		errs = append(errs, "batch.workers must be > 0")
	}
	if c.Batch.RatePerSecond < 0 {
		errs = append(errs, "batch.rate_per_second must be >= 0")
	}
	if c.Batch.RatePerSecond > 0 && c.Batch.Burst <= 0 {
		errs = append(errs, "batch.burst must be > 0 when rate_per_second is set")
	}
	if c.Batch.Timeout <= 0 {
		errs = append(errs, "batch.timeout must be > 0")
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, "metrics.address must be set when metrics are enabled")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if err := c.CryptoConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomically write config: %w", err)
	}
	return nil
}

func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			if err2 := json.Unmarshal(data, c); err2 != nil {
				return fmt.Errorf("parse config (yaml/json): %v | %v", err, err2)
			}
		}
	}

	return c.Validate()
}
