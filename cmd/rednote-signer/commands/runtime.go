package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xmok/rednote-signer/internal/evasion/fingerprinting"
	"github.com/xmok/rednote-signer/internal/signing"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

// ConfigHome is the per-user config directory, overridable with REDNOTE_SIGNER_HOME.
func ConfigHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return utils.GetEnv("REDNOTE_SIGNER_HOME", filepath.Join(home, ".rednote-signer")), nil
}

// LoadAppConfig assembles the application config from viper (defaults, config
// file, REDNOTE_SIGNER_* environment and bound flags) and validates it.
func LoadAppConfig() (*models.Config, error) {
	cfg := models.DefaultConfig()

	cfg.Global.LogLevel = viper.GetString("global.log_level")
	cfg.Global.Debug = viper.GetBool("global.debug")
	cfg.Global.Output = strings.ToLower(viper.GetString("global.output"))

	cfg.Signer.AppID = viper.GetString("signer.app_id")
	cfg.Signer.UserAgent = viper.GetString("signer.user_agent")
	cfg.Signer.XSCommon = viper.GetBool("signer.xs_common")
	cfg.Signer.TraceIDs = viper.GetBool("signer.trace_ids")
	if viper.IsSet("signer.random_seed") {
		seed := viper.GetInt64("signer.random_seed")
		cfg.Signer.RandomSeed = &seed
	}

	cfg.Fingerprint.Referer = viper.GetString("fingerprint.referer")
	cfg.Fingerprint.DefaultLocation = viper.GetString("fingerprint.default_location")
	cfg.Fingerprint.SessionMaxAge = viper.GetDuration("fingerprint.session_max_age")

	cfg.Batch.Workers = viper.GetInt("batch.workers")
	cfg.Batch.RatePerSecond = viper.GetFloat64("batch.rate_per_second")
	cfg.Batch.Burst = viper.GetInt("batch.burst")
	cfg.Batch.Timeout = viper.GetDuration("batch.timeout")

	cfg.Metrics.Enabled = viper.GetBool("metrics.enabled")
	cfg.Metrics.Address = viper.GetString("metrics.address")
	cfg.Metrics.RuntimeMetrics = viper.GetBool("metrics.runtime_metrics")

	cfg.Logging.Format = viper.GetString("logging.format")
	cfg.Logging.File = viper.GetString("logging.file")
	cfg.Logging.MaxSize = viper.GetInt("logging.max_size")
	cfg.Logging.MaxBackups = viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAge = viper.GetInt("logging.max_age")
	cfg.Logging.Compress = viper.GetBool("logging.compress")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().String("app-id", "", "application id (defaults to signer.app_id)")
	cmd.Flags().String("ua", "", "user agent (defaults to signer.user_agent)")
	cmd.Flags().Int64("seed", 0, "pin the random seed for reproducible output")
	cmd.Flags().StringArray("cookie", nil, "cookies as name=value, repeatable or ';'-separated")
}

// applySignerFlags overlays the per-command signer flags onto cfg.
func applySignerFlags(cmd *cobra.Command, cfg *models.Config) error {
	if cmd.Flags().Changed("app-id") {
		cfg.Signer.AppID, _ = cmd.Flags().GetString("app-id")
	}
	if cmd.Flags().Changed("ua") {
		cfg.Signer.UserAgent, _ = cmd.Flags().GetString("ua")
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		cfg.Signer.RandomSeed = &seed
	}
	return cfg.Validate()
}

func cookiesFromFlags(cmd *cobra.Command) (map[string]string, error) {
	raw, _ := cmd.Flags().GetStringArray("cookie")
	cookies := make(map[string]string)
	for _, entry := range raw {
		parsed, err := utils.ParseKeyValueString(entry, ";")
		if err != nil {
			return nil, fmt.Errorf("invalid --cookie %q: %w", entry, err)
		}
		for k, v := range parsed {
			cookies[k] = v
		}
	}
	return cookies, nil
}

func parsePayload(s string) (map[string]interface{}, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var payload map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return payload, nil
}

func newSessionManager(cfg *models.Config, metrics *utils.MetricsCollector) *fingerprinting.SessionManager {
	return fingerprinting.NewSessionManager(
		cfg.CryptoConfig(),
		metrics,
		logrus.StandardLogger(),
		fingerprinting.WithLocation(cfg.Fingerprint.Referer, cfg.Fingerprint.DefaultLocation),
	)
}

func signerOptions(cfg *models.Config) signing.Options {
	return signing.Options{XSCommon: cfg.Signer.XSCommon, TraceIDs: cfg.Signer.TraceIDs}
}
