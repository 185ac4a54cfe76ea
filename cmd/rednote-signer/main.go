package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xmok/rednote-signer/cmd/rednote-signer/commands"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

var (
	version   = "0.1.0"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "rednote-signer",
	Short:         "rednote-signer - request signing for the xiaohongshu web API",
	Long:          "rednote-signer builds the x-s, x-t, x-s-common and trace headers the xiaohongshu web client attaches to API calls, together with the browser fingerprint behind them.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := initLogging(); err != nil {
			return err
		}
		if !viper.GetBool("quiet") {
			printBanner()
		}
		return nil
	},
}

var appLogger *utils.Logger

func Execute() int {
	err := rootCmd.Execute()
	if appLogger != nil {
		_ = appLogger.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.rednote-signer/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet mode (no banner output)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path")
	rootCmd.PersistentFlags().StringP("output", "o", "json", "output format (json, yaml, text)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("global.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("global.output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(commands.NewSignCommand())
	rootCmd.AddCommand(commands.NewPayloadCommand())
	rootCmd.AddCommand(commands.NewFingerprintCommand())
	rootCmd.AddCommand(commands.NewBatchCommand())
	rootCmd.AddCommand(commands.NewConfigureCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, buildDate))

	rootCmd.InitDefaultCompletionCmd()
	installConsolidatedHelp(rootCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("rednote-signer %s (commit %s, built %s)\n", version, commit, buildDate))
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed reading .env file: %v", err)
	}

	setDefaults()
	viper.SetEnvPrefix("REDNOTE_SIGNER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := commands.ConfigHome()
		if err != nil {
			return err
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/rednote-signer/")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Warnf("Failed reading config file: %v", err)
		}
	} else {
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
	return nil
}

func setDefaults() {
	d := models.DefaultConfig()
	viper.SetDefault("quiet", false)

	viper.SetDefault("global.log_level", d.Global.LogLevel)
	viper.SetDefault("global.debug", d.Global.Debug)
	viper.SetDefault("global.output", d.Global.Output)

	viper.SetDefault("signer.app_id", d.Signer.AppID)
	viper.SetDefault("signer.user_agent", d.Signer.UserAgent)
	viper.SetDefault("signer.xs_common", d.Signer.XSCommon)
	viper.SetDefault("signer.trace_ids", d.Signer.TraceIDs)

	viper.SetDefault("fingerprint.referer", d.Fingerprint.Referer)
	viper.SetDefault("fingerprint.default_location", d.Fingerprint.DefaultLocation)
	viper.SetDefault("fingerprint.session_max_age", d.Fingerprint.SessionMaxAge)

	viper.SetDefault("batch.workers", d.Batch.Workers)
	viper.SetDefault("batch.rate_per_second", d.Batch.RatePerSecond)
	viper.SetDefault("batch.burst", d.Batch.Burst)
	viper.SetDefault("batch.timeout", d.Batch.Timeout)

	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
	viper.SetDefault("metrics.address", d.Metrics.Address)
	viper.SetDefault("metrics.runtime_metrics", d.Metrics.RuntimeMetrics)

	viper.SetDefault("logging.format", d.Logging.Format)
	viper.SetDefault("logging.max_size", d.Logging.MaxSize)
	viper.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	viper.SetDefault("logging.max_age", d.Logging.MaxAge)
	viper.SetDefault("logging.compress", d.Logging.Compress)
}

func initLogging() error {
	cfg, err := commands.LoadAppConfig()
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(utils.LogConfigFrom(cfg.Global.LogLevel, cfg.Logging), version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize structured logger, falling back: %v\n", err)
		basic := utils.BasicLogger()
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(basic.Level)
		logrus.SetFormatter(basic.Formatter)
		return nil
	}
	logger.Install()
	appLogger = logger
	return nil
}

func printBanner() {
	const banner = `
  ┬─┐┌─┐┌┬┐┌┐┌┌─┐┌┬┐┌─┐   ┌─┐┬┌─┐┌┐┌┌─┐┬─┐
  ├┬┘├┤  │││││ │ │ ├┤ ───└─┐││ ┬│││├┤ ├┬┘
  ┴└─└─┘─┴┘┘└┘└─┘ ┴ └─┘   └─┘┴└─┘┘└┘└─┘┴└─  %s
`
	fmt.Fprintf(os.Stderr, banner, version)
	fmt.Fprintf(os.Stderr, "Build: %s (%s) | %s/%s\n\n", commit, buildDate, runtime.GOOS, runtime.GOARCH)
}

func installConsolidatedHelp(root *cobra.Command) {
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		if !viper.GetBool("quiet") {
			printBanner()
		}

		fmt.Println("USAGE:")
		fmt.Println("  rednote-signer [command] [global flags]")
		fmt.Println()
		fmt.Println("GLOBAL FLAGS:")
		home, _ := os.UserHomeDir()
		fmt.Printf("  -c, --config string      config file (default is %s)\n", filepath.Join(home, ".rednote-signer", "config.yaml"))
		fmt.Printf("  -q, --quiet              quiet mode (no banner output)\n")
		fmt.Printf("  -l, --log-level string   log level (debug, info, warn, error, fatal) (default %q)\n", viper.GetString("global.log_level"))
		fmt.Printf("      --log-format string  log format (text, json) (default %q)\n", viper.GetString("logging.format"))
		fmt.Printf("      --log-file string    log file path\n")
		fmt.Printf("  -o, --output string      output format (json, yaml, text) (default %q)\n", viper.GetString("global.output"))
		fmt.Printf("  -v, --version            version for rednote-signer\n\n")

		cmds := []*cobra.Command{}
		for _, c := range root.Commands() {
			if c.IsAvailableCommand() && !c.Hidden {
				cmds = append(cmds, c)
			}
		}
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
		fmt.Println("COMMANDS:")
		for _, c := range cmds {
			fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
		}
		fmt.Println()
		fmt.Println("Use \"rednote-signer [command] --help\" for focused help on any command.")
	})
}

func main() {
	code := 0
	elapsed := utils.MeasureExecutionTime(func() { code = Execute() })
	if strings.EqualFold(viper.GetString("global.log_level"), "debug") {
		fmt.Fprintf(os.Stderr, "Execution completed in %v\n", elapsed)
	}
	os.Exit(code)
}
