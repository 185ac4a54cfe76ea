package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/xmok/rednote-signer/pkg/models"
)

func NewConfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage rednote-signer configuration",
		Long:  `Initialize, inspect and edit the rednote-signer configuration file.`,
	}
	cmd.AddCommand(newConfigureInitCommand())
	cmd.AddCommand(newConfigureShowCommand())
	cmd.AddCommand(newConfigureGetCommand())
	cmd.AddCommand(newConfigureSetCommand())
	return cmd
}

func newConfigureInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Long:  `Write the default configuration as YAML (or JSON for a .json path).`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigureInit,
	}
	cmd.Flags().BoolP("force", "f", false, "overwrite an existing file without asking")
	return cmd
}

func newConfigureShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  `Show the configuration after merging defaults, the config file, REDNOTE_SIGNER_* variables and flags.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigureShow,
	}
}

func newConfigureGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get one configuration value",
		Long:  `Get one effective configuration value by dotted key, e.g. "batch.workers".`,
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigureGet,
	}
}

func newConfigureSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the configuration file",
		Long: `Set a value in the configuration file by dotted key (e.g. "signer.app_id").
Values are typed the same way YAML would type them; durations are accepted
for keys containing timeout or age ("30s", "10m").`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigureSet,
	}
}

func defaultConfigPath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	home, err := ConfigHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

func runConfigureInit(cmd *cobra.Command, args []string) error {
	path, err := defaultConfigPath()
	if err != nil {
		return err
	}
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		path = strings.TrimSpace(args[0])
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		logrus.Warnf("Configuration file already exists: %s", path)
		ok, ierr := confirmOverwrite()
		if ierr != nil {
			return ierr
		}
		if !ok {
			logrus.Info("Configuration initialization cancelled")
			return nil
		}
	}

	if err := models.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	logrus.Infof("Configuration initialized: %s", path)
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	cfg, err := LoadAppConfig()
	if err != nil {
		return err
	}
	format := cfg.Global.Output
	if format == "text" {
		format = "yaml"
	}
	return writeOutput(os.Stdout, format, cfg)
}

func runConfigureGet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	val := viper.Get(key)
	if val == nil {
		fmt.Printf("%s = <nil>\n", key)
		return nil
	}
	fmt.Printf("%s = %v\n", key, val)
	return nil
}

func runConfigureSet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	path, err := defaultConfigPath()
	if err != nil {
		return err
	}

	doc, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	val := parseValueForKey(key, args[1])
	setNested(doc, strings.Split(key, "."), val)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	cfg := models.DefaultConfig()
	if err := yaml.Unmarshal(out, cfg); err != nil {
		return fmt.Errorf("value does not fit %s: %w", key, err)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	logrus.Infof("Set %s = %v in %s", key, val, path)
	return nil
}

func loadConfigFile(path string) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc, nil
}

func setNested(dst map[string]interface{}, keys []string, val interface{}) {
	if len(keys) == 0 {
		return
	}
	if len(keys) == 1 {
		dst[keys[0]] = val
		return
	}
	k := keys[0]
	child, ok := dst[k].(map[string]interface{})
	if !ok {
		child = map[string]interface{}{}
	}
	setNested(child, keys[1:], val)
	dst[k] = child
}

func parseValueForKey(key, s string) interface{} {
	trim := strings.TrimSpace(s)

	if i, err := strconv.ParseInt(trim, 10, 64); err == nil {
		return i
	}
	if b, err := strconv.ParseBool(trim); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(trim, 64); err == nil {
		return f
	}
	lower := strings.ToLower(key)
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "age") {
		if d, err := time.ParseDuration(trim); err == nil {
			return d.String()
		}
	}
	return trim
}

func confirmOverwrite() (bool, error) {
	fmt.Print("Configuration file already exists. Overwrite? (y/N): ")
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	resp = strings.TrimSpace(resp)
	return resp == "y" || resp == "Y", nil
}
