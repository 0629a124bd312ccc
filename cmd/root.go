package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/templaudit/internal/config"
	"github.com/conneroisu/templaudit/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "templaudit",
	Short: "Accessibility checks for templ components",
	Long: `templaudit renders a templ component in isolation, wraps the markup in a
document and audits it against WCAG rules.

Quick Start:
  templaudit check components/card.templ
  templaudit check components/card.templ --props '{"title":"Hello"}'
  templaudit check components/*.templ --output console --fail-on-violation
  templaudit watch components/card.templ

Context providers (routing, theming) are supplied automatically when the
component's project needs them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .templaudit.yml, can also use TEMPLAUDIT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("base-dir", "", "directory relative component paths resolve against")
	rootCmd.PersistentFlags().String("engine", config.EngineNative, "auditor engine (native, axe)")
	rootCmd.PersistentFlags().Bool("browser", false, "build documents in a headless browser")
}

// persistentBindings maps root flags to configuration keys.
var persistentBindings = map[string]string{
	"log-level": "logging.level",
	"base-dir":  "check.base_dir",
	"engine":    "audit.engine",
	"browser":   "document.browser",
}

// loadConfig builds the configuration for cmd. Flags override only when set
// on the command line, so config files and env vars keep their precedence
// over flag defaults.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	if err := config.LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	used, err := config.Setup(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if used != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", used)
	}

	if err := bindFlags(v, cmd.Flags(), persistentBindings); err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd.Flags(), bindings); err != nil {
		return nil, err
	}

	return config.Load(v)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, bindings map[string]string) error {
	for name, key := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: strings.ToLower(cfg.Logging.Format),
		Output: os.Stderr,
	}), nil
}
