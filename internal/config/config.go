// Package config provides configuration management for templaudit using
// Viper for loading from files, environment variables and command-line
// flags.
//
// Values are read from .templaudit.yml (or the file named by
// TEMPLAUDIT_CONFIG_FILE), overridden by TEMPLAUDIT_<SECTION>_<OPTION>
// environment variables, and validated with go-playground/validator before
// use. A .env file next to the working directory is loaded first when
// present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults.
const (
	EnvPrefix       = "TEMPLAUDIT"
	ConfigName      = ".templaudit"
	EngineNative    = "native"
	EngineAxe       = "axe"
	OutputJSON      = "json"
	OutputConsole   = "console"
	DefaultParallel = 4
	DefaultTimeout  = 30 * time.Second
)

// Config is the complete tool configuration.
type Config struct {
	Check       CheckConfig       `mapstructure:"check" yaml:"check"`
	Audit       AuditConfig       `mapstructure:"audit" yaml:"audit"`
	Document    DocumentConfig    `mapstructure:"document" yaml:"document"`
	Environment EnvironmentConfig `mapstructure:"environment" yaml:"environment"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Harness     HarnessConfig     `mapstructure:"harness" yaml:"harness"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// CheckConfig controls how requests are resolved and batched.
type CheckConfig struct {
	// BaseDir is the directory relative component paths resolve against.
	// Empty means the process working directory.
	BaseDir  string `mapstructure:"base_dir" yaml:"base_dir" validate:"omitempty,dir"`
	Parallel int    `mapstructure:"parallel" yaml:"parallel" validate:"min=1,max=64"`
	Output   string `mapstructure:"output" yaml:"output" validate:"oneof=json console"`
}

// AuditConfig selects and bounds the auditor engine.
type AuditConfig struct {
	Engine    string        `mapstructure:"engine" yaml:"engine" validate:"oneof=native axe"`
	AxeScript string        `mapstructure:"axe_script" yaml:"axe_script"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// DocumentConfig controls the document skeleton and builder.
type DocumentConfig struct {
	Lang       string `mapstructure:"lang" yaml:"lang" validate:"required,bcp47_language_tag"`
	Title      string `mapstructure:"title" yaml:"title" validate:"required"`
	Visual     bool   `mapstructure:"visual" yaml:"visual"`
	Browser    bool   `mapstructure:"browser" yaml:"browser"`
	ChromePath string `mapstructure:"chrome_path" yaml:"chrome_path" validate:"omitempty,file"`
}

// EnvironmentConfig controls provider detection.
type EnvironmentConfig struct {
	Routing    bool     `mapstructure:"routing" yaml:"routing"`
	Theming    bool     `mapstructure:"theming" yaml:"theming"`
	ThemeFiles []string `mapstructure:"theme_files" yaml:"theme_files" validate:"dive,required"`
}

// CacheConfig sizes the module registry.
type CacheConfig struct {
	Size int `mapstructure:"size" yaml:"size" validate:"min=1"`
}

// HarnessConfig controls the render harness.
type HarnessConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir" validate:"required"`
	TemplGenerate bool   `mapstructure:"templ_generate" yaml:"templ_generate"`
	Keep          bool   `mapstructure:"keep" yaml:"keep"`
	GoBinary      string `mapstructure:"go_binary" yaml:"go_binary" validate:"required"`
	TemplBinary   string `mapstructure:"templ_binary" yaml:"templ_binary" validate:"required"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("check.base_dir", "")
	v.SetDefault("check.parallel", DefaultParallel)
	v.SetDefault("check.output", OutputJSON)

	v.SetDefault("audit.engine", EngineNative)
	v.SetDefault("audit.axe_script", "")
	v.SetDefault("audit.timeout", DefaultTimeout)

	v.SetDefault("document.lang", "en")
	v.SetDefault("document.title", "Component accessibility check")
	v.SetDefault("document.visual", true)
	v.SetDefault("document.browser", false)
	v.SetDefault("document.chrome_path", "")

	v.SetDefault("environment.routing", true)
	v.SetDefault("environment.theming", true)
	v.SetDefault("environment.theme_files", []string{
		"theme.yaml",
		"theme.yml",
		"theme.json",
		"styles/theme.yaml",
		"styles/theme.json",
		"internal/theme/theme.yaml",
	})

	v.SetDefault("cache.size", 256)

	v.SetDefault("harness.dir", "_templaudit/harness")
	v.SetDefault("harness.templ_generate", true)
	v.SetDefault("harness.keep", false)
	v.SetDefault("harness.go_binary", "go")
	v.SetDefault("harness.templ_binary", "templ")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Setup points v at the configuration file and environment. cfgFile wins
// over TEMPLAUDIT_CONFIG_FILE, which wins over .templaudit.yml in the
// working directory. It reports the config file used, if any.
func Setup(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	switch envFile := os.Getenv(EnvPrefix + "_CONFIG_FILE"); {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case envFile != "":
		v.SetConfigFile(envFile)
	default:
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(ConfigName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		// An explicitly named file that does not exist is an error.
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// LoadEnvFile loads variables from path into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// Viper decodes env overrides of slices as one string.
	if v.IsSet("environment.theme_files") && len(config.Environment.ThemeFiles) == 1 &&
		strings.Contains(config.Environment.ThemeFiles[0], ",") {
		config.Environment.ThemeFiles = strings.Split(config.Environment.ThemeFiles[0], ",")
	}

	if config.Check.BaseDir != "" {
		abs, err := filepath.Abs(config.Check.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("resolving check.base_dir: %w", err)
		}
		config.Check.BaseDir = abs
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the validated default configuration.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	config, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return config
}
