package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	config := Default()

	assert.Equal(t, EngineNative, config.Audit.Engine)
	assert.Equal(t, 30*time.Second, config.Audit.Timeout)
	assert.Equal(t, "en", config.Document.Lang)
	assert.True(t, config.Document.Visual)
	assert.False(t, config.Document.Browser)
	assert.True(t, config.Environment.Routing)
	assert.True(t, config.Environment.Theming)
	assert.Equal(t, "theme.yaml", config.Environment.ThemeFiles[0])
	assert.Equal(t, 256, config.Cache.Size)
	assert.Equal(t, "_templaudit/harness", config.Harness.Dir)
	assert.True(t, config.Harness.TemplGenerate)
	assert.Equal(t, DefaultParallel, config.Check.Parallel)
	assert.Equal(t, OutputJSON, config.Check.Output)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError string
		verify      func(t *testing.T, c *Config)
	}{
		{
			name: "overrides",
			setup: func(v *viper.Viper) {
				v.Set("audit.timeout", "5s")
				v.Set("document.lang", "fr-CA")
				v.Set("cache.size", 8)
			},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, 5*time.Second, c.Audit.Timeout)
				assert.Equal(t, "fr-CA", c.Document.Lang)
				assert.Equal(t, 8, c.Cache.Size)
			},
		},
		{
			name: "base dir is made absolute",
			setup: func(v *viper.Viper) {
				v.Set("check.base_dir", ".")
			},
			verify: func(t *testing.T, c *Config) {
				assert.True(t, filepath.IsAbs(c.Check.BaseDir))
			},
		},
		{
			name:        "unknown engine",
			setup:       func(v *viper.Viper) { v.Set("audit.engine", "lighthouse") },
			expectError: "audit.engine: must be one of: native axe",
		},
		{
			name:        "axe needs a browser",
			setup:       func(v *viper.Viper) { v.Set("audit.engine", EngineAxe) },
			expectError: "document.browser",
		},
		{
			name: "axe with browser",
			setup: func(v *viper.Viper) {
				v.Set("audit.engine", EngineAxe)
				v.Set("document.browser", true)
			},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, EngineAxe, c.Audit.Engine)
			},
		},
		{
			name:        "bad language tag",
			setup:       func(v *viper.Viper) { v.Set("document.lang", "not a tag") },
			expectError: "document.lang",
		},
		{
			name:        "empty cache",
			setup:       func(v *viper.Viper) { v.Set("cache.size", 0) },
			expectError: "cache.size: must be at least 1",
		},
		{
			name:        "missing base dir",
			setup:       func(v *viper.Viper) { v.Set("check.base_dir", "/does/not/exist/anywhere") },
			expectError: "check.base_dir",
		},
		{
			name:        "undecodable value",
			setup:       func(v *viper.Viper) { v.Set("cache.size", "lots") },
			expectError: "decoding config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tt.setup(v)

			config, err := Load(v)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			tt.verify(t, config)
		})
	}
}

func TestSetupReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
audit:
  timeout: 10s
harness:
  keep: true
environment:
  theme_files: [brand.yaml]
`), 0o644))

	v := viper.New()
	used, err := Setup(v, path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	config, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, config.Audit.Timeout)
	assert.True(t, config.Harness.Keep)
	assert.Equal(t, []string{"brand.yaml"}, config.Environment.ThemeFiles)
}

func TestSetupEnvironmentOverrides(t *testing.T) {
	t.Setenv("TEMPLAUDIT_CONFIG_FILE", "")
	t.Setenv("TEMPLAUDIT_CACHE_SIZE", "42")
	t.Setenv("TEMPLAUDIT_ENVIRONMENT_ROUTING", "false")
	t.Chdir(t.TempDir())

	v := viper.New()
	used, err := Setup(v, "")
	require.NoError(t, err)
	assert.Empty(t, used)

	config, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 42, config.Cache.Size)
	assert.False(t, config.Environment.Routing)
}

func TestSetupMissingExplicitFile(t *testing.T) {
	_, err := Setup(viper.New(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, ".env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEMPLAUDIT_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("TEMPLAUDIT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("TEMPLAUDIT_TEST_DOTENV"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("TEMPLAUDIT_TEST_DOTENV"))
}
