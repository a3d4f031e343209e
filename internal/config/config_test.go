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

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "log", cfg.Logger().LogDir)
	assert.Equal(t, "green", cfg.Logger().Colors.Info)

	assert.Equal(t, "chrome", cfg.Browser().Name)
	assert.Equal(t, BackendWebDriver, cfg.Browser().Backend)
	assert.True(t, cfg.Browser().Headless)

	assert.Equal(t, 10*time.Second, cfg.Page().DefaultTimeout)
	assert.Equal(t, time.Second, cfg.Page().PresenceTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Page().PollInterval)
	assert.Equal(t, time.Second, cfg.Page().HoverDwell)
	assert.Equal(t, "data/result_pics", cfg.Page().ScreenshotDir)

	assert.Equal(t, "^test_", cfg.Suite().Pattern)
	assert.Equal(t, "report", cfg.Suite().ReportDir)
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var c Interface = cfg

	c.SetBrowserHeadless(false)
	c.SetSuiteRun("search$")
	c.SetSuiteBaseURL("http://127.0.0.1:8080")

	assert.False(t, c.Browser().Headless)
	assert.Equal(t, "search$", c.Suite().Run)
	assert.Equal(t, "http://127.0.0.1:8080", c.Suite().BaseURL)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown browser", func(c *Config) { c.BrowserCfg.Name = "safari" }, "browser.name"},
		{"unknown backend", func(c *Config) { c.BrowserCfg.Backend = "puppeteer" }, "browser.backend"},
		{"cdp needs chrome", func(c *Config) {
			c.BrowserCfg.Backend = BackendCDP
			c.BrowserCfg.Name = "firefox"
		}, "requires browser.name chrome"},
		{"frame buffer and display", func(c *Config) {
			c.BrowserCfg.FrameBuffer = true
			c.BrowserCfg.Display = "1"
		}, "mutually exclusive"},
		{"screen size alone", func(c *Config) { c.BrowserCfg.ScreenSize = "1280x800" }, "requires browser.frame_buffer"},
		{"frame buffer with size", func(c *Config) {
			c.BrowserCfg.FrameBuffer = true
			c.BrowserCfg.ScreenSize = "1280x800x24"
		}, ""},
		{"extensions on firefox", func(c *Config) {
			c.BrowserCfg.Name = "firefox"
			c.BrowserCfg.Extensions = []string{"a.crx"}
		}, "browser.extensions"},
		{"extensions on cdp", func(c *Config) {
			c.BrowserCfg.Backend = BackendCDP
			c.BrowserCfg.Extensions = []string{"a.crx"}
		}, "browser.extensions"},
		{"negative timeout", func(c *Config) { c.PageCfg.DefaultTimeout = -time.Second }, "must not be negative"},
		{"zero poll interval", func(c *Config) { c.PageCfg.PollInterval = 0 }, "poll_interval"},
		{"no screenshot dir", func(c *Config) { c.PageCfg.ScreenshotDir = "" }, "screenshot_dir"},
		{"no pattern", func(c *Config) { c.SuiteCfg.Pattern = "" }, "suite.pattern"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// -- Loading Tests --

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagerun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  backend: cdp
  headless: false
  frame_buffer: true
  args: ["--lang=zh-CN"]
page:
  default_timeout: 3s
  screenshot_dir: shots
suite:
  base_url: http://localhost:9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendCDP, cfg.Browser().Backend)
	assert.False(t, cfg.Browser().Headless)
	assert.True(t, cfg.Browser().FrameBuffer)
	assert.Equal(t, []string{"--lang=zh-CN"}, cfg.Browser().Args)
	assert.Equal(t, 3*time.Second, cfg.Page().DefaultTimeout)
	assert.Equal(t, "shots", cfg.Page().ScreenshotDir)
	assert.Equal(t, "http://localhost:9000", cfg.Suite().BaseURL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Page().PollInterval)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PAGERUN_PAGE_SCREENSHOT_DIR", "from-env")
	t.Setenv("PAGERUN_BROWSER_HEADLESS", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Page().ScreenshotDir)
	assert.False(t, cfg.Browser().Headless)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	v := viper.New()
	SetDefaults(v)
	v.Set("browser.name", "opera")
	_, err = NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
