package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAGERUN_BROWSER_HEADLESS.
const EnvPrefix = "PAGERUN"

// Interface gives read access to the runner configuration.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Page() PageConfig
	Suite() SuiteConfig

	SetBrowserHeadless(bool)
	SetSuiteRun(string)
	SetSuiteBaseURL(string)
}

// Config holds the whole runner configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	PageCfg    PageConfig    `mapstructure:"page" yaml:"page"`
	SuiteCfg   SuiteConfig   `mapstructure:"suite" yaml:"suite"`
}

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Page() PageConfig       { return c.PageCfg }
func (c *Config) Suite() SuiteConfig     { return c.SuiteCfg }

func (c *Config) SetBrowserHeadless(b bool)  { c.BrowserCfg.Headless = b }
func (c *Config) SetSuiteRun(expr string)    { c.SuiteCfg.Run = expr }
func (c *Config) SetSuiteBaseURL(url string) { c.SuiteCfg.BaseURL = url }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogDir      string      `mapstructure:"log_dir" yaml:"log_dir"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color of each level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Browser backends.
const (
	BackendWebDriver = "webdriver"
	BackendCDP       = "cdp"
)

// BrowserConfig selects and starts the browser under test.
type BrowserConfig struct {
	// Name is "chrome" or "firefox". The cdp backend only drives chrome.
	Name     string   `mapstructure:"name" yaml:"name"`
	Backend  string   `mapstructure:"backend" yaml:"backend"`
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Binary   string   `mapstructure:"binary" yaml:"binary"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// ExecutorURL points at an already running WebDriver server. When empty a
	// driver service is started from DriverPath.
	ExecutorURL      string `mapstructure:"executor_url" yaml:"executor_url"`
	DriverPath       string `mapstructure:"driver_path" yaml:"driver_path"`
	DriverPort       int    `mapstructure:"driver_port" yaml:"driver_port"`
	MinDriverVersion string `mapstructure:"min_driver_version" yaml:"min_driver_version"`
	LogLevel         string `mapstructure:"log_level" yaml:"log_level"`
	// FrameBuffer starts Xvfb for a headed browser on a machine without a
	// display. ScreenSize is "WxH" or "WxHxD".
	FrameBuffer bool   `mapstructure:"frame_buffer" yaml:"frame_buffer"`
	ScreenSize  string `mapstructure:"screen_size" yaml:"screen_size"`
	// Display is an existing X display, "N" or "N.S", with its Xauthority
	// file.
	Display   string `mapstructure:"display" yaml:"display"`
	XAuthPath string `mapstructure:"xauth_path" yaml:"xauth_path"`
	// Extensions are .crx files loaded into chrome by chromedriver.
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

// PageConfig holds the element resolution defaults.
type PageConfig struct {
	DefaultTimeout  time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	PresenceTimeout time.Duration `mapstructure:"presence_timeout" yaml:"presence_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	HoverDwell      time.Duration `mapstructure:"hover_dwell" yaml:"hover_dwell"`
	ScreenshotDir   string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// SuiteConfig controls case discovery and reporting.
type SuiteConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Pattern   string `mapstructure:"pattern" yaml:"pattern"`
	Run       string `mapstructure:"run" yaml:"run"`
	ReportDir string `mapstructure:"report_dir" yaml:"report_dir"`
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "debug")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagerun")
	v.SetDefault("logger.log_dir", "log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.name", "chrome")
	v.SetDefault("browser.backend", BackendWebDriver)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.driver_path", "chromedriver")
	v.SetDefault("browser.driver_port", 9515)
	v.SetDefault("browser.log_level", "WARNING")
	v.SetDefault("browser.frame_buffer", false)
	v.SetDefault("browser.screen_size", "")
	v.SetDefault("browser.display", "")
	v.SetDefault("browser.xauth_path", "")
	v.SetDefault("browser.extensions", []string{})

	// -- Page --
	v.SetDefault("page.default_timeout", "10s")
	v.SetDefault("page.presence_timeout", "1s")
	v.SetDefault("page.poll_interval", "500ms")
	v.SetDefault("page.hover_dwell", "1s")
	v.SetDefault("page.screenshot_dir", "data/result_pics")

	// -- Suite --
	v.SetDefault("suite.base_url", "https://www.baidu.com")
	v.SetDefault("suite.pattern", "^test_")
	v.SetDefault("suite.report_dir", "report")
}

// NewDefaultConfig returns the configuration with every default applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	// Defaults always decode.
	cfg, _ := NewConfigFromViper(v)
	return cfg
}

// Load reads the YAML file at path, when given, on top of the defaults and
// the PAGERUN_* environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if !lo.Contains([]string{"chrome", "firefox"}, c.BrowserCfg.Name) {
		return errors.Errorf("browser.name must be chrome or firefox, got %q", c.BrowserCfg.Name)
	}
	if !lo.Contains([]string{BackendWebDriver, BackendCDP}, c.BrowserCfg.Backend) {
		return errors.Errorf("browser.backend must be %s or %s, got %q", BackendWebDriver, BackendCDP, c.BrowserCfg.Backend)
	}
	if c.BrowserCfg.Backend == BackendCDP && c.BrowserCfg.Name != "chrome" {
		return errors.New("browser.backend cdp requires browser.name chrome")
	}
	if c.BrowserCfg.FrameBuffer && c.BrowserCfg.Display != "" {
		return errors.New("browser.frame_buffer and browser.display are mutually exclusive")
	}
	if c.BrowserCfg.ScreenSize != "" && !c.BrowserCfg.FrameBuffer {
		return errors.New("browser.screen_size requires browser.frame_buffer")
	}
	if len(c.BrowserCfg.Extensions) > 0 && (c.BrowserCfg.Name != "chrome" || c.BrowserCfg.Backend != BackendWebDriver) {
		return errors.New("browser.extensions requires chrome on the webdriver backend")
	}
	if c.PageCfg.DefaultTimeout < 0 || c.PageCfg.PresenceTimeout < 0 {
		return errors.New("page timeouts must not be negative")
	}
	if c.PageCfg.PollInterval <= 0 {
		return errors.New("page.poll_interval must be positive")
	}
	if c.PageCfg.ScreenshotDir == "" {
		return errors.New("page.screenshot_dir is required")
	}
	if c.SuiteCfg.Pattern == "" {
		return errors.New("suite.pattern is required")
	}
	return nil
}
