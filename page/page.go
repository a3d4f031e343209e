// Package page is a base page for browser tests. It resolves elements by
// locator with bounded polling and wraps the common interactions: click,
// type, hover, frame and window switching, cookies and navigation.
//
// Elements are looked up again on every call; a Page never holds on to an
// element between operations. A Page and its driver session must not be used
// from more than one goroutine at a time.
package page

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver"
	"github.com/wanmail/webdriver/internal/observability"
)

// Config holds the waiting and artifact defaults of a Page.
type Config struct {
	// DefaultTimeout bounds element resolution when no timeout is given.
	DefaultTimeout time.Duration
	// PresenceTimeout bounds IsPresent when no timeout is given.
	PresenceTimeout time.Duration
	// PollInterval is the delay between lookups.
	PollInterval time.Duration
	// HoverDwell is how long Hover keeps the pointer on the element.
	HoverDwell time.Duration
	// ScreenshotDir receives diagnostic screenshots.
	ScreenshotDir string
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  10 * time.Second,
		PresenceTimeout: time.Second,
		PollInterval:    500 * time.Millisecond,
		HoverDwell:      time.Second,
		ScreenshotDir:   filepath.Join("data", "result_pics"),
	}
}

// Page drives one browser session.
type Page struct {
	wd      webdriver.WebDriver
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Page.
type Option func(*Page)

// WithMetrics records every operation in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Page) {
		p.metrics = m
	}
}

// New returns a Page over wd. A nil logger discards log output; a zero poll
// interval or screenshot directory takes the default.
func New(wd webdriver.WebDriver, cfg Config, logger *zap.Logger, opts ...Option) *Page {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = def.ScreenshotDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Page{
		wd:     wd,
		cfg:    cfg,
		logger: logger.Named("page"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Driver returns the underlying session.
func (p *Page) Driver() webdriver.WebDriver {
	return p.wd
}

// Config returns the settings in effect.
func (p *Page) Config() Config {
	return p.cfg
}

// finish logs and counts the outcome of op.
func (p *Page) finish(op string, err error, fields ...zap.Field) error {
	p.metrics.observe(op, err)
	if err != nil {
		p.logger.Error(op+" failed", append(fields, zap.Error(err))...)
		return err
	}
	observability.Success(p.logger, op, fields...)
	return nil
}

var unsafeNameChars = strings.NewReplacer("/", "_", "\\", "_")

// SaveScreenshot writes the current viewport to <ScreenshotDir>/<name>.png and
// returns the path. The directory is created if needed.
func (p *Page) SaveScreenshot(name string) (string, error) {
	path := filepath.Join(p.cfg.ScreenshotDir, unsafeNameChars.Replace(name)+".png")
	err := func() error {
		if err := os.MkdirAll(p.cfg.ScreenshotDir, 0o755); err != nil {
			return errors.Wrap(err, "creating screenshot directory")
		}
		png, err := p.wd.Screenshot()
		if err != nil {
			return err
		}
		return errors.Wrap(os.WriteFile(path, png, 0o644), "writing screenshot")
	}()
	if err := p.finish("save screenshot", err, zap.String("path", path)); err != nil {
		return "", err
	}
	return path, nil
}
