package main

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver"
	"github.com/wanmail/webdriver/cdp"
	"github.com/wanmail/webdriver/chrome"
	"github.com/wanmail/webdriver/firefox"
	"github.com/wanmail/webdriver/internal/config"
	"github.com/wanmail/webdriver/log"
)

// session is a started browser and the cleanup that ends it.
type session struct {
	wd   webdriver.WebDriver
	stop []func() error
}

// Close quits the browser and stops any driver process, in that order.
func (s *session) Close() error {
	var first error
	for _, stop := range s.stop {
		if err := stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// capabilities builds the W3C new-session request for cfg.
func capabilities(cfg config.BrowserConfig) (webdriver.Capabilities, error) {
	caps := webdriver.Capabilities{"browserName": cfg.Name}
	switch cfg.Name {
	case "chrome":
		c := chrome.Capabilities{Path: cfg.Binary}
		c.AddArgs(cfg.Args...)
		if cfg.Headless {
			c.AddArgs(chrome.Headless()...)
		}
		for _, ext := range cfg.Extensions {
			if err := c.AddExtension(ext); err != nil {
				return nil, errors.Wrapf(err, "loading extension %s", ext)
			}
		}
		caps.AddChrome(c)
	case "firefox":
		f := firefox.Capabilities{Binary: cfg.Binary, Args: cfg.Args}
		if cfg.Headless {
			f.Args = append(f.Args, firefox.Headless()...)
		}
		caps.AddFirefox(f)
	default:
		return nil, errors.Errorf("unsupported browser %q", cfg.Name)
	}
	if cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, errors.Wrap(err, "browser.log_level")
		}
		caps.SetLogLevel(log.Browser, level)
	}
	return caps, nil
}

// serviceOptions maps the browser config onto driver service options.
func serviceOptions(cfg config.BrowserConfig, logger *zap.Logger) []webdriver.ServiceOption {
	opts := []webdriver.ServiceOption{webdriver.Logger(logger)}
	if cfg.MinDriverVersion != "" {
		opts = append(opts, webdriver.MinimumVersion(cfg.MinDriverVersion))
	}
	switch {
	case cfg.FrameBuffer && cfg.ScreenSize != "":
		opts = append(opts, webdriver.StartFrameBufferWithOptions(webdriver.FrameBufferOptions{ScreenSize: cfg.ScreenSize}))
	case cfg.FrameBuffer:
		opts = append(opts, webdriver.StartFrameBuffer())
	case cfg.Display != "":
		opts = append(opts, webdriver.Display(cfg.Display, cfg.XAuthPath))
	}
	return opts
}

// openSession starts the browser cfg describes.
func openSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*session, error) {
	if cfg.Backend == config.BackendCDP {
		return openCDP(ctx, cfg, logger)
	}

	caps, err := capabilities(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{}
	addr := cfg.ExecutorURL
	if addr == "" {
		opts := serviceOptions(cfg, logger)
		var svc *webdriver.Service
		if cfg.Name == "firefox" {
			svc, err = webdriver.NewGeckoDriverService(cfg.DriverPath, cfg.DriverPort, opts...)
		} else {
			svc, err = webdriver.NewChromeDriverService(cfg.DriverPath, cfg.DriverPort, opts...)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "starting %s", cfg.DriverPath)
		}
		logger.Info("driver started", zap.String("addr", svc.Addr()), zap.Stringer("version", svc.Version()))
		if fb := svc.FrameBuffer(); fb != nil {
			logger.Info("frame buffer started", zap.String("display", fb.Display))
		}
		s.stop = append(s.stop, svc.Stop)
		addr = svc.Addr()
	}

	wd, err := webdriver.NewRemote(caps, addr, webdriver.WithLogger(logger))
	if err != nil {
		s.Close()
		return nil, errors.Wrapf(err, "opening session at %s", addr)
	}
	s.wd = wd
	s.stop = append([]func() error{wd.Quit}, s.stop...)
	return s, nil
}

// openCDP starts chrome over the DevTools protocol, inside a frame buffer
// or on a given display when configured.
func openCDP(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*session, error) {
	s := &session{}
	opts := cdp.Options{
		ExecPath: cfg.Binary,
		Headless: cfg.Headless,
		Args:     cfg.Args,
		Logger:   logger,
	}
	switch {
	case cfg.FrameBuffer:
		fb, err := webdriver.NewFrameBufferWithOptions(webdriver.FrameBufferOptions{ScreenSize: cfg.ScreenSize})
		if err != nil {
			return nil, errors.Wrap(err, "starting frame buffer")
		}
		logger.Info("frame buffer started", zap.String("display", fb.Display))
		s.stop = append(s.stop, fb.Stop)
		opts.Env = fb.Env()
	case cfg.Display != "":
		opts.Env = []string{"DISPLAY=:" + cfg.Display}
		if cfg.XAuthPath != "" {
			opts.Env = append(opts.Env, "XAUTHORITY="+cfg.XAuthPath)
		}
	}

	d, err := cdp.New(ctx, opts)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "starting chrome over cdp")
	}
	s.wd = d
	s.stop = append([]func() error{d.Quit}, s.stop...)
	return s, nil
}
