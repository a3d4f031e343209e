package page

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver"
	"github.com/wanmail/webdriver/locator"
)

type waitOptions struct {
	timeout  time.Duration
	interval time.Duration
}

// WaitOption adjusts the wait of a single call.
type WaitOption func(*waitOptions)

// WithTimeout bounds the wait. A zero timeout checks exactly once.
func WithTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		o.timeout = d
	}
}

// WithInterval sets the delay between lookups.
func WithInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

func (p *Page) waitOptions(defaultTimeout time.Duration, opts []WaitOption) waitOptions {
	o := waitOptions{timeout: defaultTimeout, interval: p.cfg.PollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout < 0 {
		o.timeout = 0
	}
	return o
}

// Find returns the first element matching strategy and value, polling until
// one is present in the DOM or the timeout (Config.DefaultTimeout unless
// given) runs out. On timeout a screenshot named after the locator is saved
// and the error matches ErrElementNotFound.
func (p *Page) Find(strategy locator.Strategy, value string, opts ...WaitOption) (webdriver.WebElement, error) {
	loc := locator.Locator{Strategy: strategy, Value: value}
	el, err := p.resolve(loc, p.waitOptions(p.cfg.DefaultTimeout, opts))
	p.metrics.observe("find", err)
	return el, err
}

// IsPresent reports whether an element matching strategy and value shows up
// within the timeout (Config.PresenceTimeout unless given). Only a lookup
// timeout counts as absent; other faults are returned.
func (p *Page) IsPresent(strategy locator.Strategy, value string, opts ...WaitOption) (bool, error) {
	loc := locator.Locator{Strategy: strategy, Value: value}
	_, err := p.resolve(loc, p.waitOptions(p.cfg.PresenceTimeout, opts))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrElementNotFound):
		return false, nil
	}
	return false, err
}

func (p *Page) resolve(loc locator.Locator, o waitOptions) (webdriver.WebElement, error) {
	by, err := loc.Strategy.Native()
	if err != nil {
		p.logger.Error("invalid locator", zap.Stringer("locator", loc), zap.Error(err))
		return nil, err
	}
	if loc.Value == "" {
		return nil, errors.Wrapf(ErrEmptyLocator, "strategy %s", loc.Strategy)
	}

	var found webdriver.WebElement
	present := func(wd webdriver.WebDriver) (bool, error) {
		elems, err := wd.FindElements(by, loc.Value)
		if webdriver.IsCode(err, webdriver.NoSuchElement) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if len(elems) == 0 {
			return false, nil
		}
		found = elems[0]
		return true, nil
	}

	start := time.Now()
	err = p.wd.WaitWithTimeoutAndInterval(present, o.timeout, o.interval)
	p.metrics.observeResolve(time.Since(start).Seconds())

	switch {
	case err == nil:
		return found, nil
	case errors.Is(err, webdriver.ErrWaitTimeout):
		p.logger.Error("timed out waiting for element",
			zap.Stringer("locator", loc), zap.Duration("timeout", o.timeout))
		if path, serr := p.SaveScreenshot(loc.ArtifactName()); serr != nil {
			p.logger.Warn("diagnostic screenshot not saved", zap.Error(serr))
		} else {
			p.metrics.artifactSaved()
			p.logger.Info("diagnostic screenshot saved", zap.String("path", path))
		}
		return nil, errors.Wrapf(ErrElementNotFound, "%s within %v", loc, o.timeout)
	}
	p.logger.Error("element lookup failed", zap.Stringer("locator", loc), zap.Error(err))
	return nil, err
}
