package page

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver"
	"github.com/wanmail/webdriver/actions"
	"github.com/wanmail/webdriver/locator"
)

// Open navigates to url. Failures match ErrNavigation and unwrap to the
// driver error.
func (p *Page) Open(url string) error {
	var err error
	if gerr := p.wd.Get(url); gerr != nil {
		err = &NavigationError{URL: url, Err: gerr}
	}
	return p.finish("open", err, zap.String("url", url))
}

// Title returns the title of the current document.
func (p *Page) Title() (string, error) {
	title, err := p.wd.Title()
	if err != nil {
		return "", p.finish("title", err)
	}
	return title, nil
}

// Click resolves the element, waits for it to be displayed and enabled, then
// clicks it. The lookup and the clickable wait each get the full timeout; an
// element that never becomes clickable fails with ErrNotInteractable.
func (p *Page) Click(strategy locator.Strategy, value string, opts ...WaitOption) error {
	loc := locator.Locator{Strategy: strategy, Value: value}
	return p.finish("click", p.click(loc, p.waitOptions(p.cfg.DefaultTimeout, opts)), zap.Stringer("locator", loc))
}

func (p *Page) click(loc locator.Locator, o waitOptions) error {
	el, err := p.resolve(loc, o)
	if err != nil {
		return err
	}

	clickable := func(webdriver.WebDriver) (bool, error) {
		displayed, err := el.IsDisplayed()
		if err != nil || !displayed {
			return false, err
		}
		return el.IsEnabled()
	}
	if err := p.wd.WaitWithTimeoutAndInterval(clickable, o.timeout, o.interval); err != nil {
		if errors.Is(err, webdriver.ErrWaitTimeout) {
			return errors.Wrapf(ErrNotInteractable, "%s is not displayed and enabled", loc)
		}
		return err
	}

	if err := el.Click(); err != nil {
		if webdriver.IsCode(err, webdriver.ElementNotInteractable, webdriver.ElementClickIntercepted) {
			return errors.Wrapf(ErrNotInteractable, "%s: %v", loc, err)
		}
		return err
	}
	return nil
}

// InputText resolves the element, clears it and types text as given.
func (p *Page) InputText(strategy locator.Strategy, value, text string, opts ...WaitOption) error {
	loc := locator.Locator{Strategy: strategy, Value: value}
	err := func() error {
		el, err := p.resolve(loc, p.waitOptions(p.cfg.DefaultTimeout, opts))
		if err != nil {
			return err
		}
		if err := el.Clear(); err != nil {
			return err
		}
		return el.SendKeys(text)
	}()
	return p.finish("input text", err, zap.Stringer("locator", loc), zap.String("text", text))
}

// Hover moves the pointer to the center of the element and keeps it there for
// Config.HoverDwell before releasing input state.
func (p *Page) Hover(strategy locator.Strategy, value string, opts ...WaitOption) error {
	loc := locator.Locator{Strategy: strategy, Value: value}
	err := func() error {
		el, err := p.resolve(loc, p.waitOptions(p.cfg.DefaultTimeout, opts))
		if err != nil {
			return err
		}
		chain := actions.New(p.wd)
		if err := chain.MoveToElement(el).Pause(p.cfg.HoverDwell).Perform(); err != nil {
			return err
		}
		return chain.Reset()
	}()
	return p.finish("hover", err, zap.Stringer("locator", loc))
}

// Text returns the rendered text of the element.
func (p *Page) Text(strategy locator.Strategy, value string, opts ...WaitOption) (string, error) {
	loc := locator.Locator{Strategy: strategy, Value: value}
	var text string
	err := func() error {
		el, err := p.resolve(loc, p.waitOptions(p.cfg.DefaultTimeout, opts))
		if err != nil {
			return err
		}
		text, err = el.Text()
		return err
	}()
	if err := p.finish("get text", err, zap.Stringer("locator", loc)); err != nil {
		return "", err
	}
	return text, nil
}

// ClearCookies deletes every cookie visible to the current document.
func (p *Page) ClearCookies() error {
	return p.finish("clear cookies", p.wd.DeleteAllCookies())
}
