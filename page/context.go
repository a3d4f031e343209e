package page

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver"
)

// SwitchToFrame moves the session into a frame. identifier is a frame index
// (int), the id or name of a frame element (string), the frame element itself
// (webdriver.WebElement), or nil for the top-level document. A frame that
// does not exist or that the driver rejects yields ErrFrameNotFound.
func (p *Page) SwitchToFrame(identifier interface{}) error {
	err := p.switchFrame(identifier)
	return p.finish("switch to frame", err, zap.Any("frame", frameLabel(identifier)))
}

func (p *Page) switchFrame(identifier interface{}) error {
	var target interface{}
	switch id := identifier.(type) {
	case nil, int, webdriver.WebElement:
		target = id
	case string:
		el, err := p.frameByIDOrName(id)
		if err != nil {
			return err
		}
		target = el
	default:
		return errors.Wrapf(ErrFrameNotFound, "unsupported frame identifier %T", identifier)
	}

	if err := p.wd.SwitchFrame(target); err != nil {
		return errors.Wrapf(ErrFrameNotFound, "%v: %v", frameLabel(identifier), err)
	}
	return nil
}

// frameByIDOrName finds a frame element by id, then by name.
func (p *Page) frameByIDOrName(s string) (webdriver.WebElement, error) {
	for _, by := range []string{webdriver.ByID, webdriver.ByName} {
		elems, err := p.wd.FindElements(by, s)
		if err != nil {
			return nil, errors.Wrapf(ErrFrameNotFound, "%q: %v", s, err)
		}
		if len(elems) > 0 {
			return elems[0], nil
		}
	}
	return nil, errors.Wrapf(ErrFrameNotFound, "no frame with id or name %q", s)
}

func frameLabel(identifier interface{}) interface{} {
	switch id := identifier.(type) {
	case nil:
		return "top"
	case webdriver.WebElement:
		return "element " + id.ID()
	}
	return identifier
}

// SwitchToDefaultContent returns to the top-level document.
func (p *Page) SwitchToDefaultContent() error {
	return p.finish("switch to default content", p.wd.SwitchFrame(nil))
}

// SwitchToWindow switches to the first window, in driver handle order, whose
// title is title. If none matches, the window that was active before the call
// is restored and the error matches ErrWindowNotFound.
func (p *Page) SwitchToWindow(title string) error {
	return p.finish("switch to window", p.switchWindow(title), zap.String("title", title))
}

func (p *Page) switchWindow(title string) error {
	original, err := p.wd.CurrentWindowHandle()
	if err != nil {
		return err
	}
	handles, err := p.wd.WindowHandles()
	if err != nil {
		return err
	}

	for _, h := range handles {
		if err := p.wd.SwitchWindow(h); err != nil {
			p.restoreWindow(original)
			return err
		}
		got, err := p.wd.Title()
		if err != nil {
			p.restoreWindow(original)
			return err
		}
		if got == title {
			return nil
		}
	}

	p.restoreWindow(original)
	return errors.Wrapf(ErrWindowNotFound, "no window titled %q among %d", title, len(handles))
}

func (p *Page) restoreWindow(handle string) {
	if err := p.wd.SwitchWindow(handle); err != nil {
		p.logger.Warn("could not restore window", zap.String("handle", handle), zap.Error(err))
	}
}
