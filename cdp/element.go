package cdp

import (
	"context"
	"strconv"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/wanmail/webdriver"
)

// element addresses a DOM node by its backend id, which stays valid for as
// long as the node is attached.
type element struct {
	wd      *Driver
	backend cdpproto.BackendNodeID
}

var _ webdriver.WebElement = (*element)(nil)

func (e *element) ID() string {
	return strconv.FormatInt(int64(e.backend), 10)
}

func (e *element) withObject(f func(ctx context.Context, obj runtime.RemoteObjectID) error) error {
	return e.wd.run(chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.backend).Do(ctx)
		if err != nil {
			return &webdriver.Error{Err: webdriver.StaleElementReference, Message: err.Error()}
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
		}()
		return f(ctx, obj.ObjectID)
	}))
}

func (e *element) call(fn string, res interface{}) error {
	return e.withObject(func(ctx context.Context, obj runtime.RemoteObjectID) error {
		_, err := callOn(ctx, obj, fn, res)
		return err
	})
}

type clickPoint struct {
	State string  `json:"state"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// center scrolls the element into view and returns its clickable center.
func (e *element) center() (clickPoint, error) {
	var p clickPoint
	err := e.call(pointScript, &p)
	return p, err
}

func (e *element) Click() error {
	p, err := e.center()
	if err != nil {
		return err
	}
	switch p.State {
	case "hidden":
		return &webdriver.Error{Err: webdriver.ElementNotInteractable, Message: "element is not displayed"}
	case "obscured":
		return &webdriver.Error{Err: webdriver.ElementClickIntercepted, Message: "another element would receive the click"}
	}
	err = e.wd.run(
		input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y),
		input.DispatchMouseEvent(input.MousePressed, p.X, p.Y).WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, p.X, p.Y).WithButton(input.Left).WithClickCount(1),
	)
	if err == nil {
		e.wd.setPointer(p.X, p.Y)
	}
	return err
}

func (e *element) SendKeys(keys string) error {
	if err := e.call(focusScript, nil); err != nil {
		return err
	}
	return e.wd.run(chromedp.KeyEvent(translateKeys(keys)))
}

func (e *element) Clear() error {
	return e.call(clearScript, nil)
}

func (e *element) TagName() (string, error) {
	var s string
	err := e.call(tagScript, &s)
	return s, err
}

func (e *element) Text() (string, error) {
	var s string
	err := e.call(textScript, &s)
	return s, err
}

func (e *element) IsEnabled() (bool, error) {
	var ok bool
	err := e.call(enabledScript, &ok)
	return ok, err
}

func (e *element) IsDisplayed() (bool, error) {
	var ok bool
	err := e.call(displayedScript, &ok)
	return ok, err
}

func (e *element) GetAttribute(name string) (string, error) {
	var s *string
	if err := e.call(attributeScript(name), &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

func (e *element) Rect() (*webdriver.Rect, error) {
	r := new(webdriver.Rect)
	if err := e.call(rectScript, r); err != nil {
		return nil, err
	}
	return r, nil
}
