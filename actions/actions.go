// Package actions builds W3C input action chains: pointer moves, clicks, key
// presses and pauses that the driver replays in one request.
package actions

import (
	"time"

	"github.com/wanmail/webdriver"
)

// Actions queues input actions for a mouse and a keyboard. The two sources
// are kept tick-aligned: every pointer action is matched by a keyboard pause
// and vice versa.
type Actions struct {
	driver  webdriver.WebDriver
	pointer *PointerInput
	keys    *KeyInput
}

// New returns an empty chain bound to wd.
func New(wd webdriver.WebDriver) *Actions {
	// A mouse is always a valid pointer kind.
	mouse, _ := NewPointerInput(PointerMouse, "mouse")
	return &Actions{
		driver:  wd,
		pointer: mouse,
		keys:    NewKeyInput("keyboard"),
	}
}

// MoveToElement moves the mouse to the center of el.
func (a *Actions) MoveToElement(el webdriver.WebElement) *Actions {
	return a.MoveToElementWithOffset(el, 0, 0)
}

// MoveToElementWithOffset moves the mouse to an offset from the center of el.
func (a *Actions) MoveToElementWithOffset(el webdriver.WebElement, x, y int) *Actions {
	a.pointer.move(DefaultMoveDuration, x, y, el)
	a.keys.pause(0)
	return a
}

// MoveByOffset moves the mouse relative to its current position.
func (a *Actions) MoveByOffset(x, y int) *Actions {
	a.pointer.move(DefaultMoveDuration, x, y, Pointer)
	a.keys.pause(0)
	return a
}

// Click clicks the left button, first moving to el if it is not nil.
func (a *Actions) Click(el webdriver.WebElement) *Actions {
	if el != nil {
		a.MoveToElement(el)
	}
	return a.press(webdriver.LeftButton).release(webdriver.LeftButton)
}

// ContextClick clicks the right button, first moving to el if it is not nil.
func (a *Actions) ContextClick(el webdriver.WebElement) *Actions {
	if el != nil {
		a.MoveToElement(el)
	}
	return a.press(webdriver.RightButton).release(webdriver.RightButton)
}

// DoubleClick clicks the left button twice, first moving to el if it is not
// nil.
func (a *Actions) DoubleClick(el webdriver.WebElement) *Actions {
	if el != nil {
		a.MoveToElement(el)
	}
	return a.Click(nil).Click(nil)
}

// ClickAndHold presses the left button without releasing it.
func (a *Actions) ClickAndHold(el webdriver.WebElement) *Actions {
	if el != nil {
		a.MoveToElement(el)
	}
	return a.press(webdriver.LeftButton)
}

// Release releases the left button, first moving to el if it is not nil.
func (a *Actions) Release(el webdriver.WebElement) *Actions {
	if el != nil {
		a.MoveToElement(el)
	}
	return a.release(webdriver.LeftButton)
}

// DragAndDrop holds the left button on source and releases it over target.
func (a *Actions) DragAndDrop(source, target webdriver.WebElement) *Actions {
	return a.ClickAndHold(source).Release(target)
}

func (a *Actions) press(button int) *Actions {
	a.pointer.down(button)
	a.keys.pause(0)
	return a
}

func (a *Actions) release(button int) *Actions {
	a.pointer.up(button)
	a.keys.pause(0)
	return a
}

// KeyDown presses key without releasing it.
func (a *Actions) KeyDown(key string) *Actions {
	a.keys.keyDown(key)
	a.pointer.pause(0)
	return a
}

// KeyUp releases key.
func (a *Actions) KeyUp(key string) *Actions {
	a.keys.keyUp(key)
	a.pointer.pause(0)
	return a
}

// SendKeys presses and releases every character of text in turn.
func (a *Actions) SendKeys(text string) *Actions {
	for _, c := range text {
		a.KeyDown(string(c)).KeyUp(string(c))
	}
	return a
}

// Pause idles both sources for d.
func (a *Actions) Pause(d time.Duration) *Actions {
	a.pointer.pause(d)
	a.keys.pause(d)
	return a
}

// Sequences returns the encoded input sources that have queued actions.
func (a *Actions) Sequences() []webdriver.InputSource {
	var sources []webdriver.InputSource
	if len(a.pointer.actions) > 0 {
		sources = append(sources, a.pointer.Source())
	}
	if len(a.keys.actions) > 0 {
		sources = append(sources, a.keys.Source())
	}
	return sources
}

// Perform dispatches the queued actions and empties the chain.
func (a *Actions) Perform() error {
	sources := a.Sequences()
	if len(sources) == 0 {
		return nil
	}
	err := a.driver.PerformActions(sources)
	a.pointer.clear()
	a.keys.clear()
	return err
}

// Reset drops queued actions and asks the driver to release every key and
// button that is still held.
func (a *Actions) Reset() error {
	a.pointer.clear()
	a.keys.clear()
	return a.driver.ReleaseActions()
}
