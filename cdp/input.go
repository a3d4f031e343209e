package cdp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/pkg/errors"

	"github.com/wanmail/webdriver"
)

type pointerState struct {
	x, y    float64
	pressed []input.MouseButton
}

func (wd *Driver) setPointer(x, y float64) {
	wd.mu.Lock()
	wd.mouse.x, wd.mouse.y = x, y
	wd.mu.Unlock()
}

// W3C private-use key codes and their DevTools counterparts.
var specialKeys = strings.NewReplacer(
	webdriver.BackspaceKey, kb.Backspace,
	webdriver.TabKey, kb.Tab,
	webdriver.ReturnKey, kb.Enter,
	webdriver.EnterKey, kb.Enter,
	webdriver.EscapeKey, kb.Escape,
	webdriver.SpaceKey, " ",
	webdriver.DeleteKey, kb.Delete,
	webdriver.NullKey, "",
)

func translateKeys(keys string) string {
	return specialKeys.Replace(keys)
}

var buttons = map[int]input.MouseButton{
	webdriver.LeftButton:   input.Left,
	webdriver.MiddleButton: input.Middle,
	webdriver.RightButton:  input.Right,
}

// number reads a numeric action field whether it was built in Go or decoded
// from JSON.
func number(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func duration(action map[string]interface{}) time.Duration {
	return time.Duration(number(action["duration"])) * time.Millisecond
}

// PerformActions replays the sources tick by tick. Within a tick every
// source dispatches its action, then the tick lasts as long as its longest
// duration.
func (wd *Driver) PerformActions(sources []webdriver.InputSource) error {
	ticks := 0
	for _, src := range sources {
		if len(src.Actions) > ticks {
			ticks = len(src.Actions)
		}
	}
	for i := 0; i < ticks; i++ {
		var wait time.Duration
		for _, src := range sources {
			if i >= len(src.Actions) {
				continue
			}
			action := src.Actions[i]
			if err := wd.dispatch(src, action); err != nil {
				return err
			}
			if d := duration(action); d > wait {
				wait = d
			}
		}
		time.Sleep(wait)
	}
	return nil
}

func (wd *Driver) dispatch(src webdriver.InputSource, action map[string]interface{}) error {
	typ, _ := action["type"].(string)
	switch {
	case typ == "pause":
		return nil
	case src.Type == "pointer":
		return wd.dispatchPointer(typ, action)
	case src.Type == "key":
		value, _ := action["value"].(string)
		return wd.dispatchKey(typ, value)
	}
	return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "unknown input source type " + src.Type}
}

func (wd *Driver) dispatchPointer(typ string, action map[string]interface{}) error {
	wd.mu.Lock()
	x, y := wd.mouse.x, wd.mouse.y
	wd.mu.Unlock()

	switch typ {
	case "pointerMove":
		dx, dy := number(action["x"]), number(action["y"])
		switch origin := action["origin"].(type) {
		case nil:
			x, y = dx, dy
		case string:
			switch origin {
			case "viewport":
				x, y = dx, dy
			case "pointer":
				x, y = x+dx, y+dy
			default:
				return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "unknown origin " + origin}
			}
		case *element:
			p, err := origin.center()
			if err != nil {
				return err
			}
			x, y = p.X+dx, p.Y+dy
		default:
			return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "origin is not an element of this session"}
		}
		if err := wd.run(input.DispatchMouseEvent(input.MouseMoved, x, y)); err != nil {
			return err
		}
		wd.setPointer(x, y)
		return nil

	case "pointerDown", "pointerUp":
		button, ok := buttons[int(number(action["button"]))]
		if !ok {
			return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "unknown mouse button"}
		}
		kind := input.MousePressed
		if typ == "pointerUp" {
			kind = input.MouseReleased
		}
		if err := wd.run(input.DispatchMouseEvent(kind, x, y).WithButton(button).WithClickCount(1)); err != nil {
			return err
		}
		wd.mu.Lock()
		if kind == input.MousePressed {
			wd.mouse.pressed = append(wd.mouse.pressed, button)
		} else {
			wd.mouse.pressed = removeButton(wd.mouse.pressed, button)
		}
		wd.mu.Unlock()
		return nil
	}
	return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "unknown pointer action " + typ}
}

func removeButton(pressed []input.MouseButton, b input.MouseButton) []input.MouseButton {
	out := pressed[:0]
	for _, p := range pressed {
		if p != b {
			out = append(out, p)
		}
	}
	return out
}

func (wd *Driver) dispatchKey(typ, value string) error {
	if typ != "keyDown" && typ != "keyUp" {
		return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "unknown key action " + typ}
	}
	runes := []rune(translateKeys(value))
	if len(runes) != 1 {
		return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "key actions take a single character"}
	}
	var events []chromedp.Action
	for _, ev := range kb.Encode(runes[0]) {
		up := ev.Type == input.KeyUp
		if (typ == "keyUp") == up {
			events = append(events, ev)
		}
	}
	return wd.run(events...)
}

// ReleaseActions lets go of every mouse button still held.
func (wd *Driver) ReleaseActions() error {
	wd.mu.Lock()
	state := wd.mouse
	wd.mouse.pressed = nil
	wd.mu.Unlock()

	var failed error
	for _, b := range state.pressed {
		err := wd.run(input.DispatchMouseEvent(input.MouseReleased, state.x, state.y).WithButton(b).WithClickCount(1))
		if err != nil && failed == nil {
			failed = errors.Wrap(err, "failed to release mouse button")
		}
	}
	return failed
}
