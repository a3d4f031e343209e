package actions

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/wanmail/webdriver"
)

var pointerKinds = []string{PointerMouse, PointerTouch, PointerPen}

// PointerInput is a pointer input source: a mouse, a pen or a touch contact.
type PointerInput struct {
	inputDevice
	kind string
}

// NewPointerInput returns a pointer source of the given kind. An empty name
// gets a random id.
func NewPointerInput(kind, name string) (*PointerInput, error) {
	if !lo.Contains(pointerKinds, kind) {
		return nil, errors.Errorf("unknown pointer kind %q", kind)
	}
	return &PointerInput{
		inputDevice: newInputDevice(name),
		kind:        kind,
	}, nil
}

// move queues a pointerMove. origin is "viewport", "pointer" or a
// webdriver.WebElement, in which case x and y are relative to its center.
func (pi *PointerInput) move(duration time.Duration, x, y int, origin interface{}) {
	pi.add(map[string]interface{}{
		"type":     "pointerMove",
		"duration": duration.Milliseconds(),
		"x":        x,
		"y":        y,
		"origin":   origin,
	})
}

func (pi *PointerInput) down(button int) {
	pi.add(map[string]interface{}{"type": "pointerDown", "button": button})
}

func (pi *PointerInput) up(button int) {
	pi.add(map[string]interface{}{"type": "pointerUp", "button": button})
}

// Source encodes the queued ticks for the driver.
func (pi *PointerInput) Source() webdriver.InputSource {
	return webdriver.InputSource{
		Type:       Pointer,
		ID:         pi.name,
		Parameters: map[string]string{"pointerType": pi.kind},
		Actions:    pi.actions,
	}
}
