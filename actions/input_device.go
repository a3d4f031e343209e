package actions

import (
	"time"

	"github.com/google/uuid"
)

// Input source types and pointer kinds defined by the W3C Actions API.
const (
	Key          = "key"
	Pointer      = "pointer"
	PointerMouse = "mouse"
	PointerTouch = "touch"
	PointerPen   = "pen"
)

// DefaultMoveDuration is how long a pointer move takes when no duration is
// given.
const DefaultMoveDuration = 250 * time.Millisecond

type inputDevice struct {
	name    string
	actions []map[string]interface{}
}

func newInputDevice(name string) inputDevice {
	if name == "" {
		name = uuid.NewString()
	}
	return inputDevice{name: name}
}

func (d *inputDevice) add(action map[string]interface{}) {
	d.actions = append(d.actions, action)
}

func (d *inputDevice) pause(duration time.Duration) {
	d.add(map[string]interface{}{"type": "pause", "duration": duration.Milliseconds()})
}

func (d *inputDevice) clear() {
	d.actions = d.actions[:0]
}

// Name returns the input source id sent to the driver.
func (d *inputDevice) Name() string {
	return d.name
}
