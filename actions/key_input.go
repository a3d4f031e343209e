package actions

import "github.com/wanmail/webdriver"

// KeyInput is a keyboard input source.
type KeyInput struct {
	inputDevice
}

// NewKeyInput returns a keyboard source. An empty name gets a random id.
func NewKeyInput(name string) *KeyInput {
	return &KeyInput{inputDevice: newInputDevice(name)}
}

func (ki *KeyInput) keyDown(key string) {
	ki.add(map[string]interface{}{"type": "keyDown", "value": key})
}

func (ki *KeyInput) keyUp(key string) {
	ki.add(map[string]interface{}{"type": "keyUp", "value": key})
}

// Source encodes the queued ticks for the driver.
func (ki *KeyInput) Source() webdriver.InputSource {
	return webdriver.InputSource{
		Type:    Key,
		ID:      ki.name,
		Actions: ki.actions,
	}
}
