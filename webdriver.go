package webdriver

import (
	"time"

	"github.com/wanmail/webdriver/chrome"
	"github.com/wanmail/webdriver/firefox"
	"github.com/wanmail/webdriver/log"
)

// Methods by which to find elements. These are the W3C location strategies
// plus the legacy ones still honoured by ChromeDriver and GeckoDriver.
const (
	ByID              = "id"
	ByXPATH           = "xpath"
	ByLinkText        = "link text"
	ByPartialLinkText = "partial link text"
	ByName            = "name"
	ByTagName         = "tag name"
	ByClassName       = "class name"
	ByCSSSelector     = "css selector"
)

// Mouse buttons, as used by W3C pointer actions.
const (
	LeftButton = iota
	MiddleButton
	RightButton
)

// Special keyboard keys, for SendKeys and key actions.
const (
	NullKey      = string('\ue000')
	BackspaceKey = string('\ue003')
	TabKey       = string('\ue004')
	ReturnKey    = string('\ue006')
	EnterKey     = string('\ue007')
	ShiftKey     = string('\ue008')
	ControlKey   = string('\ue009')
	AltKey       = string('\ue00a')
	EscapeKey    = string('\ue00c')
	SpaceKey     = string('\ue00d')
	DeleteKey    = string('\ue017')
	MetaKey      = string('\ue03d')
)

// ElementKey is the W3C web element identifier key used when an element
// reference is serialized over the wire.
const ElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Capabilities configures both the WebDriver process and the target browsers,
// with standard and browser-specific options.
type Capabilities map[string]interface{}

// AddChrome adds Chrome-specific capabilities.
func (c Capabilities) AddChrome(f chrome.Capabilities) {
	c[chrome.CapabilitiesKey] = f
}

// AddFirefox adds Firefox-specific capabilities.
func (c Capabilities) AddFirefox(f firefox.Capabilities) {
	c[firefox.CapabilitiesKey] = f
}

// AddLogging adds logging configuration to the capabilities.
func (c Capabilities) AddLogging(l log.Capabilities) {
	c[log.CapabilitiesKey] = l
}

// SetLogLevel sets the logging level of a component. It is a shortcut for
// passing a log.Capabilities instance to AddLogging.
func (c Capabilities) SetLogLevel(typ log.Type, level log.Level) {
	if _, ok := c[log.CapabilitiesKey]; !ok {
		c[log.CapabilitiesKey] = make(log.Capabilities)
	}
	m := c[log.CapabilitiesKey].(log.Capabilities)
	m[typ] = level
}

// Status contains information returned by the Status method.
type Status struct {
	// Build is populated by ChromeDriver.
	Build struct {
		Version string `json:"version"`
	} `json:"build"`
	OS struct {
		Arch    string `json:"arch"`
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"os"`

	// The following fields are specified by the W3C WebDriver specification.
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// Rect is the position and dimensions of an element relative to the top-left
// corner of the document.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the in-document coordinates of the middle of r.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Cookie represents an HTTP cookie.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Path   string `json:"path"`
	Domain string `json:"domain"`
	Secure bool   `json:"secure"`
	Expiry uint   `json:"expiry"`
}

// InputSource is one W3C input source together with its queued action
// ticks. Each action is a JSON object such as {"type":"pause","duration":0}.
// A pointerMove origin may hold a WebElement, which every driver knows how to
// address.
type InputSource struct {
	Type       string                   `json:"type"`
	ID         string                   `json:"id"`
	Parameters map[string]string        `json:"parameters,omitempty"`
	Actions    []map[string]interface{} `json:"actions"`
}

// Condition is a predicate polled by the Wait family of methods.
type Condition func(wd WebDriver) (bool, error)

// Default polling settings for Wait and WaitWithTimeout.
const (
	DefaultWaitTimeout  = 60 * time.Second
	DefaultWaitInterval = 100 * time.Millisecond
)

// WebDriver defines methods supported by WebDriver drivers.
type WebDriver interface {
	// Status returns various pieces of information about the server environment.
	Status() (*Status, error)

	// SessionID returns the current session ID.
	SessionID() string

	// Quit ends the current session. The browser instance will be closed.
	Quit() error

	// Get navigates the browser to the provided URL.
	Get(url string) error
	// CurrentURL returns the browser's current URL.
	CurrentURL() (string, error)
	// Title returns the current page's title.
	Title() (string, error)

	// CurrentWindowHandle returns the ID of current window handle.
	CurrentWindowHandle() (string, error)
	// WindowHandles returns the IDs of current open windows, in the order the
	// driver reports them.
	WindowHandles() ([]string, error)
	// SwitchWindow switches the context to the specified window handle.
	SwitchWindow(handle string) error
	// SwitchFrame switches to the given frame. The frame parameter can be the
	// frame's index as an int, its WebElement instance as returned by
	// FindElement, or nil to switch to the current top-level browsing context.
	SwitchFrame(frame interface{}) error

	// FindElement finds exactly one element in the current browsing context.
	FindElement(by, value string) (WebElement, error)
	// FindElements finds potentially many elements in the current browsing
	// context. No match is not an error.
	FindElements(by, value string) ([]WebElement, error)

	// GetCookies returns all of the cookies in the browser's jar.
	GetCookies() ([]Cookie, error)
	// DeleteAllCookies deletes all of the cookies in the browser's jar.
	DeleteAllCookies() error

	// Screenshot takes a PNG screenshot of the browser window.
	Screenshot() ([]byte, error)

	// PerformActions dispatches the given W3C input source sequences.
	PerformActions(sources []InputSource) error
	// ReleaseActions releases all keys and pointer buttons that are
	// currently depressed.
	ReleaseActions() error

	// WaitWithTimeoutAndInterval waits for the condition to evaluate to true.
	WaitWithTimeoutAndInterval(condition Condition, timeout, interval time.Duration) error
	// WaitWithTimeout works like WaitWithTimeoutAndInterval, but with default polling interval.
	WaitWithTimeout(condition Condition, timeout time.Duration) error
	// Wait works like WaitWithTimeoutAndInterval, but using the default timeout and polling interval.
	Wait(condition Condition) error
}

// WebElement defines method supported by web elements.
type WebElement interface {
	// ID returns the driver's opaque reference for the element.
	ID() string

	// Click clicks on the element.
	Click() error
	// SendKeys types into the element.
	SendKeys(keys string) error
	// Clear clears the element.
	Clear() error

	// TagName returns the element's name.
	TagName() (string, error)
	// Text returns the text of the element.
	Text() (string, error)
	// IsEnabled returns true if the element is enabled.
	IsEnabled() (bool, error)
	// IsDisplayed returns true if the element is displayed.
	IsDisplayed() (bool, error)
	// GetAttribute returns the named attribute of the element.
	GetAttribute(name string) (string, error)
	// Rect returns the element's position and size.
	Rect() (*Rect, error)
}
