package page

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/wanmail/webdriver/locator"
)

// Errors returned by Page operations. Driver faults that do not fall into one
// of these are returned unchanged.
var (
	// ErrUnsupportedStrategy is locator.ErrUnsupportedStrategy.
	ErrUnsupportedStrategy = locator.ErrUnsupportedStrategy
	ErrEmptyLocator        = errors.New("empty locator value")
	ErrElementNotFound     = errors.New("element not found")
	ErrNotInteractable     = errors.New("element not interactable")
	ErrFrameNotFound       = errors.New("frame not found")
	ErrWindowNotFound      = errors.New("window not found")
	ErrNavigation          = errors.New("navigation failed")
)

// NavigationError is returned by Open. It matches ErrNavigation and unwraps to
// the driver's error.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrNavigation, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func (e *NavigationError) Is(target error) bool { return target == ErrNavigation }
