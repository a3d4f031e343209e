package webdriver

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode is a W3C WebDriver error code, as carried in the "error" field of
// a failed command's reply.
type ErrorCode string

// Error codes that callers commonly need to tell apart.
const (
	ElementClickIntercepted ErrorCode = "element click intercepted"
	ElementNotInteractable  ErrorCode = "element not interactable"
	InvalidArgument         ErrorCode = "invalid argument"
	InvalidSelector         ErrorCode = "invalid selector"
	InvalidSessionID        ErrorCode = "invalid session id"
	JavascriptError         ErrorCode = "javascript error"
	NoSuchElement           ErrorCode = "no such element"
	NoSuchFrame             ErrorCode = "no such frame"
	NoSuchWindow            ErrorCode = "no such window"
	StaleElementReference   ErrorCode = "stale element reference"
	Timeout                 ErrorCode = "timeout"
	UnknownCommand          ErrorCode = "unknown command"
	UnknownError            ErrorCode = "unknown error"
	UnsupportedOperation    ErrorCode = "unsupported operation"
)

// Error is a failure reported by the remote end.
type Error struct {
	// Err is the W3C error code, e.g. "no such element".
	Err ErrorCode `json:"error"`
	// Message is the driver's human readable description.
	Message string `json:"message"`
	// Stacktrace is the driver-side stack trace, if any.
	Stacktrace string `json:"stacktrace"`
	// HTTPCode is the status code of the HTTP reply.
	HTTPCode int `json:"-"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Message)
}

// IsCode reports whether err, or an error it wraps, is an *Error carrying
// one of the given codes.
func IsCode(err error, codes ...ErrorCode) bool {
	var we *Error
	if !errors.As(err, &we) {
		return false
	}
	for _, c := range codes {
		if we.Err == c {
			return true
		}
	}
	return false
}

// ErrWaitTimeout is returned by the Wait family when the condition did not
// become true in time.
var ErrWaitTimeout = errors.New("wait timed out")
