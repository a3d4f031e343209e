// Package log provides logging-related configuration types and constants for
// the browser and driver processes.
package log

import (
	"strings"

	"github.com/pkg/errors"
)

// Type represents a component capable of logging.
type Type string

// The valid log types.
const (
	Server      Type = "server"
	Browser     Type = "browser"
	Client      Type = "client"
	Driver      Type = "driver"
	Performance Type = "performance"
)

// Level represents a logging level of different components in the browser,
// the driver, or any intermediary WebDriver servers.
type Level string

// The valid log levels.
const (
	Off     Level = "OFF"
	Severe  Level = "SEVERE"
	Warning Level = "WARNING"
	Info    Level = "INFO"
	Debug   Level = "DEBUG"
	All     Level = "ALL"
)

var levels = map[string]Level{
	"off":     Off,
	"severe":  Severe,
	"error":   Severe,
	"warning": Warning,
	"warn":    Warning,
	"info":    Info,
	"debug":   Debug,
	"all":     All,
}

// ParseLevel maps a configuration value such as "warn" or "INFO" to a Level.
func ParseLevel(s string) (Level, error) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// CapabilitiesKey is the key for the logging preferences entry in the JSON
// structure representing WebDriver capabilities.
//
// Starting with Chrome 75, "loggingPrefs" has been changed to
// "goog:loggingPrefs".
const CapabilitiesKey = "goog:loggingPrefs"

// Capabilities is the map to include in the WebDriver capabilities structure
// to configure logging.
type Capabilities map[Type]Level
