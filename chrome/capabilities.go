// Package chrome provides Chrome-specific options for WebDriver.
package chrome

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"strings"
)

// CapabilitiesKey is the key in the top-level Capabilities map under which
// ChromeDriver expects the Chrome-specific options to be set.
const CapabilitiesKey = "goog:chromeOptions"

// Capabilities defines the Chrome-specific desired capabilities when using
// ChromeDriver. See
// https://chromedriver.chromium.org/capabilities
type Capabilities struct {
	// Path is the file path to the Chrome binary to use.
	Path string `json:"binary,omitempty"`
	// Args are the command-line arguments to pass to the Chrome binary, in
	// addition to the ChromeDriver-supplied ones.
	Args []string `json:"args,omitempty"`
	// ExcludeSwitches are the command line flags that should be removed from
	// the ChromeDriver-supplied default flags, without the leading '--'.
	ExcludeSwitches []string `json:"excludeSwitches,omitempty"`
	// Extensions are base-64 encoded .crx files. Use AddExtension to add a
	// local file.
	Extensions []string `json:"extensions,omitempty"`
	// Prefs are applied to the preferences of the user profile in use.
	Prefs map[string]interface{} `json:"prefs,omitempty"`
	// Detach keeps the browser open after ChromeDriver quits if the session
	// was not terminated.
	Detach *bool `json:"detach,omitempty"`
	// DebuggerAddr is the address of an already running Chrome to attach to.
	DebuggerAddr string `json:"debuggerAddress,omitempty"`
	// W3C selects the protocol dialect. ChromeDriver 75 and later default to
	// W3C mode, which is the only mode the webdriver package speaks.
	W3C *bool `json:"w3c,omitempty"`
}

// AddExtension adds an extension for the browser to load at startup. The path
// parameter should be a path to an extension file (which typically has a
// `.crx` file extension. Note that the contents of the file will be loaded
// into memory, as required by the protocol.
func (c *Capabilities) AddExtension(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.addExtension(f)
}

func (c *Capabilities) addExtension(r io.Reader) error {
	var buf bytes.Buffer
	encoder := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := io.Copy(encoder, bufio.NewReader(r)); err != nil {
		return err
	}
	encoder.Close()
	c.Extensions = append(c.Extensions, buf.String())
	return nil
}

// AddArgs appends command-line switches, adding the leading "--" where it is
// missing.
func (c *Capabilities) AddArgs(args ...string) {
	for _, a := range args {
		if !strings.HasPrefix(a, "--") {
			a = "--" + a
		}
		c.Args = append(c.Args, a)
	}
}

// Headless returns the switches that run Chrome without a visible window.
func Headless() []string {
	return []string{"--headless=new", "--disable-gpu", "--no-sandbox", "--disable-dev-shm-usage"}
}
