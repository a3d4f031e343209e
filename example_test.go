package webdriver_test

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wanmail/webdriver"
	"github.com/wanmail/webdriver/chrome"
)

// This example shows how to start ChromeDriver, search for a term on a search
// engine homepage and wait for the results.
//
// If you want to actually run this example:
//
//  1. Ensure the file paths at the top of the function are correct.
//  2. Remove the word "Example" from the comment at the bottom of the
//     function.
//  3. Run:
//     go test -test.run=Example$ github.com/wanmail/webdriver
func Example() {
	const (
		// These paths will be different on your system.
		chromeDriverPath = "vendor/chromedriver"
		port             = 9515
	)
	opts := []webdriver.ServiceOption{
		webdriver.Output(os.Stderr),         // Output debug information to STDERR.
		webdriver.MinimumVersion("100.0.0"), // Refuse drivers that predate W3C mode.
	}
	service, err := webdriver.NewChromeDriverService(chromeDriverPath, port, opts...)
	if err != nil {
		panic(err) // panic is used only as an example and is not otherwise recommended.
	}
	defer service.Stop()

	caps := webdriver.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{Args: []string{"--headless=new"}})
	wd, err := webdriver.NewRemote(caps, service.Addr())
	if err != nil {
		panic(err)
	}
	defer wd.Quit()

	if err := wd.Get("https://www.baidu.com"); err != nil {
		panic(err)
	}

	// Get a reference to the search box and type a query.
	elem, err := wd.FindElement(webdriver.ByID, "kw")
	if err != nil {
		panic(err)
	}
	if err := elem.SendKeys("automation testing"); err != nil {
		panic(err)
	}

	btn, err := wd.FindElement(webdriver.ByID, "su")
	if err != nil {
		panic(err)
	}
	if err := btn.Click(); err != nil {
		panic(err)
	}

	// Wait for the results container to show up.
	err = wd.WaitWithTimeout(func(wd webdriver.WebDriver) (bool, error) {
		elems, err := wd.FindElements(webdriver.ByID, "content_left")
		return len(elems) > 0, err
	}, 10*time.Second)
	if err != nil {
		panic(err)
	}

	title, err := wd.Title()
	if err != nil {
		panic(err)
	}
	fmt.Println(strings.Contains(title, "automation testing"))

	// Example Output:
	// true
}
