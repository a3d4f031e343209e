/*
Package webdriver provides a W3C WebDriver client and the driver boundary
used by the page package.

Two drivers implement the WebDriver interface: the remote client in this
package, which talks JSON over HTTP to ChromeDriver, GeckoDriver or a
Selenium grid, and the cdp package, which drives Chrome directly over the
DevTools protocol.

Example usage:

	service, err := webdriver.NewChromeDriverService("chromedriver", 9515)
	if err != nil {
		panic(err)
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
	elem, err := wd.FindElement(webdriver.ByID, "kw")
	if err != nil {
		panic(err)
	}
	elem.SendKeys("automation testing" + webdriver.EnterKey)
*/
package webdriver
