package wdtest

import (
	"bytes"
	"image/png"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/wanmail/webdriver"
)

// CommonSite is the site RunCommonTests expects to find at Config.ServerURL.
func CommonSite() Site {
	return Site{
		"/": func(url.Values) *Document {
			return &Document{
				Title: "Go Web Page",
				Form:  "/search",
				Elements: []*Element{
					{Tag: "h1", ID: "heading", Class: "title main", Text: "Hello WebDriver"},
					{Tag: "a", ID: "other", Href: "/other", Text: "other page"},
					{Tag: "a", ID: "popup", Href: "/other", Target: "_blank", Text: "open a window"},
					{Tag: "input", ID: "q", Name: "q", Type: "text"},
					{Tag: "input", ID: "go", Type: "submit", Value: "Search"},
					{Tag: "div", ID: "content", Class: "content", Text: "  some   content  "},
					{Tag: "div", ID: "hidden", Text: "secret", Hidden: true},
					{Tag: "button", ID: "disabled", Text: "no", Disabled: true},
					{Tag: "div", ID: "late", Text: "arrived", Delay: 300 * time.Millisecond},
					{Tag: "iframe", ID: "frame", Name: "inner", Src: "/frame"},
				},
			}
		},
		"/other": func(url.Values) *Document {
			return &Document{
				Title:    "Other Page",
				Elements: []*Element{{Tag: "p", ID: "msg", Text: "on the other page"}},
			}
		},
		"/frame": func(url.Values) *Document {
			return &Document{
				Title:    "Frame",
				Elements: []*Element{{Tag: "p", ID: "inside", Text: "inside the frame"}},
			}
		},
		"/search": func(q url.Values) *Document {
			return &Document{
				Title:    q.Get("q"),
				Elements: []*Element{{Tag: "div", ID: "results", Text: "results for " + q.Get("q")}},
			}
		},
	}
}

// Config describes the driver under test.
type Config struct {
	// NewDriver starts a fresh session. The tests quit it.
	NewDriver func(t *testing.T) webdriver.WebDriver
	// ServerURL serves CommonSite.
	ServerURL string
}

func runTest(f func(*testing.T, Config), c Config) func(*testing.T) {
	return func(t *testing.T) {
		f(t, c)
	}
}

func newDriver(t *testing.T, c Config) webdriver.WebDriver {
	t.Helper()
	wd := c.NewDriver(t)
	t.Cleanup(func() {
		if err := wd.Quit(); err != nil {
			t.Errorf("wd.Quit() returned error: %v", err)
		}
	})
	return wd
}

func openHome(t *testing.T, c Config) webdriver.WebDriver {
	t.Helper()
	wd := newDriver(t, c)
	if err := wd.Get(c.ServerURL + "/"); err != nil {
		t.Fatalf("wd.Get(%q) returned error: %v", c.ServerURL, err)
	}
	return wd
}

func mustFind(t *testing.T, wd webdriver.WebDriver, by, value string) webdriver.WebElement {
	t.Helper()
	elem, err := wd.FindElement(by, value)
	if err != nil {
		t.Fatalf("wd.FindElement(%q, %q) returned error: %v", by, value, err)
	}
	return elem
}

// RunCommonTests runs the behavior every driver must share.
func RunCommonTests(t *testing.T, c Config) {
	t.Run("Status", runTest(testStatus, c))
	t.Run("Get", runTest(testGet, c))
	t.Run("Title", runTest(testTitle, c))
	t.Run("FindElement", runTest(testFindElement, c))
	t.Run("FindElements", runTest(testFindElements, c))
	t.Run("NoSuchElement", runTest(testNoSuchElement, c))
	t.Run("SendKeys", runTest(testSendKeys, c))
	t.Run("Click", runTest(testClick, c))
	t.Run("Submit", runTest(testSubmit, c))
	t.Run("IsDisplayed", runTest(testIsDisplayed, c))
	t.Run("IsEnabled", runTest(testIsEnabled, c))
	t.Run("Rect", runTest(testRect, c))
	t.Run("Windows", runTest(testWindows, c))
	t.Run("SwitchFrame", runTest(testSwitchFrame, c))
	t.Run("Cookies", runTest(testCookies, c))
	t.Run("Screenshot", runTest(testScreenshot, c))
	t.Run("Actions", runTest(testActions, c))
	t.Run("Wait", runTest(testWait, c))
}

func testStatus(t *testing.T, c Config) {
	wd := newDriver(t, c)
	status, err := wd.Status()
	if err != nil {
		t.Fatalf("wd.Status() returned error: %v", err)
	}
	if !status.Ready && status.Message == "" {
		t.Fatalf("status is neither ready nor explained: %+v", status)
	}
}

func testGet(t *testing.T, c Config) {
	wd := openHome(t, c)
	got, err := wd.CurrentURL()
	if err != nil {
		t.Fatalf("wd.CurrentURL() returned error: %v", err)
	}
	if want := c.ServerURL + "/"; got != want {
		t.Fatalf("wd.CurrentURL() = %q, want %q", got, want)
	}
}

func testTitle(t *testing.T, c Config) {
	wd := openHome(t, c)
	title, err := wd.Title()
	if err != nil {
		t.Fatalf("wd.Title() returned error: %v", err)
	}
	if want := "Go Web Page"; title != want {
		t.Fatalf("wd.Title() = %q, want %q", title, want)
	}
}

func testFindElement(t *testing.T, c Config) {
	wd := openHome(t, c)
	for _, tc := range []struct {
		by, value, wantID string
	}{
		{webdriver.ByID, "q", "q"},
		{webdriver.ByName, "q", "q"},
		{webdriver.ByClassName, "main", "heading"},
		{webdriver.ByCSSSelector, "#content", "content"},
		{webdriver.ByCSSSelector, "input[type=\"submit\"]", "go"},
		{webdriver.ByXPATH, "//a[contains(text(),'other')]", "other"},
		{webdriver.ByXPATH, "//*[@id=\"heading\"]", "heading"},
		{webdriver.ByLinkText, "open a window", "popup"},
		{webdriver.ByPartialLinkText, "other p", "other"},
		{webdriver.ByTagName, "h1", "heading"},
	} {
		elem := mustFind(t, wd, tc.by, tc.value)
		id, err := elem.GetAttribute("id")
		if err != nil {
			t.Fatalf("elem.GetAttribute(\"id\") returned error: %v", err)
		}
		if id != tc.wantID {
			t.Errorf("wd.FindElement(%q, %q) found id %q, want %q", tc.by, tc.value, id, tc.wantID)
		}
	}
}

func testFindElements(t *testing.T, c Config) {
	wd := openHome(t, c)
	elems, err := wd.FindElements(webdriver.ByTagName, "a")
	if err != nil {
		t.Fatalf("wd.FindElements() returned error: %v", err)
	}
	if len(elems) != 2 {
		t.Fatalf("len(wd.FindElements(tag a)) = %d, want 2", len(elems))
	}

	elems, err = wd.FindElements(webdriver.ByID, "no-such-element")
	if err != nil {
		t.Fatalf("wd.FindElements() for a missing element returned error: %v", err)
	}
	if len(elems) != 0 {
		t.Fatalf("len(wd.FindElements(missing)) = %d, want 0", len(elems))
	}
}

func testNoSuchElement(t *testing.T, c Config) {
	wd := openHome(t, c)
	_, err := wd.FindElement(webdriver.ByID, "no-such-element")
	if err == nil {
		t.Fatal("wd.FindElement(ByID, \"no-such-element\") did not return an error")
	}
	if !webdriver.IsCode(err, webdriver.NoSuchElement) {
		t.Fatalf("wd.FindElement(ByID, \"no-such-element\") = %v, want a %q error", err, webdriver.NoSuchElement)
	}
}

func testSendKeys(t *testing.T, c Config) {
	wd := openHome(t, c)
	input := mustFind(t, wd, webdriver.ByID, "q")
	if err := input.SendKeys("golang"); err != nil {
		t.Fatalf("input.SendKeys() returned error: %v", err)
	}
	if v, err := input.GetAttribute("value"); err != nil || v != "golang" {
		t.Fatalf("value after SendKeys = %q, %v; want %q", v, err, "golang")
	}
	if err := input.Clear(); err != nil {
		t.Fatalf("input.Clear() returned error: %v", err)
	}
	if v, err := input.GetAttribute("value"); err != nil || v != "" {
		t.Fatalf("value after Clear = %q, %v; want empty", v, err)
	}
}

func testClick(t *testing.T, c Config) {
	wd := openHome(t, c)
	if err := mustFind(t, wd, webdriver.ByLinkText, "other page").Click(); err != nil {
		t.Fatalf("link.Click() returned error: %v", err)
	}
	waitTitle(t, wd, "Other Page")
}

func testSubmit(t *testing.T, c Config) {
	wd := openHome(t, c)
	if err := mustFind(t, wd, webdriver.ByID, "q").SendKeys("gopher"); err != nil {
		t.Fatalf("input.SendKeys() returned error: %v", err)
	}
	if err := mustFind(t, wd, webdriver.ByID, "go").Click(); err != nil {
		t.Fatalf("submit.Click() returned error: %v", err)
	}
	waitTitle(t, wd, "gopher")

	text, err := mustFind(t, wd, webdriver.ByID, "results").Text()
	if err != nil {
		t.Fatalf("results.Text() returned error: %v", err)
	}
	if want := "results for gopher"; text != want {
		t.Fatalf("results.Text() = %q, want %q", text, want)
	}
}

func waitTitle(t *testing.T, wd webdriver.WebDriver, want string) {
	t.Helper()
	var title string
	err := wd.WaitWithTimeout(func(wd webdriver.WebDriver) (bool, error) {
		var err error
		title, err = wd.Title()
		return title == want, err
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("title = %q, want %q: %v", title, want, err)
	}
}

func testIsDisplayed(t *testing.T, c Config) {
	wd := openHome(t, c)
	for id, want := range map[string]bool{"content": true, "hidden": false} {
		got, err := mustFind(t, wd, webdriver.ByID, id).IsDisplayed()
		if err != nil {
			t.Fatalf("IsDisplayed(%s) returned error: %v", id, err)
		}
		if got != want {
			t.Errorf("IsDisplayed(%s) = %t, want %t", id, got, want)
		}
	}

	text, err := mustFind(t, wd, webdriver.ByID, "hidden").Text()
	if err != nil {
		t.Fatalf("hidden.Text() returned error: %v", err)
	}
	if text != "" {
		t.Errorf("hidden.Text() = %q, want empty", text)
	}
}

func testIsEnabled(t *testing.T, c Config) {
	wd := openHome(t, c)
	for id, want := range map[string]bool{"q": true, "disabled": false} {
		got, err := mustFind(t, wd, webdriver.ByID, id).IsEnabled()
		if err != nil {
			t.Fatalf("IsEnabled(%s) returned error: %v", id, err)
		}
		if got != want {
			t.Errorf("IsEnabled(%s) = %t, want %t", id, got, want)
		}
	}
}

func testRect(t *testing.T, c Config) {
	wd := openHome(t, c)
	r, err := mustFind(t, wd, webdriver.ByID, "heading").Rect()
	if err != nil {
		t.Fatalf("heading.Rect() returned error: %v", err)
	}
	if r.Width <= 0 || r.Height <= 0 {
		t.Fatalf("heading.Rect() = %+v, want a non-empty box", r)
	}
}

func testWindows(t *testing.T, c Config) {
	wd := openHome(t, c)
	first, err := wd.CurrentWindowHandle()
	if err != nil || first == "" {
		t.Fatalf("wd.CurrentWindowHandle() = %q, %v", first, err)
	}

	if err := mustFind(t, wd, webdriver.ByID, "popup").Click(); err != nil {
		t.Fatalf("popup.Click() returned error: %v", err)
	}

	var handles []string
	err = wd.WaitWithTimeout(func(wd webdriver.WebDriver) (bool, error) {
		var err error
		handles, err = wd.WindowHandles()
		return len(handles) == 2, err
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("wd.WindowHandles() = %v, want 2 handles: %v", handles, err)
	}
	if handles[0] != first {
		t.Fatalf("wd.WindowHandles()[0] = %q, want the first window %q", handles[0], first)
	}

	if err := wd.SwitchWindow(handles[1]); err != nil {
		t.Fatalf("wd.SwitchWindow() returned error: %v", err)
	}
	waitTitle(t, wd, "Other Page")

	if err := wd.SwitchWindow(first); err != nil {
		t.Fatalf("wd.SwitchWindow(first) returned error: %v", err)
	}
	waitTitle(t, wd, "Go Web Page")

	err = wd.SwitchWindow("no-such-window")
	if !webdriver.IsCode(err, webdriver.NoSuchWindow, webdriver.InvalidArgument) {
		t.Fatalf("wd.SwitchWindow(unknown) = %v, want a no such window error", err)
	}
}

func testSwitchFrame(t *testing.T, c Config) {
	wd := openHome(t, c)

	if err := wd.SwitchFrame(0); err != nil {
		t.Fatalf("wd.SwitchFrame(0) returned error: %v", err)
	}
	mustFind(t, wd, webdriver.ByID, "inside")

	if err := wd.SwitchFrame(nil); err != nil {
		t.Fatalf("wd.SwitchFrame(nil) returned error: %v", err)
	}
	frame := mustFind(t, wd, webdriver.ByID, "frame")
	if err := wd.SwitchFrame(frame); err != nil {
		t.Fatalf("wd.SwitchFrame(element) returned error: %v", err)
	}
	mustFind(t, wd, webdriver.ByID, "inside")
	if _, err := wd.FindElement(webdriver.ByID, "heading"); err == nil {
		t.Fatal("the top document is still searched from inside the frame")
	}

	if err := wd.SwitchFrame(nil); err != nil {
		t.Fatalf("wd.SwitchFrame(nil) returned error: %v", err)
	}
	if err := wd.SwitchFrame(7); !webdriver.IsCode(err, webdriver.NoSuchFrame) {
		t.Fatalf("wd.SwitchFrame(7) = %v, want a %q error", err, webdriver.NoSuchFrame)
	}
}

func testCookies(t *testing.T, c Config) {
	wd := openHome(t, c)
	if err := wd.DeleteAllCookies(); err != nil {
		t.Fatalf("wd.DeleteAllCookies() returned error: %v", err)
	}
	cookies, err := wd.GetCookies()
	if err != nil {
		t.Fatalf("wd.GetCookies() returned error: %v", err)
	}
	if len(cookies) != 0 {
		t.Fatalf("wd.GetCookies() = %v after DeleteAllCookies", cookies)
	}
}

func testScreenshot(t *testing.T, c Config) {
	wd := openHome(t, c)
	data, err := wd.Screenshot()
	if err != nil {
		t.Fatalf("wd.Screenshot() returned error: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("screenshot is not a PNG: %v", err)
	}
}

func testActions(t *testing.T, c Config) {
	wd := openHome(t, c)
	heading := mustFind(t, wd, webdriver.ByID, "heading")
	err := wd.PerformActions([]webdriver.InputSource{{
		Type:       "pointer",
		ID:         "mouse",
		Parameters: map[string]string{"pointerType": "mouse"},
		Actions: []map[string]interface{}{
			{"type": "pointerMove", "duration": 0, "x": 0, "y": 0, "origin": heading},
			{"type": "pause", "duration": 10},
		},
	}})
	if err != nil {
		t.Fatalf("wd.PerformActions() returned error: %v", err)
	}
	if err := wd.ReleaseActions(); err != nil {
		t.Fatalf("wd.ReleaseActions() returned error: %v", err)
	}
}

func testWait(t *testing.T, c Config) {
	wd := openHome(t, c)
	present := func(id string) webdriver.Condition {
		return func(wd webdriver.WebDriver) (bool, error) {
			elems, err := wd.FindElements(webdriver.ByID, id)
			return len(elems) > 0, err
		}
	}

	if err := wd.WaitWithTimeoutAndInterval(present("late"), 5*time.Second, 50*time.Millisecond); err != nil {
		t.Fatalf("waiting for a delayed element returned error: %v", err)
	}

	err := wd.WaitWithTimeoutAndInterval(present("never"), 200*time.Millisecond, 50*time.Millisecond)
	if !errors.Is(err, webdriver.ErrWaitTimeout) {
		t.Fatalf("waiting for a missing element = %v, want ErrWaitTimeout", err)
	}

	text, err := mustFind(t, wd, webdriver.ByID, "content").Text()
	if err != nil {
		t.Fatalf("content.Text() returned error: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		t.Fatal("content.Text() is empty")
	}
}
