package page

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wanmail/webdriver"
	"github.com/wanmail/webdriver/internal/wdtest"
	"github.com/wanmail/webdriver/locator"
)

const baseURL = "http://example-search.test"

func testSite() wdtest.Site {
	titled := func(title string) func(url.Values) *wdtest.Document {
		return func(url.Values) *wdtest.Document {
			return &wdtest.Document{Title: title, Elements: []*wdtest.Element{{Tag: "p", Text: title}}}
		}
	}
	return wdtest.Site{
		"/": func(url.Values) *wdtest.Document {
			return &wdtest.Document{
				Title: "Search",
				Form:  "/s",
				Elements: []*wdtest.Element{
					{Tag: "input", ID: "kw", Name: "wd", Type: "text"},
					{Tag: "input", ID: "su", Type: "submit", Value: "Search"},
					{Tag: "p", ID: "greeting", Text: "hello"},
					{Tag: "a", ID: "news", Href: "/news", Text: "News"},
					{Tag: "div", ID: "late", Delay: 300 * time.Millisecond},
					{Tag: "button", ID: "hidden", Hidden: true},
					{Tag: "button", ID: "blocked", Obscured: true},
					{Tag: "button", ID: "off", Disabled: true},
					{Tag: "iframe", ID: "frame", Name: "inner", Src: "/frame"},
				},
			}
		},
		"/s": func(q url.Values) *wdtest.Document {
			return &wdtest.Document{
				Title:    q.Get("wd"),
				Elements: []*wdtest.Element{{Tag: "div", ID: "content_left", Text: "results"}},
			}
		},
		"/frame": func(url.Values) *wdtest.Document {
			return &wdtest.Document{Title: "frame", Elements: []*wdtest.Element{{Tag: "p", ID: "inside"}}}
		},
		"/late": func(url.Values) *wdtest.Document {
			return &wdtest.Document{
				Title: "Late",
				Elements: []*wdtest.Element{
					{Tag: "a", ID: "late-enable", Href: "/news", Text: "News", Delay: 400 * time.Millisecond, EnableAfter: 650 * time.Millisecond},
				},
			}
		},
		"/news": titled("News"),
		"/a":    titled("A"),
		"/b":    titled("B"),
	}
}

type fixture struct {
	page *Page
	srv  *wdtest.Server
	logs *observer.ObservedLogs
	dir  string
}

func testConfig(dir string) Config {
	return Config{
		DefaultTimeout:  2 * time.Second,
		PresenceTimeout: 200 * time.Millisecond,
		PollInterval:    50 * time.Millisecond,
		HoverDwell:      50 * time.Millisecond,
		ScreenshotDir:   dir,
	}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	srv := wdtest.NewServer(testSite())
	t.Cleanup(srv.Close)

	wd, err := webdriver.NewRemote(nil, srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { wd.Quit() })

	core, logs := observer.New(zapcore.DebugLevel)
	dir := filepath.Join(t.TempDir(), "result_pics")
	p := New(wd, testConfig(dir), zap.New(core), opts...)
	require.NoError(t, p.Open(baseURL+"/"))
	return &fixture{page: p, srv: srv, logs: logs, dir: dir}
}

func TestNewDefaults(t *testing.T) {
	p := New(nil, Config{DefaultTimeout: time.Second}, nil)
	cfg := p.Config()
	assert.Equal(t, time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, filepath.Join("data", "result_pics"), cfg.ScreenshotDir)
}

func TestFind(t *testing.T) {
	f := newFixture(t)

	el, err := f.page.Find(locator.ID, "kw")
	require.NoError(t, err)
	tag, err := el.TagName()
	require.NoError(t, err)
	assert.Equal(t, "input", tag)

	again, err := f.page.Find(locator.ID, "kw")
	require.NoError(t, err)
	assert.Equal(t, el.ID(), again.ID())

	_, err = f.page.Find(locator.XPath, "//a[contains(text(),'News')]")
	assert.NoError(t, err)
}

func TestFindUnsupportedStrategy(t *testing.T) {
	f := newFixture(t)

	_, err := f.page.Find("bogus", "kw")
	assert.True(t, errors.Is(err, ErrUnsupportedStrategy), "got %v", err)

	_, err = f.page.Find(locator.ID, "")
	assert.True(t, errors.Is(err, ErrEmptyLocator), "got %v", err)

	_, statErr := os.Stat(f.dir)
	assert.True(t, os.IsNotExist(statErr), "no artifact directory expected")
}

func TestFindTimeoutSavesArtifact(t *testing.T) {
	f := newFixture(t)

	_, err := f.page.Find(locator.ID, "missing-id", WithTimeout(time.Second), WithInterval(100*time.Millisecond))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrElementNotFound), "got %v", err)

	data, err := os.ReadFile(filepath.Join(f.dir, "element_not_found_id_missing-id.png"))
	require.NoError(t, err)
	assert.Equal(t, wdtest.ScreenshotPNG(), data)

	assert.Equal(t, 1, f.logs.FilterMessage("timed out waiting for element").Len())
}

func TestFindTimeoutWithoutScreenshot(t *testing.T) {
	f := newFixture(t)

	// A file where the directory should be makes the screenshot fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	f.page.cfg.ScreenshotDir = blocker

	_, err := f.page.Find(locator.ID, "missing-id", WithTimeout(0))
	assert.True(t, errors.Is(err, ErrElementNotFound), "got %v", err)
	assert.Equal(t, 1, f.logs.FilterMessage("diagnostic screenshot not saved").Len())
}

func TestFindTimeoutMonotonic(t *testing.T) {
	f := newFixture(t)

	_, err := f.page.Find(locator.ID, "late", WithTimeout(0))
	assert.True(t, errors.Is(err, ErrElementNotFound), "got %v", err)

	_, err = f.page.Find(locator.ID, "late", WithTimeout(2*time.Second))
	assert.NoError(t, err)
}

func TestFindDriverFault(t *testing.T) {
	f := newFixture(t)

	_, err := f.page.Find(locator.XPath, "/html/body")
	require.Error(t, err)
	assert.True(t, webdriver.IsCode(err, webdriver.InvalidSelector), "got %v", err)
	assert.False(t, errors.Is(err, ErrElementNotFound))

	ok, err := f.page.IsPresent(locator.XPath, "/html/body")
	assert.False(t, ok)
	assert.True(t, webdriver.IsCode(err, webdriver.InvalidSelector), "got %v", err)

	_, statErr := os.Stat(f.dir)
	assert.True(t, os.IsNotExist(statErr), "no artifact expected for driver faults")
}

func TestIsPresent(t *testing.T) {
	f := newFixture(t)

	ok, err := f.page.IsPresent(locator.ID, "kw")
	require.NoError(t, err)
	assert.True(t, ok)

	start := time.Now()
	ok, err = f.page.IsPresent(locator.ID, "content_left")
	require.NoError(t, err)
	assert.False(t, ok)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second, "presence checks use the short timeout")

	_, err = f.page.IsPresent("bogus", "kw")
	assert.True(t, errors.Is(err, ErrUnsupportedStrategy))
}

func TestSearchScenario(t *testing.T) {
	f := newFixture(t)

	_, err := f.page.Find(locator.ID, "kw")
	require.NoError(t, err)
	require.NoError(t, f.page.InputText(locator.ID, "kw", "automation testing"))
	require.NoError(t, f.page.Click(locator.ID, "su"))

	ok, err := f.page.IsPresent(locator.ID, "content_left", WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	title, err := f.page.Title()
	require.NoError(t, err)
	assert.Equal(t, "automation testing", title)
}

func TestClickNotInteractable(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"hidden", "blocked", "off"} {
		err := f.page.Click(locator.ID, id, WithTimeout(200*time.Millisecond))
		assert.True(t, errors.Is(err, ErrNotInteractable), "%s: got %v", id, err)
	}

	err := f.page.Click(locator.ID, "nope", WithTimeout(0))
	assert.True(t, errors.Is(err, ErrElementNotFound), "got %v", err)
}

func TestClickWaitsForEnabledAfterLateLookup(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.page.Open(baseURL+"/late"))

	// Found at 0.8 of the timeout, enabled at 1.3 of it.
	err := f.page.Click(locator.ID, "late-enable", WithTimeout(500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/news", f.srv.CurrentURL())
}

func TestInputTextReplaces(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.page.InputText(locator.ID, "kw", "first"))
	require.NoError(t, f.page.InputText(locator.Name, "wd", "  second "))
	assert.Equal(t, "  second ", f.srv.Element("kw").Value)

	err := f.page.InputText(locator.ID, "hidden", "x", WithTimeout(0))
	assert.True(t, webdriver.IsCode(err, webdriver.ElementNotInteractable), "got %v", err)
}

func TestHover(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.page.Hover(locator.ID, "greeting"))
	assert.Equal(t, "greeting", f.srv.Hovered())
	assert.Equal(t, 1, f.srv.Released())

	var pauses []interface{}
	for _, src := range f.srv.Actions() {
		if src.Type != "pointer" {
			continue
		}
		for _, a := range src.Actions {
			if a["type"] == "pause" {
				pauses = append(pauses, a["duration"])
			}
		}
	}
	// JSON numbers decode as float64.
	assert.Equal(t, []interface{}{float64(50)}, pauses)
}

func TestText(t *testing.T) {
	f := newFixture(t)

	text, err := f.page.Text(locator.ID, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = f.page.Text(locator.Link, "News")
	require.NoError(t, err)
	assert.Equal(t, "News", text)
}

func TestSwitchToFrame(t *testing.T) {
	f := newFixture(t)

	frame, err := f.page.Find(locator.ID, "frame")
	require.NoError(t, err)

	for _, id := range []interface{}{0, "frame", "inner", frame} {
		require.NoError(t, f.page.SwitchToDefaultContent())
		// The frame element is resolved again for every call; handles found
		// before switching stay valid on the top document.
		require.NoError(t, f.page.SwitchToFrame(id), "%v", id)
		assert.True(t, f.srv.InFrame(), "%v", id)

		ok, err := f.page.IsPresent(locator.ID, "inside", WithTimeout(0))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	require.NoError(t, f.page.SwitchToFrame(nil))
	assert.False(t, f.srv.InFrame())

	for _, id := range []interface{}{"no-such-frame", 5, 1.5} {
		err := f.page.SwitchToFrame(id)
		assert.True(t, errors.Is(err, ErrFrameNotFound), "%v: got %v", id, err)
	}
}

func TestSwitchToWindow(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.page.Open(baseURL+"/a"))
	original := f.srv.CurrentWindow()
	other := f.srv.OpenWindow("/b")

	require.NoError(t, f.page.SwitchToWindow("B"))
	assert.Equal(t, other, f.srv.CurrentWindow())

	require.NoError(t, f.page.SwitchToWindow("A"))
	assert.Equal(t, original, f.srv.CurrentWindow())

	err := f.page.SwitchToWindow("NoSuchTitle")
	assert.True(t, errors.Is(err, ErrWindowNotFound), "got %v", err)
	assert.Equal(t, original, f.srv.CurrentWindow())
}

func TestClearCookies(t *testing.T) {
	f := newFixture(t)

	f.srv.AddCookie("BAIDUID", "1")
	f.srv.AddCookie("H_PS_PSSID", "2")
	require.NoError(t, f.page.ClearCookies())
	assert.Zero(t, f.srv.CookieCount())
}

func TestOpen(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.page.Open(baseURL+"/news"))
	assert.Equal(t, baseURL+"/news", f.srv.CurrentURL())

	err := f.page.Open("ftp://example-search.test/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNavigation), "got %v", err)
	assert.True(t, webdriver.IsCode(err, webdriver.InvalidArgument), "got %v", err)

	var nav *NavigationError
	require.True(t, errors.As(err, &nav))
	assert.Equal(t, "ftp://example-search.test/", nav.URL)
}

func TestSaveScreenshot(t *testing.T) {
	f := newFixture(t)

	path, err := f.page.SaveScreenshot("home/page")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "home_page.png"), path)
	assert.FileExists(t, path)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	f := newFixture(t, WithMetrics(m))

	require.NoError(t, f.page.Click(locator.ID, "greeting"))
	_ = f.page.Click(locator.ID, "hidden", WithTimeout(0))
	_, _ = f.page.Find(locator.ID, "missing", WithTimeout(0))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("click", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("click", OutcomeNotInteractable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("find", OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifacts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("open", OutcomeSuccess)))

	n, err := testutil.GatherAndCount(reg, "pagerun_page_resolve_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
