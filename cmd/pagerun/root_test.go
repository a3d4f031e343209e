package main

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver/chrome"
	"github.com/wanmail/webdriver/firefox"
	"github.com/wanmail/webdriver/internal/config"
	"github.com/wanmail/webdriver/internal/observability"
	"github.com/wanmail/webdriver/internal/suite"
	"github.com/wanmail/webdriver/internal/wdtest"
	"github.com/wanmail/webdriver/log"
)

// runCLI executes the command line in a pristine command tree.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	code := execute(context.Background(), cmd)
	return stdout.String(), stderr.String(), code
}

// writeConfig writes a config file that keeps logs quiet and artifacts in a
// temporary directory, followed by extra YAML.
func writeConfig(t *testing.T, extra string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	body := fmt.Sprintf(`logger:
  level: error
  log_dir: ""
page:
  presence_timeout: 200ms
  poll_interval: 20ms
  screenshot_dir: %s
suite:
  report_dir: %s
%s`, filepath.Join(dir, "pics"), filepath.Join(dir, "report"), extra)
	path = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func TestVersion(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	out, _, code := runCLI(t, "version", "-c", cfg)
	assert.Equal(t, 0, code)
	assert.Equal(t, "pagerun "+Version+"\n", out)
}

func TestStrategies(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	out, _, code := runCLI(t, "strategies", "--config", cfg)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "STRATEGY")
	assert.Regexp(t, `(?m)^css\s+css selector$`, out)
	assert.Regexp(t, `(?m)^plink\s+partial link text$`, out)
}

func TestBadConfig(t *testing.T) {
	_, stderr, code := runCLI(t, "strategies", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to initialize configuration")

	cfg, _ := writeConfig(t, "browser:\n  name: safari\n")
	_, stderr, code = runCLI(t, "strategies", "-c", cfg)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "browser.name")
}

func TestReport(t *testing.T) {
	r, err := suite.NewRunner(suite.Options{}, nil, nil)
	require.NoError(t, err)
	report := r.Run(suite.Suite{Name: "demo", Cases: []suite.Case{
		{Name: "test_ok", Run: func(*suite.T) {}},
		{Name: "test_bad", Run: func(t *suite.T) { t.Fatalf("broken") }},
	}})
	path, err := report.Save(t.TempDir(), nil)
	require.NoError(t, err)

	cfg, _ := writeConfig(t, "")
	out, _, code := runCLI(t, "report", path, "-c", cfg)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "failed  demo.test_bad: broken")
	assert.Contains(t, out, "1 passed, 1 failed, 0 errored")

	_, _, code = runCLI(t, "report", "-c", cfg)
	assert.Equal(t, 1, code)
}

func TestCapabilities(t *testing.T) {
	caps, err := capabilities(config.BrowserConfig{
		Name:     "chrome",
		Headless: true,
		Binary:   "/opt/chrome",
		Args:     []string{"window-size=1280,800"},
		LogLevel: "warn",
	})
	require.NoError(t, err)
	assert.Equal(t, "chrome", caps["browserName"])
	c := caps[chrome.CapabilitiesKey].(chrome.Capabilities)
	assert.Equal(t, "/opt/chrome", c.Path)
	assert.Equal(t, append([]string{"--window-size=1280,800"}, chrome.Headless()...), c.Args)
	assert.Equal(t, log.Warning, caps[log.CapabilitiesKey].(log.Capabilities)[log.Browser])

	caps, err = capabilities(config.BrowserConfig{Name: "firefox", Headless: true})
	require.NoError(t, err)
	f := caps[firefox.CapabilitiesKey].(firefox.Capabilities)
	assert.Equal(t, []string{"--headless"}, f.Args)
	assert.NotContains(t, caps, log.CapabilitiesKey)

	_, err = capabilities(config.BrowserConfig{Name: "chrome", LogLevel: "loud"})
	assert.Error(t, err)
	_, err = capabilities(config.BrowserConfig{Name: "safari"})
	assert.Error(t, err)
}

func TestCapabilitiesExtensions(t *testing.T) {
	ext := filepath.Join(t.TempDir(), "ext.crx")
	require.NoError(t, os.WriteFile(ext, []byte("Cr24"), 0o644))

	caps, err := capabilities(config.BrowserConfig{Name: "chrome", Extensions: []string{ext}})
	require.NoError(t, err)
	c := caps[chrome.CapabilitiesKey].(chrome.Capabilities)
	assert.Equal(t, []string{"Q3IyNA=="}, c.Extensions)

	_, err = capabilities(config.BrowserConfig{Name: "chrome", Extensions: []string{ext + ".missing"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading extension")
}

func TestServiceOptions(t *testing.T) {
	logger := zap.NewNop()
	assert.Len(t, serviceOptions(config.BrowserConfig{}, logger), 1)
	assert.Len(t, serviceOptions(config.BrowserConfig{MinDriverVersion: "100"}, logger), 2)
	assert.Len(t, serviceOptions(config.BrowserConfig{FrameBuffer: true}, logger), 2)
	assert.Len(t, serviceOptions(config.BrowserConfig{FrameBuffer: true, ScreenSize: "1280x800"}, logger), 2)
	assert.Len(t, serviceOptions(config.BrowserConfig{Display: "1", XAuthPath: "/tmp/xauth"}, logger), 2)
}

func TestOpenSessionDisplaySettings(t *testing.T) {
	ctx := context.Background()
	base := config.BrowserConfig{Name: "chrome", Backend: config.BackendWebDriver, DriverPath: "no-such-chromedriver"}

	bad := base
	bad.Display = "x.y"
	_, err := openSession(ctx, bad, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supplied display")

	bad = base
	bad.FrameBuffer = true
	bad.ScreenSize = "big"
	_, err = openSession(ctx, bad, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid screen size")

	bad.Backend = config.BackendCDP
	_, err = openSession(ctx, bad, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid screen size")
}

func searchSite(withMap bool) wdtest.Site {
	return wdtest.Site{
		"/": func(url.Values) *wdtest.Document {
			d := &wdtest.Document{
				Title: "百度一下，你就知道",
				Form:  "/s",
				Elements: []*wdtest.Element{
					{Tag: "form", ID: "form"},
					{Tag: "input", ID: "kw", Name: "wd", Type: "text"},
					{Tag: "input", ID: "su", Type: "submit"},
					{Tag: "a", Href: "/news", Text: "新闻"},
				},
			}
			if withMap {
				d.Elements = append(d.Elements, &wdtest.Element{Tag: "a", Href: "/map", Text: "地图"})
			}
			return d
		},
		"/s": func(q url.Values) *wdtest.Document {
			return &wdtest.Document{
				Title:    q.Get("wd") + "_百度搜索",
				Elements: []*wdtest.Element{{Tag: "div", ID: "content_left", Delay: 50 * time.Millisecond}},
			}
		},
	}
}

func runAgainst(t *testing.T, site wdtest.Site, args ...string) (string, string, int) {
	t.Helper()
	srv := wdtest.NewServer(site)
	t.Cleanup(srv.Close)
	cfg, dir := writeConfig(t, fmt.Sprintf("browser:\n  executor_url: %s\n", srv.URL))

	out, stderr, code := runCLI(t, append([]string{"run", "-c", cfg, "--base-url", "http://www.search.test"}, args...)...)
	assert.Equal(t, 0, srv.Sessions(), "session left open")

	reports, err := filepath.Glob(filepath.Join(dir, "report", "*.yaml"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	metrics, err := filepath.Glob(filepath.Join(dir, "report", "*.prom"))
	require.NoError(t, err)
	assert.Len(t, metrics, 1)
	return out, stderr, code
}

func TestRun(t *testing.T) {
	out, stderr, code := runAgainst(t, searchSite(true))
	assert.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "3 passed, 0 failed, 0 errored")
}

func TestRunFilter(t *testing.T) {
	out, _, code := runAgainst(t, searchSite(false), "--run", "suggestions")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "1 passed, 0 failed, 0 errored")
}

func TestRunFailure(t *testing.T) {
	out, stderr, code := runAgainst(t, searchSite(false))
	assert.Equal(t, 1, code)
	assert.Empty(t, stderr)
	assert.Contains(t, out, "search.test_homepage_elements: missing map link")
	assert.Contains(t, out, "2 passed, 1 failed, 0 errored")
}
