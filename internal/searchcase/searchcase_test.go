package searchcase

import (
	"net/url"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wanmail/webdriver"
	"github.com/wanmail/webdriver/internal/suite"
	"github.com/wanmail/webdriver/internal/wdtest"
	"github.com/wanmail/webdriver/locator"
	"github.com/wanmail/webdriver/page"
)

const baseURL = "http://www.search.test"

func searchSite(withMap bool) wdtest.Site {
	return wdtest.Site{
		"/": func(url.Values) *wdtest.Document {
			d := &wdtest.Document{
				Title: "百度一下，你就知道",
				Form:  "/s",
				Elements: []*wdtest.Element{
					{Tag: "form", ID: "form", Name: "f"},
					{Tag: "input", ID: "kw", Name: "wd", Type: "text"},
					{Tag: "input", ID: "su", Type: "submit", Value: "百度一下"},
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
				Title: q.Get("wd") + "_百度搜索",
				Elements: []*wdtest.Element{
					{Tag: "div", ID: "content_left", Text: "results", Delay: 100 * time.Millisecond},
				},
			}
		},
	}
}

func runSearch(t *testing.T, site wdtest.Site, reg *prometheus.Registry) *suite.Report {
	t.Helper()
	srv := wdtest.NewServer(site)
	t.Cleanup(srv.Close)

	cfg := page.DefaultConfig()
	cfg.PresenceTimeout = 200 * time.Millisecond
	cfg.PollInterval = 20 * time.Millisecond
	cfg.ScreenshotDir = t.TempDir()

	var wd webdriver.WebDriver
	s := New(
		func() (*suite.Fixture, error) {
			var err error
			if wd, err = webdriver.NewRemote(nil, srv.URL); err != nil {
				return nil, err
			}
			p := page.New(wd, cfg, nil, page.WithMetrics(page.NewMetrics(reg)))
			return &suite.Fixture{Page: p, BaseURL: baseURL}, nil
		},
		func(*suite.Fixture) error { return wd.Quit() },
	)

	r, err := suite.NewRunner(suite.Options{}, nil, reg)
	if err != nil {
		t.Fatalf("NewRunner() returned error: %v", err)
	}
	report := r.Run(s)
	if n := srv.Sessions(); n != 0 {
		t.Errorf("%d sessions left open", n)
	}
	return report
}

func TestSearchSuite(t *testing.T) {
	g := NewWithT(t)
	reg := prometheus.NewRegistry()

	report := runSearch(t, searchSite(true), reg)

	g.Expect(report.Cases).To(HaveLen(3))
	for _, c := range report.Cases {
		g.Expect(c.Outcome).To(Equal(suite.Passed), "%s: %s", c.Name, c.Message)
	}
	g.Expect(report.ExitCode()).To(Equal(0))

	count, err := testutil.GatherAndCount(reg, "pagerun_page_operations_total")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(count).To(BeNumerically(">", 0))
}

func TestHomepageMissingLandmark(t *testing.T) {
	g := NewWithT(t)

	report := runSearch(t, searchSite(false), prometheus.NewRegistry())

	failed := report.Results(suite.Failed)
	g.Expect(failed).To(HaveLen(1))
	g.Expect(failed[0].Name).To(Equal("test_homepage_elements"))
	g.Expect(failed[0].Message).To(ContainSubstring("missing map link"))
	g.Expect(report.ExitCode()).To(Equal(1))
}

func TestLandmarksParse(t *testing.T) {
	g := NewWithT(t)
	for _, l := range Landmarks {
		_, err := locator.New(l.Strategy, l.Value)
		g.Expect(err).NotTo(HaveOccurred(), l.Name)
	}
}

func TestSuiteCases(t *testing.T) {
	g := NewWithT(t)
	s := New(nil, nil)
	g.Expect(s.Name).To(Equal("search"))

	var names []string
	for _, c := range s.Cases {
		names = append(names, c.Name)
	}
	g.Expect(names).To(Equal([]string{"test_search", "test_search_suggestions", "test_homepage_elements"}))
}
