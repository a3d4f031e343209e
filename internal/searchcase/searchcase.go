// Package searchcase holds the end-to-end scenarios for a search engine
// homepage: a full search, the suggestion box and the homepage landmarks.
package searchcase

import (
	"time"

	. "github.com/onsi/gomega"

	"github.com/wanmail/webdriver/internal/suite"
	"github.com/wanmail/webdriver/locator"
	"github.com/wanmail/webdriver/page"
)

// Scenario inputs.
const (
	Query            = "automation testing"
	SuggestionPrefix = "pyth"

	// ResultsTimeout bounds the wait for the result list after a search.
	ResultsTimeout = 5 * time.Second
)

// Landmark is an element every homepage must show, named by strategy the
// way a case table spells it.
type Landmark struct {
	Name     string
	Strategy string
	Value    string
}

// Landmarks are checked in order by HomepageElements.
var Landmarks = []Landmark{
	{"search box", "id", "kw"},
	{"search button", "id", "su"},
	{"news link", "xpath", "//a[contains(text(),'新闻')]"},
	{"map link", "xpath", "//a[contains(text(),'地图')]"},
}

// New returns the search suite. setup opens the browser session the cases
// share and teardown closes it.
func New(setup func() (*suite.Fixture, error), teardown func(*suite.Fixture) error) suite.Suite {
	return suite.Suite{
		Name:     "search",
		Setup:    setup,
		Teardown: teardown,
		Cases: []suite.Case{
			{Name: "test_search", Run: Search},
			{Name: "test_search_suggestions", Run: Suggestions},
			{Name: "test_homepage_elements", Run: HomepageElements},
		},
	}
}

// Search types Query, submits it and expects a result list and a title
// naming the query.
func Search(t *suite.T) {
	p := t.Page
	t.Expect(p.Open(t.URL("/"))).To(Succeed())

	_, err := p.Find(locator.ID, "kw")
	t.Expect(err).NotTo(HaveOccurred(), "search box not found")

	t.Expect(p.InputText(locator.ID, "kw", Query)).To(Succeed())
	t.Expect(p.Click(locator.ID, "su")).To(Succeed())

	present, err := p.IsPresent(locator.ID, "content_left", page.WithTimeout(ResultsTimeout))
	t.Expect(err).NotTo(HaveOccurred())
	t.Expect(present).To(BeTrue(), "no search results")

	title, err := p.Title()
	t.Expect(err).NotTo(HaveOccurred())
	t.Expect(title).To(ContainSubstring(Query), "page title does not name the query")
}

// Suggestions types a prefix and expects the suggestion form.
func Suggestions(t *suite.T) {
	p := t.Page
	t.Expect(p.Open(t.URL("/"))).To(Succeed())
	t.Expect(p.InputText(locator.ID, "kw", SuggestionPrefix)).To(Succeed())

	present, err := p.IsPresent(locator.ID, "form")
	t.Expect(err).NotTo(HaveOccurred())
	t.Expect(present).To(BeTrue(), "no search suggestions")
}

// HomepageElements expects every landmark on the homepage.
func HomepageElements(t *suite.T) {
	p := t.Page
	t.Expect(p.Open(t.URL("/"))).To(Succeed())

	for _, l := range Landmarks {
		loc, err := locator.New(l.Strategy, l.Value)
		t.Expect(err).NotTo(HaveOccurred(), l.Name)

		present, err := p.IsPresent(loc.Strategy, loc.Value)
		t.Expect(err).NotTo(HaveOccurred())
		t.Expect(present).To(BeTrue(), "missing %s (%s)", l.Name, loc)
	}
}
