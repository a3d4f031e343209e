// Package locator maps the short strategy names used by page scripts onto the
// native WebDriver location strategies.
package locator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/wanmail/webdriver"
)

// ErrUnsupportedStrategy is returned for a strategy name outside the fixed set.
var ErrUnsupportedStrategy = errors.New("unsupported locator strategy")

// Strategy is a symbolic element location strategy.
type Strategy string

// The recognised strategies.
const (
	ID          Strategy = "id"
	Name        Strategy = "name"
	Tag         Strategy = "tag"
	Class       Strategy = "class"
	Link        Strategy = "link"
	PartialLink Strategy = "plink"
	CSS         Strategy = "css"
	XPath       Strategy = "xpath"
)

var native = map[Strategy]string{
	ID:          webdriver.ByID,
	Name:        webdriver.ByName,
	Tag:         webdriver.ByTagName,
	Class:       webdriver.ByClassName,
	Link:        webdriver.ByLinkText,
	PartialLink: webdriver.ByPartialLinkText,
	CSS:         webdriver.ByCSSSelector,
	XPath:       webdriver.ByXPATH,
}

// Parse validates a strategy name.
func Parse(name string) (Strategy, error) {
	s := Strategy(name)
	if _, ok := native[s]; !ok {
		return "", errors.Wrapf(ErrUnsupportedStrategy, "%q", name)
	}
	return s, nil
}

// Native returns the WebDriver strategy s stands for.
func (s Strategy) Native() (string, error) {
	by, ok := native[s]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedStrategy, "%q", string(s))
	}
	return by, nil
}

// Valid reports whether s is one of the recognised strategies.
func (s Strategy) Valid() bool {
	_, ok := native[s]
	return ok
}

// Strategies returns every recognised strategy in name order.
func Strategies() []Strategy {
	keys := lo.Keys(native)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Locator is a strategy paired with the value to look for.
type Locator struct {
	Strategy Strategy
	Value    string
}

// New returns the locator for a strategy name and value.
func New(strategy, value string) (Locator, error) {
	s, err := Parse(strategy)
	if err != nil {
		return Locator{}, err
	}
	return Locator{Strategy: s, Value: value}, nil
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// ArtifactName is the screenshot name used when l cannot be resolved. Path
// separators in the value are replaced so the name stays a single file.
func (l Locator) ArtifactName() string {
	return pathSeparators.Replace(fmt.Sprintf("element_not_found_%s_%s", l.Strategy, l.Value))
}
