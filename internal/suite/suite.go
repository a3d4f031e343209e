// Package suite runs browser test cases in process: it selects cases by name,
// gives each one a gomega-backed T, times and logs every case and collects
// the outcomes in a Report.
package suite

import (
	"fmt"
	"strings"

	"github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver/page"
)

// Fixture is the state Setup prepares for every case of a suite.
type Fixture struct {
	Page    *page.Page
	BaseURL string
}

// Suite is a group of cases sharing one fixture, typically one browser
// session.
type Suite struct {
	Name string
	// Setup runs once before the first selected case. It is skipped when no
	// case is selected.
	Setup func() (*Fixture, error)
	// Teardown runs once after the last case, even when cases fail.
	Teardown func(*Fixture) error
	Cases    []Case
}

// Case is one named test.
type Case struct {
	Name string
	Run  func(t *T)
}

// Failure is the error recorded for a case whose expectation failed.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// failNow unwinds a case after a failed expectation.
type failNow struct {
	message string
}

// T is handed to a running case. Expectations made through the embedded
// Gomega stop the case at the first failure.
type T struct {
	gomega.Gomega
	*Fixture

	Logger *zap.Logger
	name   string
}

func newT(name string, fx *Fixture, logger *zap.Logger) *T {
	if fx == nil {
		fx = &Fixture{}
	}
	t := &T{Fixture: fx, Logger: logger, name: name}
	t.Gomega = gomega.NewGomega(t.fail)
	return t
}

func (t *T) fail(message string, _ ...int) {
	panic(failNow{message: message})
}

// Name returns the case name.
func (t *T) Name() string {
	return t.name
}

// Fatalf fails the case with a formatted message.
func (t *T) Fatalf(format string, args ...interface{}) {
	t.fail(fmt.Sprintf(format, args...))
}

// URL joins path onto the fixture base URL with exactly one slash between
// them.
func (t *T) URL(path string) string {
	return strings.TrimSuffix(t.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (t *T) run(fn func(*T)) (err error) {
	defer func() {
		switch v := recover().(type) {
		case nil:
		case failNow:
			err = &Failure{Message: v.message}
		default:
			err = errors.Errorf("panic: %v", v)
		}
	}()
	fn(t)
	return nil
}
