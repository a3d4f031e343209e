package suite

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Outcome of a case.
type Outcome string

// Case outcomes. Errored covers panics and setup failures.
const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Errored Outcome = "errored"
)

// CaseResult is the recorded outcome of one case.
type CaseResult struct {
	Suite    string        `yaml:"suite"`
	Name     string        `yaml:"name"`
	Outcome  Outcome       `yaml:"outcome"`
	Duration time.Duration `yaml:"duration"`
	Message  string        `yaml:"message,omitempty"`
}

// Report summarizes one runner invocation.
type Report struct {
	RunID    string        `yaml:"run_id"`
	Started  time.Time     `yaml:"started"`
	Duration time.Duration `yaml:"duration"`
	Passed   int           `yaml:"passed"`
	Failed   int           `yaml:"failed"`
	Errored  int           `yaml:"errored"`
	Cases    []CaseResult  `yaml:"cases"`
}

func (r *Report) add(res CaseResult) {
	r.Cases = append(r.Cases, res)
	switch res.Outcome {
	case Passed:
		r.Passed++
	case Failed:
		r.Failed++
	default:
		r.Errored++
	}
}

// Results returns the cases with the given outcome.
func (r *Report) Results(o Outcome) []CaseResult {
	return lo.Filter(r.Cases, func(c CaseResult, _ int) bool {
		return c.Outcome == o
	})
}

// ExitCode is 0 when every case passed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Failed+r.Errored > 0 {
		return 1
	}
	return 0
}

// WriteYAML encodes the report to w.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return enc.Close()
}

// Save writes the report to <dir>/<run id>.yaml and the gathered metrics to
// <dir>/<run id>.prom, and returns the report path.
func (r *Report) Save(dir string, g prometheus.Gatherer) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating report directory")
	}
	path := filepath.Join(dir, r.RunID+".yaml")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "creating report file")
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "closing report file")
	}
	if g != nil {
		if err := prometheus.WriteToTextfile(filepath.Join(dir, r.RunID+".prom"), g); err != nil {
			return "", errors.Wrap(err, "writing metrics")
		}
	}
	return path, nil
}

// LoadReport reads a report written by Save.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading report")
	}
	r := new(Report)
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, errors.Wrapf(err, "parsing report %s", path)
	}
	return r, nil
}
