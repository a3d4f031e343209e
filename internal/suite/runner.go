package suite

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver/internal/observability"
)

// DefaultPattern selects cases named like test_<something>.
const DefaultPattern = "^test_"

// Options selects the cases a Runner executes.
type Options struct {
	// Pattern marks a case as a test. Empty means DefaultPattern.
	Pattern string
	// Run further restricts the selected cases. Empty runs them all.
	Run string
}

type metrics struct {
	cases    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagerun",
			Subsystem: "suite",
			Name:      "cases_total",
			Help:      "Executed cases by suite and outcome.",
		}, []string{"suite", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pagerun",
			Subsystem: "suite",
			Name:      "case_duration_seconds",
			Help:      "Wall time of each case.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"suite"}),
	}
}

// Runner executes suites in order, one case at a time.
type Runner struct {
	pattern *regexp.Regexp
	filter  *regexp.Regexp
	logger  *zap.Logger
	metrics *metrics
}

// NewRunner compiles the selection options. Case metrics are registered with
// reg when it is not nil.
func NewRunner(opts Options, logger *zap.Logger, reg prometheus.Registerer) (*Runner, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	pattern, err := regexp.Compile(opts.Pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid case pattern %q", opts.Pattern)
	}
	r := &Runner{pattern: pattern, logger: logger}
	if opts.Run != "" {
		if r.filter, err = regexp.Compile(opts.Run); err != nil {
			return nil, errors.Wrapf(err, "invalid run filter %q", opts.Run)
		}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("suite")
	if reg != nil {
		r.metrics = newMetrics(reg)
	}
	return r, nil
}

// Select returns the cases of s the runner would execute, in order.
func (r *Runner) Select(s Suite) []Case {
	return lo.Filter(s.Cases, func(c Case, _ int) bool {
		return r.pattern.MatchString(c.Name) && (r.filter == nil || r.filter.MatchString(c.Name))
	})
}

// Run executes the suites and reports every selected case.
func (r *Runner) Run(suites ...Suite) *Report {
	report := &Report{RunID: uuid.NewString(), Started: time.Now()}
	logger := r.logger.With(zap.String("run_id", report.RunID))

	_ = observability.Timed(logger, "test run", func() error {
		for _, s := range suites {
			r.runSuite(logger, s, report)
		}
		if report.ExitCode() != 0 {
			return errors.Errorf("%d failed, %d errored of %d cases", report.Failed, report.Errored, len(report.Cases))
		}
		return nil
	})
	report.Duration = time.Since(report.Started)

	if report.ExitCode() == 0 {
		observability.Success(logger, "all cases passed", zap.Int("cases", len(report.Cases)))
	} else {
		logger.Warn("run finished with failures", zap.Int("exit_code", report.ExitCode()))
	}
	return report
}

func (r *Runner) runSuite(logger *zap.Logger, s Suite, report *Report) {
	logger = logger.With(zap.String("suite", s.Name))
	cases := r.Select(s)
	if len(cases) == 0 {
		logger.Info("no cases selected")
		return
	}

	fx := &Fixture{}
	if s.Setup != nil {
		var err error
		if fx, err = s.Setup(); err != nil {
			logger.Error("setup failed", zap.Error(err))
			for _, c := range cases {
				r.record(report, CaseResult{
					Suite:   s.Name,
					Name:    c.Name,
					Outcome: Errored,
					Message: "setup: " + err.Error(),
				})
			}
			return
		}
	}
	defer func() {
		if s.Teardown == nil {
			return
		}
		if err := s.Teardown(fx); err != nil {
			logger.Warn("teardown failed", zap.Error(err))
		}
	}()

	for _, c := range cases {
		r.record(report, r.runCase(logger, s.Name, c, fx))
	}
}

func (r *Runner) runCase(logger *zap.Logger, suiteName string, c Case, fx *Fixture) CaseResult {
	logger = logger.With(zap.String("case", c.Name))
	t := newT(c.Name, fx, logger)

	start := time.Now()
	err := observability.Timed(logger, c.Name, func() error {
		return t.run(c.Run)
	})
	res := CaseResult{
		Suite:    suiteName,
		Name:     c.Name,
		Outcome:  Passed,
		Duration: time.Since(start),
	}
	var failure *Failure
	switch {
	case err == nil:
	case errors.As(err, &failure):
		res.Outcome = Failed
		res.Message = failure.Message
	default:
		res.Outcome = Errored
		res.Message = err.Error()
	}
	return res
}

func (r *Runner) record(report *Report, res CaseResult) {
	report.add(res)
	if r.metrics == nil {
		return
	}
	r.metrics.cases.WithLabelValues(res.Suite, string(res.Outcome)).Inc()
	r.metrics.duration.WithLabelValues(res.Suite).Observe(res.Duration.Seconds())
}
