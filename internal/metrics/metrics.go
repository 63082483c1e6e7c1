// internal/metrics/metrics.go
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	roundCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competition_rounds_total",
			Help: "Auction rounds by outcome",
		},
		[]string{"outcome"},
	)

	solverResponseCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competition_solver_responses_total",
			Help: "Solver responses by solver and status",
		},
		[]string{"solver", "status"},
	)

	solutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competition_solutions_total",
			Help: "Proposed solutions by solver and validity",
		},
		[]string{"solver", "validity"},
	)

	solveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "competition_solve_duration_seconds",
			Help:    "Time from dispatch to terminal solver outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"solver"},
	)

	submissionAttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_submission_attempts_total",
			Help: "Settlement submission attempts by route and state",
		},
		[]string{"route", "state"},
	)

	submissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_submission_duration_seconds",
			Help:    "Time from winner selection to terminal submission state",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"state"},
	)
)

// Collector manages the process-wide competition metrics.
type Collector struct{}

var registerOnce sync.Once

// NewCollector registers all metrics and returns a collector.
// Registration happens once per process.
func NewCollector() *Collector {
	registerOnce.Do(func() {
		for _, metric := range []prometheus.Collector{
			roundCounter,
			solverResponseCounter,
			solutionCounter,
			solveDuration,
			submissionAttemptCounter,
			submissionDuration,
		} {
			prometheus.MustRegister(metric)
		}
	})
	return &Collector{}
}

// RecordRound records the terminal outcome of one auction round.
func (c *Collector) RecordRound(outcome string) {
	roundCounter.WithLabelValues(outcome).Inc()
}

// RecordSolverResponse records one solver's terminal outcome for a round.
func (c *Collector) RecordSolverResponse(solver, status string, duration time.Duration) {
	solverResponseCounter.WithLabelValues(solver, status).Inc()
	solveDuration.WithLabelValues(solver).Observe(duration.Seconds())
}

// RecordSolutions records how many solutions a solver proposed and how
// many survived validation.
func (c *Collector) RecordSolutions(solver string, valid, rejected int) {
	if valid > 0 {
		solutionCounter.WithLabelValues(solver, "valid").Add(float64(valid))
	}
	if rejected > 0 {
		solutionCounter.WithLabelValues(solver, "rejected").Add(float64(rejected))
	}
}

// RecordSubmissionAttempt records a single mempool submission attempt.
func (c *Collector) RecordSubmissionAttempt(route, state string) {
	submissionAttemptCounter.WithLabelValues(route, state).Inc()
}

// RecordSubmission records the terminal state of a settlement.
func (c *Collector) RecordSubmission(state string, duration time.Duration) {
	submissionDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// Reset clears all metrics. Useful for testing.
func (c *Collector) Reset() {
	roundCounter.Reset()
	solverResponseCounter.Reset()
	solutionCounter.Reset()
	solveDuration.Reset()
	submissionAttemptCounter.Reset()
	submissionDuration.Reset()
}
