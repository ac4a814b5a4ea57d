package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

const (
	MetricsNamespace = "robot_rerun"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "attempts_total",
		Help:      "Count of execution attempts",
	}, []string{
		"environment",
		"scope",
	})

	attemptDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "attempt_duration_seconds",
		Help:      "Duration of an execution attempt",
	}, []string{
		"environment",
		"attempt",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Final result of a run",
	}, []string{
		"environment",
		"run_id",
		"result",
	})

	testResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results",
		Help:      "Number of tests per final status in the cumulative report",
	}, []string{
		"environment",
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a run across all attempts",
	}, []string{
		"environment",
		"run_id",
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "notifications_total",
		Help:      "Count of notifications sent",
	}, []string{
		"result",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordAttempt records a finished execution attempt
func RecordAttempt(environment string, attempt int, scope types.RunScope, duration time.Duration) {
	if Debug {
		log.Debug("metric inc",
			"m", "attempts_total",
			"environment", environment,
			"attempt", attempt,
			"scope", scope)
	}
	attemptsTotal.WithLabelValues(environment, string(scope)).Inc()
	attemptDuration.WithLabelValues(environment, strconv.Itoa(attempt)).Set(duration.Seconds())
}

// RecordRun records the outcome of the cumulative report
func RecordRun(environment string, runID string, result types.TestStatus, counts types.ResultStats, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordRun - invalid result", "result", result)
		return
	}
	runResults.WithLabelValues(environment, runID, string(result)).Set(1)
	testResults.WithLabelValues(environment, runID, string(types.TestStatusPass)).Set(float64(counts.Passed))
	testResults.WithLabelValues(environment, runID, string(types.TestStatusFail)).Set(float64(counts.Failed))
	testResults.WithLabelValues(environment, runID, string(types.TestStatusSkip)).Set(float64(counts.Skipped))
	runDuration.WithLabelValues(environment, runID).Set(duration.Seconds())
}

// RecordNotification counts a notification attempt by outcome
func RecordNotification(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(result).Inc()
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
