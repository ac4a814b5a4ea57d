package types

import (
	"time"

	"github.com/acarl005/stripansi"
)

// ReportSummary condenses a cumulative report for notification sinks and
// the JSON summary file.
type ReportSummary struct {
	RunID       string        `json:"runId"`
	Environment string        `json:"environment"`
	Attempts    int           `json:"attempts"`
	Status      TestStatus    `json:"status"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	FailedTests []FailedTest  `json:"failedTests,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// FailedTest identifies a test that is failing in the cumulative report
type FailedTest struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// Summarize builds a ReportSummary from a cumulative tree
func Summarize(tree *ResultTree, runID, environment string, attempts int, duration time.Duration) ReportSummary {
	counts := tree.Counts()
	summary := ReportSummary{
		RunID:       runID,
		Environment: environment,
		Attempts:    attempts,
		Status:      tree.Status(),
		Total:       counts.Total,
		Passed:      counts.Passed,
		Failed:      counts.Failed,
		Skipped:     counts.Skipped,
		Duration:    duration,
	}
	for _, ref := range tree.Tests() {
		if ref.Test.Status != TestStatusFail {
			continue
		}
		summary.FailedTests = append(summary.FailedTests, FailedTest{
			Name:    ref.LongName(),
			Message: stripansi.Strip(ref.Test.Message),
		})
	}
	return summary
}

// PassRate returns the percentage of executed tests that passed
func (s ReportSummary) PassRate() float64 {
	executed := s.Passed + s.Failed
	if executed == 0 {
		return 0
	}
	return float64(s.Passed) / float64(executed) * 100
}
