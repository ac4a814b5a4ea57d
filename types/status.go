// Package types contains the result-tree model shared by the rerun pipeline
package types

import (
	"fmt"
	"strings"
)

// TestStatus represents the possible states of a test or suite execution
type TestStatus string

const (
	TestStatusPass   TestStatus = "PASS"
	TestStatusFail   TestStatus = "FAIL"
	TestStatusSkip   TestStatus = "SKIP"
	TestStatusNotRun TestStatus = "NOT RUN"
)

// String implements the Stringer interface for TestStatus
func (s TestStatus) String() string {
	return string(s)
}

// ParseTestStatus converts a status attribute into a TestStatus.
// Matching is case-insensitive so that hand-written fixtures are accepted.
func ParseTestStatus(s string) (TestStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return TestStatusPass, nil
	case "FAIL":
		return TestStatusFail, nil
	case "SKIP":
		return TestStatusSkip, nil
	case "NOT RUN", "NOT_RUN":
		return TestStatusNotRun, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// ReduceStatus derives the final status of a test from the statuses recorded
// by every attempt that executed it, oldest first.
//
// A test that passed in any attempt is PASS. Otherwise the latest attempt
// that actually ran the test decides, so a FAIL followed by a SKIP is SKIP.
// NOT RUN entries never override an executed status.
func ReduceStatus(history []TestStatus) TestStatus {
	latest := TestStatusNotRun
	for _, status := range history {
		switch status {
		case TestStatusPass:
			return TestStatusPass
		case TestStatusFail, TestStatusSkip:
			latest = status
		}
	}
	return latest
}

// determineStatusFromFlags returns a status based on test results.
// It prioritizes failures over skips - if any test failed, the overall status is fail.
func determineStatusFromFlags(allSkipped, anyFailed bool) TestStatus {
	if anyFailed {
		return TestStatusFail
	}
	if allSkipped {
		return TestStatusSkip
	}
	return TestStatusPass
}
