// Package exitcodes defines the exit codes of robot-rerun.
package exitcodes

// Exit code constants used by robot-rerun:
//
// * Success (0): every test in the cumulative report passed or was skipped
// * TestFailure (1): tests were still failing after the last attempt
// * RuntimeErr (2): invalid configuration, a first attempt without results,
// or any other failure of the pipeline itself
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime or configuration errors
)
