package runner

import "time"

const (
	// DefaultRobotBinary is the test runner invoked by RobotBackend
	DefaultRobotBinary = "robot"

	// DefaultKeywordListener prints keywords to the console as they run
	DefaultKeywordListener = "listeners/KeywordListener.py"

	// DefaultAttemptTimeout bounds a single attempt when no timeout is set
	DefaultAttemptTimeout = 2 * time.Hour

	// FailMarkerEnvVar exports the fail marker path to the robot process
	FailMarkerEnvVar = "FAIL_MARKER_FILE"

	// AttemptDirPrefix names per-attempt output directories
	AttemptDirPrefix = "attempt-"

	// ConsoleLogFile receives the robot console output of an attempt
	ConsoleLogFile = "console.log"

	// Robot exit codes: 1-250 count failed tests, above that the run itself failed
	maxFailureExitCode = 250

	// processWaitDelay bounds the wait for output after robot has exited
	processWaitDelay = 10 * time.Second

	// MaxReasonableConcurrency caps the number of pool workers
	MaxReasonableConcurrency = 16
)
