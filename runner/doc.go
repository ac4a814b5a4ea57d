// Package runner executes Robot Framework suites and drives the rerun loop.
//
// The main components are:
//   - Backend: runs one attempt described by a RunSpec and returns its result tree
//   - RobotBackend: a single robot process per attempt
//   - PoolBackend: fans suites out across worker goroutines, each delegating to a Backend
//   - FailMarker: the file a running suite checks to stop after its first failure
//   - Orchestrator: runs the initial attempt, reruns failing suites and merges every attempt
//
// Attempts never overlap: the scope of an attempt is computed from the
// cumulative report after the previous attempt has been merged.
package runner
