package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FailMarker is the file a running suite writes once it has failed, so the
// remaining tests of the run can skip themselves. Its absence means nothing
// has failed yet. It only saves time; results never depend on it.
type FailMarker struct {
	path string
}

// NewFailMarker creates a marker backed by path
func NewFailMarker(path string) *FailMarker {
	return &FailMarker{path: path}
}

// Path returns the marker file location
func (m *FailMarker) Path() string {
	return m.path
}

// Env returns the environment entry exporting the marker to a child process
func (m *FailMarker) Env() string {
	return fmt.Sprintf("%s=%s", FailMarkerEnvVar, m.path)
}

// Reset clears the marker before an attempt
func (m *FailMarker) Reset() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to reset fail marker: %w", err)
	}
	return nil
}

// Mark records that suite has failed
func (m *FailMarker) Mark(suite string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create fail marker directory: %w", err)
	}
	return os.WriteFile(m.path, []byte(suite+"\n"), 0644)
}

// IsMarked reports whether a failure has been recorded since the last Reset
func (m *FailMarker) IsMarked() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
