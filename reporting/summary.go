package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// SummaryFile is written next to the cumulative result document
const SummaryFile = "summary.json"

// WriteSummary writes summary as indented JSON to dir/summary.json
func WriteSummary(dir string, summary types.ReportSummary) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}
	path := filepath.Join(dir, SummaryFile)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

// ReadSummary reads a summary written by WriteSummary
func ReadSummary(path string) (types.ReportSummary, error) {
	var summary types.ReportSummary
	data, err := os.ReadFile(path)
	if err != nil {
		return summary, fmt.Errorf("failed to read summary: %w", err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("failed to decode summary %s: %w", path, err)
	}
	return summary, nil
}
