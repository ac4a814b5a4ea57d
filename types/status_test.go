package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTestStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected TestStatus
		wantErr  bool
	}{
		{"PASS", TestStatusPass, false},
		{"fail", TestStatusFail, false},
		{" Skip ", TestStatusSkip, false},
		{"NOT RUN", TestStatusNotRun, false},
		{"NOT_RUN", TestStatusNotRun, false},
		{"ERROR", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, err := ParseTestStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, status)
		})
	}
}

func TestReduceStatus(t *testing.T) {
	tests := []struct {
		name     string
		history  []TestStatus
		expected TestStatus
	}{
		{"empty history", nil, TestStatusNotRun},
		{"single pass", []TestStatus{TestStatusPass}, TestStatusPass},
		{"single fail", []TestStatus{TestStatusFail}, TestStatusFail},
		{"fail then pass", []TestStatus{TestStatusFail, TestStatusPass}, TestStatusPass},
		{"pass then fail", []TestStatus{TestStatusPass, TestStatusFail}, TestStatusPass},
		{"fail then skip", []TestStatus{TestStatusFail, TestStatusSkip}, TestStatusSkip},
		{"skip then fail", []TestStatus{TestStatusSkip, TestStatusFail}, TestStatusFail},
		{"skip then pass", []TestStatus{TestStatusSkip, TestStatusPass}, TestStatusPass},
		{"fail then not run", []TestStatus{TestStatusFail, TestStatusNotRun}, TestStatusFail},
		{"only not run", []TestStatus{TestStatusNotRun, TestStatusNotRun}, TestStatusNotRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReduceStatus(tt.history))
		})
	}
}

func TestDetermineStatusFromFlags(t *testing.T) {
	assert.Equal(t, TestStatusFail, determineStatusFromFlags(true, true))
	assert.Equal(t, TestStatusFail, determineStatusFromFlags(false, true))
	assert.Equal(t, TestStatusSkip, determineStatusFromFlags(true, false))
	assert.Equal(t, TestStatusPass, determineStatusFromFlags(false, false))
}
