package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("merge error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("output.xml@attempt#2"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("robot   crashed"),
		},
	}

	validLabelRegex := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			assert.Regexp(t, validLabelRegex, result)
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	before := value(t, errorsTotal.WithLabelValues("notify.boom"))
	RecordErrorDetails("notify", nil)
	RecordErrorDetails("notify", errors.New("boom"))
	assert.Equal(t, before+1, value(t, errorsTotal.WithLabelValues("notify.boom")))
}

func TestRecordAttempt(t *testing.T) {
	before := value(t, attemptsTotal.WithLabelValues("dev", "failing"))
	RecordAttempt("dev", 2, types.RunScopeFailing, 90*time.Second)
	assert.Equal(t, before+1, value(t, attemptsTotal.WithLabelValues("dev", "failing")))
	assert.Equal(t, 90.0, value(t, attemptDuration.WithLabelValues("dev", "2")))
}

func TestRecordRun(t *testing.T) {
	RecordRun("test", "run1", types.TestStatusFail, types.ResultStats{Total: 5, Passed: 3, Failed: 1, Skipped: 1}, time.Minute)
	assert.Equal(t, 1.0, value(t, runResults.WithLabelValues("test", "run1", "FAIL")))
	assert.Equal(t, 3.0, value(t, testResults.WithLabelValues("test", "run1", "PASS")))
	assert.Equal(t, 1.0, value(t, testResults.WithLabelValues("test", "run1", "FAIL")))

	// NOT RUN is never a run result
	RecordRun("test", "run2", types.TestStatusNotRun, types.ResultStats{}, time.Second)
	assert.Equal(t, 0.0, value(t, runResults.WithLabelValues("test", "run2", "NOT RUN")))
}

func TestRecordNotification(t *testing.T) {
	sent := value(t, notificationsTotal.WithLabelValues("sent"))
	failed := value(t, notificationsTotal.WithLabelValues("failed"))
	RecordNotification(nil)
	RecordNotification(errors.New("webhook down"))
	assert.Equal(t, sent+1, value(t, notificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, failed+1, value(t, notificationsTotal.WithLabelValues("failed")))
}

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}
