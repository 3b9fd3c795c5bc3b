package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestObserveNoAlertUntilWindowWarm(t *testing.T) {
	d := New(10)
	for i := 0; i < 4; i++ {
		alert := d.Observe(3.0, "warmup")
		assert.Nil(t, alert)
	}
}

func TestObserveFlagsSharpDrop(t *testing.T) {
	d := New(20, WithClock(fixedClock(time.Unix(0, 0))))
	for i := 0; i < 10; i++ {
		d.Observe(4.0, "steady")
	}
	alert := d.Observe(0.1, "sudden-drop")
	require.NotNil(t, alert)
	assert.Less(t, alert.ZScore, 0.0)
}

func TestObserveFlagsSharpSpike(t *testing.T) {
	d := New(20)
	for i := 0; i < 10; i++ {
		d.Observe(4.0, "steady")
	}
	alert := d.Observe(50.0, "sudden-spike")
	require.NotNil(t, alert)
	assert.Greater(t, alert.ZScore, 0.0)
}

func TestDriftReportReflectsTrend(t *testing.T) {
	d := New(10)
	for _, r := range []float64{1, 1, 1, 1, 1, 10, 10, 10, 10, 10} {
		d.Observe(r, "trend")
	}
	report := d.DriftReport()
	assert.Greater(t, report.Trend, 0.0)
}

// TestScenarioS5AnomalyOnNovelty exercises spec scenario S5: a long run
// of steady high ratios followed by one sharp drop should raise exactly
// one medium-or-high-severity alert and leave the detector reporting
// drift.
func TestScenarioS5AnomalyOnNovelty(t *testing.T) {
	d := New(30)
	for i := 0; i < 25; i++ {
		alert := d.Observe(20.0, "steady")
		assert.Nil(t, alert)
	}
	alert := d.Observe(1.0, "novel")
	require.NotNil(t, alert)
	assert.Contains(t, []Severity{SeverityMedium, SeverityHigh}, alert.Severity)
	assert.Equal(t, 1, len(d.Alerts()))

	report := d.DriftReport()
	assert.True(t, report.IsDrifting)
}

func TestResetClearsState(t *testing.T) {
	d := New(10)
	d.Observe(1.0, "x")
	d.Reset()
	assert.Equal(t, 0, d.ObservationCount())
	assert.Empty(t, d.Alerts())
}
