// Package anomaly treats sustained drops (or spikes) in compression
// ratio as a drift signal: a sliding z-score over recent ratios (spec
// §4.9). A low ratio means the engine is seeing genuinely novel content;
// a high ratio means suspicious duplication or a feedback loop.
package anomaly

import (
	"math"
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is one anomalous observation.
type Alert struct {
	Timestamp time.Time
	Label     string
	Ratio     float64
	ZScore    float64
	Mean      float64
	StdDev    float64
	Severity  Severity
}

// DriftReport summarizes the current state of the sliding window.
type DriftReport struct {
	WindowSize  int
	Mean        float64
	StdDev      float64
	Trend       float64
	AlertsCount int
	IsDrifting  bool
}

// Detector maintains a ring buffer of recent compression ratios and
// flags observations that deviate sharply from the window's mean.
type Detector struct {
	windowSize int
	zLow       float64
	zHigh      float64
	minStdDev  float64

	history  []float64 // ring buffer, oldest first
	alerts   []Alert
	obsCount int

	now func() time.Time
}

// Option configures a Detector at construction time.
type Option func(*Detector)

func WithZThresholds(low, high float64) Option {
	return func(d *Detector) { d.zLow, d.zHigh = low, high }
}

// WithMinStdDev sets the floor substituted for a zero-variance window,
// addressing spec §9 open question 3 by making it a configurable knob
// rather than a hardcoded constant.
func WithMinStdDev(min float64) Option {
	return func(d *Detector) { d.minStdDev = min }
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func New(windowSize int, opts ...Option) *Detector {
	d := &Detector{
		windowSize: windowSize,
		zLow:       -2.0,
		zHigh:      3.0,
		minStdDev:  0.001,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe records ratio (original_size / compressed_size) and returns an
// Alert if it deviates sharply from the recent window. The ratio is
// appended to the window either way.
func (d *Detector) Observe(ratio float64, label string) *Alert {
	d.obsCount++

	if len(d.history) < 5 {
		d.pushHistory(ratio)
		return nil
	}

	mean, std := meanStdDev(d.history, d.minStdDev)
	z := (ratio - mean) / std

	var alert *Alert
	switch {
	case z < d.zLow:
		severity := SeverityMedium
		if z < d.zLow*1.5 {
			severity = SeverityHigh
		}
		alert = &Alert{Timestamp: d.now(), Label: label, Ratio: ratio, ZScore: z, Mean: mean, StdDev: std, Severity: severity}
	case z > d.zHigh:
		severity := SeverityLow
		if z > d.zHigh*1.5 {
			severity = SeverityMedium
		}
		alert = &Alert{Timestamp: d.now(), Label: label, Ratio: ratio, ZScore: z, Mean: mean, StdDev: std, Severity: severity}
	}

	if alert != nil {
		d.alerts = append(d.alerts, *alert)
	}
	d.pushHistory(ratio)
	return alert
}

func (d *Detector) pushHistory(ratio float64) {
	d.history = append(d.history, ratio)
	if len(d.history) > d.windowSize {
		d.history = d.history[len(d.history)-d.windowSize:]
	}
}

// DriftReport summarizes drift over the current window: mean, std,
// trend (second-half mean minus first-half mean), and whether the
// detector is drifting: that trend exceeds the window's own variability,
// or a medium/high alert has been recorded.
func (d *Detector) DriftReport() DriftReport {
	if len(d.history) < 2 {
		mean := 0.0
		if len(d.history) == 1 {
			mean = d.history[0]
		}
		return DriftReport{WindowSize: len(d.history), Mean: mean, AlertsCount: len(d.alerts)}
	}

	mean, std := meanStdDev(d.history, 0)

	half := len(d.history) / 2
	firstHalf := average(d.history[:half])
	secondHalf := average(d.history[half:])
	trend := secondHalf - firstHalf

	var drifting bool
	if std > 0 {
		drifting = math.Abs(trend) > std
	} else {
		drifting = math.Abs(trend) > 0.5
	}
	// A single sharp shock near the tail of a long window moves the
	// half-split trend and the window's own std by comparable amounts,
	// so the ratio test above can miss it even though observe() already
	// flagged it. A confirmed medium/high alert is its own evidence of
	// drift, so it also sets IsDrifting.
	if !drifting {
		for _, a := range d.alerts {
			if a.Severity == SeverityMedium || a.Severity == SeverityHigh {
				drifting = true
				break
			}
		}
	}

	return DriftReport{
		WindowSize:  len(d.history),
		Mean:        mean,
		StdDev:      std,
		Trend:       trend,
		AlertsCount: len(d.alerts),
		IsDrifting:  drifting,
	}
}

func (d *Detector) Alerts() []Alert {
	out := make([]Alert, len(d.alerts))
	copy(out, d.alerts)
	return out
}

func (d *Detector) ObservationCount() int { return d.obsCount }

func (d *Detector) Reset() {
	d.history = nil
	d.alerts = nil
	d.obsCount = 0
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// meanStdDev computes population mean/stddev over xs. If variance is
// zero, floor is substituted for std (pass 0 to leave it exactly 0).
func meanStdDev(xs []float64, floor float64) (mean, std float64) {
	mean = average(xs)
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	if variance > 0 {
		std = math.Sqrt(variance)
	} else {
		std = floor
	}
	return mean, std
}
