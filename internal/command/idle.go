package command

import "time"

// idleTracker decides when a foreground process has gone quiet. Samples
// below the threshold accumulate consecutive quiet time; one busy sample
// throws the accumulation away, so bursty processes like build tools do not
// read as finished between compile steps.
type idleTracker struct {
	Threshold float64
	Window    time.Duration

	quietSince time.Time
}

// Observe feeds one CPU sample taken at now and reports whether the process
// has stayed quiet for the full window.
func (tr *idleTracker) Observe(now time.Time, cpuPercent float64) bool {
	if cpuPercent >= tr.Threshold {
		tr.quietSince = time.Time{}
		return false
	}
	if tr.quietSince.IsZero() {
		tr.quietSince = now
	}
	return now.Sub(tr.quietSince) >= tr.Window
}
