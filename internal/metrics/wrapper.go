package metrics

// ClassifierTracker adapts Metrics to the narrow tracker interface the
// classifier package consumes.
type ClassifierTracker struct {
	m *Metrics
}

// Tracker returns the classifier-facing view of the metrics.
func (m *Metrics) Tracker() *ClassifierTracker {
	return &ClassifierTracker{m: m}
}

func (t *ClassifierTracker) ClassifierPredictionsInc() { t.m.ClassifierPredictions.Inc() }
func (t *ClassifierTracker) ClassifierFailuresInc()    { t.m.ClassifierFailures.Inc() }
func (t *ClassifierTracker) ClassifierTimeoutsInc()    { t.m.ClassifierTimeouts.Inc() }

func (t *ClassifierTracker) ClassifierLatencyObserve(seconds float64) {
	t.m.ClassifierLatency.Observe(seconds)
}
