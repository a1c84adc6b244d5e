package dag

import "github.com/prometheus/client_golang/prometheus"

// newTestMetrics returns a Metrics instance registered against a fresh,
// private Prometheus registry so repeated calls across test functions
// never collide on the default global registerer.
func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
