package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusFactory is a MetricFactory that registers Prometheus collectors.
// Dotted metric names become snake_case under the factory namespace, with
// counters suffixed _total. Asking twice for a name returns the same
// collector.
type PrometheusFactory struct {
	namespace string
	reg       prometheus.Registerer
	gatherer  prometheus.Gatherer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

var _ MetricFactory = (*PrometheusFactory)(nil)

// NewPrometheusFactory creates a factory registering into reg. A nil reg
// uses a fresh registry.
func NewPrometheusFactory(namespace string, reg *prometheus.Registry) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &PrometheusFactory{
		namespace:  namespace,
		reg:        reg,
		gatherer:   reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: f.namespace,
		Name:      metricName(name) + "_total",
		Help:      "Count of " + name + " events.",
	})
	f.reg.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Name:      metricName(name),
		Help:      "Distribution of " + name + ".",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
	f.reg.MustRegister(h)
	f.histograms[name] = h
	return h
}

// Handler serves the factory's registry in the Prometheus exposition format.
func (f *PrometheusFactory) Handler() http.Handler {
	return promhttp.HandlerFor(f.gatherer, promhttp.HandlerOpts{})
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
