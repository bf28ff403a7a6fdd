package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreMetrics defines counters for the temp file store.
type StoreMetrics interface {
	IncRegistered()
	IncDownloads()
	IncReapSweeps()
	AddReapedFiles(n int)
}

// ServerMetrics captures request metrics for the file server.
type ServerMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements StoreMetrics without emitting anything.
type Noop struct{}

func (Noop) IncRegistered()     {}
func (Noop) IncDownloads()      {}
func (Noop) IncReapSweeps()     {}
func (Noop) AddReapedFiles(int) {}

// NoopServer implements ServerMetrics without emitting anything.
type NoopServer struct{}

func (NoopServer) ObserveRequest(string, string, string, float64) {}

// Prom implements StoreMetrics backed by Prometheus counters.
type Prom struct {
	registered  prometheus.Counter
	downloads   prometheus.Counter
	reapSweeps  prometheus.Counter
	reapedFiles prometheus.Counter
	once        sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_registered_total",
			Help:      "Temporary files registered",
		}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Successful file downloads",
		}),
		reapSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reap_sweeps_total",
			Help:      "Reap sweeps executed",
		}),
		reapedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_files_total",
			Help:      "Expired files removed by reap sweeps",
		}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.registered, p.downloads, p.reapSweeps, p.reapedFiles)
	})
}

func (p *Prom) IncRegistered() { p.registered.Inc() }
func (p *Prom) IncDownloads()  { p.downloads.Inc() }
func (p *Prom) IncReapSweeps() { p.reapSweeps.Inc() }
func (p *Prom) AddReapedFiles(n int) {
	if n > 0 {
		p.reapedFiles.Add(float64(n))
	}
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Server metrics ---

type serverProm struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	once     sync.Once
}

// NewServerProm constructs a ServerMetrics with counters/histograms.
func NewServerProm(namespace string) ServerMetrics {
	s := &serverProm{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	s.register()
	return s
}

func (s *serverProm) register() {
	s.once.Do(func() {
		prometheus.MustRegister(s.requests, s.latency)
	})
}

func (s *serverProm) ObserveRequest(method, route, status string, durationSeconds float64) {
	s.requests.WithLabelValues(method, route, status).Inc()
	s.latency.WithLabelValues(route).Observe(durationSeconds)
}
