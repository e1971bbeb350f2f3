// Package metrics exposes cache and HTTP statistics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pario-ai/fcagent/pkg/models"
)

const namespace = "fcagent"

// StatsSource is anything that can report cache statistics on demand.
type StatsSource interface {
	Stats() models.CacheStats
}

// Collector owns a private registry with the HTTP request metrics and,
// once RegisterCache is called, a scrape-time view of the cache.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates a Collector with request metrics registered.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled",
		},
		[]string{"route", "code"},
	)
	c.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	c.registry.MustRegister(c.requestsTotal, c.requestDuration)
	return c
}

// RegisterCache adds gauges and counters backed by src.Stats().
func (c *Collector) RegisterCache(src StatsSource) error {
	return c.registry.Register(newCacheCollector(src))
}

// RecordRequest counts one HTTP request.
func (c *Collector) RecordRequest(route string, status int, d time.Duration) {
	c.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

type cacheCollector struct {
	src StatsSource

	hits     *prometheus.Desc
	misses   *prometheus.Desc
	entries  *prometheus.Desc
	bytes    *prometheus.Desc
	active   *prometheus.Desc
	expired  *prometheus.Desc
	hitRatio *prometheus.Desc
}

func newCacheCollector(src StatsSource) *cacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, nil, nil)
	}
	return &cacheCollector{
		src:      src,
		hits:     desc("hits_total", "Cache lookups that found an active entry"),
		misses:   desc("misses_total", "Cache lookups that found nothing or an expired entry"),
		entries:  desc("entries", "Entries currently held"),
		bytes:    desc("bytes", "Bytes of sanitized values currently held"),
		active:   desc("active_entries", "Held entries that have not expired"),
		expired:  desc("expired_entries", "Held entries past expiry awaiting removal"),
		hitRatio: desc("hit_ratio", "Hits divided by total lookups"),
	}
}

func (cc *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cc.hits
	ch <- cc.misses
	ch <- cc.entries
	ch <- cc.bytes
	ch <- cc.active
	ch <- cc.expired
	ch <- cc.hitRatio
}

func (cc *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := cc.src.Stats()
	ch <- prometheus.MustNewConstMetric(cc.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(cc.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(cc.entries, prometheus.GaugeValue, float64(s.TotalEntries))
	ch <- prometheus.MustNewConstMetric(cc.bytes, prometheus.GaugeValue, float64(s.TotalBytes))
	ch <- prometheus.MustNewConstMetric(cc.active, prometheus.GaugeValue, float64(s.ActiveEntries))
	ch <- prometheus.MustNewConstMetric(cc.expired, prometheus.GaugeValue, float64(s.ExpiredEntries))
	ch <- prometheus.MustNewConstMetric(cc.hitRatio, prometheus.GaugeValue, s.HitRatio)
}
