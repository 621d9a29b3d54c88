package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "poiguide"

// HTTP surface.
var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route and status code",
	}, []string{"method", "route", "code"})

	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving API requests",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"method", "route"})

	apiBodyBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Size of API response bodies",
		Buckets:   prometheus.ExponentialBuckets(128, 8, 7),
	}, []string{"method", "route"})
)

// Explorer sessions and their providers.
var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Calls to external providers by outcome",
	}, []string{"provider", "outcome"})

	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Latency of external provider calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})

	StaleResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "explorer",
		Name:      "stale_responses_total",
		Help:      "Responses discarded because a newer request superseded them",
	}, []string{"class"})

	DebouncedRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "explorer",
		Name:      "refreshes_total",
		Help:      "POI refreshes issued after the debounce window closed",
	})

	MarkersApplied = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "explorer",
		Name:      "markers_applied",
		Help:      "Markers placed per applied refresh",
		Buckets:   []float64{0, 1, 5, 10, 25, 50},
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "active_sessions",
		Help:      "Mounted explorer sessions",
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Read-through cache lookups by result",
	}, []string{"operation", "result"})
)

// PostgreSQL pool, sampled by the api process.
var (
	dbConnsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Open connections in the pool",
	})

	dbConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections checked out of the pool",
	})

	dbConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the pool",
	})
)

// Middleware records per-route request counts, latency and body size.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		method := c.Method()
		code := strconv.Itoa(c.Response().StatusCode())

		apiRequests.WithLabelValues(method, route, code).Inc()
		apiLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		apiBodyBytes.WithLabelValues(method, route).Observe(float64(len(c.Response().Body())))
		return err
	}
}

// ObserveProvider records one provider call.
func ObserveProvider(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// CacheLookup counts a read-through cache hit or miss for operation.
func CacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(operation, result).Inc()
}

// Handler serves the Prometheus registry on a fiber route.
func Handler() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}

// PoolStat is the part of *pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies a pool snapshot into the db gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	if s == nil {
		return
	}
	dbConnsAcquired.Set(float64(s.AcquiredConns()))
	dbConnsIdle.Set(float64(s.IdleConns()))
	dbConnsTotal.Set(float64(s.TotalConns()))
}
