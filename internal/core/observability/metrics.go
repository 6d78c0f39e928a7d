package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
	for _, c := range collectors() {
		prometheus.MustRegister(c)
	}
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "result"},
	)

	geocodeLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_lookups_total",
			Help: "Reverse geocode lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Shared cache operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	recomputeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactive_recompute_total",
			Help: "Reactive output recomputations by output and result.",
		},
		[]string{"output", "result"},
	)

	recomputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reactive_recompute_duration_seconds",
			Help:    "Duration of a single reactive output recomputation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"output"},
	)

	filterRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filter_result_rows",
			Help:    "Number of rows returned by a filter pass.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	csvExports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "csv_exports_total",
			Help: "Number of filtered CSV downloads served.",
		},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_total",
			Help: "Session analytics events by type and result (queued, dropped, failed).",
		},
		[]string{"type", "result"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		geocodeLookups, cacheOps, redisOpDuration, recomputeTotal,
		recomputeDuration, filterRows, csvExports, loginAttempts, eventsPublished,
		buildInfo,
	}
}

// Init registers the collectors on reg as well; on=false turns recording off.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if reg == nil || !on {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream, resultLabel(err)).Observe(durationSeconds)
}

// outcome is one of lru_hit, shared_hit, resolved, failed, invalid
func IncGeocode(outcome string) {
	if !enabled.Load() {
		return
	}
	geocodeLookups.WithLabelValues(outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	cacheOps.WithLabelValues(op, resultLabel(err)).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveRecompute(output string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	recomputeTotal.WithLabelValues(output, resultLabel(err)).Inc()
	recomputeDuration.WithLabelValues(output).Observe(durationSeconds)
}

func ObserveFilterRows(n int) {
	if !enabled.Load() {
		return
	}
	filterRows.Observe(float64(n))
}

func IncCSVExport() {
	if !enabled.Load() {
		return
	}
	csvExports.Inc()
}

func IncLogin(ok bool) {
	if !enabled.Load() {
		return
	}
	res := "failed"
	if ok {
		res = "ok"
	}
	loginAttempts.WithLabelValues(res).Inc()
}

func IncEvent(typ, result string) {
	if !enabled.Load() {
		return
	}
	eventsPublished.WithLabelValues(typ, result).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
