package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "cashdesk_"

	resultSuccess = "success"
	resultError   = "error"

	pinResultOK       = "ok"
	pinResultRejected = "rejected"
	pinResultError    = "error"
)

var (
	registerOnce sync.Once

	computeTotal   *prometheus.CounterVec
	computeLatency *prometheus.HistogramVec
	computeStale   prometheus.Counter

	saveTotal   *prometheus.CounterVec
	saveLatency *prometheus.HistogramVec

	fetchTotal   *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec

	pinChecks *prometheus.CounterVec

	historyLoads *prometheus.CounterVec
	deletesTotal *prometheus.CounterVec

	mirrorWrites  *prometheus.CounterVec
	rateFallbacks prometheus.Counter
)

// Init registers engine metrics and the cache-backed gauge.
func Init(cacheDB *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		computeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "compute_total",
				Help: "Total compute dispatches by result",
			},
			[]string{"result"},
		)
		computeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "compute_latency_seconds",
				Help:    "Compute round-trip latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		computeStale = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "compute_stale_dropped_total",
				Help: "Compute responses discarded for losing the generation race",
			},
		)

		saveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "save_total",
				Help: "Total save operations by trigger and result",
			},
			[]string{"trigger", "result"},
		)
		saveLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "save_latency_seconds",
				Help:    "Save round-trip latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger", "result"},
		)

		fetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_total",
				Help: "Total fetch actions by source and result",
			},
			[]string{"source", "result"},
		)
		fetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Fetch action latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "result"},
		)

		pinChecks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pin_checks_total",
				Help: "Total confirmation code checks by outcome",
			},
			[]string{"outcome"},
		)

		historyLoads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_loads_total",
				Help: "Total history loads by result",
			},
			[]string{"result"},
		)
		deletesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "record_deletes_total",
				Help: "Total history record deletions by result",
			},
			[]string{"result"},
		)

		mirrorWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_mirror_writes_total",
				Help: "Total debounced cache mirror writes by result",
			},
			[]string{"result"},
		)
		rateFallbacks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_fallbacks_total",
				Help: "Rate lookups served by the hardcoded fallback",
			},
		)

		prometheus.MustRegister(
			computeTotal,
			computeLatency,
			computeStale,
			saveTotal,
			saveLatency,
			fetchTotal,
			fetchLatency,
			pinChecks,
			historyLoads,
			deletesTotal,
			mirrorWrites,
			rateFallbacks,
		)

		if cacheDB != nil {
			registerCacheMetrics(cacheDB, logger)
		}
	})
}

// ObserveCompute records compute dispatch duration and result.
func ObserveCompute(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if computeTotal != nil {
		computeTotal.WithLabelValues(result).Inc()
	}
	if computeLatency != nil {
		computeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncComputeStale increments the stale-response counter.
func IncComputeStale() {
	if computeStale != nil {
		computeStale.Inc()
	}
}

// ObserveSave records save duration by trigger and result.
func ObserveSave(trigger, result string, duration time.Duration) {
	if trigger == "" {
		trigger = SaveTriggerManual
	}
	if result == "" {
		result = resultSuccess
	}
	if saveTotal != nil {
		saveTotal.WithLabelValues(trigger, result).Inc()
	}
	if saveLatency != nil {
		saveLatency.WithLabelValues(trigger, result).Observe(duration.Seconds())
	}
}

// ObserveFetch records one fetch action by source and result.
func ObserveFetch(source, result string, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if fetchTotal != nil {
		fetchTotal.WithLabelValues(source, result).Inc()
	}
	if fetchLatency != nil {
		fetchLatency.WithLabelValues(source, result).Observe(duration.Seconds())
	}
}

// IncPinCheck increments the confirmation code counter by outcome.
func IncPinCheck(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if pinChecks != nil {
		pinChecks.WithLabelValues(outcome).Inc()
	}
}

// IncHistoryLoad increments history load counters.
func IncHistoryLoad(result string) {
	if result == "" {
		result = resultSuccess
	}
	if historyLoads != nil {
		historyLoads.WithLabelValues(result).Inc()
	}
}

// IncRecordDelete increments history deletion counters.
func IncRecordDelete(result string) {
	if result == "" {
		result = resultSuccess
	}
	if deletesTotal != nil {
		deletesTotal.WithLabelValues(result).Inc()
	}
}

// IncMirrorWrite increments the debounced cache write counter.
func IncMirrorWrite(result string) {
	if result == "" {
		result = resultSuccess
	}
	if mirrorWrites != nil {
		mirrorWrites.WithLabelValues(result).Inc()
	}
}

// IncRateFallback increments the fallback-rate counter.
func IncRateFallback() {
	if rateFallbacks != nil {
		rateFallbacks.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	PinOK       = pinResultOK
	PinRejected = pinResultRejected
	PinError    = pinResultError

	SaveTriggerManual   = "manual"
	SaveTriggerAutosave = "autosave"
)
