// Package metrics provides Prometheus metrics for the facearena service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "facearena"

// latencyBuckets covers the spread from in-memory updates to model calls.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var (
	// Battle pipeline.
	battlesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "battles_applied_total",
		Help: "Battles whose counter updates were applied.",
	})
	battlesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "battles_duplicate_total",
		Help: "Battle submissions rejected as replays of a seen battle id.",
	})
	statsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "stats_participant_skipped_total",
		Help: "Participants skipped because their record was not visible.",
	})
	statsErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "stats_update_errors_total",
		Help: "Failed participant counter updates.",
	})
	statsApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "stats_apply_latency_ms",
		Help: "Latency of applying one battle's counter updates.", Buckets: latencyBuckets,
	})

	// Judge (external model).
	judgeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "judge_latency_ms",
		Help: "Latency of model calls.", Buckets: latencyBuckets,
	})
	judgeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "judge_errors_total",
		Help: "Failed model calls.",
	})
	judgeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "judge_retries_total",
		Help: "Model call retries after transient overload.",
	})
	judgeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "judge_fallbacks_total",
		Help: "Flagged placeholder analyses substituted after retry exhaustion.",
	})
	parseFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "parse_fallbacks_total",
		Help: "Responses where nothing matched and the raw text was stashed.",
	})

	// Ranking.
	rankingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "ranking_latency_ms",
		Help: "Latency of one full leaderboard computation.", Buckets: latencyBuckets,
	})
	corruptRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "ranking_corrupt_records",
		Help: "Records excluded from the last ranking for violating win<=battle.",
	})

	// Store.
	storeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "store_errors_total",
		Help: "Database errors.",
	})
	storeQueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "store_query_latency_ms",
		Help: "Latency of snapshot reads.", Buckets: latencyBuckets,
	})
	storeUpdateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "store_update_latency_ms",
		Help: "Latency of counter updates.", Buckets: latencyBuckets,
	})
	reconcileRepaired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "reconcile_repaired_total",
		Help: "Entity records repaired by reconciliation passes.",
	})

	// Queue and workers.
	queueCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "queue_capacity",
		Help: "Configured battle queue capacity.",
	})
	queueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "queue_size",
		Help: "Current battle queue depth.",
	})
	queueEnqueues = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "queue_enqueues_total",
		Help: "Successful enqueues.",
	})
	queueEnqueueErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "queue_enqueue_errors_total",
		Help: "Rejected enqueues (closed, full, or canceled).",
	})
	queueDequeues = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "queue_dequeues_total",
		Help: "Dequeued battle results.",
	})
	workerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "worker_count",
		Help: "Configured stats worker count.",
	})

	// Service-level gauges.
	totalEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "entities_total",
		Help: "Entities tracked in the store.",
	})
	systemMemory = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "system_memory_bytes",
		Help: "Allocated heap bytes.",
	})
	systemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "system_goroutines",
		Help: "Live goroutines.",
	})

	// HTTP.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total",
		Help: "HTTP requests by endpoint and status.",
	}, []string{"endpoint", "status"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_ms",
		Help: "HTTP request latency by endpoint.", Buckets: latencyBuckets,
	}, []string{"endpoint"})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler { return promhttp.Handler() }

func RecordBattleApplied() { battlesApplied.Inc() }
func RecordBattleDuplicate() { battlesDuplicate.Inc() }
func RecordStatsSkipped() { statsSkipped.Inc() }
func RecordStatsError() { statsErrors.Inc() }
func RecordStatsApplyLatency(ms float64) { statsApplyLatency.Observe(ms) }

func RecordJudgeLatency(ms float64) { judgeLatency.Observe(ms) }
func RecordJudgeError() { judgeErrors.Inc() }
func RecordJudgeRetry() { judgeRetries.Inc() }
func RecordJudgeFallback() { judgeFallbacks.Inc() }
func RecordParseFallback() { parseFallbacks.Inc() }

func RecordRankingLatency(ms float64) { rankingLatency.Observe(ms) }
func UpdateCorruptRecords(n int) { corruptRecords.Set(float64(n)) }

func RecordStoreError() { storeErrors.Inc() }
func RecordStoreQueryLatency(ms float64) { storeQueryLatency.Observe(ms) }
func RecordStoreUpdateLatency(ms float64) { storeUpdateLatency.Observe(ms) }
func RecordReconcileRun(repaired int64) { reconcileRepaired.Add(float64(repaired)) }

func UpdateQueueCapacity(n int) { queueCapacity.Set(float64(n)) }
func UpdateQueueSize(n int) { queueSize.Set(float64(n)) }
func RecordQueueEnqueue() { queueEnqueues.Inc() }
func RecordQueueEnqueueError() { queueEnqueueErrors.Inc() }
func RecordQueueDequeue() { queueDequeues.Inc() }
func UpdateWorkerCount(n int) { workerCount.Set(float64(n)) }
func UpdateTotalEntities(n int64) { totalEntities.Set(float64(n)) }

func UpdateSystemMemoryUsage(bytes uint64) { systemMemory.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int) { systemGoroutines.Set(float64(n)) }

// RecordHTTPRequest counts one finished request and observes its latency.
func RecordHTTPRequest(endpoint string, status int, durationMS float64) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(durationMS)
}
