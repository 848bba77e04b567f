package metrics

import (
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "procpool"
	subsystem = "dispatcher"
)

// Metrics はタスクのメトリクスを収集する
type Metrics struct {
	assigned       atomic.Uint64
	completed      atomic.Uint64
	protocolErrors atomic.Uint64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	latencies         []time.Duration
	maxLatencySamples int
	perWorker         map[int]uint64

	registry          *prometheus.Registry
	promAssigned      prometheus.Counter
	promCompleted     *prometheus.CounterVec
	promProtocolError prometheus.Counter
	promBusy          prometheus.Gauge
	promLatency       prometheus.Histogram
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	m := &Metrics{
		startTime:         time.Now(),
		latencies:         make([]time.Duration, 0, 1000),
		maxLatencySamples: 1000,
		perWorker:         make(map[int]uint64),
		registry:          prometheus.NewRegistry(),

		promAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_assigned_total",
			Help:      "Tasks sent to a worker.",
		}),
		promCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_completed_total",
			Help:      "Results received, by worker.",
		}, []string{"worker"}),
		promProtocolError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "protocol_errors_total",
			Help:      "Malformed result messages recorded as sentinel values.",
		}),
		promBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "busy_workers",
			Help:      "Workers with a task in flight.",
		}),
		promLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_latency_seconds",
			Help:      "Time from assignment to result receipt.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.promAssigned,
		m.promCompleted,
		m.promProtocolError,
		m.promBusy,
		m.promLatency,
	)
	return m
}

// Registry はPrometheusレジストリを返す
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAssigned はタスクの割り当てを記録する
func (m *Metrics) RecordAssigned(worker int) {
	m.assigned.Add(1)
	m.promAssigned.Inc()
	m.promBusy.Inc()
}

// RecordCompleted は結果の受信を記録する
func (m *Metrics) RecordCompleted(worker int, latency time.Duration, malformed bool) {
	m.completed.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	if malformed {
		m.protocolErrors.Add(1)
		m.promProtocolError.Inc()
	}

	m.promCompleted.WithLabelValues(strconv.Itoa(worker + 1)).Inc()
	m.promBusy.Dec()
	m.promLatency.Observe(latency.Seconds())

	m.mu.Lock()
	m.perWorker[worker]++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// Assigned は割り当て済みタスク数を返す
func (m *Metrics) Assigned() uint64 {
	return m.assigned.Load()
}

// Completed は完了タスク数を返す
func (m *Metrics) Completed() uint64 {
	return m.completed.Load()
}

// ProtocolErrors は不正な結果メッセージ数を返す
func (m *Metrics) ProtocolErrors() uint64 {
	return m.protocolErrors.Load()
}

// InFlight は処理中のタスク数を返す
func (m *Metrics) InFlight() uint64 {
	return m.Assigned() - m.Completed()
}

// Throughput は開始からの平均タスク完了数（毎秒）を返す
func (m *Metrics) Throughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.completed.Load()) / elapsed
}

// AverageLatency は平均レイテンシを返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.completed.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// P99Latency はP99レイテンシを返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := slices.Clone(m.latencies)
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// PerWorker はワーカーごとの完了数を返す
func (m *Metrics) PerWorker() map[int]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int]uint64, len(m.perWorker))
	for k, v := range m.perWorker {
		out[k] = v
	}
	return out
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Assigned       uint64        `json:"assigned"`
	Completed      uint64        `json:"completed"`
	InFlight       uint64        `json:"in_flight"`
	ProtocolErrors uint64        `json:"protocol_errors"`
	Throughput     float64       `json:"throughput"`
	AverageLatency time.Duration `json:"average_latency"`
	P99Latency     time.Duration `json:"p99_latency"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Assigned:       m.Assigned(),
		Completed:      m.Completed(),
		InFlight:       m.InFlight(),
		ProtocolErrors: m.ProtocolErrors(),
		Throughput:     m.Throughput(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		Elapsed:        time.Since(m.startTime),
	}
}
