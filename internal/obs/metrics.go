package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"robotrading/internal/cache"
	"robotrading/internal/resilient"
)

// ============================================================
// Prometheus метрики ядра защитных стопов
// ============================================================
//
// Ядро шлёт события и не зависит от доставки: prometheus-клиент
// копит значения локально, scrape — забота внешнего контура.

var CallAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "robotrading",
		Subsystem: "resilient",
		Name:      "call_attempts_total",
		Help:      "Outbound call attempts by service and outcome",
	},
	[]string{"service", "outcome"},
)

var CallLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "robotrading",
		Subsystem: "resilient",
		Name:      "call_latency_seconds",
		Help:      "Latency of a single outbound call attempt",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"service"},
)

var CircuitOpen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "robotrading",
		Subsystem: "resilient",
		Name:      "circuit_open",
		Help:      "1 when the service circuit breaker is open",
	},
	[]string{"service"},
)

var CacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "robotrading",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache hits by cache name",
	},
	[]string{"cache"},
)

var CacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "robotrading",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache misses by cache name",
	},
	[]string{"cache"},
)

var StopTriggers = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "robotrading",
		Subsystem: "stoploss",
		Name:      "triggers_total",
		Help:      "Stop-loss triggers by symbol and basis",
	},
	[]string{"symbol", "basis"},
)

var LiquidationFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "robotrading",
		Subsystem: "stoploss",
		Name:      "liquidation_failures_total",
		Help:      "Liquidation submissions that exhausted retries",
	},
	[]string{"symbol"},
)

var ScanCycles = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "robotrading",
		Subsystem: "monitor",
		Name:      "scan_cycles_total",
		Help:      "Intraday scan cycles by result (completed|skipped)",
	},
	[]string{"result"},
)

var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "robotrading",
		Subsystem: "positions",
		Name:      "open_total",
		Help:      "Currently tracked open positions",
	},
)

// Reporter транслирует события resilient.Executor и кешей в метрики.
type Reporter struct{}

var (
	_ resilient.Reporter = (*Reporter)(nil)
	_ cache.Reporter     = (*Reporter)(nil)
)

func NewReporter() *Reporter { return &Reporter{} }

func (r *Reporter) OnAttempt(a resilient.Attempt) {
	CallAttempts.WithLabelValues(a.Service, string(a.Outcome)).Inc()
	CallLatency.WithLabelValues(a.Service).Observe(a.Latency.Seconds())
}

func (r *Reporter) OnCircuitState(service string, state resilient.CircuitState) {
	v := 0.0
	if state == resilient.StateOpen {
		v = 1
	}
	CircuitOpen.WithLabelValues(service).Set(v)
}

func (r *Reporter) OnCacheHit(name string)  { CacheHits.WithLabelValues(name).Inc() }
func (r *Reporter) OnCacheMiss(name string) { CacheMisses.WithLabelValues(name).Inc() }
