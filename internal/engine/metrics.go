package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cyclone"

// Metrics는 엔진 지표 모음입니다
type Metrics struct {
	// 완료된 사이클 수
	CyclesTotal prometheus.Counter
	// 마켓/종류별 전략 실행 에러 수
	StrategyErrorsTotal *prometheus.CounterVec
	// 비상 정지 발동 수
	EmergencyStopBreachesTotal prometheus.Counter
	// 현재 엔진 상태 (0: STOPPED, 1: RUNNING, 2: SHUTTING_DOWN)
	State prometheus.Gauge
	// 사이클 소요 시간
	CycleDuration prometheus.Histogram
}

// NewMetrics는 지표를 생성하고 reg에 등록합니다. reg가 nil이면 등록하지 않습니다.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Total trade cycles finished",
		}),
		StrategyErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "strategy_errors_total",
			Help:      "Strategy execution errors by market and kind",
		}, []string{"market", "kind"}),
		EmergencyStopBreachesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "emergency_stop_breaches_total",
			Help:      "Emergency stop limit breaches",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state",
			Help:      "Engine state (0=STOPPED, 1=RUNNING, 2=SHUTTING_DOWN)",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Trade cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg == nil {
		return m, nil
	}

	collectors := []prometheus.Collector{
		m.CyclesTotal,
		m.StrategyErrorsTotal,
		m.EmergencyStopBreachesTotal,
		m.State,
		m.CycleDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setState(s State) {
	m.State.Set(float64(s))
}

func (m *Metrics) observeCycle(start time.Time) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) strategyError(market, kind string) {
	m.StrategyErrorsTotal.WithLabelValues(market, kind).Inc()
}
