package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
	"github.com/assist-by/cyclone/internal/exchange/exchangetest"
	"github.com/assist-by/cyclone/internal/strategy"
)

type sentAlert struct {
	Subject string
	Message string
	State   State // 전송 시점의 엔진 상태
}

type recordingAlerter struct {
	engine *Engine
	err    error

	mu   sync.Mutex
	sent []sentAlert
}

func (a *recordingAlerter) Send(subject, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := sentAlert{Subject: subject, Message: message}
	if a.engine != nil {
		s.State = a.engine.State()
	}
	a.sent = append(a.sent, s)
	return a.err
}

func (a *recordingAlerter) Sent() []sentAlert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sentAlert(nil), a.sent...)
}

// executions는 마켓 실행 순서를 기록합니다
type executions struct {
	mu  sync.Mutex
	ids []string
}

func (x *executions) add(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = append(x.ids, id)
}

func (x *executions) list() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.ids...)
}

// scriptedStrategy는 실행을 기록하고 fn의 결과를 반환합니다
type scriptedStrategy struct {
	market domain.Market
	log    *executions
	fn     func() error
}

func (s *scriptedStrategy) Init(_ exchange.TradingAPI, market domain.Market, _ strategy.Config) error {
	s.market = market
	return nil
}

func (s *scriptedStrategy) Execute(context.Context) error {
	s.log.add(s.market.ID)
	if s.fn != nil {
		return s.fn()
	}
	return nil
}

// newTestEngine은 markets 순서대로 바인딩을 만들고, 감시 통화 잔고가 충분한 거래소로 엔진을 생성합니다
func newTestEngine(t *testing.T, markets []domain.Market, behaviour map[string]func() error) (*Engine, *executions, *recordingAlerter) {
	t.Helper()
	log := &executions{}

	registry := strategy.NewRegistry()
	for _, m := range markets {
		fn := behaviour[m.ID]
		registry.Register("kind-"+m.ID, func() strategy.TradingStrategy {
			return &scriptedStrategy{log: log, fn: fn}
		})
	}
	configs := make([]strategy.Config, 0, len(markets))
	for i := range markets {
		markets[i].TradingStrategyID = "s-" + markets[i].ID
		configs = append(configs, strategy.Config{ID: "s-" + markets[i].ID, Kind: "kind-" + markets[i].ID})
	}

	api := balanceAPI(map[string]string{"BTC": "1"})
	bindings, err := registry.Bind(api, markets, configs)
	require.NoError(t, err)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	alerts := &recordingAlerter{}
	e := New(testEngineConfig(), api, bindings, alerts, WithMetrics(metrics))
	alerts.engine = e
	return e, log, alerts
}

func enabled(ids ...string) []domain.Market {
	markets := make([]domain.Market, 0, len(ids))
	for _, id := range ids {
		markets = append(markets, domain.Market{ID: id, Enabled: true})
	}
	return markets
}

// runCycle은 루프 없이 사이클 한 번을 실행합니다
func runCycle(t *testing.T, e *Engine) error {
	t.Helper()
	e.state.Store(int32(Running))
	return e.cycle(context.Background())
}

func waitDone(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("엔진 루프가 종료되지 않았습니다")
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func fatalErr(market string) func() error {
	return func() error {
		return exchange.NewFatalError("CreateOrder", errors.New(market+": insufficient funds"))
	}
}

func transientErr() error {
	return exchange.NewTransientError("GetMarketOrders", errors.New("connection reset"))
}

func TestEngine_InitialState(t *testing.T) {
	e, _, _ := newTestEngine(t, enabled("a"), nil)
	assert.Equal(t, Stopped, e.State())

	select {
	case <-e.Done():
	default:
		t.Fatal("시작 전 Done은 닫혀 있어야 합니다")
	}
}

func TestEngine_DisabledMarketsNeverExecuted(t *testing.T) {
	markets := []domain.Market{
		{ID: "a", Enabled: true},
		{ID: "b", Enabled: false},
		{ID: "c", Enabled: true},
	}
	e, log, _ := newTestEngine(t, markets, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, runCycle(t, e))
	}
	assert.NotContains(t, log.list(), "b")
	assert.Equal(t, []string{"a", "c"}, e.Status().Markets)
}

func TestEngine_MarketOrderIsConfigOrder(t *testing.T) {
	e, log, _ := newTestEngine(t, enabled("z", "a", "m"), nil)

	require.NoError(t, runCycle(t, e))
	require.NoError(t, runCycle(t, e))

	assert.Equal(t, []string{"z", "a", "m", "z", "a", "m"}, log.list())
	assert.Equal(t, float64(2), counterValue(t, e.metrics.CyclesTotal))
}

func TestEngine_TransientErrorContinuesCycle(t *testing.T) {
	e, log, alerts := newTestEngine(t, enabled("a", "b", "c"), map[string]func() error{
		"b": transientErr,
	})

	require.NoError(t, runCycle(t, e))

	assert.Equal(t, []string{"a", "b", "c"}, log.list())
	assert.Equal(t, Running, e.State())
	assert.Empty(t, alerts.Sent())
	assert.Equal(t, float64(1), counterValue(t, e.metrics.StrategyErrorsTotal.WithLabelValues("b", exchange.Transient.String())))
}

func TestEngine_FatalErrorHaltsCycle(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{name: "치명적 거래소 오류", fn: fatalErr("b")},
		{name: "분류되지 않은 오류", fn: func() error { return errors.New("nil pointer in adapter") }},
		{name: "일시적 원인을 감싼 전략 에러", fn: func() error {
			return strategy.NewError("b", "Execute", transientErr())
		}},
		{name: "패닉", fn: func() error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, log, alerts := newTestEngine(t, enabled("a", "b", "c"), map[string]func() error{"b": tt.fn})

			err := runCycle(t, e)
			assert.Error(t, err)

			assert.Equal(t, []string{"a", "b"}, log.list(), "c는 실행되지 않아야 합니다")
			assert.Equal(t, ShuttingDown, e.State())

			sent := alerts.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, "CRITICAL Alert message from Test Bot", sent[0].Subject)
			assert.Contains(t, sent[0].Message, "b")
			assert.Equal(t, ShuttingDown, sent[0].State)
			assert.Contains(t, e.Status().LastHalt, "b")
			assert.Equal(t, float64(1), counterValue(t, e.metrics.StrategyErrorsTotal.WithLabelValues("b", exchange.Fatal.String())))
		})
	}
}

func TestEngine_FatalErrorStopsLoop(t *testing.T) {
	e, log, alerts := newTestEngine(t, enabled("a", "b", "c"), map[string]func() error{
		"b": fatalErr("b"),
	})

	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)

	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, []string{"a", "b"}, log.list())
	assert.Len(t, alerts.Sent(), 1)

	// 자동 재시작하지 않지만 운영자는 다시 시작할 수 있습니다
	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)
	assert.Equal(t, []string{"a", "b", "a", "b"}, log.list())
}

func TestEngine_AlertFailureDoesNotCrash(t *testing.T) {
	e, log, alerts := newTestEngine(t, enabled("a", "b"), map[string]func() error{
		"a": fatalErr("a"),
	})
	alerts.err = errors.New("webhook down")

	assert.Error(t, runCycle(t, e))
	assert.Equal(t, []string{"a"}, log.list())
	assert.Equal(t, ShuttingDown, e.State())
}

func TestEngine_EmergencyStopBreachHaltsBeforeStrategy(t *testing.T) {
	e, log, alerts := newTestEngine(t, enabled("a", "b"), nil)
	e.api = balanceAPI(map[string]string{"BTC": "0.3"})

	assert.Error(t, runCycle(t, e))

	assert.Empty(t, log.list())
	assert.Equal(t, ShuttingDown, e.State())
	sent := alerts.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Message, "0.3")
	assert.Contains(t, sent[0].Message, "0.5")
	assert.Equal(t, float64(1), counterValue(t, e.metrics.EmergencyStopBreachesTotal))
}

func TestEngine_TransientBalanceErrorSkipsMarket(t *testing.T) {
	e, log, alerts := newTestEngine(t, enabled("a", "b"), nil)

	calls := 0
	e.api = &exchangetest.Fake{BalanceInfoFn: func(context.Context) (domain.BalanceInfo, error) {
		calls++
		if calls == 1 {
			return domain.BalanceInfo{}, exchange.NewTransientError("GetBalanceInfo", errors.New("timeout"))
		}
		info := domain.NewBalanceInfo()
		info.Available["BTC"] = testEngineConfig().EmergencyStopBalance
		return info, nil
	}}

	require.NoError(t, runCycle(t, e))
	assert.Equal(t, []string{"b"}, log.list())
	assert.Equal(t, Running, e.State())
	assert.Empty(t, alerts.Sent())
}

func TestEngine_CallTimeoutIsTransient(t *testing.T) {
	e, log, _ := newTestEngine(t, enabled("a", "b"), nil)
	e.callTimeout = 10 * time.Millisecond

	slow := e.bindings[0].Strategy.(*scriptedStrategy)
	e.bindings[0].Strategy = timeoutStrategy{inner: slow}

	require.NoError(t, runCycle(t, e))
	assert.Equal(t, []string{"a", "b"}, log.list())
	assert.Equal(t, Running, e.State())
}

// timeoutStrategy는 컨텍스트가 끝날 때까지 기다린 뒤 전송 오류로 분류합니다
type timeoutStrategy struct {
	inner *scriptedStrategy
}

func (s timeoutStrategy) Init(exchange.TradingAPI, domain.Market, strategy.Config) error { return nil }

func (s timeoutStrategy) Execute(ctx context.Context) error {
	_ = s.inner.Execute(ctx)
	<-ctx.Done()
	return exchange.ClassifyTransport("GetMarketOrders", ctx.Err())
}

func TestEngine_StartTwiceFails(t *testing.T) {
	started := make(chan struct{}, 10)
	e, log, _ := newTestEngine(t, enabled("a"), map[string]func() error{
		"a": func() error { started <- struct{}{}; return nil },
	})

	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyRunning)
	<-started

	e.Stop()
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, []string{"a"}, log.list(), "두 번째 루프가 생기면 안 됩니다")
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t, enabled("a"), nil)

	e.Stop() // 시작 전
	assert.Equal(t, Stopped, e.State())

	require.NoError(t, e.Start(context.Background()))
	e.Stop()
	e.Stop()
	assert.Equal(t, Stopped, e.State())
	waitDone(t, e)
}

func TestEngine_StopLetsCycleFinish(t *testing.T) {
	inA := make(chan struct{})
	release := make(chan struct{})
	e, log, _ := newTestEngine(t, enabled("a", "b"), map[string]func() error{
		"a": func() error { close(inA); <-release; return nil },
	})

	require.NoError(t, e.Start(context.Background()))
	<-inA

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	require.Eventually(t, func() bool { return e.State() == ShuttingDown }, time.Second, time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop이 반환되지 않았습니다")
	}
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, []string{"a", "b"}, log.list())
}

func TestEngine_ContextCancelStops(t *testing.T) {
	e, _, _ := newTestEngine(t, enabled("a"), nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, e.Start(ctx))
	cancel()
	waitDone(t, e)
	assert.Equal(t, Stopped, e.State())
}

func TestEngine_Status(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e, _, _ := newTestEngine(t, enabled("a"), nil)
	e.now = func() time.Time { return now }

	require.NoError(t, e.Start(context.Background()))
	e.Stop()

	s := e.Status()
	assert.Equal(t, "Test Bot", s.BotName)
	assert.Equal(t, "STOPPED", s.State)
	assert.Equal(t, now, s.StartedAt)
	assert.Equal(t, []string{"a"}, s.Markets)
}

func TestEngine_ConcurrentStartStop(t *testing.T) {
	e, _, _ := newTestEngine(t, enabled("a"), nil)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = e.Start(ctx)
		}()
		go func() {
			defer wg.Done()
			e.Stop()
			// 정지를 요청한 쪽이 하나뿐이므로 Stop 반환 후 정지 중 상태가 남으면 안 됩니다
			assert.NotEqual(t, ShuttingDown, e.State())
		}()
		wg.Wait()

		e.Stop()
		require.Equal(t, Stopped, e.State())
	}
}

func TestEngine_EmergencyStopWithoutMarkets(t *testing.T) {
	e, _, alerts := newTestEngine(t, nil, nil)

	require.NoError(t, runCycle(t, e))
	assert.Equal(t, Running, e.State())
	assert.Empty(t, alerts.Sent())

	e.api = balanceAPI(map[string]string{"BTC": "0.3"})
	assert.Error(t, runCycle(t, e))

	assert.Equal(t, ShuttingDown, e.State())
	assert.Len(t, alerts.Sent(), 1)
	assert.Equal(t, float64(1), counterValue(t, e.metrics.EmergencyStopBreachesTotal))
}

func TestMetrics_CyclesTotalCountsFinishedCycles(t *testing.T) {
	e, _, _ := newTestEngine(t, enabled("a"), map[string]func() error{"a": fatalErr("a")})

	assert.Contains(t, e.metrics.CyclesTotal.Desc().String(), "finished")

	assert.Error(t, runCycle(t, e))
	assert.Equal(t, float64(1), counterValue(t, e.metrics.CyclesTotal))
}
