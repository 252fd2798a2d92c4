// Package engine은 거래 사이클 루프를 실행하는 트레이딩 엔진입니다.
//
// 한 사이클은 설정 순서대로 활성화된 마켓마다 비상 정지 검사와 전략 실행을 수행하고,
// 끝나면 설정된 간격만큼 대기합니다. 모든 거래소 호출은 하나의 고루틴에서 순차적으로 일어납니다.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/cyclone/internal/alert"
	"github.com/assist-by/cyclone/internal/config"
	"github.com/assist-by/cyclone/internal/exchange"
	"github.com/assist-by/cyclone/internal/scheduler"
	"github.com/assist-by/cyclone/internal/strategy"
)

// Status는 엔진 상태 스냅샷입니다
type Status struct {
	BotID      string    `json:"botId"`
	BotName    string    `json:"botName"`
	State      string    `json:"state"`
	Cycles     int64     `json:"cycles"`
	Markets    []string  `json:"markets"`
	StartedAt  time.Time `json:"startedAt"`
	LastHalt   string    `json:"lastHalt,omitempty"` // 마지막 치명적 정지 사유
	LastHaltAt time.Time `json:"lastHaltAt"`
}

// run은 Start 한 번에 해당하는 루프 실행입니다
type run struct {
	sched *scheduler.Scheduler
	done  chan struct{}
}

// Engine은 트레이딩 엔진입니다
type Engine struct {
	cfg      config.Engine
	api      exchange.TradingAPI
	bindings []strategy.Binding
	alerter  alert.Alerter
	checker  *EmergencyStopChecker

	logger      *zap.SugaredLogger
	metrics     *Metrics
	callTimeout time.Duration
	now         func() time.Time

	state  atomic.Int32
	cycles atomic.Int64

	mu         sync.Mutex // run, startedAt, lastHalt 보호
	run        *run
	startedAt  time.Time
	lastHalt   string
	lastHaltAt time.Time
}

// Option은 엔진 생성 옵션을 정의합니다
type Option func(*Engine)

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics는 지표 모음을 설정합니다
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCallTimeout은 비상 정지 검사와 마켓별 전략 실행에 적용할 제한 시간을 설정합니다.
// 제한 시간을 넘긴 거래소 호출은 일시적 오류로 분류됩니다.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

// WithClock은 상태 시각 기록에 쓸 시계를 설정합니다
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New는 새로운 엔진을 생성합니다. 엔진은 정지 상태로 시작합니다.
func New(cfg config.Engine, api exchange.TradingAPI, bindings []strategy.Binding, alerter alert.Alerter, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		api:      api,
		bindings: bindings,
		alerter:  alerter,
		logger:   zap.NewNop().Sugar(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics, _ = NewMetrics(nil)
	}
	if e.alerter == nil {
		e.alerter = alert.NewLogAlerter(e.logger)
	}
	e.checker = NewEmergencyStopChecker(e.logger)
	e.metrics.setState(Stopped)
	return e
}

// State는 현재 상태를 반환합니다
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Status는 현재 상태 스냅샷을 반환합니다
func (e *Engine) Status() Status {
	markets := make([]string, 0, len(e.bindings))
	for _, b := range e.bindings {
		markets = append(markets, b.Market.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		BotID:      e.cfg.BotID,
		BotName:    e.cfg.BotName,
		State:      e.State().String(),
		Cycles:     e.cycles.Load(),
		Markets:    markets,
		StartedAt:  e.startedAt,
		LastHalt:   e.lastHalt,
		LastHaltAt: e.lastHaltAt,
	}
}

// Start는 엔진을 시작합니다. 루프는 별도 고루틴에서 실행되고 Start는 즉시 반환합니다.
// 정지 상태가 아니면 ErrAlreadyRunning을 반환합니다. ctx가 취소되면 Stop과 같이 동작합니다.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}

	r := &run{done: make(chan struct{})}
	r.sched = scheduler.NewScheduler(e.cfg.TradeCycleInterval, scheduler.TaskFunc(e.cycle),
		scheduler.WithLogger(e.logger))
	e.run = r
	e.startedAt = e.now()
	e.metrics.setState(Running)

	e.logger.Infow("엔진 시작",
		"bot", e.cfg.BotName, "markets", len(e.bindings), "interval", e.cfg.TradeCycleInterval)

	go e.loop(ctx, r)
	return nil
}

// Stop은 엔진 정지를 요청하고 루프가 끝날 때까지 기다립니다.
// 진행 중인 사이클은 끝까지 실행되며, 이미 정지 중이거나 정지 상태면 아무것도 하지 않습니다.
func (e *Engine) Stop() {
	// 상태 전환과 대상 실행 선택은 Start와 같은 임계 구역에서 일어나야 합니다
	e.mu.Lock()
	r := e.run
	if r == nil {
		e.mu.Unlock()
		return
	}
	if e.state.CompareAndSwap(int32(Running), int32(ShuttingDown)) {
		e.metrics.setState(ShuttingDown)
		e.logger.Infow("엔진 정지 요청")
	}
	r.sched.Stop()
	e.mu.Unlock()

	<-r.done
}

// Done은 현재 실행의 루프가 끝나면 닫히는 채널을 반환합니다.
// 한 번도 시작하지 않았으면 이미 닫힌 채널을 반환합니다.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.run.done
}

// loop는 스케줄러를 실행하고, 끝나면 엔진을 정지 상태로 돌립니다
func (e *Engine) loop(ctx context.Context, r *run) {
	err := r.sched.Start(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.logger.Infow("컨텍스트 종료로 엔진을 정지합니다", "err", err)
	default:
		e.logger.Errorw("엔진 루프가 예기치 않게 종료되었습니다", "err", err)
	}

	e.state.Store(int32(Stopped))
	e.metrics.setState(Stopped)
	e.logger.Infow("엔진 정지", "cycles", e.cycles.Load())
	close(r.done)
}

// cycle은 거래 사이클 한 번을 실행합니다.
// 루프를 끝내야 하면 scheduler.ErrStop을 반환합니다.
func (e *Engine) cycle(ctx context.Context) error {
	if e.State() != Running {
		return scheduler.ErrStop
	}

	n := e.cycles.Add(1)
	start := time.Now()
	defer e.metrics.observeCycle(start)

	log := e.logger.With("cycle", n)
	log.Debugw("사이클 시작")

	// 활성 마켓이 없어도 사이클마다 잔고 하한은 확인합니다
	if len(e.bindings) == 0 {
		breached, err := e.checkEmergencyStop(ctx)
		if err != nil {
			log.Warnw("잔고 조회 일시 실패", "err", err)
			return nil
		}
		if breached {
			e.haltOnBreach()
			return scheduler.ErrStop
		}
		return nil
	}

	for _, b := range e.bindings {
		mlog := log.With("market", b.Market.ID)

		breached, err := e.checkEmergencyStop(ctx)
		if err != nil {
			mlog.Warnw("잔고 조회 일시 실패, 이 마켓은 이번 사이클에서 건너뜁니다", "err", err)
			continue
		}
		if breached {
			e.haltOnBreach()
			return scheduler.ErrStop
		}

		err = e.execute(ctx, b)
		if err == nil {
			continue
		}

		if !isFatal(err) {
			e.metrics.strategyError(b.Market.ID, exchange.Transient.String())
			mlog.Warnw("일시적 거래소 오류, 다음 마켓으로 넘어갑니다", "err", err)
			continue
		}

		e.metrics.strategyError(b.Market.ID, exchange.Fatal.String())
		e.halt(fmt.Sprintf("마켓 %s 전략 실행 중 치명적 오류: %v", b.Market.ID, err))
		mlog.Errorw("치명적 오류로 봇을 정지합니다", "err", err)
		e.sendCritical(fmt.Sprintf(
			"마켓 %s에서 치명적 오류가 발생하여 봇을 정지했습니다. 확인 후 수동으로 재시작하세요.\n%v",
			b.Market.ID, err))
		return scheduler.ErrStop
	}

	log.Debugw("사이클 완료", "elapsed", time.Since(start))
	return nil
}

// checkEmergencyStop은 제한 시간을 적용해 비상 정지 검사를 수행합니다
func (e *Engine) checkEmergencyStop(ctx context.Context) (bool, error) {
	ctx, cancel := e.withCallTimeout(ctx)
	defer cancel()
	return e.checker.IsEmergencyStopLimitBreached(ctx, e.api, e.cfg, e.alerter)
}

// execute는 마켓 하나의 전략을 실행합니다. 전략의 패닉은 에러로 바꿔 반환합니다.
func (e *Engine) execute(ctx context.Context, b strategy.Binding) (err error) {
	ctx, cancel := e.withCallTimeout(ctx)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = strategy.NewError(b.Market.ID, "Execute", fmt.Errorf("패닉: %v", r))
		}
	}()

	return b.Strategy.Execute(ctx)
}

func (e *Engine) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

// isFatal은 전략 실행 에러가 봇을 멈춰야 하는지 판단합니다.
// 전략 에러는 원인과 관계없이 치명적이고, 그 외에는 일시적 거래소 에러만 넘어갑니다.
func isFatal(err error) bool {
	var serr *strategy.Error
	if errors.As(err, &serr) {
		return true
	}
	return !exchange.IsTransient(err)
}

// halt는 엔진을 정지 중 상태로 바꾸고 사유를 기록합니다
func (e *Engine) halt(reason string) {
	if e.state.CompareAndSwap(int32(Running), int32(ShuttingDown)) {
		e.metrics.setState(ShuttingDown)
	}

	e.mu.Lock()
	e.lastHalt = reason
	e.lastHaltAt = e.now()
	e.mu.Unlock()
}

// haltOnBreach는 비상 정지 하한 위반으로 엔진을 멈춥니다. 알림은 검사기가 이미 보냈습니다.
func (e *Engine) haltOnBreach() {
	e.metrics.EmergencyStopBreachesTotal.Inc()
	e.halt(fmt.Sprintf("비상 정지 하한 도달 (%s < %s)", e.cfg.EmergencyStopCurrency, e.cfg.EmergencyStopBalance))
}

// sendCritical은 치명적 알림을 보냅니다. 전송 실패는 기록만 합니다.
func (e *Engine) sendCritical(message string) {
	if err := e.alerter.Send(alert.CriticalSubject(e.cfg.BotName), message); err != nil {
		e.logger.Warnw("치명적 알림 전송 실패", "err", err)
	}
}
