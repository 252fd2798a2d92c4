package rsiswing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
	"github.com/assist-by/cyclone/internal/indicator"
	"github.com/assist-by/cyclone/internal/strategy"
)

// Kind는 strategies.yaml에서 이 전략을 선택할 때 쓰는 이름입니다
const Kind = "rsi-swing"

const (
	itemRSIPeriod     = "rsi-period"
	itemOversold      = "oversold"
	itemOverbought    = "overbought"
	itemOrderQuantity = "order-quantity"
	itemTrendEMA      = "trend-ema-period"
)

// pendingOrder는 아직 체결 확인이 안 된 주문입니다
type pendingOrder struct {
	ID    string
	Side  domain.OrderSide
	Price decimal.Decimal
}

// Strategy는 사이클마다 최근 체결가를 표본으로 모아 RSI를 계산하고,
// 과매도 구간에서 매수하고 과매수 구간에서 매도하는 스윙 전략입니다.
// 미체결 주문은 최대 하나만 유지합니다.
type Strategy struct {
	api    exchange.TradingAPI
	market domain.Market
	logger *zap.SugaredLogger
	now    func() time.Time

	rsi        *indicator.RSI
	trend      *indicator.EMA // nil이면 추세 필터 없음
	prices     *indicator.Series
	oversold   float64
	overbought float64
	quantity   decimal.Decimal

	long    bool
	pending *pendingOrder
}

// New는 새로운 RSI 스윙 전략 인스턴스를 생성합니다
func New(logger *zap.SugaredLogger) *Strategy {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Strategy{logger: logger, now: time.Now}
}

// RegisterStrategy는 이 전략을 레지스트리에 등록합니다
func RegisterStrategy(registry *strategy.Registry, logger *zap.SugaredLogger) {
	registry.Register(Kind, func() strategy.TradingStrategy {
		return New(logger)
	})
}

// Init은 전략을 초기화합니다
func (s *Strategy) Init(api exchange.TradingAPI, market domain.Market, config strategy.Config) error {
	period, err := config.IntItemOr(itemRSIPeriod, 14)
	if err != nil {
		return err
	}
	if period < 2 {
		return fmt.Errorf("%s는 2 이상이어야 합니다: %d", itemRSIPeriod, period)
	}

	oversold, err := config.DecimalItemOr(itemOversold, decimal.NewFromInt(30))
	if err != nil {
		return err
	}
	overbought, err := config.DecimalItemOr(itemOverbought, decimal.NewFromInt(70))
	if err != nil {
		return err
	}
	if oversold.IsNegative() || overbought.GreaterThan(decimal.NewFromInt(100)) || !oversold.LessThan(overbought) {
		return fmt.Errorf("RSI 밴드가 올바르지 않습니다: %s/%s", oversold, overbought)
	}

	quantity, err := config.DecimalItem(itemOrderQuantity)
	if err != nil {
		return err
	}
	if !quantity.IsPositive() {
		return fmt.Errorf("%s는 0보다 커야 합니다: %s", itemOrderQuantity, quantity)
	}

	trendPeriod, err := config.IntItemOr(itemTrendEMA, 0)
	if err != nil {
		return err
	}
	if trendPeriod < 0 {
		return fmt.Errorf("%s는 음수일 수 없습니다: %d", itemTrendEMA, trendPeriod)
	}

	s.api = api
	s.market = market
	s.logger = s.logger.With("market", market.ID, "strategy", config.ID)
	s.rsi = indicator.NewRSI(period)
	if trendPeriod > 0 {
		s.trend = indicator.NewEMA(trendPeriod)
	}
	s.prices = indicator.NewSeries(max(period*5, trendPeriod) + 1)
	s.oversold, _ = oversold.Float64()
	s.overbought, _ = overbought.Float64()
	s.quantity = quantity

	s.logger.Infow("전략 초기화 완료",
		"rsi", s.rsi.GetName(), "oversold", oversold, "overbought", overbought,
		"quantity", quantity, "trendEMA", trendPeriod)
	return nil
}

// Execute는 거래 사이클 한 번을 수행합니다
func (s *Strategy) Execute(ctx context.Context) error {
	price, err := s.api.GetLatestMarketPrice(ctx, s.market.ID)
	if err != nil {
		return s.wrap("GetLatestMarketPrice", err)
	}
	s.prices.Add(s.now(), price)

	if s.pending != nil {
		filled, err := s.checkPending(ctx)
		if err != nil || !filled {
			return err
		}
	}

	if s.prices.Len() <= s.rsi.Period {
		s.logger.Debugw("RSI 계산용 표본 수집 중", "samples", s.prices.Len())
		return nil
	}

	data := s.prices.Data()
	rsi, err := s.rsi.Last(data)
	if err != nil {
		return strategy.NewError(s.market.ID, "RSI", err)
	}

	switch {
	case !s.long && rsi < s.oversold:
		if !s.aboveTrend(data) {
			s.logger.Debugw("과매도지만 추세 필터 미충족", "rsi", rsi, "price", price)
			return nil
		}
		return s.place(ctx, domain.Buy, rsi)
	case s.long && rsi > s.overbought:
		return s.place(ctx, domain.Sell, rsi)
	default:
		s.logger.Debugw("신호 없음", "rsi", rsi, "long", s.long)
		return nil
	}
}

// checkPending은 대기 중인 주문의 체결 여부를 확인하고 포지션을 갱신합니다
func (s *Strategy) checkPending(ctx context.Context) (bool, error) {
	open, err := s.api.GetYourOpenOrders(ctx, s.market.ID)
	if err != nil {
		return false, s.wrap("GetYourOpenOrders", err)
	}
	if _, stillOpen := domain.FindOpenOrder(open, s.pending.ID); stillOpen {
		s.logger.Infow("주문 미체결, 대기", "id", s.pending.ID, "side", s.pending.Side, "price", s.pending.Price)
		return false, nil
	}

	s.long = s.pending.Side == domain.Buy
	s.logger.Infow("주문 체결", "id", s.pending.ID, "side", s.pending.Side, "price", s.pending.Price)
	s.pending = nil
	return true, nil
}

// aboveTrend는 추세 필터가 켜져 있으면 현재가가 EMA 위에 있는지 확인합니다
func (s *Strategy) aboveTrend(data []indicator.PriceData) bool {
	if s.trend == nil {
		return true
	}
	results, err := s.trend.Calculate(data)
	if err != nil {
		return false
	}
	ema := results[len(results)-1].(indicator.EMAResult).Value
	if math.IsNaN(ema) {
		return false
	}
	return data[len(data)-1].Price > ema
}

// place는 매수는 최우선 매도 호가에, 매도는 최우선 매수 호가에 지정가 주문을 냅니다
func (s *Strategy) place(ctx context.Context, side domain.OrderSide, rsi float64) error {
	book, err := s.api.GetMarketOrders(ctx, s.market.ID)
	if err != nil {
		return s.wrap("GetMarketOrders", err)
	}

	var (
		best domain.MarketOrder
		ok   bool
	)
	if side == domain.Buy {
		best, ok = book.BestAsk()
	} else {
		best, ok = book.BestBid()
	}
	if !ok {
		s.logger.Warnw("호가가 비어 있어 이번 사이클은 건너뜁니다", "side", side)
		return nil
	}

	id, err := s.api.CreateOrder(ctx, s.market.ID, side, s.quantity, best.Price)
	if err != nil {
		return s.wrap("CreateOrder", err)
	}

	s.pending = &pendingOrder{ID: id, Side: side, Price: best.Price}
	s.logger.Infow("주문 전송", "id", id, "side", side, "price", best.Price, "quantity", s.quantity, "rsi", rsi)
	return nil
}

func (s *Strategy) wrap(op string, err error) error {
	if exchange.IsTransient(err) {
		s.logger.Warnw("일시적 거래소 오류", "op", op, "err", err)
	}
	return strategy.WrapExchangeError(s.market.ID, op, err)
}
