package scalping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
	"github.com/assist-by/cyclone/internal/strategy"
)

// Kind는 strategies.yaml에서 이 전략을 선택할 때 쓰는 이름입니다
const Kind = "scalping"

const (
	itemBuyOrderAmount    = "counter-currency-buy-order-amount"
	itemMinPercentageGain = "minimum-percentage-gain"

	quantityScale = 8
)

var hundred = decimal.NewFromInt(100)

// orderState는 마지막으로 낸 주문을 기억합니다
type orderState struct {
	ID     string
	Side   domain.OrderSide
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Strategy는 한 번에 주문 하나만 관리하는 단순 스캘핑 전략입니다.
// 최우선 매수 호가에 매수하고, 체결되면 수수료와 최소 수익률을 더한 가격에 매도합니다.
type Strategy struct {
	api    exchange.TradingAPI
	market domain.Market
	logger *zap.SugaredLogger

	buyOrderAmount    decimal.Decimal // 매수 주문에 쓸 상대 통화 금액
	minPercentageGain decimal.Decimal // 매도 전 최소 수익률 (비율)
	lastOrder         *orderState
}

// New는 새로운 스캘핑 전략 인스턴스를 생성합니다
func New(logger *zap.SugaredLogger) *Strategy {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Strategy{logger: logger}
}

// RegisterStrategy는 이 전략을 레지스트리에 등록합니다
func RegisterStrategy(registry *strategy.Registry, logger *zap.SugaredLogger) {
	registry.Register(Kind, func() strategy.TradingStrategy {
		return New(logger)
	})
}

// Init은 전략을 초기화합니다
func (s *Strategy) Init(api exchange.TradingAPI, market domain.Market, config strategy.Config) error {
	amount, err := config.DecimalItem(itemBuyOrderAmount)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%s는 0보다 커야 합니다: %s", itemBuyOrderAmount, amount)
	}

	gain, err := config.DecimalItem(itemMinPercentageGain)
	if err != nil {
		return err
	}
	if gain.IsNegative() {
		return fmt.Errorf("%s는 음수일 수 없습니다: %s", itemMinPercentageGain, gain)
	}

	s.api = api
	s.market = market
	s.logger = s.logger.With("market", market.ID, "strategy", config.ID)
	s.buyOrderAmount = amount
	s.minPercentageGain = gain.Div(hundred)

	s.logger.Infow("전략 초기화 완료",
		"buyOrderAmount", amount, "minPercentageGain", gain)
	return nil
}

// Execute는 거래 사이클 한 번을 수행합니다
func (s *Strategy) Execute(ctx context.Context) error {
	book, err := s.api.GetMarketOrders(ctx, s.market.ID)
	if err != nil {
		return s.wrap("GetMarketOrders", err)
	}

	bestBid, ok := book.BestBid()
	if !ok {
		s.logger.Warnw("거래소가 빈 매수 호가를 반환했습니다. 이번 사이클은 건너뜁니다")
		return nil
	}
	bestAsk, ok := book.BestAsk()
	if !ok {
		s.logger.Warnw("거래소가 빈 매도 호가를 반환했습니다. 이번 사이클은 건너뜁니다")
		return nil
	}

	s.logger.Infow("현재 호가", "bid", bestBid.Price, "ask", bestAsk.Price)

	switch {
	case s.lastOrder == nil:
		return s.placeBuy(ctx, bestBid.Price)
	case s.lastOrder.Side == domain.Buy:
		return s.whenLastOrderWasBuy(ctx, bestBid.Price)
	default:
		return s.whenLastOrderWasSell(ctx, bestBid.Price)
	}
}

// placeBuy는 현재 매수 호가에 새 매수 주문을 냅니다
func (s *Strategy) placeBuy(ctx context.Context, bidPrice decimal.Decimal) error {
	amount, err := s.amountToBuy(ctx)
	if err != nil {
		return err
	}

	id, err := s.api.CreateOrder(ctx, s.market.ID, domain.Buy, amount, bidPrice)
	if err != nil {
		return s.wrap("CreateOrder", err)
	}

	s.lastOrder = &orderState{ID: id, Side: domain.Buy, Price: bidPrice, Amount: amount}
	s.logger.Infow("매수 주문 전송", "id", id, "price", bidPrice, "amount", amount)
	return nil
}

// whenLastOrderWasBuy는 매수 주문이 체결되었으면 매도 주문을 내고,
// 아직 미체결인데 매수 호가가 올라갔으면 주문을 새 호가로 옮깁니다
func (s *Strategy) whenLastOrderWasBuy(ctx context.Context, bidPrice decimal.Decimal) error {
	open, err := s.api.GetYourOpenOrders(ctx, s.market.ID)
	if err != nil {
		return s.wrap("GetYourOpenOrders", err)
	}

	if _, stillOpen := domain.FindOpenOrder(open, s.lastOrder.ID); stillOpen {
		if !bidPrice.GreaterThan(s.lastOrder.Price) {
			s.logger.Infow("매수 주문 미체결, 대기", "id", s.lastOrder.ID, "price", s.lastOrder.Price)
			return nil
		}

		s.logger.Infow("매수 호가 상승, 주문 재배치", "id", s.lastOrder.ID, "from", s.lastOrder.Price, "to", bidPrice)
		cancelled, err := s.api.CancelOrder(ctx, s.lastOrder.ID, s.market.ID)
		if err != nil {
			return s.wrap("CancelOrder", err)
		}
		if !cancelled {
			// 취소 직전에 체결됐을 수 있으므로 다음 사이클에 미체결 목록으로 다시 판단합니다
			s.logger.Warnw("매수 주문 취소 실패", "id", s.lastOrder.ID)
			return nil
		}
		s.lastOrder = nil
		return s.placeBuy(ctx, bidPrice)
	}

	buyFee, err := s.api.GetPercentageFee(ctx, s.market.ID, domain.Buy)
	if err != nil {
		return s.wrap("GetPercentageFee", err)
	}
	sellFee, err := s.api.GetPercentageFee(ctx, s.market.ID, domain.Sell)
	if err != nil {
		return s.wrap("GetPercentageFee", err)
	}

	required := buyFee.Add(sellFee).Add(s.minPercentageGain)
	askPrice := s.lastOrder.Price.Add(s.lastOrder.Price.Mul(required))

	id, err := s.api.CreateOrder(ctx, s.market.ID, domain.Sell, s.lastOrder.Amount, askPrice)
	if err != nil {
		return s.wrap("CreateOrder", err)
	}

	s.logger.Infow("매수 체결, 매도 주문 전송",
		"buyPrice", s.lastOrder.Price, "id", id, "price", askPrice, "amount", s.lastOrder.Amount)
	s.lastOrder = &orderState{ID: id, Side: domain.Sell, Price: askPrice, Amount: s.lastOrder.Amount}
	return nil
}

// whenLastOrderWasSell은 매도 주문이 체결되었으면 새 매수 주문을 냅니다
func (s *Strategy) whenLastOrderWasSell(ctx context.Context, bidPrice decimal.Decimal) error {
	open, err := s.api.GetYourOpenOrders(ctx, s.market.ID)
	if err != nil {
		return s.wrap("GetYourOpenOrders", err)
	}

	if _, stillOpen := domain.FindOpenOrder(open, s.lastOrder.ID); stillOpen {
		s.logger.Infow("매도 주문 미체결, 대기", "id", s.lastOrder.ID, "price", s.lastOrder.Price)
		return nil
	}

	s.logger.Infow("매도 체결", "id", s.lastOrder.ID, "price", s.lastOrder.Price)
	return s.placeBuy(ctx, bidPrice)
}

// amountToBuy는 설정된 상대 통화 금액으로 살 수 있는 기준 통화 수량을 계산합니다
func (s *Strategy) amountToBuy(ctx context.Context) (decimal.Decimal, error) {
	last, err := s.api.GetLatestMarketPrice(ctx, s.market.ID)
	if err != nil {
		return decimal.Zero, s.wrap("GetLatestMarketPrice", err)
	}
	if !last.IsPositive() {
		return decimal.Zero, strategy.NewError(s.market.ID, "GetLatestMarketPrice",
			fmt.Errorf("유효하지 않은 최근 체결가: %s", last))
	}
	return s.buyOrderAmount.DivRound(last, quantityScale), nil
}

// wrap은 일시적 오류는 그대로 돌려주고, 그 외 오류는 전략 에러로 감쌉니다
func (s *Strategy) wrap(op string, err error) error {
	if exchange.IsTransient(err) {
		s.logger.Warnw("일시적 거래소 오류", "op", op, "err", err)
	}
	return strategy.WrapExchangeError(s.market.ID, op, err)
}
