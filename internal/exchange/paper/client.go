// internal/exchange/paper/client.go
package paper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
)

// AdapterName은 설정 파일에서 이 어댑터를 선택할 때 쓰는 이름입니다
const AdapterName = "paper"

var hundred = decimal.NewFromInt(100)

// MarketSpec은 시뮬레이션할 마켓 하나의 설정입니다
type MarketSpec struct {
	ID                string
	BaseCurrency      string
	CounterCurrency   string
	StartPrice        decimal.Decimal
	PricePrecision    int32 // 가격 소수점 자릿수 (HALF_EVEN 반올림)
	QuantityPrecision int32 // 수량 소수점 자릿수 (HALF_EVEN 반올림)
}

// Config는 페이퍼 거래소 설정입니다
type Config struct {
	Balances         map[string]decimal.Decimal // 초기 사용 가능 잔고
	Markets          []MarketSpec
	FeePercentage    decimal.Decimal // 거래 수수료 (%, 예: 0.25)
	SpreadPercentage decimal.Decimal // 최우선 매수/매도 호가 간격 (%, 예: 0.1)
	Volatility       float64         // 호출당 중간가 변동 표준편차 (비율, 예: 0.002)
	Depth            int             // 오더북 단계 수
	Seed             int64
	FaultRate        float64 // 호출당 장애 주입 확률 (0이면 비활성)
	FaultStatusCodes []int   // 장애 주입 시 사용할 HTTP 상태 코드
	Policy           exchange.NetworkPolicy
}

type marketState struct {
	spec MarketSpec
	mid  decimal.Decimal
}

type order struct {
	domain.OpenOrder
	hold decimal.Decimal // 주문에 묶어둔 금액 (매수: 상대 통화, 매도: 기준 통화)
}

// Client는 가상 잔고와 랜덤 워크 시세로 동작하는 TradingAPI 구현체입니다
type Client struct {
	cfg     Config
	markets map[string]*marketState

	mu          sync.Mutex
	rng         *rand.Rand
	available   map[string]decimal.Decimal
	onHold      map[string]decimal.Decimal
	orders      map[string]*order
	nextID      int64
	maintenance bool

	now    func() time.Time
	logger *zap.SugaredLogger
}

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock은 주문 생성 시각에 사용할 시계를 설정합니다
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient는 새로운 페이퍼 거래소 클라이언트를 생성합니다
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if len(cfg.Markets) == 0 {
		return nil, errors.New("페이퍼 거래소에 마켓이 설정되지 않았습니다")
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 5
	}
	if len(cfg.FaultStatusCodes) == 0 {
		cfg.FaultStatusCodes = []int{503}
	}

	c := &Client{
		cfg:       cfg,
		markets:   make(map[string]*marketState, len(cfg.Markets)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		available: make(map[string]decimal.Decimal),
		onHold:    make(map[string]decimal.Decimal),
		orders:    make(map[string]*order),
		now:       time.Now,
		logger:    zap.NewNop().Sugar(),
	}

	for _, spec := range cfg.Markets {
		if !spec.StartPrice.IsPositive() {
			return nil, fmt.Errorf("마켓 %s의 시작 가격은 0보다 커야 합니다", spec.ID)
		}
		if _, dup := c.markets[spec.ID]; dup {
			return nil, fmt.Errorf("중복된 마켓 ID: %s", spec.ID)
		}
		c.markets[spec.ID] = &marketState{spec: spec, mid: spec.StartPrice}
		c.ensureCurrency(spec.BaseCurrency)
		c.ensureCurrency(spec.CounterCurrency)
	}
	for currency, amount := range cfg.Balances {
		c.ensureCurrency(currency)
		c.available[currency] = amount
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ImplName은 어댑터 이름을 반환합니다
func (c *Client) ImplName() string {
	return "Paper Trading Exchange"
}

// SetMaintenance는 거래소 점검 상태를 전환합니다
func (c *Client) SetMaintenance(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maintenance = on
}

// GetMarketOrders는 시세를 한 틱 진행시킨 뒤 오더북을 반환합니다
func (c *Client) GetMarketOrders(ctx context.Context, marketID string) (domain.MarketOrderBook, error) {
	const op = "GetMarketOrders"

	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.begin(ctx, op, marketID)
	if err != nil {
		return domain.MarketOrderBook{}, err
	}
	c.tick(m)

	bid, ask := c.quotes(m)
	step := decimal.New(1, -m.spec.PricePrecision)
	book := domain.MarketOrderBook{
		MarketID: marketID,
		Bids:     make([]domain.MarketOrder, 0, c.cfg.Depth),
		Asks:     make([]domain.MarketOrder, 0, c.cfg.Depth),
	}
	for i := 0; i < c.cfg.Depth; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))
		qty := decimal.NewFromFloat(0.5 + c.rng.Float64()*2).RoundBank(m.spec.QuantityPrecision)
		book.Bids = append(book.Bids, domain.NewMarketOrder(domain.Buy, bid.Sub(offset), qty))
		book.Asks = append(book.Asks, domain.NewMarketOrder(domain.Sell, ask.Add(offset), qty))
	}
	return book, nil
}

// GetLatestMarketPrice는 시세를 한 틱 진행시킨 뒤 중간가를 반환합니다
func (c *Client) GetLatestMarketPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	const op = "GetLatestMarketPrice"

	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.begin(ctx, op, marketID)
	if err != nil {
		return decimal.Zero, err
	}
	c.tick(m)
	return m.mid, nil
}

// GetYourOpenOrders는 마켓의 미체결 주문을 생성 순서대로 반환합니다
func (c *Client) GetYourOpenOrders(ctx context.Context, marketID string) ([]domain.OpenOrder, error) {
	const op = "GetYourOpenOrders"

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.begin(ctx, op, marketID); err != nil {
		return nil, err
	}

	result := make([]domain.OpenOrder, 0)
	for _, o := range c.orders {
		if o.MarketID == marketID {
			result = append(result, o.OpenOrder)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt) ||
			(result[i].CreatedAt.Equal(result[j].CreatedAt) && orderSeq(result[i].ID) < orderSeq(result[j].ID))
	})
	return result, nil
}

// GetBalanceInfo는 가상 잔고를 반환합니다
func (c *Client) GetBalanceInfo(ctx context.Context) (domain.BalanceInfo, error) {
	const op = "GetBalanceInfo"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fault(ctx, op); err != nil {
		return domain.BalanceInfo{}, err
	}

	info := domain.NewBalanceInfo()
	for currency, amount := range c.available {
		info.Available[currency] = amount
	}
	for currency, amount := range c.onHold {
		info.OnHold[currency] = amount
	}
	return info, nil
}

// GetPercentageFee는 수수료를 비율로 반환합니다 (0.25% -> 0.0025)
func (c *Client) GetPercentageFee(ctx context.Context, marketID string, side domain.OrderSide) (decimal.Decimal, error) {
	const op = "GetPercentageFee"

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.begin(ctx, op, marketID); err != nil {
		return decimal.Zero, err
	}
	if err := side.Validate(); err != nil {
		return decimal.Zero, exchange.NewFatalError(op, err)
	}
	return c.cfg.FeePercentage.Div(hundred), nil
}

// CreateOrder는 지정가 주문을 생성하고 가능하면 즉시 체결시킵니다
func (c *Client) CreateOrder(ctx context.Context, marketID string, side domain.OrderSide, quantity, price decimal.Decimal) (string, error) {
	const op = "CreateOrder"

	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.begin(ctx, op, marketID)
	if err != nil {
		return "", err
	}
	if err := side.Validate(); err != nil {
		return "", exchange.NewFatalError(op, err)
	}

	price = price.RoundBank(m.spec.PricePrecision)
	quantity = quantity.RoundBank(m.spec.QuantityPrecision)
	if !price.IsPositive() || !quantity.IsPositive() {
		return "", exchange.NewFatalError(op, fmt.Errorf("유효하지 않은 주문: 가격 %s, 수량 %s", price, quantity))
	}

	holdCurrency, hold := m.spec.BaseCurrency, quantity
	if side == domain.Buy {
		fee := c.cfg.FeePercentage.Div(hundred)
		holdCurrency, hold = m.spec.CounterCurrency, price.Mul(quantity).Mul(decimal.NewFromInt(1).Add(fee))
	}
	if c.available[holdCurrency].LessThan(hold) {
		return "", exchange.NewFatalError(op, fmt.Errorf("%s 잔고가 부족합니다: 필요 %s, 현재 %s",
			holdCurrency, hold, c.available[holdCurrency]))
	}
	c.available[holdCurrency] = c.available[holdCurrency].Sub(hold)
	c.onHold[holdCurrency] = c.onHold[holdCurrency].Add(hold)

	c.nextID++
	id := "paper-" + strconv.FormatInt(c.nextID, 10)
	c.orders[id] = &order{
		OpenOrder: domain.OpenOrder{
			ID:               id,
			CreatedAt:        c.now(),
			MarketID:         marketID,
			Side:             side,
			Price:            price,
			Quantity:         quantity,
			OriginalQuantity: quantity,
			Total:            price.Mul(quantity),
		},
		hold: hold,
	}

	c.logger.Debugw("페이퍼 주문 생성", "id", id, "market", marketID, "side", side, "price", price, "quantity", quantity)
	c.match(m)
	return id, nil
}

// CancelOrder는 미체결 주문을 취소합니다. 주문이 없으면 false를 반환합니다.
func (c *Client) CancelOrder(ctx context.Context, orderID, marketID string) (bool, error) {
	const op = "CancelOrder"

	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.begin(ctx, op, marketID)
	if err != nil {
		return false, err
	}

	o, ok := c.orders[orderID]
	if !ok || o.MarketID != marketID {
		return false, nil
	}

	holdCurrency := m.spec.BaseCurrency
	if o.Side == domain.Buy {
		holdCurrency = m.spec.CounterCurrency
	}
	c.onHold[holdCurrency] = c.onHold[holdCurrency].Sub(o.hold)
	c.available[holdCurrency] = c.available[holdCurrency].Add(o.hold)
	delete(c.orders, orderID)

	c.logger.Debugw("페이퍼 주문 취소", "id", orderID, "market", marketID)
	return true, nil
}

// begin은 모든 마켓 단위 호출의 공통 사전 검사입니다. mu를 잡은 상태로 호출해야 합니다.
func (c *Client) begin(ctx context.Context, op, marketID string) (*marketState, error) {
	if err := c.fault(ctx, op); err != nil {
		return nil, err
	}
	m, ok := c.markets[marketID]
	if !ok {
		return nil, exchange.NewFatalError(op, fmt.Errorf("알 수 없는 마켓: %s", marketID))
	}
	return m, nil
}

// fault는 컨텍스트 취소, 점검 상태, 주입된 장애를 오류로 변환합니다
func (c *Client) fault(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return exchange.ClassifyTransport(op, err)
	}
	if c.maintenance {
		return c.cfg.Policy.ClassifyMaintenance(op)
	}
	if c.cfg.FaultRate > 0 && c.rng.Float64() < c.cfg.FaultRate {
		code := c.cfg.FaultStatusCodes[c.rng.Intn(len(c.cfg.FaultStatusCodes))]
		c.logger.Warnw("장애 주입", "op", op, "status", code)
		return c.cfg.Policy.ClassifyStatus(op, code, fmt.Errorf("모의 HTTP 응답 %d", code))
	}
	return nil
}

// tick은 중간가를 한 단계 랜덤 워크시키고 체결 가능한 주문을 처리합니다
func (c *Client) tick(m *marketState) {
	if c.cfg.Volatility > 0 {
		change := decimal.NewFromFloat(1 + c.rng.NormFloat64()*c.cfg.Volatility)
		next := m.mid.Mul(change).RoundBank(m.spec.PricePrecision)
		if next.IsPositive() {
			m.mid = next
		}
	}
	c.match(m)
}

// quotes는 현재 중간가 기준 최우선 매수/매도 호가를 반환합니다
func (c *Client) quotes(m *marketState) (bid, ask decimal.Decimal) {
	half := m.mid.Mul(c.cfg.SpreadPercentage).Div(hundred).Div(decimal.NewFromInt(2))
	bid = m.mid.Sub(half).RoundBank(m.spec.PricePrecision)
	ask = m.mid.Add(half).RoundBank(m.spec.PricePrecision)
	return bid, ask
}

// match는 호가를 넘어선 지정가 주문을 전량 체결시킵니다
func (c *Client) match(m *marketState) {
	bid, ask := c.quotes(m)
	fee := c.cfg.FeePercentage.Div(hundred)

	for id, o := range c.orders {
		if o.MarketID != m.spec.ID {
			continue
		}
		switch {
		case o.Side == domain.Buy && !ask.GreaterThan(o.Price):
			c.onHold[m.spec.CounterCurrency] = c.onHold[m.spec.CounterCurrency].Sub(o.hold)
			c.available[m.spec.BaseCurrency] = c.available[m.spec.BaseCurrency].Add(o.Quantity)
		case o.Side == domain.Sell && !bid.LessThan(o.Price):
			proceeds := o.Price.Mul(o.Quantity).Mul(decimal.NewFromInt(1).Sub(fee))
			c.onHold[m.spec.BaseCurrency] = c.onHold[m.spec.BaseCurrency].Sub(o.hold)
			c.available[m.spec.CounterCurrency] = c.available[m.spec.CounterCurrency].Add(proceeds)
		default:
			continue
		}
		delete(c.orders, id)
		c.logger.Debugw("페이퍼 주문 체결", "id", id, "market", o.MarketID, "side", o.Side, "price", o.Price, "quantity", o.Quantity)
	}
}

func (c *Client) ensureCurrency(currency string) {
	if currency == "" {
		return
	}
	if _, ok := c.available[currency]; !ok {
		c.available[currency] = decimal.Zero
	}
	if _, ok := c.onHold[currency]; !ok {
		c.onHold[currency] = decimal.Zero
	}
}

func orderSeq(id string) int64 {
	n, _ := strconv.ParseInt(id[len("paper-"):], 10, 64)
	return n
}
