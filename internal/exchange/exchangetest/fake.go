// Package exchangetest는 테스트용 TradingAPI 대역을 제공합니다.
package exchangetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/assist-by/cyclone/internal/domain"
)

// PlacedOrder는 Fake가 받은 주문 요청 하나입니다
type PlacedOrder struct {
	ID       string
	MarketID string
	Side     domain.OrderSide
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Fake는 필드에 지정한 함수로 응답하는 TradingAPI입니다.
// 지정하지 않은 호출은 빈 값과 nil 에러를 반환하며, 모든 호출은 기록됩니다.
type Fake struct {
	MarketOrdersFn func(ctx context.Context, marketID string) (domain.MarketOrderBook, error)
	LatestPriceFn  func(ctx context.Context, marketID string) (decimal.Decimal, error)
	OpenOrdersFn   func(ctx context.Context, marketID string) ([]domain.OpenOrder, error)
	BalanceInfoFn  func(ctx context.Context) (domain.BalanceInfo, error)
	FeeFn          func(ctx context.Context, marketID string, side domain.OrderSide) (decimal.Decimal, error)
	CreateOrderFn  func(ctx context.Context, o PlacedOrder) error
	CancelOrderFn  func(ctx context.Context, orderID, marketID string) (bool, error)

	mu        sync.Mutex
	seq       int
	calls     []string
	orders    []PlacedOrder
	cancelled []string
}

// ImplName은 구현 이름을 반환합니다
func (f *Fake) ImplName() string { return "fake" }

func (f *Fake) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls는 지금까지 호출된 메서드 이름을 순서대로 반환합니다
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Orders는 지금까지 접수된 주문을 반환합니다
func (f *Fake) Orders() []PlacedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PlacedOrder(nil), f.orders...)
}

// Cancelled는 취소 요청된 주문 ID를 반환합니다
func (f *Fake) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func (f *Fake) GetMarketOrders(ctx context.Context, marketID string) (domain.MarketOrderBook, error) {
	f.record("GetMarketOrders")
	if f.MarketOrdersFn != nil {
		return f.MarketOrdersFn(ctx, marketID)
	}
	return domain.MarketOrderBook{MarketID: marketID}, nil
}

func (f *Fake) GetLatestMarketPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	f.record("GetLatestMarketPrice")
	if f.LatestPriceFn != nil {
		return f.LatestPriceFn(ctx, marketID)
	}
	return decimal.Zero, nil
}

func (f *Fake) GetYourOpenOrders(ctx context.Context, marketID string) ([]domain.OpenOrder, error) {
	f.record("GetYourOpenOrders")
	if f.OpenOrdersFn != nil {
		return f.OpenOrdersFn(ctx, marketID)
	}
	return nil, nil
}

func (f *Fake) GetBalanceInfo(ctx context.Context) (domain.BalanceInfo, error) {
	f.record("GetBalanceInfo")
	if f.BalanceInfoFn != nil {
		return f.BalanceInfoFn(ctx)
	}
	return domain.NewBalanceInfo(), nil
}

func (f *Fake) GetPercentageFee(ctx context.Context, marketID string, side domain.OrderSide) (decimal.Decimal, error) {
	f.record("GetPercentageFee")
	if f.FeeFn != nil {
		return f.FeeFn(ctx, marketID, side)
	}
	return decimal.Zero, nil
}

func (f *Fake) CreateOrder(ctx context.Context, marketID string, side domain.OrderSide, quantity, price decimal.Decimal) (string, error) {
	f.record("CreateOrder")

	f.mu.Lock()
	f.seq++
	o := PlacedOrder{
		ID:       fmt.Sprintf("fake-%d", f.seq),
		MarketID: marketID,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	}
	f.mu.Unlock()

	if f.CreateOrderFn != nil {
		if err := f.CreateOrderFn(ctx, o); err != nil {
			return "", err
		}
	}

	f.mu.Lock()
	f.orders = append(f.orders, o)
	f.mu.Unlock()
	return o.ID, nil
}

func (f *Fake) CancelOrder(ctx context.Context, orderID, marketID string) (bool, error) {
	f.record("CancelOrder")
	f.mu.Lock()
	f.cancelled = append(f.cancelled, orderID)
	f.mu.Unlock()
	if f.CancelOrderFn != nil {
		return f.CancelOrderFn(ctx, orderID, marketID)
	}
	return true, nil
}

// Book은 최우선 호가 하나씩만 있는 호가창을 만듭니다. 빈 문자열이면 그 쪽은 비워둡니다.
func Book(marketID, bid, ask string) domain.MarketOrderBook {
	book := domain.MarketOrderBook{MarketID: marketID}
	if bid != "" {
		p := decimal.RequireFromString(bid)
		book.Bids = []domain.MarketOrder{domain.NewMarketOrder(domain.Buy, p, decimal.NewFromInt(1))}
	}
	if ask != "" {
		p := decimal.RequireFromString(ask)
		book.Asks = []domain.MarketOrder{domain.NewMarketOrder(domain.Sell, p, decimal.NewFromInt(1))}
	}
	return book
}
