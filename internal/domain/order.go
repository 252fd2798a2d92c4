package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketOrder는 오더북의 한 호가를 표현합니다
type MarketOrder struct {
	Side     OrderSide       // 매수/매도
	Price    decimal.Decimal // 호가
	Quantity decimal.Decimal // 수량 (기준 통화)
	Total    decimal.Decimal // 가격 × 수량 (상대 통화)
}

// NewMarketOrder는 Total을 계산해 MarketOrder를 생성합니다
func NewMarketOrder(side OrderSide, price, quantity decimal.Decimal) MarketOrder {
	return MarketOrder{
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Total:    price.Mul(quantity),
	}
}

// MarketOrderBook은 마켓의 오더북 스냅샷입니다.
// Bids는 가격 내림차순, Asks는 가격 오름차순으로 정렬됩니다.
type MarketOrderBook struct {
	MarketID string
	Bids     []MarketOrder
	Asks     []MarketOrder
}

// BestBid는 최우선 매수 호가를 반환합니다
func (b MarketOrderBook) BestBid() (MarketOrder, bool) {
	if len(b.Bids) == 0 {
		return MarketOrder{}, false
	}
	return b.Bids[0], true
}

// BestAsk는 최우선 매도 호가를 반환합니다
func (b MarketOrderBook) BestAsk() (MarketOrder, bool) {
	if len(b.Asks) == 0 {
		return MarketOrder{}, false
	}
	return b.Asks[0], true
}

// OpenOrder는 거래소에 아직 체결되지 않고 남아있는 내 주문입니다
type OpenOrder struct {
	ID               string
	CreatedAt        time.Time
	MarketID         string
	Side             OrderSide
	Price            decimal.Decimal
	Quantity         decimal.Decimal // 남은 수량
	OriginalQuantity decimal.Decimal // 최초 주문 수량
	Total            decimal.Decimal // 가격 × 최초 수량
}

// FindOpenOrder는 주문 ID로 미체결 주문을 찾습니다
func FindOpenOrder(orders []OpenOrder, id string) (OpenOrder, bool) {
	for _, o := range orders {
		if o.ID == id {
			return o, true
		}
	}
	return OpenOrder{}, false
}
