// internal/exchange/exchange.go
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/assist-by/cyclone/internal/domain"
)

// TradingAPI는 거래소 하나와의 상호작용을 위한 인터페이스입니다.
//
// 모든 메서드는 실패 시 *Error를 반환하며, Kind로 일시적 네트워크 오류(Transient)와
// 치명적 오류(Fatal)를 구분합니다. 구현체는 스레드 안전을 보장하지 않아도 됩니다.
// 엔진은 한 번에 하나의 고루틴에서만 호출합니다.
type TradingAPI interface {
	// 거래소 정보
	ImplName() string

	// 시장 데이터 조회
	GetMarketOrders(ctx context.Context, marketID string) (domain.MarketOrderBook, error)
	GetLatestMarketPrice(ctx context.Context, marketID string) (decimal.Decimal, error)

	// 계정 데이터 조회
	GetYourOpenOrders(ctx context.Context, marketID string) ([]domain.OpenOrder, error)
	GetBalanceInfo(ctx context.Context) (domain.BalanceInfo, error)
	GetPercentageFee(ctx context.Context, marketID string, side domain.OrderSide) (decimal.Decimal, error)

	// 거래 기능
	CreateOrder(ctx context.Context, marketID string, side domain.OrderSide, quantity, price decimal.Decimal) (string, error)
	CancelOrder(ctx context.Context, orderID, marketID string) (bool, error)
}
