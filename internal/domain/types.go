package domain

import "fmt"

// OrderSide는 주문 방향을 정의합니다
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// String은 OrderSide의 문자열 표현을 반환합니다
func (s OrderSide) String() string {
	return string(s)
}

// Validate는 지원하는 주문 방향인지 확인합니다
func (s OrderSide) Validate() error {
	switch s {
	case Buy, Sell:
		return nil
	default:
		return fmt.Errorf("알 수 없는 주문 방향: %q", string(s))
	}
}

// Opposite는 반대 방향을 반환합니다
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}
