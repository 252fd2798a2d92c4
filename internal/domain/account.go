package domain

import "github.com/shopspring/decimal"

// BalanceInfo는 지갑 잔고 정보를 표현합니다
type BalanceInfo struct {
	Available map[string]decimal.Decimal // 통화별 사용 가능 잔고
	OnHold    map[string]decimal.Decimal // 통화별 주문에 묶인 잔고
}

// NewBalanceInfo는 빈 잔고 정보를 생성합니다
func NewBalanceInfo() BalanceInfo {
	return BalanceInfo{
		Available: make(map[string]decimal.Decimal),
		OnHold:    make(map[string]decimal.Decimal),
	}
}

// AvailableFor는 통화의 사용 가능 잔고를 반환합니다. 잔고가 없으면 false를 반환합니다.
func (b BalanceInfo) AvailableFor(currency string) (decimal.Decimal, bool) {
	v, ok := b.Available[currency]
	return v, ok
}

