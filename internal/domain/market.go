package domain

import "fmt"

// Market은 거래소에서 거래 가능한 통화쌍을 표현합니다 (예: BTC/USD)
type Market struct {
	ID                string // 거래소 마켓 ID (예: btcusd)
	Name              string // 표시용 이름 (예: BTC/USD)
	BaseCurrency      string // 기준 통화 (예: BTC)
	CounterCurrency   string // 상대 통화 (예: USD)
	Enabled           bool   // 거래 활성화 여부
	TradingStrategyID string // 이 마켓에 바인딩된 전략 ID
}

// String은 로그용 마켓 표현을 반환합니다
func (m Market) String() string {
	if m.Name != "" {
		return fmt.Sprintf("%s(%s)", m.Name, m.ID)
	}
	return m.ID
}
