package indicator

import (
	"fmt"
	"math"
	"time"
)

// EMAResult는 EMA 지표 계산 결과입니다
type EMAResult struct {
	Value     float64
	Timestamp time.Time
}

// GetTimestamp는 결과의 타임스탬프를 반환합니다 (Result 인터페이스 구현)
func (r EMAResult) GetTimestamp() time.Time {
	return r.Timestamp
}

// EMA는 지수이동평균 지표를 구현합니다
type EMA struct {
	Period int // EMA 기간
}

// NewEMA는 새로운 EMA 지표 인스턴스를 생성합니다
func NewEMA(period int) *EMA {
	return &EMA{Period: period}
}

// GetName은 지표의 이름을 반환합니다
func (e *EMA) GetName() string {
	return fmt.Sprintf("EMA(%d)", e.Period)
}

// Calculate는 주어진 가격 표본에 대해 EMA를 계산합니다.
// 첫 표본을 시작값으로 쓰며, 기간을 채우기 전 구간은 NaN입니다.
func (e *EMA) Calculate(prices []PriceData) ([]Result, error) {
	if err := e.validateInput(prices); err != nil {
		return nil, err
	}

	p := e.Period
	alpha := 2.0 / float64(p+1)
	results := make([]Result, len(prices))

	ema := prices[0].Price
	for i := range prices {
		if i > 0 {
			ema = alpha*prices[i].Price + (1-alpha)*ema
		}
		v := ema
		if i < p-1 {
			v = math.NaN()
		}
		results[i] = EMAResult{Value: v, Timestamp: prices[i].Time}
	}

	return results, nil
}

// validateInput은 입력 데이터가 유효한지 검증합니다
func (e *EMA) validateInput(prices []PriceData) error {
	if e.Period <= 0 {
		return &ValidationError{Field: "period", Err: fmt.Errorf("period must be > 0")}
	}
	if len(prices) < e.Period {
		return &ValidationError{
			Field: "prices",
			Err:   fmt.Errorf("가격 데이터가 부족합니다. 필요: %d, 현재: %d", e.Period, len(prices)),
		}
	}
	return nil
}
