package indicator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceData는 지표 계산에 쓰는 가격 표본 하나입니다
type PriceData struct {
	Time  time.Time // 표본 시각
	Price float64   // 최근 체결가
}

// Result는 지표 계산의 기본 결과 구조체입니다
type Result interface {
	GetTimestamp() time.Time
}

// ValidationError는 입력값 검증 에러를 정의합니다
type ValidationError struct {
	Field string
	Err   error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("유효하지 않은 %s: %v", e.Field, e.Err)
}

// Indicator는 모든 기술적 지표가 구현해야 하는 인터페이스입니다
type Indicator interface {
	// Calculate는 가격 표본을 기반으로 지표를 계산합니다
	Calculate(data []PriceData) ([]Result, error)

	// GetName은 지표의 이름을 반환합니다
	GetName() string
}

// Series는 용량이 정해진 가격 표본 버퍼입니다. 가득 차면 가장 오래된 표본을 버립니다.
type Series struct {
	capacity int
	data     []PriceData
}

// NewSeries는 최대 capacity개의 표본을 보관하는 Series를 생성합니다
func NewSeries(capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	return &Series{capacity: capacity, data: make([]PriceData, 0, capacity)}
}

// Add는 decimal 가격을 float64 표본으로 변환해 추가합니다
func (s *Series) Add(ts time.Time, price decimal.Decimal) {
	f, _ := price.Float64()
	if len(s.data) == s.capacity {
		copy(s.data, s.data[1:])
		s.data = s.data[:len(s.data)-1]
	}
	s.data = append(s.data, PriceData{Time: ts, Price: f})
}

// Len은 보관 중인 표본 수를 반환합니다
func (s *Series) Len() int {
	return len(s.data)
}

// Data는 보관 중인 표본의 복사본을 오래된 순서로 반환합니다
func (s *Series) Data() []PriceData {
	return append([]PriceData(nil), s.data...)
}
