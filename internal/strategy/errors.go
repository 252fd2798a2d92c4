package strategy

import (
	"fmt"

	"github.com/assist-by/cyclone/internal/exchange"
)

// Error는 전략이 더 이상 안전하게 진행할 수 없음을 알리는 에러입니다.
// 내부 원인과 관계없이 엔진은 이 에러를 치명적으로 취급합니다.
type Error struct {
	Market string
	Op     string
	Err    error
}

// Error는 error 인터페이스를 구현합니다
func (e *Error) Error() string {
	if e.Market != "" {
		return fmt.Sprintf("전략 에러 [%s, 작업: %s]: %v", e.Market, e.Op, e.Err)
	}
	return fmt.Sprintf("전략 에러 [작업: %s]: %v", e.Op, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError는 새로운 전략 에러를 생성합니다
func NewError(market, op string, err error) *Error {
	return &Error{
		Market: market,
		Op:     op,
		Err:    err,
	}
}

// WrapExchangeError는 거래소 호출 에러를 전략 결과로 변환합니다.
// 일시적 거래소 에러는 그대로 반환하여 엔진이 사이클을 계속하게 하고,
// 그 외 에러는 *Error로 감싸 봇을 멈추게 합니다.
func WrapExchangeError(market, op string, err error) error {
	if err == nil {
		return nil
	}
	if exchange.IsTransient(err) {
		return err
	}
	return NewError(market, op, err)
}
