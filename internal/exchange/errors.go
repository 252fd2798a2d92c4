package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Kind는 거래소 오류의 분류입니다
type Kind int

const (
	// Fatal은 재시도해도 복구되지 않는 오류입니다 (응답 형식 오류, 인증 실패, 잔고 부족 등)
	Fatal Kind = iota
	// Transient는 다음 사이클에 스스로 복구될 것으로 기대되는 네트워크 오류입니다
	Transient
)

// String은 Kind의 문자열 표현을 반환합니다
func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrUnderMaintenance는 거래소가 점검 중임을 알리는 구조화된 신호입니다.
// 어댑터는 오류 메시지 대신 이 값을 감싸서 반환해야 합니다.
var ErrUnderMaintenance = errors.New("거래소 점검 중")

// Error는 TradingAPI 호출 실패를 표현합니다
type Error struct {
	Kind Kind
	Op   string // 실패한 작업 (예: GetBalanceInfo)
	Err  error
}

// Error는 error 인터페이스를 구현합니다
func (e *Error) Error() string {
	return fmt.Sprintf("거래소 %s 오류 [작업: %s]: %v", e.Kind, e.Op, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransientError는 일시적 네트워크 오류를 생성합니다
func NewTransientError(op string, err error) *Error {
	return &Error{Kind: Transient, Op: op, Err: err}
}

// NewFatalError는 치명적 거래소 오류를 생성합니다
func NewFatalError(op string, err error) *Error {
	return &Error{Kind: Fatal, Op: op, Err: err}
}

// KindOf는 에러 체인에서 *Error를 찾아 분류를 반환합니다.
// *Error가 없으면 분류할 수 없으므로 Fatal로 간주합니다.
func KindOf(err error) Kind {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Kind
	}
	return Fatal
}

// IsTransient는 에러가 일시적 네트워크 오류인지 확인합니다
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == Transient
}

// NetworkPolicy는 어댑터가 전송 계층 오류를 분류할 때 사용하는 설정입니다
type NetworkPolicy struct {
	// NonFatalStatusCodes는 Transient로 취급할 HTTP 상태 코드 목록입니다 (예: 502, 503, 504)
	NonFatalStatusCodes []int
	// KeepAliveDuringMaintenance가 true면 점검 신호를 Transient로 취급합니다
	KeepAliveDuringMaintenance bool
}

// DefaultNetworkPolicy는 기본 정책을 반환합니다
func DefaultNetworkPolicy() NetworkPolicy {
	return NetworkPolicy{
		NonFatalStatusCodes: []int{502, 503, 504, 520, 522, 525},
	}
}

// ClassifyStatus는 HTTP 상태 코드 오류를 분류합니다
func (p NetworkPolicy) ClassifyStatus(op string, statusCode int, err error) *Error {
	if err == nil {
		err = fmt.Errorf("HTTP 상태 코드 %d", statusCode)
	}
	for _, code := range p.NonFatalStatusCodes {
		if code == statusCode {
			return NewTransientError(op, err)
		}
	}
	return NewFatalError(op, err)
}

// ClassifyMaintenance는 점검 신호를 정책에 따라 분류합니다
func (p NetworkPolicy) ClassifyMaintenance(op string) *Error {
	if p.KeepAliveDuringMaintenance {
		return NewTransientError(op, ErrUnderMaintenance)
	}
	return NewFatalError(op, ErrUnderMaintenance)
}

// ClassifyTransport는 요청 전송 중 발생한 오류를 분류합니다.
// 연결 거부/리셋, 타임아웃, 요청 취소는 Transient, 그 외는 Fatal입니다.
func ClassifyTransport(op string, err error) *Error {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return NewTransientError(op, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewTransientError(op, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewTransientError(op, err)
	}
	return NewFatalError(op, err)
}
