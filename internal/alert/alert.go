// Package alert는 치명적 상황을 사람에게 알리는 알림 채널을 정의합니다.
package alert

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// CriticalPrefix는 치명적 알림 제목의 접두어입니다
const CriticalPrefix = "CRITICAL"

// Alerter는 알림 전송 인터페이스를 정의합니다.
// 전송 실패는 에러로 반환되지만 호출자는 이를 기록만 하고 계속 진행합니다.
type Alerter interface {
	Send(subject, message string) error
}

// CriticalSubject는 봇 이름을 포함한 치명적 알림 제목을 만듭니다
func CriticalSubject(botName string) string {
	return CriticalPrefix + " Alert message from " + botName
}

// IsCritical은 제목이 치명적 알림인지 확인합니다
func IsCritical(subject string) bool {
	return strings.HasPrefix(subject, CriticalPrefix)
}

// LogAlerter는 알림을 로그로만 남깁니다. 웹훅이 설정되지 않았을 때 사용합니다.
type LogAlerter struct {
	logger *zap.SugaredLogger
}

// NewLogAlerter는 새로운 로그 알림 채널을 생성합니다
func NewLogAlerter(logger *zap.SugaredLogger) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LogAlerter{logger: logger}
}

// Send는 알림을 로그로 기록합니다
func (a *LogAlerter) Send(subject, message string) error {
	if IsCritical(subject) {
		a.logger.Errorw("알림", "subject", subject, "message", message)
	} else {
		a.logger.Infow("알림", "subject", subject, "message", message)
	}
	return nil
}

// Fanout은 여러 알림 채널로 같은 알림을 보냅니다
type Fanout []Alerter

// Send는 모든 채널에 전송을 시도하고, 실패한 전송의 에러를 모아 반환합니다
func (f Fanout) Send(subject, message string) error {
	var errs []error
	for _, a := range f {
		if err := a.Send(subject, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func는 함수를 Alerter로 사용할 수 있게 합니다
type Func func(subject, message string) error

// Send는 f를 호출합니다
func (f Func) Send(subject, message string) error {
	return f(subject, message)
}
