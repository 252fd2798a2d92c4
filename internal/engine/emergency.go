package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/assist-by/cyclone/internal/alert"
	"github.com/assist-by/cyclone/internal/config"
	"github.com/assist-by/cyclone/internal/exchange"
)

// EmergencyStopChecker는 감시 통화의 지갑 잔고를 하한과 비교합니다.
// 전략이 보고하는 손익 대신 거래소 잔고만 봅니다.
type EmergencyStopChecker struct {
	logger *zap.SugaredLogger
}

// NewEmergencyStopChecker는 새로운 비상 정지 검사기를 생성합니다
func NewEmergencyStopChecker(logger *zap.SugaredLogger) *EmergencyStopChecker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &EmergencyStopChecker{logger: logger}
}

// IsEmergencyStopLimitBreached는 잔고가 하한을 어겼는지 확인합니다.
//
// 잔고 조회가 일시적 오류로 실패하면 (false, err)를 반환하며 판단은 호출자에게 맡깁니다.
// 치명적 오류, 감시 통화 잔고 없음, 잔고 < 하한이면 알림을 정확히 한 번 보내고 true를 반환합니다.
func (c *EmergencyStopChecker) IsEmergencyStopLimitBreached(
	ctx context.Context, api exchange.TradingAPI, cfg config.Engine, alerter alert.Alerter,
) (bool, error) {
	currency := cfg.EmergencyStopCurrency
	floor := cfg.EmergencyStopBalance

	info, err := api.GetBalanceInfo(ctx)
	if err != nil {
		if exchange.IsTransient(err) {
			return false, err
		}
		c.breach(cfg, alerter, fmt.Sprintf(
			"비상 정지: %s 잔고를 조회할 수 없습니다 (하한 %s %s). 원인: %v",
			currency, floor, currency, err),
			"err", err)
		return true, nil
	}

	balance, ok := info.AvailableFor(currency)
	if !ok {
		c.breach(cfg, alerter, fmt.Sprintf(
			"비상 정지: 거래소가 %s 잔고를 반환하지 않았습니다 (하한 %s %s)",
			currency, floor, currency))
		return true, nil
	}

	if balance.LessThan(floor) {
		c.breach(cfg, alerter, fmt.Sprintf(
			"비상 정지: %s 잔고 %s가 하한 %s 미만입니다. 봇을 정지합니다.",
			currency, balance, floor),
			"balance", balance)
		return true, nil
	}

	c.logger.Debugw("비상 정지 검사 통과", "currency", currency, "balance", balance, "floor", floor)
	return false, nil
}

// breach는 에러 로그를 남기고 치명적 알림을 한 번 보냅니다. 전송 실패는 기록만 합니다.
func (c *EmergencyStopChecker) breach(cfg config.Engine, alerter alert.Alerter, message string, kv ...interface{}) {
	fields := append([]interface{}{
		"currency", cfg.EmergencyStopCurrency,
		"floor", cfg.EmergencyStopBalance,
	}, kv...)
	c.logger.Errorw(message, fields...)

	if err := alerter.Send(alert.CriticalSubject(cfg.BotName), message); err != nil {
		c.logger.Warnw("비상 정지 알림 전송 실패", "err", err)
	}
}
