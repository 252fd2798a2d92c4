package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig는 설정 검증 실패를 나타냅니다
var ErrInvalidConfig = errors.New("유효하지 않은 설정")

// MinTradeCycleInterval은 허용하는 최소 사이클 간격입니다
const MinTradeCycleInterval = time.Second

// ValidateConfig는 설정이 유효한지 확인합니다.
// 발견한 문제를 모두 모아 하나의 에러로 반환합니다.
func ValidateConfig(cfg *Config) error {
	var problems []error
	fail := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	// 엔진
	if cfg.Engine.BotName == "" {
		fail("engine.botName이 비어 있습니다")
	}
	if cfg.Engine.EmergencyStopCurrency == "" {
		fail("engine.emergencyStopCurrency가 비어 있습니다")
	}
	if cfg.Engine.EmergencyStopBalance.IsNegative() {
		fail("engine.emergencyStopBalance는 음수일 수 없습니다: %s", cfg.Engine.EmergencyStopBalance)
	}
	if cfg.Engine.TradeCycleInterval < MinTradeCycleInterval {
		fail("engine.tradeCycleInterval은 %v 이상이어야 합니다: %v", MinTradeCycleInterval, cfg.Engine.TradeCycleInterval)
	}

	// 거래소
	if cfg.Exchange.Adapter == "" {
		fail("exchange.adapter가 비어 있습니다")
	}
	if cfg.Exchange.Network.ConnectionTimeout < 0 {
		fail("exchange.networkConfig.connectionTimeout은 음수일 수 없습니다")
	}

	// 전략
	strategyIDs := make(map[string]bool, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		if s.ID == "" {
			fail("전략 id가 비어 있습니다")
			continue
		}
		if strategyIDs[s.ID] {
			fail("중복된 전략 id: %s", s.ID)
		}
		strategyIDs[s.ID] = true
		if s.Kind == "" {
			fail("전략 %s의 kind가 비어 있습니다", s.ID)
		}
	}

	// 마켓
	marketIDs := make(map[string]bool, len(cfg.Markets))
	for _, m := range cfg.Markets {
		if m.ID == "" {
			fail("마켓 id가 비어 있습니다")
			continue
		}
		if marketIDs[m.ID] {
			fail("중복된 마켓 id: %s", m.ID)
		}
		marketIDs[m.ID] = true
		if m.Enabled && !strategyIDs[m.TradingStrategyID] {
			fail("마켓 %s가 알 수 없는 전략 %q를 참조합니다", m.ID, m.TradingStrategyID)
		}
	}

	return errors.Join(problems...)
}
