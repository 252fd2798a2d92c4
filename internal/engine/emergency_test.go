package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/cyclone/internal/config"
	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
	"github.com/assist-by/cyclone/internal/exchange/exchangetest"
)

func testEngineConfig() config.Engine {
	return config.Engine{
		BotID:                 "test-bot",
		BotName:               "Test Bot",
		EmergencyStopCurrency: "BTC",
		EmergencyStopBalance:  decimal.RequireFromString("0.5"),
		TradeCycleInterval:    time.Hour,
	}
}

func balanceAPI(available map[string]string) *exchangetest.Fake {
	return &exchangetest.Fake{
		BalanceInfoFn: func(context.Context) (domain.BalanceInfo, error) {
			info := domain.NewBalanceInfo()
			for currency, amount := range available {
				info.Available[currency] = decimal.RequireFromString(amount)
			}
			return info, nil
		},
	}
}

func TestEmergencyStop_BelowFloor(t *testing.T) {
	alerts := &recordingAlerter{}
	checker := NewEmergencyStopChecker(nil)

	breached, err := checker.IsEmergencyStopLimitBreached(context.Background(),
		balanceAPI(map[string]string{"BTC": "0.3"}), testEngineConfig(), alerts)

	require.NoError(t, err)
	assert.True(t, breached)

	sent := alerts.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "CRITICAL Alert message from Test Bot", sent[0].Subject)
	assert.Contains(t, sent[0].Message, "0.3")
	assert.Contains(t, sent[0].Message, "0.5")
}

func TestEmergencyStop_AtOrAboveFloor(t *testing.T) {
	for _, balance := range []string{"0.5", "0.50", "2"} {
		t.Run(balance, func(t *testing.T) {
			alerts := &recordingAlerter{}
			breached, err := NewEmergencyStopChecker(nil).IsEmergencyStopLimitBreached(context.Background(),
				balanceAPI(map[string]string{"BTC": balance}), testEngineConfig(), alerts)

			require.NoError(t, err)
			assert.False(t, breached)
			assert.Empty(t, alerts.Sent())
		})
	}
}

func TestEmergencyStop_Unreadable(t *testing.T) {
	tests := []struct {
		name string
		api  *exchangetest.Fake
	}{
		{
			name: "감시 통화 잔고 없음",
			api:  balanceAPI(map[string]string{"USD": "1000"}),
		},
		{
			name: "치명적 조회 오류",
			api: &exchangetest.Fake{BalanceInfoFn: func(context.Context) (domain.BalanceInfo, error) {
				return domain.BalanceInfo{}, exchange.NewFatalError("GetBalanceInfo", errors.New("invalid key"))
			}},
		},
		{
			name: "분류되지 않은 오류",
			api: &exchangetest.Fake{BalanceInfoFn: func(context.Context) (domain.BalanceInfo, error) {
				return domain.BalanceInfo{}, errors.New("unexpected payload")
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := &recordingAlerter{}
			breached, err := NewEmergencyStopChecker(nil).IsEmergencyStopLimitBreached(
				context.Background(), tt.api, testEngineConfig(), alerts)

			require.NoError(t, err)
			assert.True(t, breached)
			assert.Len(t, alerts.Sent(), 1)
		})
	}
}

func TestEmergencyStop_TransientPropagates(t *testing.T) {
	cause := exchange.NewTransientError("GetBalanceInfo", errors.New("connection reset"))
	api := &exchangetest.Fake{BalanceInfoFn: func(context.Context) (domain.BalanceInfo, error) {
		return domain.BalanceInfo{}, cause
	}}
	alerts := &recordingAlerter{}

	breached, err := NewEmergencyStopChecker(nil).IsEmergencyStopLimitBreached(
		context.Background(), api, testEngineConfig(), alerts)

	assert.False(t, breached)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, alerts.Sent())
}

func TestEmergencyStop_AlertFailureIsIgnored(t *testing.T) {
	alerts := &recordingAlerter{err: errors.New("smtp down")}

	breached, err := NewEmergencyStopChecker(nil).IsEmergencyStopLimitBreached(context.Background(),
		balanceAPI(map[string]string{"BTC": "0.1"}), testEngineConfig(), alerts)

	require.NoError(t, err)
	assert.True(t, breached)
	assert.Len(t, alerts.Sent(), 1)
}

func TestEmergencyStop_AlertsRepeatAcrossCalls(t *testing.T) {
	alerts := &recordingAlerter{}
	checker := NewEmergencyStopChecker(nil)
	api := balanceAPI(map[string]string{"BTC": "0.3"})

	for i := 0; i < 3; i++ {
		breached, err := checker.IsEmergencyStopLimitBreached(context.Background(), api, testEngineConfig(), alerts)
		require.NoError(t, err)
		assert.True(t, breached)
	}
	assert.Len(t, alerts.Sent(), 3)
}
