package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange/paper"
)

// otherConfig 키 (페이퍼 어댑터)
const (
	keyFeePercentage    = "fee-percentage"
	keySpreadPercentage = "spread-percentage"
	keyVolatility       = "volatility"
	keyDepth            = "depth"
	keySeed             = "seed"
	keyFaultRate        = "fault-rate"
	keyFaultStatusCodes = "fault-status-codes"
)

// PaperConfig는 거래소 설정과 마켓 목록으로 페이퍼 어댑터 설정을 만듭니다.
// 활성화된 마켓은 모두 paper.markets에 시작 가격이 있어야 합니다.
func (x Exchange) PaperConfig(markets []domain.Market) (paper.Config, error) {
	if x.Adapter != paper.AdapterName {
		return paper.Config{}, fmt.Errorf("%w: 지원하지 않는 거래소 어댑터 %q", ErrInvalidConfig, x.Adapter)
	}

	specs := make(map[string]PaperMarket, len(x.PaperMarkets))
	for _, pm := range x.PaperMarkets {
		specs[pm.ID] = pm
	}

	cfg := paper.Config{
		Balances: x.Balances,
		Policy:   x.Policy(),
	}

	for _, m := range markets {
		pm, ok := specs[m.ID]
		if !ok {
			if m.Enabled {
				return paper.Config{}, fmt.Errorf("%w: 마켓 %s의 paper.markets 설정이 없습니다", ErrInvalidConfig, m.ID)
			}
			continue
		}
		cfg.Markets = append(cfg.Markets, paper.MarketSpec{
			ID:                m.ID,
			BaseCurrency:      m.BaseCurrency,
			CounterCurrency:   m.CounterCurrency,
			StartPrice:        pm.StartPrice,
			PricePrecision:    pm.PricePrecision,
			QuantityPrecision: pm.QuantityPrecision,
		})
	}

	var err error
	if cfg.FeePercentage, err = x.decimalOther(keyFeePercentage, decimal.Zero); err != nil {
		return paper.Config{}, err
	}
	if cfg.SpreadPercentage, err = x.decimalOther(keySpreadPercentage, decimal.NewFromFloat(0.1)); err != nil {
		return paper.Config{}, err
	}
	if cfg.Volatility, err = x.floatOther(keyVolatility, 0.001); err != nil {
		return paper.Config{}, err
	}
	if cfg.FaultRate, err = x.floatOther(keyFaultRate, 0); err != nil {
		return paper.Config{}, err
	}

	depth, err := x.intOther(keyDepth, 5)
	if err != nil {
		return paper.Config{}, err
	}
	cfg.Depth = int(depth)

	if cfg.Seed, err = x.intOther(keySeed, 1); err != nil {
		return paper.Config{}, err
	}

	if raw := x.OtherConfig[keyFaultStatusCodes]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return paper.Config{}, fmt.Errorf("%w: otherConfig.%s 파싱 실패: %v", ErrInvalidConfig, keyFaultStatusCodes, err)
			}
			cfg.FaultStatusCodes = append(cfg.FaultStatusCodes, code)
		}
	}

	return cfg, nil
}

func (x Exchange) decimalOther(key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw, ok := x.OtherConfig[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: otherConfig.%s 파싱 실패: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}

func (x Exchange) floatOther(key string, def float64) (float64, error) {
	raw, ok := x.OtherConfig[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: otherConfig.%s 파싱 실패: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}

func (x Exchange) intOther(key string, def int64) (int64, error) {
	raw, ok := x.OtherConfig[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: otherConfig.%s 파싱 실패: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}
