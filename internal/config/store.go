package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/strategy"
)

// YAML 파일 이름
const (
	EngineFile     = "engine.yaml"
	ExchangeFile   = "exchange.yaml"
	MarketsFile    = "markets.yaml"
	StrategiesFile = "strategies.yaml"
)

type engineFile struct {
	Engine struct {
		BotID                 string `yaml:"botId"`
		BotName               string `yaml:"botName"`
		EmergencyStopCurrency string `yaml:"emergencyStopCurrency"`
		EmergencyStopBalance  string `yaml:"emergencyStopBalance"`
		TradeCycleInterval    int    `yaml:"tradeCycleInterval"` // 초
	} `yaml:"engine"`
}

type exchangeFile struct {
	Exchange struct {
		Name          string `yaml:"name"`
		Adapter       string `yaml:"adapter"`
		NetworkConfig struct {
			ConnectionTimeout  int   `yaml:"connectionTimeout"` // 초
			NonFatalErrorCodes []int `yaml:"nonFatalErrorCodes"`
		} `yaml:"networkConfig"`
		KeepAliveDuringMaintenance bool              `yaml:"keepAliveDuringMaintenance"`
		OtherConfig                map[string]string `yaml:"otherConfig"`
		Paper                      struct {
			Balances map[string]string `yaml:"balances"`
			Markets  []struct {
				ID                string `yaml:"id"`
				StartPrice        string `yaml:"startPrice"`
				PricePrecision    int32  `yaml:"pricePrecision"`
				QuantityPrecision int32  `yaml:"quantityPrecision"`
			} `yaml:"markets"`
		} `yaml:"paper"`
	} `yaml:"exchange"`
}

type marketsFile struct {
	Markets []struct {
		ID                string `yaml:"id"`
		Name              string `yaml:"name"`
		BaseCurrency      string `yaml:"baseCurrency"`
		CounterCurrency   string `yaml:"counterCurrency"`
		Enabled           bool   `yaml:"enabled"`
		TradingStrategyID string `yaml:"tradingStrategyId"`
	} `yaml:"markets"`
}

type strategiesFile struct {
	Strategies []struct {
		ID          string            `yaml:"id"`
		Name        string            `yaml:"name"`
		Description string            `yaml:"description"`
		Kind        string            `yaml:"kind"`
		ConfigItems map[string]string `yaml:"configItems"`
	} `yaml:"strategies"`
}

// readYAML은 알 수 없는 키를 거부하며 YAML 파일을 디코딩합니다
func readYAML(dir, name string, out interface{}) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s 읽기 실패: %w", name, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s 파싱 실패: %w", name, err)
	}
	return nil
}

func parseDecimal(file, field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %s 값 %q 파싱 실패: %w", file, field, raw, err)
	}
	return v, nil
}

func loadEngine(dir string) (Engine, error) {
	var f engineFile
	if err := readYAML(dir, EngineFile, &f); err != nil {
		return Engine{}, err
	}

	floor, err := parseDecimal(EngineFile, "emergencyStopBalance", f.Engine.EmergencyStopBalance)
	if err != nil {
		return Engine{}, err
	}

	return Engine{
		BotID:                 f.Engine.BotID,
		BotName:               f.Engine.BotName,
		EmergencyStopCurrency: f.Engine.EmergencyStopCurrency,
		EmergencyStopBalance:  floor,
		TradeCycleInterval:    time.Duration(f.Engine.TradeCycleInterval) * time.Second,
	}, nil
}

func loadExchange(dir string) (Exchange, error) {
	var f exchangeFile
	if err := readYAML(dir, ExchangeFile, &f); err != nil {
		return Exchange{}, err
	}
	x := f.Exchange

	out := Exchange{
		Name:    x.Name,
		Adapter: x.Adapter,
		Network: NetworkConfig{
			ConnectionTimeout:  time.Duration(x.NetworkConfig.ConnectionTimeout) * time.Second,
			NonFatalErrorCodes: x.NetworkConfig.NonFatalErrorCodes,
		},
		KeepAliveDuringMaintenance: x.KeepAliveDuringMaintenance,
		OtherConfig:                x.OtherConfig,
		Balances:                   make(map[string]decimal.Decimal, len(x.Paper.Balances)),
	}
	if out.OtherConfig == nil {
		out.OtherConfig = map[string]string{}
	}

	for currency, raw := range x.Paper.Balances {
		v, err := parseDecimal(ExchangeFile, "paper.balances."+currency, raw)
		if err != nil {
			return Exchange{}, err
		}
		out.Balances[currency] = v
	}
	for _, m := range x.Paper.Markets {
		price, err := parseDecimal(ExchangeFile, "paper.markets."+m.ID+".startPrice", m.StartPrice)
		if err != nil {
			return Exchange{}, err
		}
		out.PaperMarkets = append(out.PaperMarkets, PaperMarket{
			ID:                m.ID,
			StartPrice:        price,
			PricePrecision:    m.PricePrecision,
			QuantityPrecision: m.QuantityPrecision,
		})
	}

	return out, nil
}

func loadMarkets(dir string) ([]domain.Market, error) {
	var f marketsFile
	if err := readYAML(dir, MarketsFile, &f); err != nil {
		return nil, err
	}

	markets := make([]domain.Market, 0, len(f.Markets))
	for _, m := range f.Markets {
		markets = append(markets, domain.Market{
			ID:                m.ID,
			Name:              m.Name,
			BaseCurrency:      m.BaseCurrency,
			CounterCurrency:   m.CounterCurrency,
			Enabled:           m.Enabled,
			TradingStrategyID: m.TradingStrategyID,
		})
	}
	return markets, nil
}

func loadStrategies(dir string) ([]strategy.Config, error) {
	var f strategiesFile
	if err := readYAML(dir, StrategiesFile, &f); err != nil {
		return nil, err
	}

	configs := make([]strategy.Config, 0, len(f.Strategies))
	for _, s := range f.Strategies {
		items := s.ConfigItems
		if items == nil {
			items = map[string]string{}
		}
		configs = append(configs, strategy.Config{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Kind:        s.Kind,
			Items:       items,
		})
	}
	return configs, nil
}
