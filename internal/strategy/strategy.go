package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
)

// TradingStrategy는 트레이딩 전략의 인터페이스를 정의합니다.
//
// 엔진은 마켓마다 인스턴스 하나를 만들어 봇이 살아있는 동안 재사용하며,
// Execute를 한 번에 하나의 고루틴에서만 순차적으로 호출합니다.
type TradingStrategy interface {
	// Init은 봇 시작 시 한 번 호출됩니다
	Init(api exchange.TradingAPI, market domain.Market, config Config) error

	// Execute는 거래 사이클마다 한 번 호출됩니다.
	// *Error를 반환하면 엔진은 즉시 봇을 종료합니다.
	Execute(ctx context.Context) error
}

// Config는 strategies.yaml의 전략 항목 하나입니다
type Config struct {
	ID          string
	Name        string
	Description string
	Kind        string            // 레지스트리에 등록된 전략 종류
	Items       map[string]string // 전략별 설정값
}

// Item은 설정값을 반환합니다
func (c Config) Item(key string) (string, bool) {
	v, ok := c.Items[key]
	return v, ok
}

// DecimalItem은 필수 decimal 설정값을 읽습니다
func (c Config) DecimalItem(key string) (decimal.Decimal, error) {
	raw, ok := c.Items[key]
	if !ok || raw == "" {
		return decimal.Zero, fmt.Errorf("전략 %s: 필수 설정 %q가 없습니다", c.ID, key)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("전략 %s: 설정 %q 파싱 실패: %w", c.ID, key, err)
	}
	return v, nil
}

// DecimalItemOr는 선택 decimal 설정값을 읽고, 없으면 기본값을 반환합니다
func (c Config) DecimalItemOr(key string, def decimal.Decimal) (decimal.Decimal, error) {
	if _, ok := c.Items[key]; !ok {
		return def, nil
	}
	return c.DecimalItem(key)
}

// IntItemOr는 선택 정수 설정값을 읽고, 없으면 기본값을 반환합니다
func (c Config) IntItemOr(key string, def int) (int, error) {
	raw, ok := c.Items[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("전략 %s: 설정 %q 파싱 실패: %w", c.ID, key, err)
	}
	return v, nil
}

// ErrUnknownStrategy는 레지스트리에 없는 전략 종류를 요청했을 때 반환됩니다
var ErrUnknownStrategy = errors.New("존재하지 않는 전략")

// Factory는 전략 인스턴스를 생성하는 함수 타입입니다
type Factory func() TradingStrategy

// Registry는 사용 가능한 모든 전략을 등록하고 관리합니다
type Registry struct {
	strategies map[string]Factory
}

// NewRegistry는 새로운 전략 레지스트리를 생성합니다
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Factory),
	}
}

// Register는 새로운 전략 팩토리를 레지스트리에 등록합니다
func (r *Registry) Register(kind string, factory Factory) {
	r.strategies[kind] = factory
}

// Create는 주어진 종류의 전략 인스턴스를 생성합니다
func (r *Registry) Create(kind string) (TradingStrategy, error) {
	factory, exists := r.strategies[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, kind)
	}
	return factory(), nil
}

// ListStrategies는 사용 가능한 모든 전략 종류를 정렬해서 반환합니다
func (r *Registry) ListStrategies() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Binding은 활성화된 마켓 하나와 그 마켓 전용 전략 인스턴스의 묶음입니다
type Binding struct {
	Market   domain.Market
	Strategy TradingStrategy
}

// Bind는 설정 순서대로 활성화된 마켓마다 전략을 생성하고 초기화합니다.
// 비활성화된 마켓은 결과에 포함되지 않습니다.
func (r *Registry) Bind(api exchange.TradingAPI, markets []domain.Market, configs []Config) ([]Binding, error) {
	byID := make(map[string]Config, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
	}

	bindings := make([]Binding, 0, len(markets))
	for _, m := range markets {
		if !m.Enabled {
			continue
		}
		cfg, ok := byID[m.TradingStrategyID]
		if !ok {
			return nil, fmt.Errorf("마켓 %s: 전략 설정 %q를 찾을 수 없습니다", m.ID, m.TradingStrategyID)
		}
		s, err := r.Create(cfg.Kind)
		if err != nil {
			return nil, fmt.Errorf("마켓 %s: %w", m.ID, err)
		}
		if err := s.Init(api, m, cfg); err != nil {
			return nil, fmt.Errorf("마켓 %s 전략 초기화 실패: %w", m.ID, err)
		}
		bindings = append(bindings, Binding{Market: m, Strategy: s})
	}
	return bindings, nil
}
