package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
	"github.com/assist-by/cyclone/internal/strategy"
)

// Env는 환경변수(.env 포함)로 받는 프로세스 설정입니다
type Env struct {
	ConfigDir string `envconfig:"CONFIG_DIR" default:"config"`

	// 로그 설정
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// 제어 API 설정
	ControlAddr string `envconfig:"CONTROL_ADDR" default:"127.0.0.1:8080"`
	AutoStart   bool   `envconfig:"AUTO_START" default:"true"`

	// 디스코드 웹훅 설정 (비어 있으면 로그 알림만 사용)
	DiscordAlertWebhook string        `envconfig:"DISCORD_ALERT_WEBHOOK"`
	AlertTimeout        time.Duration `envconfig:"ALERT_TIMEOUT" default:"10s"`
}

// Engine은 engine.yaml의 엔진 설정입니다
type Engine struct {
	BotID                 string
	BotName               string
	EmergencyStopCurrency string          // 비상 정지 감시 통화
	EmergencyStopBalance  decimal.Decimal // 이 값 미만이면 비상 정지
	TradeCycleInterval    time.Duration   // 사이클 사이 대기 시간
}

// NetworkConfig는 거래소 호출의 네트워크 설정입니다
type NetworkConfig struct {
	ConnectionTimeout  time.Duration // 호출당 제한 시간 (0이면 제한 없음)
	NonFatalErrorCodes []int         // Transient로 취급할 HTTP 상태 코드
}

// PaperMarket은 페이퍼 거래소에서 시뮬레이션할 마켓의 시세 설정입니다
type PaperMarket struct {
	ID                string
	StartPrice        decimal.Decimal
	PricePrecision    int32
	QuantityPrecision int32
}

// Exchange는 exchange.yaml의 거래소 설정입니다
type Exchange struct {
	Name                       string
	Adapter                    string
	Network                    NetworkConfig
	KeepAliveDuringMaintenance bool
	OtherConfig                map[string]string

	// 페이퍼 어댑터 전용
	Balances     map[string]decimal.Decimal
	PaperMarkets []PaperMarket
}

// Policy는 거래소 에러 분류 정책을 반환합니다
func (x Exchange) Policy() exchange.NetworkPolicy {
	return exchange.NetworkPolicy{
		NonFatalStatusCodes:        x.Network.NonFatalErrorCodes,
		KeepAliveDuringMaintenance: x.KeepAliveDuringMaintenance,
	}
}

// Config는 봇 전체 설정의 읽기 전용 스냅샷입니다
type Config struct {
	Env        Env
	Engine     Engine
	Exchange   Exchange
	Markets    []domain.Market
	Strategies []strategy.Config
}

// Load는 .env와 환경변수를 읽은 뒤 CONFIG_DIR의 YAML 설정을 로드하고 검증합니다.
func Load() (*Config, error) {
	// .env 파일은 선택 사항
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	cfg, err := LoadDir(env.ConfigDir)
	if err != nil {
		return nil, err
	}
	cfg.Env = env

	return cfg, nil
}

// LoadDir은 dir의 YAML 설정 파일들을 로드하고 검증합니다
func LoadDir(dir string) (*Config, error) {
	var cfg Config
	var err error

	if cfg.Engine, err = loadEngine(dir); err != nil {
		return nil, err
	}
	if cfg.Exchange, err = loadExchange(dir); err != nil {
		return nil, err
	}
	if cfg.Markets, err = loadMarkets(dir); err != nil {
		return nil, err
	}
	if cfg.Strategies, err = loadStrategies(dir); err != nil {
		return nil, err
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}
