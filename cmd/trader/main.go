package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/assist-by/cyclone/internal/alert"
	"github.com/assist-by/cyclone/internal/alert/discord"
	"github.com/assist-by/cyclone/internal/api"
	"github.com/assist-by/cyclone/internal/config"
	"github.com/assist-by/cyclone/internal/engine"
	"github.com/assist-by/cyclone/internal/exchange/paper"
	"github.com/assist-by/cyclone/internal/logger"
	"github.com/assist-by/cyclone/internal/strategy"
	"github.com/assist-by/cyclone/internal/strategy/rsiswing"
	"github.com/assist-by/cyclone/internal/strategy/scalping"
)

func main() {
	checkConfig := flag.Bool("check-config", false, "설정만 검증하고 종료")
	flag.Parse()

	if err := run(*checkConfig); err != nil {
		fmt.Fprintf(os.Stderr, "트레이딩 봇 실행 실패: %v\n", err)
		os.Exit(1)
	}
}

func run(checkOnly bool) error {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.Env.LogLevel, File: cfg.Env.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 거래소 어댑터
	paperCfg, err := cfg.Exchange.PaperConfig(cfg.Markets)
	if err != nil {
		return err
	}
	exchangeAPI, err := paper.NewClient(paperCfg, paper.WithLogger(log.Named("paper")))
	if err != nil {
		return fmt.Errorf("거래소 어댑터 생성 실패: %w", err)
	}

	// 전략 레지스트리 생성 및 마켓별 전략 바인딩
	registry := strategy.NewRegistry()
	scalping.RegisterStrategy(registry, log.Named("strategy"))
	rsiswing.RegisterStrategy(registry, log.Named("strategy"))

	bindings, err := registry.Bind(exchangeAPI, cfg.Markets, cfg.Strategies)
	if err != nil {
		return fmt.Errorf("전략 초기화 실패: %w", err)
	}

	if checkOnly {
		log.Infow("설정 검증 완료", "exchange", cfg.Exchange.Name, "markets", len(bindings),
			"strategies", registry.ListStrategies())
		return nil
	}

	alerter := newAlerter(cfg, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := engine.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("지표 등록 실패: %w", err)
	}

	eng := engine.New(cfg.Engine, exchangeAPI, bindings, alerter,
		engine.WithLogger(log.Named("engine")),
		engine.WithMetrics(metrics),
		engine.WithCallTimeout(cfg.Exchange.Network.ConnectionTimeout),
	)

	sendInfo(alerter, log, cfg.Engine.BotName, fmt.Sprintf(
		"🚀 트레이딩 봇이 시작되었습니다. 거래소: %s, 활성 마켓: %d개", cfg.Exchange.Name, len(bindings)))

	if cfg.Env.AutoStart {
		if err := eng.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Env.ControlAddr != "" {
		srv := api.NewServer(cfg.Env.ControlAddr, eng,
			api.WithLogger(log.Named("api")),
			api.WithGatherer(reg),
			api.WithBaseContext(ctx),
		)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	} else {
		// 제어 API가 없으면 엔진 루프가 끝날 때 프로세스도 종료합니다
		g.Go(func() error {
			select {
			case <-eng.Done():
				log.Infow("엔진이 정지하여 프로세스를 종료합니다", "status", eng.Status())
			case <-gctx.Done():
			}
			return nil
		})
	}

	err = g.Wait()
	log.Infow("종료 신호 수신, 엔진을 정지합니다")
	eng.Stop()

	sendInfo(alerter, log, cfg.Engine.BotName, "👋 트레이딩 봇이 종료되었습니다.")
	return err
}

// newAlerter는 로그 알림에 더해, 웹훅이 설정되어 있으면 디스코드 알림도 보내는 알림기를 만듭니다
func newAlerter(cfg *config.Config, log *zap.SugaredLogger) alert.Alerter {
	alerters := alert.Fanout{alert.NewLogAlerter(log.Named("alert"))}
	if cfg.Env.DiscordAlertWebhook != "" {
		alerters = append(alerters, discord.NewClient(cfg.Env.DiscordAlertWebhook,
			discord.WithTimeout(cfg.Env.AlertTimeout),
			discord.WithBotName(cfg.Engine.BotName),
		))
	}
	return alerters
}

func sendInfo(alerter alert.Alerter, log *zap.SugaredLogger, botName, message string) {
	if err := alerter.Send(fmt.Sprintf("Info message from %s", botName), message); err != nil {
		log.Warnw("알림 전송 실패", "err", err)
	}
}
