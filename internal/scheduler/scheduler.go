package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStop는 작업이 스케줄러에게 루프 종료를 요청할 때 반환합니다
var ErrStop = errors.New("scheduler: stop requested")

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc는 함수를 Task로 사용할 수 있게 합니다
type TaskFunc func(ctx context.Context) error

// Execute는 f를 호출합니다
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Scheduler는 작업을 실행하고, 끝날 때마다 정해진 시간만큼 쉰 뒤 다시 실행합니다.
// 작업 도중에는 중단하지 않으며, 중지 요청은 대기 구간에서만 반영됩니다.
type Scheduler struct {
	interval time.Duration
	task     Task
	logger   *zap.SugaredLogger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option은 스케줄러 생성 옵션을 정의합니다
type Option func(*Scheduler)

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(interval time.Duration, task Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		task:     task,
		logger:   zap.NewNop().Sugar(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start는 Stop이 호출되거나 ctx가 취소되거나 작업이 에러를 반환할 때까지 작업을 반복 실행합니다.
// Stop 또는 ErrStop으로 끝나면 nil을, ctx 취소로 끝나면 ctx.Err()를, 그 외에는 작업의 에러를 반환합니다.
func (s *Scheduler) Start(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case <-timer.C:
			if err := s.task.Execute(ctx); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}

			s.logger.Debugw("다음 실행까지 대기",
				"wait", s.interval,
				"next", time.Now().Add(s.interval).Format("15:04:05"))
			timer.Reset(s.interval)
		}
	}
}

// Stop은 스케줄러를 중지합니다. 여러 번 호출해도 안전합니다.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
