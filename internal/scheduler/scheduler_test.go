package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(5*time.Millisecond, TaskFunc(func(context.Context) error {
		if runs.Add(1) == 3 {
			return ErrStop
		}
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, int32(3), runs.Load())
}

func TestScheduler_StopInterruptsSleep(t *testing.T) {
	started := make(chan struct{}, 1)
	s := NewScheduler(time.Hour, TaskFunc(func(context.Context) error {
		started <- struct{}{}
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	<-started
	s.Stop()
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("스케줄러가 종료되지 않았습니다")
	}
}

func TestScheduler_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(time.Hour, TaskFunc(func(context.Context) error {
		cancel()
		return nil
	}))

	assert.ErrorIs(t, s.Start(ctx), context.Canceled)
}

func TestScheduler_TaskErrorEndsLoop(t *testing.T) {
	boom := errors.New("boom")
	s := NewScheduler(time.Millisecond, TaskFunc(func(context.Context) error {
		return boom
	}))

	assert.ErrorIs(t, s.Start(context.Background()), boom)
}
