//go:build !integration

package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"contentforge/internal/infra/worker"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	logger := zerolog.Nop()
	p := worker.NewPool(2, 8, &logger)

	var done int32
	for i := 0; i < 5; i++ {
		if !p.Submit(func() { atomic.AddInt32(&done, 1) }) {
			t.Fatal("submit rejected")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&done) != 5 {
		t.Errorf("ran %d tasks, want 5", done)
	}
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	logger := zerolog.Nop()
	p := worker.NewPool(1, 4, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Shutdown(ctx)

	if p.Submit(func() {}) {
		t.Error("submit accepted after shutdown")
	}
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	logger := zerolog.Nop()
	p := worker.NewPool(1, 4, &logger)

	var done int32
	p.Submit(func() { panic("boom") })
	p.Submit(func() { atomic.AddInt32(&done, 1) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&done) != 1 {
		t.Error("task after panic never ran")
	}
}
