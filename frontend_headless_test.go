//go:build headless

package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunFrontend_StopsAfterFrames(t *testing.T) {
	v, _ := newTestVDP(t)
	waker := &countingWaker{}
	cfg := frontendConfig{
		driver:    NewFrameDriver(waker, v),
		vdp:       v,
		uart:      NewUART(nil),
		maxFrames: 3,
		title:     "test",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runFrontend(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if ctx.Err() != nil {
		t.Fatal("frontend ignored the frame limit")
	}
	if cfg.driver.Frames() < 3 || waker.n < 3 {
		t.Fatalf("frames=%d wakeups=%d, want at least 3", cfg.driver.Frames(), waker.n)
	}
	if !strings.Contains(statusLine(&cfg), "cpu stopped") {
		t.Fatalf("status line %q", statusLine(&cfg))
	}
}

type countingWaker struct{ n int }

func (w *countingWaker) RaiseSignal() { w.n++ }
