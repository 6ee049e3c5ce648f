package irisfast

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

func TestEgressModes(t *testing.T) {
	var replies atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) { replies.Add(1) })
	ws := NewWebSocket("ws://iris.test/ws", 0, time.Second)
	ctx := context.Background()

	// auto falls back to HTTP while the socket is down.
	if err := NewEgress("auto", false, c, ws, zap.NewNop()).SendText(ctx, "r", "hi"); err != nil {
		t.Fatalf("auto: %v", err)
	}
	if replies.Load() != 1 {
		t.Fatalf("auto should have used http, replies = %d", replies.Load())
	}

	if err := NewEgress("http", true, c, ws, zap.NewNop()).SendText(ctx, "r", "hi"); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if replies.Load() != 1 {
		t.Fatalf("dry run must not send")
	}

	if err := NewEgress("ws", false, c, ws, zap.NewNop()).SendText(ctx, "r", "hi"); err == nil {
		t.Fatalf("ws egress on a closed socket should fail")
	}
	if err := NewEgress("http", false, nil, nil, nil).SendText(ctx, "r", "hi"); err == nil {
		t.Fatalf("http egress without client should fail")
	}
}

func TestRetryDisabled(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})
	WithRetry(1)(c)
	if _, err := c.GetConfig(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}
