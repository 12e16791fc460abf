package imu

import (
	"context"
	"testing"
	"time"

	"github.com/nugget/sdui-termfw/internal/bus"
	"github.com/nugget/sdui-termfw/internal/platform"
)

type collectSender struct {
	ch chan string
}

func (c *collectSender) Send(text string) { c.ch <- text }

func TestShakeAboveThresholdPublishesMotion(t *testing.T) {
	b := bus.New(nil)
	sender := &collectSender{ch: make(chan string, 8)}
	b.SetSender(sender)

	accel := platform.NewSimAccelerometer([][3]float64{{16.0, 0, 0}})
	m := New(nil, b, accel, 14.7, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	select {
	case text := <-sender.ch:
		if text == "" {
			t.Fatal("empty motion payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a motion publish")
	}
}

func TestShakeCooldownSuppressesRepeats(t *testing.T) {
	b := bus.New(nil)
	sender := &collectSender{ch: make(chan string, 8)}
	b.SetSender(sender)

	// Every sample is above threshold; cooldown of 3 should yield one
	// publish, then silence for the next 3 polls.
	accel := platform.NewSimAccelerometer([][3]float64{
		{16.0, 0, 0}, {16.0, 0, 0}, {16.0, 0, 0}, {16.0, 0, 0}, {16.0, 0, 0},
	})
	m := New(nil, b, accel, 14.7, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	select {
	case <-sender.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first motion publish")
	}

	select {
	case text := <-sender.ch:
		t.Fatalf("unexpected second publish during cooldown: %q", text)
	case <-time.After(350 * time.Millisecond):
		// Expected: no publish while the cooldown is active.
	}
}

func TestBelowThresholdNoPublish(t *testing.T) {
	b := bus.New(nil)
	sender := &collectSender{ch: make(chan string, 8)}
	b.SetSender(sender)

	accel := platform.NewSimAccelerometer([][3]float64{{0, 0, 9.8}})
	m := New(nil, b, accel, 14.7, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	select {
	case text := <-sender.ch:
		t.Fatalf("unexpected publish below threshold: %q", text)
	case <-time.After(300 * time.Millisecond):
	}
}
