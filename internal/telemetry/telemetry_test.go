package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nugget/sdui-termfw/internal/bus"
	"github.com/nugget/sdui-termfw/internal/platform"
)

type collectSender struct {
	mu   sync.Mutex
	sent []string
}

func (c *collectSender) Send(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
}

func (c *collectSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *collectSender) first() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[0]
}

type fakeMirror struct {
	mu  sync.Mutex
	hbs []Heartbeat
	err error
}

func (f *fakeMirror) PublishHeartbeat(ctx context.Context, hb Heartbeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.hbs = append(f.hbs, hb)
	return nil
}

func (f *fakeMirror) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hbs)
}

func newTestReporter(period, delay time.Duration) (*Reporter, *bus.Bus, *collectSender) {
	b := bus.New(nil)
	sender := &collectSender{}
	b.SetSender(sender)

	wifi := platform.NewSimWifiStation(nil)
	temp := &platform.SimTempSensor{CelsiusValue: 42.0}
	mac := &platform.SimMAC{Address: "aa:bb:cc:dd:ee:ff"}

	r := New(nil, b, wifi, temp, mac, period, delay)
	return r, b, sender
}

func TestHeartbeatPublishedAfterInitialDelay(t *testing.T) {
	r, _, sender := newTestReporter(time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for sender.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the first heartbeat")
		case <-time.After(5 * time.Millisecond):
		}
	}

	var envelope struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(sender.first()), &envelope); err != nil {
		t.Fatalf("heartbeat envelope is not valid JSON: %v", err)
	}
	if envelope.Topic != heartbeatTopic {
		t.Errorf("topic = %q, want %q", envelope.Topic, heartbeatTopic)
	}

	var hb Heartbeat
	if err := json.Unmarshal(envelope.Payload, &hb); err != nil {
		t.Fatalf("payload is not a valid Heartbeat: %v", err)
	}
	if hb.DeviceID != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("DeviceID = %q, want aa:bb:cc:dd:ee:ff", hb.DeviceID)
	}
	if hb.Temperature != 42.0 {
		t.Errorf("Temperature = %v, want 42.0", hb.Temperature)
	}
}

func TestHeartbeatTicksAtConfiguredPeriod(t *testing.T) {
	r, _, sender := newTestReporter(30*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for sender.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for 3 heartbeats, got %d", sender.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMirrorFailureDoesNotBlockBusPublish(t *testing.T) {
	r, _, sender := newTestReporter(time.Hour, time.Millisecond)
	mirror := &fakeMirror{err: context.DeadlineExceeded}
	r.SetMirror(mirror)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for sender.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a heartbeat despite a failing mirror")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMirrorReceivesHeartbeat(t *testing.T) {
	r, _, _ := newTestReporter(time.Hour, time.Millisecond)
	mirror := &fakeMirror{}
	r.SetMirror(mirror)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for mirror.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the mirror to receive a heartbeat")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHeartbeatJSONRoundTrips(t *testing.T) {
	hb := Heartbeat{DeviceID: "aa:bb", WifiRSSI: -50, IP: "10.0.0.5", Temperature: 38.2, FreeHeapInternal: 512, FreeHeapTotal: 1024, UptimeS: 90}
	text := heartbeatJSON(hb)
	if !strings.Contains(text, `"device_id":"aa:bb"`) {
		t.Errorf("heartbeatJSON missing device_id field: %s", text)
	}
	var got Heartbeat
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("heartbeatJSON output does not parse: %v", err)
	}
	if got != hb {
		t.Errorf("round trip = %+v, want %+v", got, hb)
	}
}
