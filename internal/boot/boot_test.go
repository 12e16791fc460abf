package boot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nugget/sdui-termfw/internal/config"
	"github.com/nugget/sdui-termfw/internal/platform"
)

func testDeps() Deps {
	reserver := platform.NewSimSPIReserver()
	return Deps{
		Display:      platform.NewSimDisplay(),
		SPI:          reserver,
		Wifi:         platform.NewSimWifiStation(reserver),
		Provisioner:  &platform.SimProvisioner{SSID: "home", Password: "hunter2"},
		KV:           platform.NewSimKVStore(),
		Codec:        platform.NewSimCodec(),
		Accel:        platform.NewSimAccelerometer(nil),
		Temp:         &platform.SimTempSensor{CelsiusValue: 30},
		MAC:          &platform.SimMAC{Address: "aa:bb:cc:dd:ee:ff"},
		FastArena:    platform.NewSimArena(platform.ArenaFastSRAM),
		DefaultArena: platform.NewSimArena(platform.ArenaDefault),
	}
}

func TestRunOrdersStepsPerSpec(t *testing.T) {
	deps := testDeps()
	deps.KV.Set("ssid", "preconfigured")
	deps.KV.Set("password", "secret")
	deps.KV.Set("ws_url", "ws://127.0.0.1:9/ws") // unreachable; transport retries in the background

	o := New(nil, config.Default(), deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := o.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{
		"display_init",
		"layout_init",
		"provisioning_check",
		"bus_init",
		"audio_start",
		"subscribe_ui_topics",
		"wifi_connect",
		"transport_imu_telemetry_start",
		"screen_sleep_timer",
	}
	got := o.Steps()
	if len(got) != len(want) {
		t.Fatalf("Steps() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Steps()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunReturnsSoftRestartWhenUnprovisioned(t *testing.T) {
	deps := testDeps()
	o := New(nil, config.Default(), deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := o.Run(ctx)
	if !errors.Is(err, ErrSoftRestart) {
		t.Fatalf("Run() error = %v, want ErrSoftRestart", err)
	}

	ssid, ok := deps.KV.Get("ssid")
	if !ok || ssid != "home" {
		t.Errorf("ssid persisted = %q (ok=%v), want %q", ssid, ok, "home")
	}
}

func TestRunFailsWhenSPIReservationFails(t *testing.T) {
	deps := testDeps()
	reserver := deps.SPI.(*platform.SimSPIReserver)
	reserver.WifiActive = true // forces ReserveDMABuffer to fail

	o := New(nil, config.Default(), deps)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Run(ctx); err == nil {
		t.Fatal("Run() with a failing SPI reservation did not return an error")
	}
}

func TestDisplaySleepsAfterInactivity(t *testing.T) {
	deps := testDeps()
	deps.KV.Set("ssid", "preconfigured")
	deps.KV.Set("password", "secret")
	deps.KV.Set("ws_url", "ws://127.0.0.1:9/ws")

	o := New(nil, config.Default(), deps)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	display := deps.Display.(*platform.SimDisplay)
	if display.Backlight() != 100 {
		t.Fatalf("Backlight() immediately after boot = %d, want 100", display.Backlight())
	}

	o.mu.Lock()
	o.lastActivity = time.Now().Add(-time.Minute)
	o.mu.Unlock()

	deadline := time.After(2 * time.Second)
	for display.Backlight() != 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for backlight to sleep after inactivity")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
