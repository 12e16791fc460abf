// Package boot sequences subsystem start-up in the fixed order the
// runtime's memory layout requires: fast SRAM must be claimed by the
// display and audio DMA buffers before the Wi-Fi driver activates and
// permanently fragments whatever fast SRAM remains.
package boot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/sdui-termfw/internal/audio"
	"github.com/nugget/sdui-termfw/internal/bus"
	"github.com/nugget/sdui-termfw/internal/config"
	"github.com/nugget/sdui-termfw/internal/imu"
	"github.com/nugget/sdui-termfw/internal/layout"
	"github.com/nugget/sdui-termfw/internal/platform"
	"github.com/nugget/sdui-termfw/internal/telemetry"
	"github.com/nugget/sdui-termfw/internal/transport"
)

// ErrSoftRestart is returned from Run when fresh Wi-Fi credentials were
// just captured via the provisioning flow. The real device follows this
// with a hardware reset; callers here are expected to call Run again.
var ErrSoftRestart = errors.New("boot: provisioning complete, soft restart required")

// lvglFrameBufferBytes is the single-buffered frame slice reserved from
// fast SRAM before anything else claims contiguous space there.
const lvglFrameBufferBytes = 9 * 1024 + 300 // ~9.3 KiB

const screenSleepTick = 500 * time.Millisecond
const screenSleepTimeout = 30 * time.Second

const loadingScreenJSON = `{"type":"label","id":"__loading","text":"Loading..."}`
const provisioningScreenJSON = `{"type":"label","id":"__provisioning","text":"Connect to setup Wi-Fi"}`

// Deps bundles every hardware/OS port the orchestrator consumes. All
// fields are required except Provisioner, which is only invoked when KV
// reports the device unprovisioned.
type Deps struct {
	Display      platform.Display
	SPI          platform.SPIReserver
	Wifi         platform.WifiStation
	Provisioner  platform.SoftAPProvisioner
	KV           platform.KVStore
	Codec        platform.Codec
	Accel        platform.Accelerometer
	Temp         platform.TempSensor
	MAC          platform.MACAddress
	FastArena    platform.Arena
	DefaultArena platform.Arena
}

// Orchestrator runs the fixed nine-step start-up sequence and owns every
// component it starts.
type Orchestrator struct {
	logger *slog.Logger
	cfg    *config.Config
	deps   Deps

	bus       *bus.Bus
	Layout    *layout.Engine
	Audio     *audio.Pipeline
	IMU       *imu.Monitor
	Transport *transport.Transport
	Telemetry *telemetry.Reporter

	mu           sync.Mutex
	steps        []string
	lastActivity time.Time
}

// New creates an Orchestrator. A fresh v7 UUID is minted and attached to
// every subsequent log line this boot emits, so one run's lines can be
// correlated across a restart.
func New(logger *slog.Logger, cfg *config.Config, deps Deps) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	bootID, err := uuid.NewV7()
	var bootIDStr string
	if err != nil {
		bootIDStr = "unknown"
	} else {
		bootIDStr = bootID.String()
	}
	return &Orchestrator{
		logger: logger.With("boot_id", bootIDStr),
		cfg:    cfg,
		deps:   deps,
	}
}

// Steps returns the ordered list of step names executed so far, for
// tests asserting sequencing.
func (o *Orchestrator) Steps() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.steps))
	copy(out, o.steps)
	return out
}

func (o *Orchestrator) step(name string) {
	o.mu.Lock()
	o.steps = append(o.steps, name)
	o.mu.Unlock()
	o.logger.Info("boot: step", "step", name)
}

// Run executes the start-up sequence. It returns ErrSoftRestart if
// provisioning just captured fresh credentials (the caller should call
// Run again); any other non-nil error is a hard start-up failure.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.step("display_init")
	if _, err := o.deps.Display.Init(ctx); err != nil {
		return fmt.Errorf("boot: display init: %w", err)
	}
	if err := o.deps.SPI.ReserveDMABuffer(lvglFrameBufferBytes); err != nil {
		return fmt.Errorf("boot: lvgl frame buffer reservation: %w", err)
	}

	o.step("layout_init")
	o.bus = bus.New(o.logger)
	o.Layout = layout.New(o.logger, o.bus, o.deps.DefaultArena, func() bool { return o.Audio != nil && o.Audio.IsRecording() })
	o.Layout.Init()
	if err := o.Layout.Render(loadingScreenJSON); err != nil {
		o.logger.Warn("boot: loading screen render failed", "error", err)
	}

	o.step("provisioning_check")
	if !o.deps.KV.Provisioned() {
		if err := o.Layout.Render(provisioningScreenJSON); err != nil {
			o.logger.Warn("boot: provisioning screen render failed", "error", err)
		}
		ssid, password, err := o.deps.Provisioner.Provision(ctx)
		if err != nil {
			return fmt.Errorf("boot: provisioning: %w", err)
		}
		if err := o.deps.KV.Set("ssid", ssid); err != nil {
			return fmt.Errorf("boot: persist ssid: %w", err)
		}
		if err := o.deps.KV.Set("password", password); err != nil {
			return fmt.Errorf("boot: persist password: %w", err)
		}
		o.logger.Info("boot: provisioning captured new credentials, restarting")
		return ErrSoftRestart
	}

	o.step("bus_init")
	// The bus itself was constructed at the layout_init step above so the
	// layout engine can be handed a non-nil bus; this step name marks the
	// point in the sequence the contract calls out, not a second
	// construction.

	o.step("audio_start")
	o.Audio = audio.New(o.logger, o.bus, o.deps.Codec, o.deps.FastArena, o.deps.DefaultArena)
	if err := o.Audio.Start(ctx); err != nil {
		return fmt.Errorf("boot: audio start: %w", err)
	}

	o.step("subscribe_ui_topics")
	o.bus.Subscribe("ui/layout", func(payload string) {
		if err := o.Layout.Render(payload); err != nil {
			o.logger.Warn("boot: ui/layout render failed", "error", err)
		}
	})
	o.bus.Subscribe("ui/update", func(payload string) {
		if err := o.Layout.Update(payload); err != nil {
			o.logger.Warn("boot: ui/update failed", "error", err)
		}
	})

	o.step("wifi_connect")
	ssid, _ := o.deps.KV.Get("ssid")
	password, _ := o.deps.KV.Get("password")
	if err := o.deps.Wifi.Connect(ctx, ssid, password); err != nil {
		o.logger.Error("boot: wifi connect failed", "error", err)
	}

	o.step("transport_imu_telemetry_start")
	wsURL, ok := o.deps.KV.Get("ws_url")
	if !ok || wsURL == "" {
		wsURL = o.cfg.Server.WSURL
	}
	o.Transport = transport.New(o.logger)
	o.bus.SetSender(o.Transport)
	o.Transport.Start(ctx, wsURL, o.bus.RouteDown)

	o.IMU = imu.New(o.logger, o.bus, o.deps.Accel, o.cfg.IMU.ShakeThresholdMS2, o.cfg.IMU.CooldownSamples)
	o.IMU.Start(ctx)

	o.Telemetry = telemetry.New(o.logger, o.bus, o.deps.Wifi, o.deps.Temp, o.deps.MAC, o.cfg.Telemetry.Period, o.cfg.Telemetry.InitialDelay)
	if o.cfg.MQTT.Enabled {
		mirror := telemetry.NewMQTTMirror(o.cfg.MQTT, o.deps.MAC.MAC(), o.logger)
		if err := mirror.Start(ctx); err != nil {
			o.logger.Warn("boot: mqtt mirror start failed", "error", err)
		} else {
			o.Telemetry.SetMirror(mirror)
		}
	}
	o.Telemetry.Start(ctx)

	o.step("screen_sleep_timer")
	o.mu.Lock()
	o.lastActivity = time.Now()
	o.mu.Unlock()
	o.deps.Display.SetBacklight(100)
	go o.screenSleepLoop(ctx)

	return nil
}

// Touch records user activity, resetting the screen-sleep inactivity
// timer. Call this from any handler that observes a click, press, or
// release.
func (o *Orchestrator) Touch() {
	o.mu.Lock()
	o.lastActivity = time.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) screenSleepLoop(ctx context.Context) {
	ticker := time.NewTicker(screenSleepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		o.mu.Lock()
		idle := time.Since(o.lastActivity)
		o.mu.Unlock()

		if idle > screenSleepTimeout {
			o.deps.Display.SetBacklight(0)
		} else {
			o.deps.Display.SetBacklight(100)
		}
	}
}
