// Package telemetry publishes a periodic device-health heartbeat and
// optionally mirrors it to an MQTT broker for fleet dashboards.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nugget/sdui-termfw/internal/bus"
	"github.com/nugget/sdui-termfw/internal/buildinfo"
	"github.com/nugget/sdui-termfw/internal/platform"
)

const heartbeatTopic = "telemetry/heartbeat"

// Heartbeat is the data collected and published on every tick, matching
// the telemetry/heartbeat wire payload fields.
type Heartbeat struct {
	DeviceID         string  `json:"device_id"`
	WifiRSSI         int     `json:"wifi_rssi"`
	IP               string  `json:"ip"`
	Temperature      float64 `json:"temperature"`
	FreeHeapInternal uint64  `json:"free_heap_internal"`
	FreeHeapTotal    uint64  `json:"free_heap_total"`
	UptimeS          int64   `json:"uptime_s"`
}

// Mirror is the optional MQTT sink for heartbeats. It is satisfied by
// *MQTTMirror; tests pass a fake that records calls instead of dialing a
// broker.
type Mirror interface {
	PublishHeartbeat(ctx context.Context, hb Heartbeat) error
}

// Reporter collects the heartbeat and publishes it to the bus every
// period, after an initial delay, until ctx is cancelled. A mirror may
// additionally be attached via SetMirror; its failures are logged and do
// not affect the bus publish.
type Reporter struct {
	logger       *slog.Logger
	bus          *bus.Bus
	wifi         platform.WifiStation
	temp         platform.TempSensor
	mac          platform.MACAddress
	period       time.Duration
	initialDelay time.Duration

	mirror Mirror
}

// New creates a Reporter. period and initialDelay of 0 fall back to the
// documented 30s/5s defaults.
func New(logger *slog.Logger, b *bus.Bus, wifi platform.WifiStation, temp platform.TempSensor, mac platform.MACAddress, period, initialDelay time.Duration) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if period == 0 {
		period = 30 * time.Second
	}
	if initialDelay == 0 {
		initialDelay = 5 * time.Second
	}
	return &Reporter{
		logger:       logger,
		bus:          b,
		wifi:         wifi,
		temp:         temp,
		mac:          mac,
		period:       period,
		initialDelay: initialDelay,
	}
}

// SetMirror attaches an optional MQTT mirror. Must be called before
// Start to take effect on the first heartbeat.
func (r *Reporter) SetMirror(m Mirror) {
	r.mirror = m
}

// Start begins the heartbeat loop on a new goroutine. It returns
// immediately; the loop runs until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Reporter) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.initialDelay):
	}

	r.tick(ctx)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reporter) tick(ctx context.Context) {
	hb := r.collect()

	r.logger.Info("telemetry heartbeat",
		"wifi_rssi", hb.WifiRSSI,
		"temperature", hb.Temperature,
		"free_heap_total", humanize.Bytes(hb.FreeHeapTotal),
		"uptime", humanize.Time(time.Now().Add(-time.Duration(hb.UptimeS)*time.Second)),
	)

	r.bus.PublishUp(heartbeatTopic, heartbeatJSON(hb))

	if r.mirror != nil {
		mirrorCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.mirror.PublishHeartbeat(mirrorCtx, hb); err != nil {
			r.logger.Warn("telemetry: mqtt mirror publish failed", "error", err)
		}
	}
}

func (r *Reporter) collect() Heartbeat {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	// Go has a single managed heap, so there is no true internal/total
	// split the way a dual-core MCU has fast SRAM vs PSRAM heaps; HeapIdle
	// stands in for "internal" (immediately reusable) and HeapSys-HeapInuse
	// for "total" free capacity.
	freeInternal := mem.HeapIdle
	freeTotal := mem.HeapSys - mem.HeapInuse

	temperature, err := r.temp.TemperatureC()
	if err != nil {
		r.logger.Warn("telemetry: temperature read failed", "error", err)
	}

	return Heartbeat{
		DeviceID:         r.mac.MAC(),
		WifiRSSI:         r.wifi.RSSI(),
		IP:               r.wifi.IPAddress(),
		Temperature:      temperature,
		FreeHeapInternal: freeInternal,
		FreeHeapTotal:    freeTotal,
		UptimeS:          int64(buildinfo.Uptime().Seconds()),
	}
}

func heartbeatJSON(hb Heartbeat) string {
	return fmt.Sprintf(
		`{"device_id":%q,"wifi_rssi":%d,"ip":%q,"temperature":%v,"free_heap_internal":%d,"free_heap_total":%d,"uptime_s":%d}`,
		hb.DeviceID, hb.WifiRSSI, hb.IP, hb.Temperature, hb.FreeHeapInternal, hb.FreeHeapTotal, hb.UptimeS,
	)
}
