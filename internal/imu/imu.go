// Package imu polls the accelerometer and publishes shake events.
package imu

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nugget/sdui-termfw/internal/bus"
	"github.com/nugget/sdui-termfw/internal/platform"
)

const pollInterval = 100 * time.Millisecond // 10 Hz

// DefaultShakeThreshold and DefaultCooldownSamples are the stock shake-
// detection constants; Monitor accepts overrides from config for fielded
// tuning.
const (
	DefaultShakeThreshold  = 14.7
	DefaultCooldownSamples = 10
)

// Monitor polls the accelerometer and publishes a `motion` uplink event
// on a shake.
type Monitor struct {
	logger    *slog.Logger
	bus       *bus.Bus
	accel     platform.Accelerometer
	threshold float64
	cooldown  int
}

// New creates a Monitor. threshold and cooldownSamples of 0 fall back to
// the documented defaults.
func New(logger *slog.Logger, b *bus.Bus, accel platform.Accelerometer, threshold float64, cooldownSamples int) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold == 0 {
		threshold = DefaultShakeThreshold
	}
	if cooldownSamples == 0 {
		cooldownSamples = DefaultCooldownSamples
	}
	return &Monitor{logger: logger, bus: b, accel: accel, threshold: threshold, cooldown: cooldownSamples}
}

// Start begins the 10 Hz polling loop on a new goroutine and returns
// immediately; the loop stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	cooldownRemaining := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		x, y, z, err := m.accel.ReadAccel()
		if err != nil {
			m.logger.Warn("imu: accelerometer read error", "error", err)
			continue
		}

		magnitude := math.Sqrt(x*x + y*y + z*z)

		if cooldownRemaining > 0 {
			cooldownRemaining--
			continue
		}

		if magnitude > m.threshold {
			m.bus.PublishUp("motion", fmt.Sprintf(`{"type":"shake","magnitude":%v}`, magnitude))
			cooldownRemaining = m.cooldown
		}
	}
}
