package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/sdui-termfw/internal/config"
)

// deviceInfo is the Home Assistant MQTT discovery "device" block shared
// by every sensor this mirror publishes.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// discoveryConfig is the minimal HA MQTT discovery payload for one
// numeric/text sensor entity.
type discoveryConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	AvailabilityTopic string     `json:"availability_topic"`
	ValueTemplate     string     `json:"value_template"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	EntityCategory    string     `json:"entity_category,omitempty"`
	Device            deviceInfo `json:"device"`
}

// MQTTMirror mirrors heartbeats to an MQTT broker, publishing Home
// Assistant discovery configs (retained) on the first connection only and
// state on every heartbeat. It satisfies Mirror.
type MQTTMirror struct {
	cfg      config.MQTTConfig
	deviceID string
	logger   *slog.Logger

	mu sync.Mutex
	cm *autopaho.ConnectionManager

	discoveryPublished bool
}

// NewMQTTMirror creates a mirror but does not connect. Call Start before
// the first PublishHeartbeat.
func NewMQTTMirror(cfg config.MQTTConfig, deviceID string, logger *slog.Logger) *MQTTMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTMirror{cfg: cfg, deviceID: deviceID, logger: logger}
}

// Start connects to the configured broker. It returns once the initial
// connection attempt has been made; autopaho retries in the background
// on its own, matching autopaho's behavior of not failing
// Start when the broker is briefly unreachable.
func (m *MQTTMirror) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(m.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("telemetry: parse mqtt broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{brokerURL},
		KeepAlive:  30,
		WillMessage: &paho.WillMessage{
			Topic:   m.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			m.logger.Info("telemetry: mqtt mirror connected", "broker", m.cfg.BrokerURL)
			publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			m.publishDiscoveryOnce(publishCtx, cm)
			m.publishAvailability(publishCtx, cm, "online")
		},
		OnConnectError: func(err error) {
			m.logger.Warn("telemetry: mqtt mirror connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: m.cfg.ClientID,
		},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("telemetry: mqtt connect: %w", err)
	}
	m.mu.Lock()
	m.cm = cm
	m.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		m.logger.Warn("telemetry: mqtt mirror initial connection timed out, retrying in background", "error", err)
	}
	return nil
}

// PublishHeartbeat publishes the heartbeat's fields as individual state
// topics, matching the per-entity layout Home Assistant discovery
// expects.
func (m *MQTTMirror) PublishHeartbeat(ctx context.Context, hb Heartbeat) error {
	m.mu.Lock()
	cm := m.cm
	m.mu.Unlock()
	if cm == nil {
		return fmt.Errorf("telemetry: mqtt mirror not started")
	}

	states := map[string]string{
		"rssi":            fmt.Sprintf("%d", hb.WifiRSSI),
		"temperature":     fmt.Sprintf("%.1f", hb.Temperature),
		"free_heap_total": fmt.Sprintf("%d", hb.FreeHeapTotal),
		"uptime_s":        fmt.Sprintf("%d", hb.UptimeS),
	}
	for suffix, value := range states {
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   m.stateTopic(suffix),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			return fmt.Errorf("telemetry: publish %s: %w", suffix, err)
		}
	}
	return nil
}

func (m *MQTTMirror) baseTopic() string {
	return "termfw/" + m.deviceID
}

func (m *MQTTMirror) availabilityTopic() string {
	return m.baseTopic() + "/availability"
}

func (m *MQTTMirror) stateTopic(entity string) string {
	return m.baseTopic() + "/" + entity + "/state"
}

func (m *MQTTMirror) discoveryTopic(entity string) string {
	return "homeassistant/sensor/" + m.deviceID + "/" + entity + "/config"
}

func (m *MQTTMirror) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, state string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   m.availabilityTopic(),
		Payload: []byte(state),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		m.logger.Warn("telemetry: mqtt availability publish failed", "error", err)
	}
}

func (m *MQTTMirror) publishDiscoveryOnce(ctx context.Context, cm *autopaho.ConnectionManager) {
	m.mu.Lock()
	already := m.discoveryPublished
	m.discoveryPublished = true
	m.mu.Unlock()
	if already {
		return
	}

	device := deviceInfo{
		Identifiers:  []string{m.deviceID},
		Name:         "SDUI Terminal " + m.deviceID,
		Manufacturer: "termfw",
		Model:        "sdui-terminal",
	}
	avail := m.availabilityTopic()

	entities := []struct {
		suffix string
		cfg    discoveryConfig
	}{
		{"rssi", discoveryConfig{Name: "Wi-Fi RSSI", UnitOfMeasurement: "dBm", Icon: "mdi:wifi", EntityCategory: "diagnostic"}},
		{"temperature", discoveryConfig{Name: "Temperature", UnitOfMeasurement: "°C", Icon: "mdi:thermometer", EntityCategory: "diagnostic"}},
		{"free_heap_total", discoveryConfig{Name: "Free Heap", UnitOfMeasurement: "B", Icon: "mdi:memory", EntityCategory: "diagnostic"}},
		{"uptime_s", discoveryConfig{Name: "Uptime", UnitOfMeasurement: "s", Icon: "mdi:clock-outline", EntityCategory: "diagnostic"}},
	}

	for _, e := range entities {
		cfg := e.cfg
		cfg.UniqueID = m.deviceID + "_" + e.suffix
		cfg.StateTopic = m.stateTopic(e.suffix)
		cfg.AvailabilityTopic = avail
		cfg.Device = device

		payload, err := json.Marshal(cfg)
		if err != nil {
			m.logger.Warn("telemetry: marshal discovery config failed", "entity", e.suffix, "error", err)
			continue
		}
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   m.discoveryTopic(e.suffix),
			Payload: payload,
			QoS:     0,
			Retain:  true,
		}); err != nil {
			m.logger.Warn("telemetry: mqtt discovery publish failed", "entity", e.suffix, "error", err)
		}
	}
}

// Stop publishes an "offline" availability message and disconnects.
func (m *MQTTMirror) Stop(ctx context.Context) error {
	m.mu.Lock()
	cm := m.cm
	m.mu.Unlock()
	if cm == nil {
		return nil
	}
	m.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}
