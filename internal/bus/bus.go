// Package bus implements the topic-routed publish/subscribe message bus
// that unifies downlink (server→device), uplink (device→server), and
// local (device-internal) events.
package bus

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
)

// MaxSubscriptions bounds the subscription table. The device has no
// dynamic memory for an unbounded registry.
const MaxSubscriptions = 15

// Sender delivers a complete text payload to the transport's non-blocking
// send path. It is satisfied by *transport.Transport; kept as an interface
// here so the bus has no import-time dependency on the transport package.
type Sender interface {
	Send(text string)
}

// Callback receives a topic's payload. payload is the verbatim JSON
// sub-tree re-serialized to compact JSON, or the literal string value when
// the payload was itself a JSON string. Callbacks must copy any part of
// payload they intend to retain past the call.
type Callback func(payload string)

type subscription struct {
	topic string
	fn    Callback
}

// Bus is the topic-routed pub/sub core. It is not reentrant-safe for
// subscription changes made from within a callback; callers are expected
// to complete all Subscribe calls before Transport starts delivering
// frames.
type Bus struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs []subscription

	sender Sender
}

// New creates a Bus ready for Subscribe calls. sender may be nil until
// SetSender is called; PublishUp before that point is a no-op (mirrors
// Transport's own send-while-offline drop semantics).
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// SetSender attaches the transport used by PublishUp. Called once during
// boot, after subscription wiring but before Transport starts receiving.
func (b *Bus) SetSender(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sender = s
}

// Subscribe appends (topic, callback) to the table if space remains.
// Multiple subscribers to the same topic are allowed; each is invoked, in
// registration order, on every matching dispatch. Silently logged and
// dropped at capacity.
func (b *Bus) Subscribe(topic string, fn Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) >= MaxSubscriptions {
		b.logger.Error("bus: subscription table full, dropping subscribe", "topic", topic, "capacity", MaxSubscriptions)
		return
	}
	b.subs = append(b.subs, subscription{topic: topic, fn: fn})
}

// SubscriberCount reports the number of currently registered (topic,
// callback) pairs, for tests and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// envelope is the outer wire wrapper shared by downlink and uplink frames.
type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// RouteDown parses raw as a JSON envelope and dispatches the payload to
// every subscriber of the matching topic, in registration order. A panic
// recovered per-subscriber keeps one misbehaving callback from blocking
// delivery to the rest of the table. Malformed JSON or a missing/empty
// topic is logged and ignored — no mutation, no partial dispatch.
func (b *Bus) RouteDown(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Warn("bus: route_down parse error", "error", err)
		return
	}
	if env.Topic == "" {
		b.logger.Warn("bus: route_down missing topic field")
		return
	}

	payload := materializePayload(env.Payload)

	b.mu.Lock()
	var targets []Callback
	for _, s := range b.subs {
		if s.topic == env.Topic {
			targets = append(targets, s.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		b.dispatch(env.Topic, fn, payload)
	}
}

// dispatch invokes fn, recovering a panic so one misbehaving subscriber
// cannot break delivery to the rest of the table.
func (b *Bus) dispatch(topic string, fn Callback, payload string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus: subscriber panic", "topic", topic, "panic", r)
		}
	}()
	fn(payload)
}

// materializePayload passes the literal value when payload is itself a
// JSON string; otherwise the sub-tree is re-serialized to compact JSON.
func materializePayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

// PublishUp wraps (topic, payload) into the wire envelope and hands it to
// the Transport's non-blocking send. If payload parses as JSON it is
// embedded as the structured value; otherwise it is embedded as a JSON
// string.
func (b *Bus) PublishUp(topic, payload string) {
	var embedded json.RawMessage
	if json.Valid([]byte(payload)) {
		embedded = json.RawMessage(payload)
	} else {
		encoded, err := json.Marshal(payload)
		if err != nil {
			b.logger.Error("bus: publish_up marshal error", "topic", topic, "error", err)
			return
		}
		embedded = encoded
	}

	out, err := json.Marshal(envelope{Topic: topic, Payload: embedded})
	if err != nil {
		b.logger.Error("bus: publish_up envelope marshal error", "topic", topic, "error", err)
		return
	}

	b.mu.Lock()
	sender := b.sender
	b.mu.Unlock()
	if sender == nil {
		b.logger.Debug("bus: publish_up dropped, no transport attached", "topic", topic)
		return
	}
	sender.Send(string(out))
}

// PublishLocal fans payload out to subscribers of topic without
// serialization and without touching Transport. payload is passed
// verbatim — callers publishing structured data should pre-serialize it
// themselves if subscribers expect JSON text.
func (b *Bus) PublishLocal(topic, payload string) {
	b.mu.Lock()
	var targets []Callback
	for _, s := range b.subs {
		if s.topic == topic {
			targets = append(targets, s.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		b.dispatch(topic, fn, payload)
	}
}
