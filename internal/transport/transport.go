// Package transport implements the framed WebSocket client: fragment
// reassembly into whole payloads, a fixed auto-reconnect delay, and a
// non-blocking send that drops while offline.
package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ReconnectDelay is the fixed auto-reconnect interval.
const ReconnectDelay = 5 * time.Second

// sendQueueDepth bounds the outbound buffer; Send is non-blocking and
// drops when the queue is full, mirroring the drop-while-offline
// contract at any backpressure point.
const sendQueueDepth = 16

// OnComplete is invoked exactly once per complete application message,
// with the reassembled text.
type OnComplete func(text string)

// Transport is a WebSocket client with fragment reassembly and
// auto-reconnect. The zero value is not usable; construct with New.
type Transport struct {
	logger *slog.Logger
	dialer *websocket.Dialer

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	url   string

	onComplete OnComplete
	sendCh     chan string
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New creates a Transport. logger defaults to slog.Default() if nil.
func New(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		logger: logger,
		dialer: websocket.DefaultDialer,
		state:  Disconnected,
		sendCh: make(chan string, sendQueueDepth),
	}
}

// State reports the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Start opens an outbound connection to url and begins the
// connect/receive/reconnect loop in the background. onComplete is
// invoked exactly once per complete message. Start returns immediately;
// call Stop to terminate the loop.
func (t *Transport) Start(ctx context.Context, url string, onComplete OnComplete) {
	t.mu.Lock()
	t.url = url
	t.onComplete = onComplete
	t.stopCh = make(chan struct{})
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx)
}

// Stop terminates the connect/receive/reconnect loop and closes any open
// connection.
func (t *Transport) Stop() {
	t.mu.Lock()
	stopCh := t.stopCh
	t.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	t.wg.Wait()
}

// Send is strictly non-blocking: if the link is down or the outbound
// queue is saturated, the call is dropped with a debug log and no error
// surfaces.
func (t *Transport) Send(text string) {
	if t.State() != Connected {
		t.logger.Debug("transport: send dropped, not connected")
		return
	}
	select {
	case t.sendCh <- text:
	default:
		t.logger.Debug("transport: send dropped, outbound queue full")
	}
}

func (t *Transport) run(ctx context.Context) {
	defer t.wg.Done()
	t.mu.Lock()
	stopCh := t.stopCh
	url := t.url
	t.mu.Unlock()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		t.setState(Connecting)
		conn, _, err := t.dialer.DialContext(ctx, url, nil)
		if err != nil {
			t.logger.Warn("transport: dial failed", "error", err)
			if !sleepOrStop(ctx, stopCh, ReconnectDelay) {
				return
			}
			continue
		}

		t.setState(Connected)
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		t.logger.Info("transport: connected", "url", url)

		t.serve(ctx, conn, stopCh)

		t.setState(Disconnected)
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()

		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		if !sleepOrStop(ctx, stopCh, ReconnectDelay) {
			return
		}
	}
}

// serve runs the read and write loops for one connection until it
// disconnects or the caller stops the transport.
func (t *Transport) serve(ctx context.Context, conn *websocket.Conn, stopCh chan struct{}) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		reassembler := &Reassembler{}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				t.logger.Debug("transport: read error, disconnecting", "error", err)
				reassembler.Reset()
				return
			}
			// gorilla/websocket already reassembles continuation
			// frames into one complete message per ReadMessage call,
			// so every read is fed as a single offset-0 chunk.
			complete, ok, err := reassembler.Feed(data, 0, len(data))
			if err != nil {
				t.logger.Warn("transport: reassembly error", "error", err)
				continue
			}
			if ok && t.onComplete != nil {
				t.onComplete(string(complete))
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-stopCh:
			conn.Close()
			<-done
			return
		case <-ctx.Done():
			conn.Close()
			<-done
			return
		case text := <-t.sendCh:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				t.logger.Debug("transport: write error, disconnecting", "error", err)
				conn.Close()
				<-done
				return
			}
		}
	}
}

// sleepOrStop waits for d, returning false if stopCh or ctx fires first.
func sleepOrStop(ctx context.Context, stopCh chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
