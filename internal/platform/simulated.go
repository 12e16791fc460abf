package platform

import (
	"context"
	"fmt"
	"sync"
)

// SimDisplay is an in-memory Display for tests and local development.
type SimDisplay struct {
	mu        sync.Mutex
	backlight int
	inited    bool
}

func NewSimDisplay() *SimDisplay { return &SimDisplay{} }

func (d *SimDisplay) Init(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inited = true
	return 1, nil
}

func (d *SimDisplay) SetBacklight(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backlight = level
}

func (d *SimDisplay) Backlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backlight
}

// SimSPIReserver records the requested sizes so boot-sequencing tests can
// assert ordering. Once WifiActive is set, every reservation fails.
type SimSPIReserver struct {
	mu         sync.Mutex
	Reserved   []int
	WifiActive bool // set by SimWifiStation.Connect, for fragmentation diagnostics
}

func NewSimSPIReserver() *SimSPIReserver { return &SimSPIReserver{} }

func (r *SimSPIReserver) ReserveDMABuffer(sizeBytes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.WifiActive {
		return fmt.Errorf("platform: fast-SRAM fragmented after Wi-Fi activation, cannot reserve %d bytes", sizeBytes)
	}
	r.Reserved = append(r.Reserved, sizeBytes)
	return nil
}

// SimWifiStation is an in-memory Wi-Fi station. Connect always succeeds
// unless FailConnect is set.
type SimWifiStation struct {
	mu          sync.Mutex
	connected   bool
	rssi        int
	ip          string
	FailConnect error
	reserver    *SimSPIReserver
}

func NewSimWifiStation(reserver *SimSPIReserver) *SimWifiStation {
	return &SimWifiStation{rssi: -55, ip: "0.0.0.0", reserver: reserver}
}

func (w *SimWifiStation) Connect(ctx context.Context, ssid, password string) error {
	if w.FailConnect != nil {
		return w.FailConnect
	}
	w.mu.Lock()
	w.connected = true
	w.ip = "192.168.4.2"
	w.mu.Unlock()
	if w.reserver != nil {
		w.reserver.mu.Lock()
		w.reserver.WifiActive = true
		w.reserver.mu.Unlock()
	}
	return nil
}

func (w *SimWifiStation) RSSI() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rssi
}

func (w *SimWifiStation) IPAddress() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ip
}

// SimProvisioner returns canned credentials, or Err if set, letting boot
// tests exercise both the provisioned and unprovisioned branches
// deterministically.
type SimProvisioner struct {
	SSID, Password string
	Err            error
}

func (p *SimProvisioner) Provision(ctx context.Context) (string, string, error) {
	if p.Err != nil {
		return "", "", p.Err
	}
	return p.SSID, p.Password, nil
}

// SimKVStore is an in-memory KVStore.
type SimKVStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewSimKVStore() *SimKVStore {
	return &SimKVStore{data: make(map[string]string)}
}

func (s *SimKVStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *SimKVStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *SimKVStore) Provisioned() bool {
	v, ok := s.Get("ssid")
	return ok && v != ""
}

// SimTempSensor returns a fixed reading.
type SimTempSensor struct {
	CelsiusValue float64
}

func NewSimTempSensor() *SimTempSensor { return &SimTempSensor{CelsiusValue: 42.0} }

func (t *SimTempSensor) TemperatureC() (float64, error) { return t.CelsiusValue, nil }

// SimMAC returns a fixed MAC string.
type SimMAC struct {
	Address string
}

func NewSimMAC() *SimMAC { return &SimMAC{Address: "AA:BB:CC:DD:EE:FF"} }

func (m *SimMAC) MAC() string { return m.Address }

// SimArena is a plain byte-slice pool. It does not actually isolate
// memory by locality (Go has one heap) but tracks outstanding
// allocations per kind so tests can assert release discipline.
type SimArena struct {
	kind ArenaKind

	mu          sync.Mutex
	outstanding int
}

func NewSimArena(kind ArenaKind) *SimArena { return &SimArena{kind: kind} }

func (a *SimArena) Kind() ArenaKind { return a.kind }

func (a *SimArena) Alloc(n int) ([]byte, error) {
	a.mu.Lock()
	a.outstanding++
	a.mu.Unlock()
	return make([]byte, n), nil
}

func (a *SimArena) Free(buf []byte) {
	a.mu.Lock()
	if a.outstanding > 0 {
		a.outstanding--
	}
	a.mu.Unlock()
}

// Outstanding reports the number of buffers allocated but not yet freed.
func (a *SimArena) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outstanding
}

// SimCodec generates silence on read and records every speaker write. It
// stores the sample rate and channel counts passed to Open but does not
// use them and exposes no accessor for them.
type SimCodec struct {
	mu              sync.Mutex
	open            bool
	sampleRate      int
	speakerChannels int
	micChannels     int
	speakerGain     float64
	micGain         float64
	writes          [][]byte
}

func NewSimCodec() *SimCodec { return &SimCodec{} }

func (c *SimCodec) Open(sampleRate, speakerChannels, micChannels int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.sampleRate = sampleRate
	c.speakerChannels = speakerChannels
	c.micChannels = micChannels
	return nil
}

func (c *SimCodec) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *SimCodec) ReadMic(ctx context.Context, buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

func (c *SimCodec) WriteSpeaker(ctx context.Context, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *SimCodec) SetSpeakerGain(gain float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speakerGain = gain
}

func (c *SimCodec) SetMicGain(gain float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.micGain = gain
}

// Writes returns a copy of every buffer handed to WriteSpeaker, for
// assertions in tests.
func (c *SimCodec) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// SimAccelerometer returns a queued sequence of samples, repeating the
// last one once the queue is drained.
type SimAccelerometer struct {
	mu      sync.Mutex
	samples [][3]float64
	idx     int
}

func NewSimAccelerometer(samples [][3]float64) *SimAccelerometer {
	return &SimAccelerometer{samples: samples}
}

func (a *SimAccelerometer) ReadAccel() (float64, float64, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.samples) == 0 {
		return 0, 0, 9.8, nil
	}
	i := a.idx
	if i >= len(a.samples) {
		i = len(a.samples) - 1
	} else {
		a.idx++
	}
	s := a.samples[i]
	return s[0], s[1], s[2], nil
}

// Push appends additional samples to the queue at runtime.
func (a *SimAccelerometer) Push(x, y, z float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, [3]float64{x, y, z})
}
