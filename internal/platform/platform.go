// Package platform defines the hardware and OS interfaces the runtime
// core consumes: display/SPI, Wi-Fi station and provisioning, persistent
// key-value storage, temperature and MAC queries, the audio codec, the
// accelerometer, and named allocation arenas. Each interface is a thin
// port with a simulated implementation in this package so the core
// builds, runs, and is tested without physical silicon.
package platform

import "context"

// Display represents the panel and its active-screen root handle.
type Display interface {
	// Init powers on the panel and returns a handle for the active
	// screen the layout engine attaches its root view to.
	Init(ctx context.Context) (screenHandle int, err error)
	// SetBacklight sets backlight level 0-100.
	SetBacklight(level int)
	// Backlight reports the current level.
	Backlight() int
}

// SPIReserver reserves the fast-SRAM slice the display driver's frame
// buffer needs before anything else claims contiguous fast SRAM.
type SPIReserver interface {
	// ReserveDMABuffer reserves sizeBytes of fast, DMA-capable SRAM.
	// Returns an error if the region cannot be reserved contiguously.
	ReserveDMABuffer(sizeBytes int) error
}

// WifiStation is the Wi-Fi station-mode interface.
type WifiStation interface {
	Connect(ctx context.Context, ssid, password string) error
	RSSI() int
	IPAddress() string
}

// SoftAPProvisioner blocks until the user supplies Wi-Fi credentials
// through a captive-portal flow (SoftAP + DNS + HTTP form on real
// hardware).
type SoftAPProvisioner interface {
	// Provision blocks until credentials are captured or ctx is
	// cancelled.
	Provision(ctx context.Context) (ssid, password string, err error)
}

// KVStore is the persistent flash namespace used for provisioning state
// (ssid, password, ws_url).
type KVStore interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
	// Provisioned reports whether a non-empty ssid is present.
	Provisioned() bool
}

// TempSensor reports chip temperature in degrees Celsius.
type TempSensor interface {
	TemperatureC() (float64, error)
}

// MACAddress reports the device's MAC address as a colon-hex string,
// used both as device_id and as the unique identity for any external
// discovery protocol.
type MACAddress interface {
	MAC() string
}

// ArenaKind names an allocation locality. The firmware distinguishes
// fast, DMA-capable SRAM from default-heap/PSRAM allocations; Go cannot
// place memory manually, so locality is modeled as which named Arena a
// buffer is requested from rather than an address-space property.
type ArenaKind int

const (
	// ArenaFastSRAM is reserved for DMA-capable buffers: the audio PCM
	// capture buffer and the decode buffer handed to I2S.
	ArenaFastSRAM ArenaKind = iota
	// ArenaDefault covers PSRAM-permitted bulk allocations: Base64 and
	// JSON assembly buffers, decoded image pixels, particle canvases.
	ArenaDefault
)

func (k ArenaKind) String() string {
	switch k {
	case ArenaFastSRAM:
		return "fast_sram"
	case ArenaDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Arena hands out byte buffers from a declared locality. Implementations
// are not required to isolate the underlying memory (Go has one heap);
// the contract this interface preserves is the declared locality itself,
// so a real embedded backend can satisfy ArenaFastSRAM from true
// DMA-capable memory without any caller-visible change.
type Arena interface {
	Kind() ArenaKind
	// Alloc returns a zeroed buffer of size n. Callers release it with
	// Free when no longer needed; the simulator's Free releases no memory
	// (Go buffers are garbage collected) and only decrements its
	// outstanding count, so resource-accounting tests can assert release
	// discipline.
	Alloc(n int) ([]byte, error)
	Free([]byte)
}

// Codec is the speaker+microphone audio device.
type Codec interface {
	// Open configures both directions at sampleRate with the given
	// channel counts (speaker mono, microphone stereo, 22050 Hz,
	// 16-bit).
	Open(sampleRate int, speakerChannels, micChannels int) error
	Close() error
	// ReadMic blocks until len(buf) bytes of PCM are captured, or
	// returns an error.
	ReadMic(ctx context.Context, buf []byte) (int, error)
	// WriteSpeaker blocks until buf has been written to the speaker.
	WriteSpeaker(ctx context.Context, buf []byte) error
	SetSpeakerGain(gain float64)
	SetMicGain(gain float64)
}

// Accelerometer reports 6-axis motion; only the 3-axis linear
// acceleration in m/s² is used by the runtime.
type Accelerometer interface {
	ReadAccel() (x, y, z float64, err error)
}
