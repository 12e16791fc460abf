// Package audio implements the full-duplex audio pipeline: capture,
// Base64 encode, bus uplink on one side; bus downlink, Base64 decode,
// speaker write on the other. Buffer allocation is routed through named
// arenas so the DMA-locality policy (fast SRAM for PCM/I2S buffers,
// default heap/PSRAM for Base64 and JSON buffers) is explicit and
// testable rather than implicit in where `make([]byte, n)` happens to
// place memory.
package audio

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nugget/sdui-termfw/internal/bus"
	"github.com/nugget/sdui-termfw/internal/platform"
)

const (
	sampleRate      = 22050
	speakerChannels = 1
	micChannels     = 2

	pcmChunkBytes    = 1024
	base64BufferHint = 1500
	jsonBufferHint   = 2048

	idleSleep     = 50 * time.Millisecond
	errorBackoff  = 10 * time.Millisecond
)

// Pipeline owns the codec device and the capture task.
type Pipeline struct {
	logger *slog.Logger
	bus    *bus.Bus
	codec  platform.Codec

	fastArena    platform.Arena // DMA-capable fast SRAM
	defaultArena platform.Arena // default heap/PSRAM

	recording atomic.Bool
}

// New creates a Pipeline. fastArena must hand out DMA-capable buffers;
// defaultArena may be backed by PSRAM.
func New(logger *slog.Logger, b *bus.Bus, codec platform.Codec, fastArena, defaultArena platform.Arena) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger, bus: b, codec: codec, fastArena: fastArena, defaultArena: defaultArena}
}

// Start opens the codec, subscribes audio/play, and launches the
// capture task. The capture task's own stack is a Go goroutine's stack,
// which the runtime grows from the heap rather than a fixed PSRAM
// region; the pipeline still requests its working buffers from the
// arenas named above, which is the contract this package actually
// controls.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.codec.Open(sampleRate, speakerChannels, micChannels); err != nil {
		return fmt.Errorf("audio: codec open: %w", err)
	}
	p.codec.SetSpeakerGain(1.0)
	p.codec.SetMicGain(1.0)

	p.bus.Subscribe("audio/play", p.handlePlay)
	p.bus.Subscribe("audio/cmd/record_start", func(string) { p.RecordStart() })
	p.bus.Subscribe("audio/cmd/record_stop", func(string) { p.RecordStop() })

	go p.captureLoop(ctx)
	return nil
}

// IsRecording exposes the recording flag to other components — notably
// the layout engine's particle throttle.
func (p *Pipeline) IsRecording() bool {
	return p.recording.Load()
}

// RecordStart transitions false->true and publishes {"state":"start"}.
func (p *Pipeline) RecordStart() {
	if p.recording.CompareAndSwap(false, true) {
		p.bus.PublishUp("audio/record", `{"state":"start"}`)
	}
}

// RecordStop transitions true->false and publishes {"state":"stop"}.
func (p *Pipeline) RecordStop() {
	if p.recording.CompareAndSwap(true, false) {
		p.bus.PublishUp("audio/record", `{"state":"stop"}`)
	}
}

// handlePlay Base64-decodes payload into a fast-SRAM buffer (it is
// handed directly to I2S) and writes it to the speaker. The decode
// buffer is short-lived: freed immediately after the write.
func (p *Pipeline) handlePlay(payload string) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		p.logger.Warn("audio: audio/play payload is not valid base64", "error", err)
		return
	}

	buf, err := p.fastArena.Alloc(len(raw))
	if err != nil {
		p.logger.Error("audio: fast-SRAM allocation failed for playback buffer", "error", err)
		return
	}
	defer p.fastArena.Free(buf)
	copy(buf, raw)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.codec.WriteSpeaker(ctx, buf); err != nil {
		p.logger.Warn("audio: speaker write failed", "error", err)
	}
}

// captureLoop reads fixed-size PCM chunks from the microphone on a
// dedicated goroutine, encoding and publishing each as a stream frame
// while recording is active, and idling otherwise.
func (p *Pipeline) captureLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !p.recording.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
			continue
		}

		pcm, err := p.fastArena.Alloc(pcmChunkBytes)
		if err != nil {
			p.logger.Error("audio: fast-SRAM allocation failed for capture buffer", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		n, err := p.codec.ReadMic(ctx, pcm)
		if err != nil {
			p.fastArena.Free(pcm)
			p.logger.Warn("audio: mic read error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		encoded := p.encodeChunk(pcm[:n])
		p.fastArena.Free(pcm)

		frame := p.assembleStreamFrame(encoded)
		p.bus.PublishUp("audio/record", frame)
	}
}

// encodeChunk Base64-encodes raw into a buffer from the default arena
// (PSRAM permitted): this buffer is not DMA-bound.
func (p *Pipeline) encodeChunk(raw []byte) string {
	encLen := base64.StdEncoding.EncodedLen(len(raw))
	buf, err := p.defaultArena.Alloc(maxInt(encLen, base64BufferHint))
	if err != nil {
		// Degrade: encode directly without a pre-sized arena buffer.
		return base64.StdEncoding.EncodeToString(raw)
	}
	defer p.defaultArena.Free(buf)
	base64.StdEncoding.Encode(buf[:encLen], raw)
	return string(buf[:encLen])
}

// assembleStreamFrame wraps data into the {"state":"stream","data":...}
// envelope payload, assembling it into a default-arena buffer rather than
// letting fmt.Sprintf allocate its own.
func (p *Pipeline) assembleStreamFrame(data string) string {
	buf, err := p.defaultArena.Alloc(jsonBufferHint)
	if err != nil {
		return fmt.Sprintf(`{"state":"stream","data":%q}`, data)
	}
	defer p.defaultArena.Free(buf)
	buf = append(buf[:0], `{"state":"stream","data":`...)
	buf = strconv.AppendQuote(buf, data)
	buf = append(buf, '}')
	return string(buf)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
