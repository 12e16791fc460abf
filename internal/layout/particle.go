package layout

import (
	"context"
	"math/rand"
	"time"

	"github.com/nugget/sdui-termfw/internal/platform"
)

// MaxParticleCanvas is the per-axis pixel cap on a particle widget's
// canvas (200x200, <=80 KiB RGB565).
const MaxParticleCanvas = 200

// MaxParticles is the per-instance particle count cap.
const MaxParticles = 30

// particleTickPeriod is the default timer period (~30 fps).
const particleTickPeriod = 33 * time.Millisecond

const particleGravity = 0.06 // px/tick^2

type particle struct {
	x, y   float64
	vx, vy float64
	alpha  float64
}

// particleState is the owned state of a running particle widget: its
// PSRAM canvas buffer and in-flight particles.
type particleState struct {
	canvasW, canvasH int
	buf              []byte
	arena            platform.Arena
	particles        []particle
	rng              *rand.Rand
	framesDrawn      int
	framesSkipped    int
}

func (p *particleState) Release() {
	if p.arena != nil && p.buf != nil {
		p.arena.Free(p.buf)
	}
	p.buf = nil
}

// clampParticleCanvas clamps requested canvas dimensions to the 200x200
// cap.
func clampParticleCanvas(w, h int) (int, int) {
	if w > MaxParticleCanvas {
		w = MaxParticleCanvas
	}
	if h > MaxParticleCanvas {
		h = MaxParticleCanvas
	}
	if w <= 0 {
		w = MaxParticleCanvas
	}
	if h <= 0 {
		h = MaxParticleCanvas
	}
	return w, h
}

// newParticleState allocates a canvas buffer from arena (RGB565, 2 bytes
// per pixel) sized canvasW*canvasH, clamped to the cap.
func newParticleState(arena platform.Arena, canvasW, canvasH int) (*particleState, error) {
	w, h := clampParticleCanvas(canvasW, canvasH)
	buf, err := arena.Alloc(w * h * 2)
	if err != nil {
		return nil, err
	}
	return &particleState{
		canvasW: w,
		canvasH: h,
		buf:     buf,
		arena:   arena,
		rng:     rand.New(rand.NewSource(1)),
	}, nil
}

// startParticleSystem starts the particle timer goroutine for n. The
// timer throttles to a no-op tick whenever isRecording reports true, so
// recording never competes with the particle system for CPU/allocation.
func (e *Engine) startParticleSystem(n *Node) {
	ctx, cancel := context.WithCancel(context.Background())
	e.trackCancel(n, cancel)

	ps := n.Particle
	go func() {
		ticker := time.NewTicker(particleTickPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			e.mu.Lock()
			if e.isRecording != nil && e.isRecording() {
				ps.framesSkipped++
				e.mu.Unlock()
				continue
			}
			tickParticles(ps)
			e.mu.Unlock()
		}
	}()
}

// tickParticles advances one physics step: emits new particles from
// centre up to MaxParticles, applies gravity, decays alpha linearly,
// and drops expired particles.
func tickParticles(ps *particleState) {
	ps.framesDrawn++

	if len(ps.particles) < MaxParticles {
		cx, cy := float64(ps.canvasW)/2, float64(ps.canvasH)/2
		ps.particles = append(ps.particles, particle{
			x: cx, y: cy,
			vx:    (ps.rng.Float64() - 0.5) * 2,
			vy:    (ps.rng.Float64() - 0.5) * 2,
			alpha: 1.0,
		})
	}

	live := ps.particles[:0]
	for _, p := range ps.particles {
		p.vy += particleGravity
		p.x += p.vx
		p.y += p.vy
		p.alpha -= 1.0 / 60.0
		if p.alpha > 0 {
			live = append(live, p)
		}
	}
	ps.particles = live
}
