package layout

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nugget/sdui-termfw/internal/bus"
	"github.com/nugget/sdui-termfw/internal/platform"
)

// RootWidth, RootHeight are the panel dimensions; SafeMargin is the
// inset applied on every side to produce the root view's content area.
const (
	RootWidth  = 466
	RootHeight = 466
	SafeMargin = 40
)

// Engine is the SDUI layout engine: JSON-described trees in, a retained
// scene graph out, with incremental update, ID lookup, and action-URI
// dispatch.
type Engine struct {
	logger *slog.Logger
	bus    *bus.Bus
	arena  platform.Arena // default/PSRAM arena for images and particle canvases

	mu    sync.Mutex // the single global UI lock; guards root, reg, spins, and every Node field an animation goroutine mutates
	root  *Node
	reg   *registry
	spins *spinCounter

	isRecording func() bool
}

// New creates an Engine. arena is used for image pixel buffers and
// particle canvases (PSRAM on real hardware). isRecording, if non-nil,
// is polled by the particle system's throttle.
func New(logger *slog.Logger, b *bus.Bus, arena platform.Arena, isRecording func() bool) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:      logger,
		bus:         b,
		arena:       arena,
		reg:         newRegistry(),
		spins:       &spinCounter{},
		isRecording: isRecording,
	}
}

// Init establishes the root view: sized (W-2*SP)x(H-2*SP), centred, flex
// column/centre-centre layout, scrollbars off, background transparent.
// Clears the ID registry and the spin counter.
func (e *Engine) Init() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reg.clear()
	e.spins.reset()
	e.root = &Node{
		Kind:       KindContainer,
		Width:      RootWidth - 2*SafeMargin,
		Height:     RootHeight - 2*SafeMargin,
		Flex:       FlexColumn,
		Justify:    JustifyCenter,
		AlignItems: JustifyCenter,
		Opacity:    255,
		BGOpa:      0,
	}
}

// ContentWidth/ContentHeight are the root view's resolved content area,
// used as the percentage basis for top-level `w`/`h` style values.
func (e *Engine) ContentWidth() int  { return RootWidth - 2*SafeMargin }
func (e *Engine) ContentHeight() int { return RootHeight - 2*SafeMargin }

// Render performs a full re-materialisation of the UI tree from
// jsonText. On parse failure it logs and aborts without mutating state.
func (e *Engine) Render(jsonText string) error {
	var parsed any
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		e.logger.Warn("layout: render parse error", "error", err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.root == nil {
		e.root = &Node{Kind: KindContainer}
	}

	// Clear children: releases all owned buffers, rebuilds the registry,
	// and resets the spin counter.
	e.root.release(e.spins)
	e.reg.clear()
	e.spins.reset()

	// Re-apply root defaults.
	e.root.Flex = FlexColumn
	e.root.Justify = JustifyCenter
	e.root.AlignItems = JustifyCenter
	e.root.BGOpa = 0
	e.root.Children = nil

	switch v := parsed.(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				e.buildChild(e.root, m)
			}
		}
	case map[string]any:
		if children, ok := v["children"].([]any); ok {
			e.applyRootStyle(v)
			for _, item := range children {
				if m, ok := item.(map[string]any); ok {
					e.buildChild(e.root, m)
				}
			}
		} else {
			e.buildChild(e.root, v)
		}
	default:
		e.logger.Warn("layout: render payload is neither object nor array")
	}

	e.root.Opacity = 0
	e.runFadeIn(e.root)
	return nil
}

func (e *Engine) applyRootStyle(v map[string]any) {
	if flex, ok := v["flex"].(string); ok {
		if f, ok := parseFlex(flex); ok {
			e.root.Flex = f
		}
	}
	if j, ok := v["justify"].(string); ok {
		if p, ok := parseJustify(j); ok {
			e.root.Justify = p
		}
	}
	if a, ok := v["align_items"].(string); ok {
		if p, ok := parseJustify(a); ok {
			e.root.AlignItems = p
		}
	}
	e.applyCommonStyle(e.root, v, e.ContentWidth(), e.ContentHeight())
}

// FindByID looks id up in the ID registry (a map keyed by id). A later
// render rebuilds the registry, so a returned node is only current until
// the next render.
func (e *Engine) FindByID(id string) (*Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.findByID(id)
}

// RegistrySize reports the current number of addressable IDs, for tests.
func (e *Engine) RegistrySize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.size()
}

// SpinCount reports the number of currently running spin animations,
// for tests.
func (e *Engine) SpinCount() int {
	return e.spins.value()
}

// Update applies the incremental fields in jsonText to the addressed
// node. jsonText must be an object with a string `id`; otherwise the
// call is a no-op with a warning.
func (e *Engine) Update(jsonText string) error {
	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		e.logger.Warn("layout: update parse error", "error", err)
		return err
	}
	id, ok := raw["id"].(string)
	if !ok || id == "" {
		e.logger.Warn("layout: update missing string id")
		return fmt.Errorf("layout: update missing string id")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.reg.findByID(id)
	if !ok {
		e.logger.Warn("layout: update target not found", "id", id)
		return nil
	}

	if text, ok := raw["text"].(string); ok {
		e.applyUpdateText(n, text)
	}
	if hidden, ok := raw["hidden"].(bool); ok {
		n.Hidden = hidden
	}
	if bg, ok := raw["bg_color"].(string); ok {
		n.BGColor = bg
		n.BGOpa = 255
	}
	if value, ok := raw["value"].(float64); ok {
		if n.Kind == KindBar || n.Kind == KindSlider {
			n.Value = value
		}
	}
	if ic, ok := raw["indic_color"].(string); ok {
		n.IndicColor = ic
	}
	if opa, ok := raw["opa"].(float64); ok {
		n.Opacity = int(opa)
	}
	if animRaw, ok := raw["anim"].(map[string]any); ok {
		anim := parseAnimDescriptor(animRaw)
		if err := e.startAnimation(n, anim); err != nil {
			e.logger.Warn("layout: update anim rejected", "id", id, "error", err)
		}
	}
	return nil
}

// applyUpdateText applies to a label directly, or to the first child for
// a button (the button-label convention).
func (e *Engine) applyUpdateText(n *Node, text string) {
	if n.Kind == KindLabel {
		n.Text = text
		return
	}
	if n.Kind == KindButton && len(n.Children) > 0 {
		n.Children[0].Text = text
	}
}

// Snapshot returns a debug dump of id -> kind -> visible fields. It
// performs no mutation and is not on the critical path of any runtime
// operation; it exists purely as an introspection aid for tests.
func (e *Engine) Snapshot() map[string]map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]map[string]any, len(e.reg.entries))
	for id, n := range e.reg.entries {
		out[id] = map[string]any{
			"kind":    n.Kind,
			"text":    n.Text,
			"hidden":  n.Hidden,
			"opacity": n.Opacity,
			"value":   n.Value,
		}
	}
	return out
}
