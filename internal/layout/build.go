package layout

import (
	"context"
	"time"
)

// fadeInDuration is the root fade-in transition's fixed duration.
const fadeInDuration = 200 * time.Millisecond

// runFadeIn drives n's opacity 0->255 over the fade-in duration,
// ease-out. Modeled as a single delayed settle, matching the other
// animations' lack of a real frame renderer to interpolate against.
func (e *Engine) runFadeIn(n *Node) {
	ctx, cancel := context.WithCancel(context.Background())
	e.trackCancel(n, cancel)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(fadeInDuration):
		}
		e.mu.Lock()
		n.Opacity = 255
		e.mu.Unlock()
	}()
}

// parseAnimDescriptor decodes an `anim` JSON object into an
// AnimDescriptor.
func parseAnimDescriptor(raw map[string]any) AnimDescriptor {
	var a AnimDescriptor
	if t, ok := raw["type"].(string); ok {
		a.Type = AnimType(t)
	}
	if d, ok := raw["duration"].(float64); ok {
		a.Duration = time.Duration(d) * time.Millisecond
	}
	if r, ok := raw["repeat"].(float64); ok {
		a.Repeat = int(r)
	}
	if dir, ok := raw["direction"].(string); ok {
		a.Direction = dir
	}
	if m, ok := raw["min_opa"].(float64); ok {
		a.MinOpa = int(m)
	}
	if m, ok := raw["max_opa"].(float64); ok {
		a.MaxOpa = int(m)
	}
	if amp, ok := raw["amp"].(float64); ok {
		a.Amplitude = int(amp)
	}
	if from, ok := raw["from"].(string); ok {
		a.From = from
	}
	if c, ok := raw["color_a"].(string); ok {
		a.ColorA = c
	}
	if c, ok := raw["color_b"].(string); ok {
		a.ColorB = c
	}
	return a
}

// buildChild constructs a node of the type named in raw["type"] as a
// child of parent, per the per-type construction steps: create widget,
// insert into the ID registry if `id` present, apply common style, bind
// action handlers, attach a deletion hook (implicit via Node.owned and
// Node.release), start an animation if `anim` is present, recurse into
// children.
func (e *Engine) buildChild(parent *Node, raw map[string]any) {
	typeStr, _ := raw["type"].(string)
	kind := Kind(typeStr)

	switch kind {
	case KindContainer, KindLabel, KindButton, KindImage, KindBar, KindSlider, KindParticle:
	default:
		e.logger.Warn("layout: unknown widget type, skipping", "type", typeStr)
		return
	}

	n := &Node{Kind: kind, Parent: parent, Opacity: 255}

	if id, ok := raw["id"].(string); ok && id != "" {
		n.ID = id
		if !e.reg.insert(id, n) {
			e.logger.Error("layout: id registry full, id not addressable", "id", id, "capacity", MaxRegistryEntries)
		}
	}

	parentW, parentH := e.ContentWidth(), e.ContentHeight()
	if parent != nil {
		parentW, parentH = parent.Width, parent.Height
	}
	e.applyCommonStyle(n, raw, parentW, parentH)

	switch kind {
	case KindContainer:
		e.buildContainer(n, raw)
	case KindLabel:
		e.buildLabel(n, raw)
	case KindButton:
		e.buildButton(n, raw)
	case KindImage:
		e.buildImage(n, raw)
	case KindBar:
		e.buildBar(n, raw)
	case KindSlider:
		e.buildSlider(n, raw)
	case KindParticle:
		e.buildParticle(n, raw)
	}

	e.bindActions(n, raw)

	if animRaw, ok := raw["anim"].(map[string]any); ok {
		anim := parseAnimDescriptor(animRaw)
		if err := e.startAnimation(n, anim); err != nil {
			e.logger.Warn("layout: anim rejected at construction", "id", n.ID, "error", err)
		}
	}

	parent.Children = append(parent.Children, n)

	if children, ok := raw["children"].([]any); ok {
		for _, c := range children {
			if m, ok := c.(map[string]any); ok {
				e.buildChild(n, m)
			}
		}
	}
}

func (e *Engine) bindActions(n *Node, raw map[string]any) {
	if v, ok := raw["on_click"].(string); ok {
		n.OnClick = v
	}
	if v, ok := raw["on_press"].(string); ok {
		n.OnPress = v
	}
	if v, ok := raw["on_release"].(string); ok {
		n.OnRelease = v
	}
	if v, ok := raw["on_change"].(string); ok {
		n.OnChange = v
	}
}

func (e *Engine) buildContainer(n *Node, raw map[string]any) {
	if flex, ok := raw["flex"].(string); ok {
		if f, ok := parseFlex(flex); ok {
			n.Flex = f
		} else {
			e.logger.Warn("layout: unknown flex value", "id", n.ID, "flex", flex)
		}
	}
	if j, ok := raw["justify"].(string); ok {
		if p, ok := parseJustify(j); ok {
			n.Justify = p
		} else {
			e.logger.Warn("layout: unknown justify value", "id", n.ID, "justify", j)
		}
	}
	if a, ok := raw["align_items"].(string); ok {
		if p, ok := parseJustify(a); ok {
			n.AlignItems = p
		} else {
			e.logger.Warn("layout: unknown align_items value", "id", n.ID, "align_items", a)
		}
	}
	if s, ok := raw["scrollable"].(bool); ok {
		n.Scrollable = s
	}
}

func (e *Engine) buildLabel(n *Node, raw map[string]any) {
	if t, ok := raw["text"].(string); ok {
		n.Text = t
	}
	if lm, ok := raw["long_mode"].(string); ok {
		if m, ok := parseLongMode(lm); ok {
			n.LongMode = m
		} else {
			e.logger.Warn("layout: unknown long_mode value", "id", n.ID, "long_mode", lm)
		}
	}
}

// buildButton constructs a button as an interactive element with an
// inline child label inheriting text/text_color/font_size.
func (e *Engine) buildButton(n *Node, raw map[string]any) {
	label := &Node{Kind: KindLabel, Parent: n, Opacity: 255}
	if t, ok := raw["text"].(string); ok {
		label.Text = t
	}
	label.TextColor = n.TextColor
	label.FontSize = n.FontSize
	n.Children = append(n.Children, label)
}

func (e *Engine) buildImage(n *Node, raw map[string]any) {
	src, _ := raw["src"].(string)
	imgW, _ := raw["img_w"].(float64)
	imgH, _ := raw["img_h"].(float64)
	n.ImageW, n.ImageH = int(imgW), int(imgH)

	if src == "" || e.arena == nil {
		return
	}
	buf, owned, err := decodeImage(e.arena, src, n.ImageW, n.ImageH)
	if err != nil {
		e.logger.Warn("layout: image decode/alloc failed, constructing without pixels", "id", n.ID, "error", err)
		return
	}
	n.ImagePixels = buf
	n.addOwned(owned)
}

func (e *Engine) buildBar(n *Node, raw map[string]any) {
	n.Min, n.Max = 0, 100
	if v, ok := raw["min"].(float64); ok {
		n.Min = v
	}
	if v, ok := raw["max"].(float64); ok {
		n.Max = v
	}
	if v, ok := raw["value"].(float64); ok {
		n.Value = v
	}
	if v, ok := raw["indic_color"].(string); ok {
		n.IndicColor = v
	}
}

func (e *Engine) buildSlider(n *Node, raw map[string]any) {
	n.Min, n.Max = 0, 100
	if v, ok := raw["min"].(float64); ok {
		n.Min = v
	}
	if v, ok := raw["max"].(float64); ok {
		n.Max = v
	}
	if v, ok := raw["value"].(float64); ok {
		n.Value = v
	}
}

func (e *Engine) buildParticle(n *Node, raw map[string]any) {
	cw, ch := MaxParticleCanvas, MaxParticleCanvas
	if v, ok := raw["canvas_w"].(float64); ok {
		cw = int(v)
	}
	if v, ok := raw["canvas_h"].(float64); ok {
		ch = int(v)
	}
	if e.arena == nil {
		return
	}
	ps, err := newParticleState(e.arena, cw, ch)
	if err != nil {
		e.logger.Warn("layout: particle canvas alloc failed, constructing without a canvas", "id", n.ID, "error", err)
		return
	}
	n.Particle = ps
	n.addOwned(ps)
	e.startParticleSystem(n)
}
