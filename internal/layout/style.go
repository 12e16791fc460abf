package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// fontSizePresets are the only font sizes the panel ships, in ascending
// order.
var fontSizePresets = []int{14, 16, 20, 24, 26}

// nearestFontSizePreset maps a requested size to the nearest preset that
// does not exceed it; a request below the smallest preset still gets the
// smallest preset (the panel has no smaller face to fall back to).
func nearestFontSizePreset(requested int) int {
	best := fontSizePresets[0]
	for _, p := range fontSizePresets {
		if p <= requested {
			best = p
		}
	}
	return best
}

// sizeKind distinguishes how a raw `w`/`h` style value resolves.
type sizeKind int

const (
	sizeFixed sizeKind = iota
	sizePercent
	sizeFull
	sizeContent
)

// resolveSize interprets a raw JSON style value (number, "NN%", "full",
// or "content") against parentPixels, returning the resolved pixel size.
// "content" resolves to contentPixels as passed. applyCommonStyle passes
// the node's current width/height, which is 0 for a node under
// construction because its children are built afterwards; no
// shrink-to-fit size is computed from children.
func resolveSize(raw any, parentPixels, contentPixels int) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		switch v {
		case "full":
			return parentPixels, nil
		case "content":
			return contentPixels, nil
		}
		if strings.HasSuffix(v, "%") {
			pctStr := strings.TrimSuffix(v, "%")
			pct, err := strconv.ParseFloat(pctStr, 64)
			if err != nil {
				return 0, fmt.Errorf("layout: invalid size percent %q", v)
			}
			return int(pct / 100 * float64(parentPixels)), nil
		}
		return 0, fmt.Errorf("layout: unrecognised size value %q", v)
	default:
		return 0, fmt.Errorf("layout: unsupported size value type %T", raw)
	}
}

// parseAlign validates an `align` enum value.
func parseAlign(s string) (Align, bool) {
	switch Align(s) {
	case AlignCenter, AlignTopMid, AlignTopLeft, AlignTopRight,
		AlignBottomMid, AlignBottomLeft, AlignBottomRight,
		AlignLeftMid, AlignRightMid:
		return Align(s), true
	default:
		return "", false
	}
}

// parseFlex validates a `flex` enum value.
func parseFlex(s string) (Flex, bool) {
	switch Flex(s) {
	case FlexRow, FlexColumn, FlexRowWrap, FlexColumnWrap:
		return Flex(s), true
	default:
		return "", false
	}
}

// parseJustify validates a `justify`/`align_items` enum value.
func parseJustify(s string) (Justify, bool) {
	switch Justify(s) {
	case JustifyStart, JustifyEnd, JustifyCenter, JustifySpaceEvenly,
		JustifySpaceAround, JustifySpaceBetween:
		return Justify(s), true
	default:
		return "", false
	}
}

// parseLongMode validates a label `long_mode` enum value.
func parseLongMode(s string) (LongMode, bool) {
	switch LongMode(s) {
	case LongModeWrap, LongModeScroll, LongModeDot, LongModeMarquee:
		return LongMode(s), true
	default:
		return "", false
	}
}

// applyCommonStyle applies the common style key set from raw to n. It
// never fails: an unrecognised value is logged here and simply skipped,
// so the rest of the node construction proceeds.
func (e *Engine) applyCommonStyle(n *Node, raw map[string]any, parentW, parentH int) {
	if w, ok := raw["w"]; ok {
		if px, err := resolveSize(w, parentW, n.Width); err == nil {
			n.Width = px
		} else {
			e.logger.Warn("layout: bad w value", "id", n.ID, "error", err)
		}
	}
	if h, ok := raw["h"]; ok {
		if px, err := resolveSize(h, parentH, n.Height); err == nil {
			n.Height = px
		} else {
			e.logger.Warn("layout: bad h value", "id", n.ID, "error", err)
		}
	}
	if align, ok := raw["align"].(string); ok {
		if a, ok := parseAlign(align); ok {
			n.Align = a
		} else {
			e.logger.Warn("layout: unknown align value", "id", n.ID, "align", align)
		}
	}
	if x, ok := raw["x"].(float64); ok {
		n.AlignX = int(x)
	}
	if y, ok := raw["y"].(float64); ok {
		n.AlignY = int(y)
	}
	if bg, ok := raw["bg_color"].(string); ok {
		n.BGColor = bg
	}
	if opa, ok := raw["bg_opa"].(float64); ok {
		n.BGOpa = int(opa)
	}
	if pad, ok := raw["pad"].(float64); ok {
		n.Pad = int(pad)
	}
	if radius, ok := raw["radius"].(float64); ok {
		n.Radius = int(radius)
	}
	if gap, ok := raw["gap"].(float64); ok {
		n.Gap = int(gap)
	}
	if bw, ok := raw["border_w"].(float64); ok {
		n.BorderW = int(bw)
	}
	if bc, ok := raw["border_color"].(string); ok {
		n.BorderColor = bc
	}
	if sw, ok := raw["shadow_w"].(float64); ok {
		n.ShadowW = int(sw)
	}
	if sc, ok := raw["shadow_color"].(string); ok {
		n.ShadowColor = sc
	}
	if tc, ok := raw["text_color"].(string); ok {
		n.TextColor = tc
	}
	if fs, ok := raw["font_size"].(float64); ok {
		n.FontSize = nearestFontSizePreset(int(fs))
	}
	if opa, ok := raw["opa"].(float64); ok {
		n.Opacity = int(opa)
	} else if n.Opacity == 0 {
		n.Opacity = 255
	}
	if hidden, ok := raw["hidden"].(bool); ok {
		n.Hidden = hidden
	}
}
