// Package layout implements the SDUI layout engine: it materialises a
// tree-structured JSON UI description into a retained scene graph, with
// incremental updates, ID lookup, action-URI event binding, animations,
// and resource lifecycles tied to node deletion.
package layout

import "context"

// Kind is an atomic widget type.
type Kind string

const (
	KindContainer Kind = "container"
	KindLabel     Kind = "label"
	KindButton    Kind = "button"
	KindImage     Kind = "image"
	KindBar       Kind = "bar"
	KindSlider    Kind = "slider"
	KindParticle  Kind = "particle"
)

// Align is an absolute anchor point for the `align` style key.
type Align string

const (
	AlignCenter     Align = "center"
	AlignTopMid     Align = "top_mid"
	AlignTopLeft    Align = "top_left"
	AlignTopRight   Align = "top_right"
	AlignBottomMid  Align = "bottom_mid"
	AlignBottomLeft Align = "bottom_left"
	AlignBottomRight Align = "bottom_right"
	AlignLeftMid    Align = "left_mid"
	AlignRightMid   Align = "right_mid"
)

// Flex is a container's flex-layout direction.
type Flex string

const (
	FlexRow         Flex = "row"
	FlexColumn      Flex = "column"
	FlexRowWrap     Flex = "row_wrap"
	FlexColumnWrap  Flex = "column_wrap"
)

// Justify is a flex main/cross alignment mode.
type Justify string

const (
	JustifyStart        Justify = "start"
	JustifyEnd          Justify = "end"
	JustifyCenter        Justify = "center"
	JustifySpaceEvenly  Justify = "space_evenly"
	JustifySpaceAround  Justify = "space_around"
	JustifySpaceBetween Justify = "space_between"
)

// LongMode is a label's overflow behaviour.
type LongMode string

const (
	LongModeWrap    LongMode = "wrap"
	LongModeScroll  LongMode = "scroll"
	LongModeDot     LongMode = "dot"
	LongModeMarquee LongMode = "marquee"
)

// OwnedData is a resource attached to a node that must be released
// exactly once, on node deletion.
type OwnedData interface {
	Release()
}

// ownedFunc adapts a plain function to OwnedData.
type ownedFunc func()

func (f ownedFunc) Release() { f() }

// Node is a retained scene-graph widget instance.
type Node struct {
	ID     string
	Kind   Kind
	Parent *Node

	Children []*Node

	// Resolved geometry, in pixels, after style application.
	Width, Height int
	Hidden        bool
	Opacity       int // 0-255, overall opacity
	BGColor       string
	BGOpa         int
	Align         Align
	AlignX, AlignY int

	Flex    Flex
	Justify Justify
	AlignItems Justify
	Gap        int
	Pad        int
	Radius     int
	Scrollable bool
	BorderW     int
	BorderColor string
	ShadowW     int
	ShadowColor string

	// label/button
	Text     string
	LongMode LongMode
	TextColor string
	FontSize  int

	// image
	ImagePixels []byte // owned, allocated from the default/PSRAM arena
	ImageW, ImageH int
	RotationCentiDeg int

	// bar/slider
	Min, Max, Value float64
	IndicColor      string

	// particle
	Particle *particleState

	// action bindings
	OnClick, OnPress, OnRelease, OnChange string

	// colour-pulse animation state, if active
	colorPulse *colorPulseState

	owned       []OwnedData
	animCancels []context.CancelFunc
	spinOwner   bool
}

// addOwned registers data to be released on deletion.
func (n *Node) addOwned(d OwnedData) {
	n.owned = append(n.owned, d)
}

// release frees every owned resource and cancels every running
// animation on this node, then recurses into children. Called exactly
// once per node, either when render clears the tree or a parent is
// destroyed.
func (n *Node) release(spinCounter *spinCounter) {
	for _, c := range n.animCancels {
		c()
	}
	n.animCancels = nil
	if n.spinOwner && spinCounter != nil {
		spinCounter.release()
	}
	for _, o := range n.owned {
		o.Release()
	}
	n.owned = nil
	for _, c := range n.Children {
		c.release(spinCounter)
	}
	n.Children = nil
}
