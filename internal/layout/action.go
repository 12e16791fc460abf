package layout

import (
	"fmt"
	"strings"
)

// EventCode names the interaction that triggered an action URI.
type EventCode int

const (
	EventClick EventCode = iota
	EventPress
	EventRelease
)

// dispatchAction strips a scheme and routes uri to the local bus,
// the uplink bus, or the canonical ui/click topic. local:// and
// server:// schemes are stripped before publishing; any other non-empty
// string (or an empty default on click) publishes {"id":widgetID} on
// ui/click.
func (e *Engine) dispatchAction(uri, widgetID string) {
	switch {
	case strings.HasPrefix(uri, "local://"):
		topic := strings.TrimPrefix(uri, "local://")
		e.bus.PublishLocal(topic, fmt.Sprintf(`{"id":%q}`, widgetID))
	case strings.HasPrefix(uri, "server://"):
		topic := strings.TrimPrefix(uri, "server://")
		e.bus.PublishUp(topic, fmt.Sprintf(`{"id":%q}`, widgetID))
	default:
		e.bus.PublishUp("ui/click", fmt.Sprintf(`{"id":%q}`, widgetID))
	}
}

// handleEvent maps an interaction event code on n to the action URI it
// triggers, then dispatches it if one is bound.
func (e *Engine) handleEvent(n *Node, code EventCode) {
	var uri string
	switch code {
	case EventClick:
		uri = n.OnClick
	case EventPress:
		uri = n.OnPress
	case EventRelease:
		uri = n.OnRelease
	}
	if uri == "" && code != EventClick {
		return
	}
	e.dispatchAction(uri, n.ID)
}

// handleSliderRelease reports a slider's value on release, via the same
// dispatch path as click/press/release action URIs.
func (e *Engine) handleSliderRelease(n *Node) {
	if n.OnChange == "" {
		return
	}
	payload := fmt.Sprintf(`{"id":%q,"value":%v}`, n.ID, n.Value)
	switch {
	case strings.HasPrefix(n.OnChange, "local://"):
		e.bus.PublishLocal(strings.TrimPrefix(n.OnChange, "local://"), payload)
	case strings.HasPrefix(n.OnChange, "server://"):
		e.bus.PublishUp(strings.TrimPrefix(n.OnChange, "server://"), payload)
	default:
		e.bus.PublishUp("ui/click", payload)
	}
}
