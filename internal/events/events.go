// Package events implements the input state machine: it turns raw
// pointer/touch events into higher-level gestures (click, double-click,
// drag, pinch zoom) and dispatches them to a chain of handlers.
package events

import (
	"math"
	"time"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

const (
	dragThresholdPx    = 3.0
	clickTimeout       = 200 * time.Millisecond
	doubleClickTimeout = 500 * time.Millisecond
)

// MouseButton identifies which button/touch produced a drag or click.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonMiddle
	ButtonRight
	ButtonOther
)

// RawEvent is the input the platform shell feeds the processor. Which
// fields are meaningful depends on Kind.
type RawEvent struct {
	Kind     RawKind
	Button   MouseButton
	Position geom.Point2[float64]
	Delta    geom.Vector2[float64] // Scroll
	TouchID  uint64                // TouchStart/TouchMove/TouchEnd
	Time     time.Time
}

type RawKind int

const (
	RawButtonPressed RawKind = iota
	RawButtonReleased
	RawPointerMoved
	RawScroll
	RawTouchStart
	RawTouchMove
	RawTouchEnd
)

// UserEvent is a higher-level gesture dispatched to handlers.
type UserEvent struct {
	Kind     UserKind
	Button   MouseButton
	Position geom.Point2[float64]
	Delta    geom.Vector2[float64] // Drag delta, in pixels
	Ratio    float64               // Zoom ratio (pinch)
	Anchor   geom.Point2[float64]  // Zoom anchor
	Raw      RawEvent
}

type UserKind int

const (
	EventButtonPressed UserKind = iota
	EventButtonReleased
	EventPointerMoved
	EventClick
	EventDoubleClick
	EventDragStarted
	EventDrag
	EventDragEnded
	EventScroll
	EventZoom
)

// touchInfo tracks one active touch point.
type touchInfo struct {
	id       uint64
	position geom.Point2[float64]
}

// Processor is the event state machine. It holds no reference to handlers;
// Dispatcher delivers the events it emits, so the processor stays reusable
// across handler sets.
type Processor struct {
	buttonsDown      map[MouseButton]bool
	pointerPosition  geom.Point2[float64]
	pointerPressedAt geom.Point2[float64]
	lastPressedTime  time.Time
	lastClickTime    time.Time
	touches          []touchInfo
	dragButton       MouseButton
	dragging         bool
}

func NewProcessor() *Processor {
	return &Processor{buttonsDown: make(map[MouseButton]bool)}
}

func (p *Processor) buttonsDownCount() int {
	n := 0
	for _, down := range p.buttonsDown {
		if down {
			n++
		}
	}
	return n
}

// soleButtonDown returns the one pressed button when exactly one is down.
func (p *Processor) soleButtonDown() (MouseButton, bool) {
	if p.buttonsDownCount() != 1 {
		return 0, false
	}
	for b, down := range p.buttonsDown {
		if down {
			return b, true
		}
	}
	return 0, false
}

// Process maps one raw event into zero or more high-level events, in order.
func (p *Processor) Process(raw RawEvent) []UserEvent {
	switch raw.Kind {
	case RawButtonPressed:
		return p.onButtonPressed(raw)
	case RawButtonReleased:
		return p.onButtonReleased(raw)
	case RawPointerMoved:
		return p.onPointerMoved(raw)
	case RawScroll:
		return []UserEvent{{Kind: EventScroll, Delta: raw.Delta, Position: p.pointerPosition, Raw: raw}}
	case RawTouchStart:
		return p.onTouchStart(raw)
	case RawTouchMove:
		return p.onTouchMove(raw)
	case RawTouchEnd:
		return p.onTouchEnd(raw)
	default:
		return nil
	}
}

func (p *Processor) onButtonPressed(raw RawEvent) []UserEvent {
	p.buttonsDown[raw.Button] = true
	p.pointerPressedAt = raw.Position
	p.pointerPosition = raw.Position
	p.lastPressedTime = raw.Time
	return []UserEvent{{Kind: EventButtonPressed, Button: raw.Button, Position: raw.Position, Raw: raw}}
}

func (p *Processor) onButtonReleased(raw RawEvent) []UserEvent {
	out := []UserEvent{{Kind: EventButtonReleased, Button: raw.Button, Position: raw.Position, Raw: raw}}

	if !raw.Time.IsZero() && !p.lastPressedTime.IsZero() && raw.Time.Sub(p.lastPressedTime) < clickTimeout {
		out = append(out, UserEvent{Kind: EventClick, Button: raw.Button, Position: raw.Position, Raw: raw})
		if !p.lastClickTime.IsZero() && raw.Time.Sub(p.lastClickTime) < doubleClickTimeout {
			out = append(out, UserEvent{Kind: EventDoubleClick, Button: raw.Button, Position: raw.Position, Raw: raw})
		}
		p.lastClickTime = raw.Time
	}

	if p.dragging && p.dragButton == raw.Button {
		out = append(out, UserEvent{Kind: EventDragEnded, Button: raw.Button, Position: raw.Position, Raw: raw})
		p.dragging = false
	}

	p.buttonsDown[raw.Button] = false
	return out
}

func (p *Processor) onPointerMoved(raw RawEvent) []UserEvent {
	out := []UserEvent{{Kind: EventPointerMoved, Position: raw.Position, Raw: raw}}

	button, single := p.soleButtonDown()
	if !single {
		p.pointerPosition = raw.Position
		return out
	}

	if !p.dragging {
		if exceedsDragThreshold(p.pointerPressedAt, raw.Position) {
			p.dragging = true
			p.dragButton = button
			out = append(out, UserEvent{Kind: EventDragStarted, Button: button, Position: p.pointerPressedAt, Raw: raw})
			out = append(out, UserEvent{
				Kind:     EventDrag,
				Button:   button,
				Position: raw.Position,
				Delta:    raw.Position.Sub(p.pointerPosition),
				Raw:      raw,
			})
		}
	} else if p.dragButton == button {
		out = append(out, UserEvent{
			Kind:     EventDrag,
			Button:   button,
			Position: raw.Position,
			Delta:    raw.Position.Sub(p.pointerPosition),
			Raw:      raw,
		})
	}

	p.pointerPosition = raw.Position
	return out
}

func (p *Processor) onTouchStart(raw RawEvent) []UserEvent {
	for _, t := range p.touches {
		if t.id == raw.TouchID {
			return nil
		}
	}
	p.touches = append(p.touches, touchInfo{id: raw.TouchID, position: raw.Position})
	return nil
}

func (p *Processor) onTouchMove(raw RawEvent) []UserEvent {
	idx := -1
	for i, t := range p.touches {
		if t.id == raw.TouchID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	prev := p.touches[idx]
	p.touches[idx].position = raw.Position

	switch len(p.touches) {
	case 1:
		out := []UserEvent{{Kind: EventPointerMoved, Position: raw.Position, Raw: raw}}
		if !p.dragging {
			if p.pointerPressedAt == (geom.Point2[float64]{}) {
				p.pointerPressedAt = prev.position
			}
			if exceedsDragThreshold(p.pointerPressedAt, raw.Position) {
				p.dragging = true
				p.dragButton = ButtonOther
				out = append(out, UserEvent{Kind: EventDragStarted, Button: ButtonOther, Position: p.pointerPressedAt, Raw: raw})
			}
		}
		if p.dragging {
			out = append(out, UserEvent{Kind: EventDrag, Button: ButtonOther, Position: raw.Position, Delta: raw.Position.Sub(prev.position), Raw: raw})
		}
		return out
	case 2:
		other := p.touches[1-idx]
		prevDist := distance(prev.position, other.position)
		curDist := distance(raw.Position, other.position)
		if curDist == 0 {
			return nil
		}
		return []UserEvent{{
			Kind:   EventZoom,
			Ratio:  prevDist / curDist,
			Anchor: other.position,
			Raw:    raw,
		}}
	default:
		return nil
	}
}

func (p *Processor) onTouchEnd(raw RawEvent) []UserEvent {
	for i, t := range p.touches {
		if t.id == raw.TouchID {
			p.touches = append(p.touches[:i], p.touches[i+1:]...)
			break
		}
	}
	if p.dragging && len(p.touches) == 0 {
		p.dragging = false
		return []UserEvent{{Kind: EventDragEnded, Button: ButtonOther, Position: raw.Position, Raw: raw}}
	}
	return nil
}

// exceedsDragThreshold reports whether either axis of the move from the
// press position crossed the drag threshold.
func exceedsDragThreshold(pressed, current geom.Point2[float64]) bool {
	d := current.Sub(pressed)
	return math.Abs(d.DX) > dragThresholdPx || math.Abs(d.DY) > dragThresholdPx
}

func distance(a, b geom.Point2[float64]) float64 {
	d := b.Sub(a)
	return math.Sqrt(d.DX*d.DX + d.DY*d.DY)
}
