package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

func kindsOf(evts []UserEvent) []UserKind {
	out := make([]UserKind, len(evts))
	for i, e := range evts {
		out[i] = e.Kind
	}
	return out
}

// S3 — double click within the timeout windows.
func TestProcessor_DoubleClick(t *testing.T) {
	p := NewProcessor()
	t0 := time.Unix(0, 0)

	var all []UserKind
	all = append(all, kindsOf(p.Process(RawEvent{Kind: RawButtonPressed, Button: ButtonLeft, Time: t0}))...)
	all = append(all, kindsOf(p.Process(RawEvent{Kind: RawButtonReleased, Button: ButtonLeft, Time: t0.Add(150 * time.Millisecond)}))...)
	all = append(all, kindsOf(p.Process(RawEvent{Kind: RawButtonPressed, Button: ButtonLeft, Time: t0.Add(550 * time.Millisecond)}))...)
	all = append(all, kindsOf(p.Process(RawEvent{Kind: RawButtonReleased, Button: ButtonLeft, Time: t0.Add(600 * time.Millisecond)}))...)

	assert.Equal(t, []UserKind{
		EventButtonPressed,
		EventButtonReleased, EventClick,
		EventButtonPressed,
		EventButtonReleased, EventClick, EventDoubleClick,
	}, all)
}

// S4 — drag threshold: small moves emit nothing extra, crossing the
// threshold emits DragStarted once followed by Drag on every later move.
func TestProcessor_DragThreshold(t *testing.T) {
	p := NewProcessor()
	t0 := time.Unix(0, 0)

	evts1 := p.Process(RawEvent{Kind: RawButtonPressed, Button: ButtonLeft, Position: geom.NewPoint2(0.0, 0.0), Time: t0})
	assert.Equal(t, []UserKind{EventButtonPressed}, kindsOf(evts1))

	evts2 := p.Process(RawEvent{Kind: RawPointerMoved, Position: geom.NewPoint2(2.0, 2.0), Time: t0})
	assert.Equal(t, []UserKind{EventPointerMoved}, kindsOf(evts2))

	evts3 := p.Process(RawEvent{Kind: RawPointerMoved, Position: geom.NewPoint2(5.0, 0.0), Time: t0})
	assert.Equal(t, []UserKind{EventPointerMoved, EventDragStarted, EventDrag}, kindsOf(evts3))
	var drag UserEvent
	for _, e := range evts3 {
		if e.Kind == EventDrag {
			drag = e
		}
	}
	assert.Equal(t, 3.0, drag.Delta.DX)
	assert.Equal(t, -2.0, drag.Delta.DY)

	evts4 := p.Process(RawEvent{Kind: RawPointerMoved, Position: geom.NewPoint2(10.0, 0.0), Time: t0})
	assert.Equal(t, []UserKind{EventPointerMoved, EventDrag}, kindsOf(evts4))
}

func TestDispatcher_DragPinnedToConsumer(t *testing.T) {
	d := NewDispatcher()
	var gotByA, gotByB []UserKind

	d.Add(HandlerFunc(func(e UserEvent) HandlerResult {
		if e.Kind == EventDragStarted {
			return Propagate
		}
		gotByA = append(gotByA, e.Kind)
		return Propagate
	}))
	d.Add(HandlerFunc(func(e UserEvent) HandlerResult {
		gotByB = append(gotByB, e.Kind)
		if e.Kind == EventDragStarted {
			return Consume
		}
		return Propagate
	}))

	d.Dispatch(UserEvent{Kind: EventDragStarted})
	d.Dispatch(UserEvent{Kind: EventDrag})
	d.Dispatch(UserEvent{Kind: EventDragEnded})

	assert.Empty(t, gotByA)
	assert.Equal(t, []UserKind{EventDragStarted, EventDrag, EventDragEnded}, gotByB)
}
