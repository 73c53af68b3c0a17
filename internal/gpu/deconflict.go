// Package gpu implements the per-frame compositor: it packs render bundles
// into GPU buffers and draws them with stencil-based clipping,
// multisampling, and label/marker deconfliction, on top of
// go-webgpu/wgpu.
package gpu

import (
	"sort"
	"time"

	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

// ScreenAnchor is the result of projecting one ScreenRenderSet's world
// anchor through the current view, in pixels relative to the top-left of
// the viewport, plus a depth value used only for front-to-back ordering.
type ScreenAnchor struct {
	X, Y float64
	Z    float64 // normalized depth; smaller draws closer to camera
	W    float64 // clip-space w; <= 0 means behind the camera
}

// Projector converts a ScreenRenderSet's world anchor point into screen
// space, mirroring MapView.MapToSceneTransform followed by the perspective
// divide. Kept as a function so internal/gpu never needs to import
// internal/mapview's Mat4 type directly in this file.
type Projector func(set *renderbundle.ScreenRenderSet) ScreenAnchor

// fadeState is the per-set animation state the compositor remembers across
// frames, keyed by the *ScreenRenderSet pointer identity: layers that keep a
// stable set alive across frames (e.g. FeatureLayer's cached per-feature bundles)
// get continuous fade tracking; a brand-new pointer starts Hidden.
type fadeState struct {
	state renderbundle.RenderSetState
	since time.Time
}

// Deconflicter implements the label/marker deconfliction pass. It owns the
// only state that must survive between frames for this algorithm: each
// set's current fade phase and when that phase began.
type Deconflicter struct {
	states map[*renderbundle.ScreenRenderSet]*fadeState
}

func NewDeconflicter() *Deconflicter {
	return &Deconflicter{states: make(map[*renderbundle.ScreenRenderSet]*fadeState)}
}

// Placement is one ScreenRenderSet's resolved draw state for this frame.
type Placement struct {
	Set     *renderbundle.ScreenRenderSet
	Anchor  ScreenAnchor
	Opacity float64
	Visible bool // false once fully faded out; caller should skip drawing
}

type candidate struct {
	set    *renderbundle.ScreenRenderSet
	anchor ScreenAnchor
}

// Resolve runs the full procedure: project, sort (displayed-first
// then ascending depth), walk deciding shown/hidden by bbox overlap, update
// fade state, and compute draw order (front-priority sets painted last).
// Returns needsAnimation=true if any set is mid fade, so the caller knows to
// schedule another frame.
func (d *Deconflicter) Resolve(sets []*renderbundle.ScreenRenderSet, project Projector, now time.Time) (drawOrder []Placement, needsAnimation bool) {
	cands := make([]candidate, 0, len(sets))
	for _, s := range sets {
		a := project(s)
		if a.W <= 0 {
			continue
		}
		cands = append(cands, candidate{set: s, anchor: a})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := d.isDisplayed(cands[i].set), d.isDisplayed(cands[j].set)
		if di != dj {
			return di
		}
		return cands[i].anchor.Z < cands[j].anchor.Z
	})

	type accepted struct {
		x0, y0, x1, y1 float64
	}
	var acceptedBoxes []accepted
	placements := make([]Placement, 0, len(cands))

	for _, c := range cands {
		box := accepted{
			x0: c.anchor.X + float64(c.set.Bbox.XMin),
			y0: c.anchor.Y + float64(c.set.Bbox.YMin),
			x1: c.anchor.X + float64(c.set.Bbox.XMax),
			y1: c.anchor.Y + float64(c.set.Bbox.YMax),
		}

		shown := !c.set.HideOnOverlay
		if c.set.HideOnOverlay {
			shown = true
			for _, other := range acceptedBoxes {
				if box.x0 <= other.x1 && box.x1 >= other.x0 && box.y0 <= other.y1 && box.y1 >= other.y0 {
					shown = false
					break
				}
			}
		}
		if shown {
			acceptedBoxes = append(acceptedBoxes, box)
		}

		opacity, stillAnimating := d.applyTransition(c.set, shown, now)
		if stillAnimating {
			needsAnimation = true
		}

		placements = append(placements, Placement{
			Set:     c.set,
			Anchor:  c.anchor,
			Opacity: opacity,
			Visible: opacity > 0,
		})
	}

	// Draw in reverse sorted order: highest-priority (displayed, nearest)
	// sets were sorted first and must paint last/on top.
	drawOrder = make([]Placement, len(placements))
	for i, p := range placements {
		drawOrder[len(placements)-1-i] = p
	}
	return drawOrder, needsAnimation
}

func (d *Deconflicter) isDisplayed(set *renderbundle.ScreenRenderSet) bool {
	fs, ok := d.states[set]
	if !ok {
		return false
	}
	return fs.state.IsDisplayed()
}

// applyTransition advances set's fade state given this frame's shown/hidden
// decision, returning the opacity to draw at and whether it's still
// animating. When a decision reverses mid-fade, the animation progress is
// preserved so the opacity never jumps.
func (d *Deconflicter) applyTransition(set *renderbundle.ScreenRenderSet, shown bool, now time.Time) (opacity float64, animating bool) {
	fs, ok := d.states[set]
	if !ok {
		fs = &fadeState{state: renderbundle.RenderSetHidden}
		d.states[set] = fs
	}

	duration := set.AnimationDuration
	if duration <= 0 {
		if shown {
			fs.state = renderbundle.RenderSetDisplayed
			return 1, false
		}
		fs.state = renderbundle.RenderSetHidden
		return 0, false
	}

	switch fs.state {
	case renderbundle.RenderSetHidden:
		if shown {
			fs.state = renderbundle.RenderSetFadingIn
			fs.since = now
		}
	case renderbundle.RenderSetFadingOut:
		if shown {
			elapsed := now.Sub(fs.since)
			fs.state = renderbundle.RenderSetFadingIn
			fs.since = now.Add(elapsed - duration)
		}
	case renderbundle.RenderSetFadingIn:
		if !shown {
			elapsed := now.Sub(fs.since)
			fs.state = renderbundle.RenderSetFadingOut
			fs.since = now.Add(elapsed - duration)
		}
	case renderbundle.RenderSetDisplayed:
		if !shown {
			fs.state = renderbundle.RenderSetFadingOut
			fs.since = now
		}
	}

	switch fs.state {
	case renderbundle.RenderSetFadingIn:
		k := float64(now.Sub(fs.since)) / float64(duration)
		if k >= 1 {
			fs.state = renderbundle.RenderSetDisplayed
			return 1, false
		}
		if k < 0 {
			k = 0
		}
		return k, true
	case renderbundle.RenderSetFadingOut:
		k := float64(now.Sub(fs.since)) / float64(duration)
		if k >= 1 {
			fs.state = renderbundle.RenderSetHidden
			return 0, false
		}
		if k < 0 {
			k = 0
		}
		return 1 - k, true
	case renderbundle.RenderSetDisplayed:
		return 1, false
	default:
		return 0, false
	}
}

// Forget drops any remembered fade state for sets no longer produced by any
// layer, so the map doesn't grow without bound as features are deleted.
func (d *Deconflicter) Forget(live []*renderbundle.ScreenRenderSet) {
	liveSet := make(map[*renderbundle.ScreenRenderSet]bool, len(live))
	for _, s := range live {
		liveSet[s] = true
	}
	for k := range d.states {
		if !liveSet[k] {
			delete(d.states, k)
		}
	}
}
