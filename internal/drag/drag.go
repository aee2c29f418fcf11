/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package drag turns pointer movement over the preview into fraction-space
// updates of the layer store.
//
// A gesture lives for exactly one press-move-release sequence. Its start
// pointer and start position are held by the Gesture value and dropped when
// it ends; nothing is left registered once End has run.
package drag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cardcomposer/internal/domain"
	"cardcomposer/internal/geometry"
	"cardcomposer/internal/layers"
	applog "cardcomposer/internal/log"
)

var (
	ErrNoPreview  = errors.New("preview has no size")
	ErrMultiTouch = errors.New("gesture has more than one contact")
)

// TargetKind tells which entity a gesture moves.
type TargetKind int

const (
	TargetPhoto TargetKind = iota
	TargetText
)

func (k TargetKind) String() string {
	switch k {
	case TargetPhoto:
		return "photo"
	case TargetText:
		return "text"
	default:
		return "unknown"
	}
}

// Target identifies the dragged entity. LayerID is only used for text.
type Target struct {
	Kind    TargetKind
	LayerID string
}

func Photo() Target         { return Target{Kind: TargetPhoto} }
func Text(id string) Target { return Target{Kind: TargetText, LayerID: id} }

func (t Target) String() string {
	if t.Kind == TargetText {
		return "text:" + t.LayerID
	}
	return t.Kind.String()
}

// Controller starts gestures against one store. At most one gesture is
// active; beginning a new one ends the previous one.
type Controller struct {
	store  *layers.Store
	log    *slog.Logger
	mu     sync.Mutex
	active *Gesture
}

func NewController(store *layers.Store) *Controller {
	return &Controller{store: store, log: applog.WithComponent("drag")}
}

// Gesture is one press-move-release sequence.
type Gesture struct {
	c       *Controller
	target  Target
	preview geometry.Size
	start   geometry.Pt
	startFX float64
	startFY float64
	ended   bool
}

// Begin presses on target at pointer (preview pixels). Pressing a text layer
// selects it even if no movement follows. contacts is the number of
// simultaneous touch points (1 for a mouse).
func (c *Controller) Begin(target Target, pointer geometry.Pt, contacts int, preview geometry.Size) (*Gesture, error) {
	if target.Kind == TargetText {
		if err := c.store.Select(target.LayerID); err != nil {
			return nil, err
		}
	}
	if preview.Empty() {
		return nil, ErrNoPreview
	}
	if contacts > 1 {
		return nil, ErrMultiTouch
	}
	fx, fy, err := c.position(target)
	if err != nil {
		return nil, err
	}
	g := &Gesture{c: c, target: target, preview: preview, start: pointer, startFX: fx, startFY: fy}

	c.mu.Lock()
	prev := c.active
	c.active = g
	c.mu.Unlock()
	if prev != nil {
		prev.End()
	}
	c.log.Debug("gesture begin", slog.String("target", target.String()), slog.Float64("fx", fx), slog.Float64("fy", fy))
	return g, nil
}

// Active reports whether a gesture is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

func (c *Controller) position(t Target) (float64, float64, error) {
	switch t.Kind {
	case TargetPhoto:
		p := c.store.Photo()
		if p == nil {
			return 0, 0, layers.ErrNoPhoto
		}
		return p.CenterX, p.CenterY, nil
	case TargetText:
		l, ok := c.store.Text(t.LayerID)
		if !ok {
			return 0, 0, fmt.Errorf("%w: %s", layers.ErrLayerNotFound, t.LayerID)
		}
		return l.X, l.Y, nil
	default:
		return 0, 0, fmt.Errorf("unknown drag target %d", t.Kind)
	}
}

// Move applies the pointer position. A move reporting anything other than a
// single contact aborts the gesture; later moves are ignored.
func (g *Gesture) Move(pointer geometry.Pt, contacts int) error {
	if g.Ended() {
		return nil
	}
	if contacts != 1 {
		g.c.log.Debug("gesture aborted", slog.String("target", g.target.String()), slog.Int("contacts", contacts))
		g.End()
		return nil
	}
	fx := geometry.Clamp01(g.startFX + geometry.DeltaToFraction(pointer.X-g.start.X, float64(g.preview.W)))
	fy := geometry.Clamp01(g.startFY + geometry.DeltaToFraction(pointer.Y-g.start.Y, float64(g.preview.H)))
	switch g.target.Kind {
	case TargetPhoto:
		return g.c.store.UpdatePhotoTransform(domain.PhotoPatch{CenterX: &fx, CenterY: &fy})
	default:
		return g.c.store.UpdateTextLayer(g.target.LayerID, domain.TextPatch{X: &fx, Y: &fy})
	}
}

// End releases the gesture. It is safe to call more than once.
func (g *Gesture) End() {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	if g.ended {
		return
	}
	g.ended = true
	if g.c.active == g {
		g.c.active = nil
	}
}

// Ended reports whether the gesture was released or aborted.
func (g *Gesture) Ended() bool {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	return g.ended
}

// Target returns what the gesture moves.
func (g *Gesture) Target() Target { return g.target }

// EventKind classifies pointer events.
type EventKind int

const (
	Press EventKind = iota
	MoveTo
	Release
)

// PointerEvent is one pointer/touch sample in preview pixels.
type PointerEvent struct {
	Kind     EventKind
	Pos      geometry.Pt
	Contacts int
}

// Track runs one press-move-release sequence read from events. The first
// event must be a Press. The gesture is always ended when Track returns,
// whether the sequence completed, the channel closed or ctx was cancelled.
func (c *Controller) Track(ctx context.Context, target Target, preview geometry.Size, events <-chan PointerEvent) error {
	var first PointerEvent
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev, ok := <-events:
		if !ok {
			return nil
		}
		first = ev
	}
	if first.Kind != Press {
		return fmt.Errorf("gesture must start with a press, got %d", first.Kind)
	}
	g, err := c.Begin(target, first.Pos, max(first.Contacts, 1), preview)
	if err != nil {
		return err
	}
	defer g.End()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case MoveTo:
				if err := g.Move(ev.Pos, max(ev.Contacts, 1)); err != nil {
					return err
				}
			case Release:
				return nil
			}
		}
	}
}
