/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package recipe replays a YAML edit script against a session, standing in
// for the editor's control widgets.
//
//	template: template1
//	photo: me.jpg
//	steps:
//	  - photo: {x: 0.45, scale: 1.2}
//	  - text: {id: main, text: "Happy 30th!", color: "#ffcc00"}
//	  - add_text: {as: sig, text: "Love, Sam", y: 0.85}
//	  - drag: {target: sig, from: [100, 400], to: [160, 420]}
//	export: [png]
//
// Each step holds exactly one action. Text layers created by add_text can be
// referred to by their "as" alias in later steps.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cardcomposer/internal/domain"
	"cardcomposer/internal/drag"
	"cardcomposer/internal/geometry"
	"cardcomposer/internal/layers"
)

var ErrInvalidRecipe = errors.New("invalid recipe")

// Recipe is a parsed edit script.
type Recipe struct {
	Template string   `yaml:"template"`
	Photo    string   `yaml:"photo,omitempty"`
	Steps    []Step   `yaml:"steps"`
	Export   []string `yaml:"export,omitempty"`
}

// Step is one edit.
type Step struct {
	Photo      *PhotoStep   `yaml:"photo,omitempty"`
	Zoom       *float64     `yaml:"zoom,omitempty"`
	ResetPhoto bool         `yaml:"reset_photo,omitempty"`
	AddText    *TextStep    `yaml:"add_text,omitempty"`
	Text       *TextStep    `yaml:"text,omitempty"`
	RemoveText string       `yaml:"remove_text,omitempty"`
	Reorder    *ReorderStep `yaml:"reorder,omitempty"`
	Drag       *DragStep    `yaml:"drag,omitempty"`
}

type PhotoStep struct {
	X     *float64 `yaml:"x,omitempty"`
	Y     *float64 `yaml:"y,omitempty"`
	Scale *float64 `yaml:"scale,omitempty"`
}

type TextStep struct {
	ID    string        `yaml:"id,omitempty"`
	As    string        `yaml:"as,omitempty"`
	Text  *string       `yaml:"text,omitempty"`
	X     *float64      `yaml:"x,omitempty"`
	Y     *float64      `yaml:"y,omitempty"`
	Font  *string       `yaml:"font,omitempty"`
	Color *domain.Color `yaml:"color,omitempty"`
	Size  *float64      `yaml:"size,omitempty"`
}

type ReorderStep struct {
	ID string `yaml:"id"`
	Z  int    `yaml:"z"`
}

// DragStep moves a layer with a synthetic pointer, in preview pixels.
// Target is "photo" or a text id/alias.
type DragStep struct {
	Target string     `yaml:"target"`
	From   [2]float64 `yaml:"from"`
	To     [2]float64 `yaml:"to"`
	Moves  int        `yaml:"moves,omitempty"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Photo != nil, s.Zoom != nil, s.ResetPhoto, s.AddText != nil,
		s.Text != nil, s.RemoveText != "", s.Reorder != nil, s.Drag != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Parse decodes and validates a recipe.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
	}
	for i, s := range r.Steps {
		if n := s.actions(); n != 1 {
			return nil, fmt.Errorf("%w: step %d has %d actions, want 1", ErrInvalidRecipe, i+1, n)
		}
		if s.Text != nil && s.Text.ID == "" {
			return nil, fmt.Errorf("%w: step %d: text needs an id", ErrInvalidRecipe, i+1)
		}
		if s.Drag != nil && s.Drag.Target == "" {
			return nil, fmt.Errorf("%w: step %d: drag needs a target", ErrInvalidRecipe, i+1)
		}
	}
	return &r, nil
}

// Load reads and parses a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe %s: %w", path, err)
	}
	return Parse(data)
}

// Editor is what a recipe edits; *session.Session satisfies it.
type Editor interface {
	Store() *layers.Store
	Drag() *drag.Controller
	PreviewSize() geometry.Size
}

// Apply runs the steps in order and stops at the first failing one.
func (r *Recipe) Apply(ctx context.Context, ed Editor) error {
	aliases := map[string]string{}
	resolve := func(id string) string {
		if real, ok := aliases[id]; ok {
			return real
		}
		return id
	}
	for i, s := range r.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := applyStep(ctx, ed, s, aliases, resolve); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func applyStep(ctx context.Context, ed Editor, s Step, aliases map[string]string, resolve func(string) string) error {
	store := ed.Store()
	switch {
	case s.Photo != nil:
		return store.UpdatePhotoTransform(domain.PhotoPatch{CenterX: s.Photo.X, CenterY: s.Photo.Y, Scale: s.Photo.Scale})
	case s.Zoom != nil:
		return store.ZoomPhoto(*s.Zoom)
	case s.ResetPhoto:
		return store.ResetPhoto()
	case s.AddText != nil:
		id := store.AddTextLayer()
		if s.AddText.As != "" {
			aliases[s.AddText.As] = id
		}
		return updateText(store, id, s.AddText)
	case s.Text != nil:
		return updateText(store, resolve(s.Text.ID), s.Text)
	case s.RemoveText != "":
		return store.RemoveTextLayer(resolve(s.RemoveText))
	case s.Reorder != nil:
		return store.ReorderTextLayer(resolve(s.Reorder.ID), s.Reorder.Z)
	case s.Drag != nil:
		return runDrag(ctx, ed, s.Drag, resolve)
	}
	return nil
}

func updateText(store *layers.Store, id string, t *TextStep) error {
	patch := domain.TextPatch{Text: t.Text, X: t.X, Y: t.Y, Color: t.Color, FontSizeFraction: t.Size}
	if t.Font != nil {
		fam, err := domain.ParseFontFamily(*t.Font)
		if err != nil {
			return err
		}
		patch.FontFamily = &fam
	}
	return store.UpdateTextLayer(id, patch)
}

func runDrag(ctx context.Context, ed Editor, d *DragStep, resolve func(string) string) error {
	target := drag.Photo()
	if d.Target != "photo" {
		target = drag.Text(resolve(d.Target))
	}
	moves := max(d.Moves, 1)
	events := make(chan drag.PointerEvent, moves+2)
	from := geometry.Pt{X: d.From[0], Y: d.From[1]}
	events <- drag.PointerEvent{Kind: drag.Press, Pos: from, Contacts: 1}
	for i := 1; i <= moves; i++ {
		f := float64(i) / float64(moves)
		events <- drag.PointerEvent{Kind: drag.MoveTo, Contacts: 1, Pos: geometry.Pt{
			X: from.X + (d.To[0]-from.X)*f,
			Y: from.Y + (d.To[1]-from.Y)*f,
		}}
	}
	events <- drag.PointerEvent{Kind: drag.Release}
	close(events)
	return ed.Drag().Track(ctx, target, ed.PreviewSize(), events)
}
