/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package recipe

import (
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"cardcomposer/internal/domain"
	"cardcomposer/internal/drag"
	"cardcomposer/internal/geometry"
	"cardcomposer/internal/layers"
)

type editor struct {
	store *layers.Store
	ctl   *drag.Controller
}

func (e editor) Store() *layers.Store       { return e.store }
func (e editor) Drag() *drag.Controller     { return e.ctl }
func (e editor) PreviewSize() geometry.Size { return geometry.Size{W: 400, H: 600} }

func newEditor(t *testing.T) editor {
	t.Helper()
	s := layers.NewStore()
	s.SetTemplate(domain.NewTemplate("t", "T", domain.NewBitmap(image.NewNRGBA(image.Rect(0, 0, 100, 150)))))
	if err := s.SetPhoto(domain.NewBitmap(image.NewNRGBA(image.Rect(0, 0, 10, 10)))); err != nil {
		t.Fatal(err)
	}
	return editor{store: s, ctl: drag.NewController(s)}
}

const sample = `
template: template1
photo: me.jpg
steps:
  - photo: {x: 0.4, scale: 1.2}
  - zoom: 0.1
  - text: {id: main, text: "Happy 30th!", color: "#ffcc00", font: Inter, size: 0.08}
  - add_text: {as: sig, text: "Love, Sam", y: 0.85}
  - reorder: {id: sig, z: 0}
  - drag: {target: sig, from: [100, 100], to: [140, 40], moves: 4}
  - drag: {target: photo, from: [0, 0], to: [-40, 0]}
export: [png, jpeg]
`

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestApplySample(t *testing.T) {
	r, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Template != "template1" || r.Photo != "me.jpg" || len(r.Export) != 2 {
		t.Fatalf("header = %+v", r)
	}
	ed := newEditor(t)
	if err := r.Apply(context.Background(), ed); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p := ed.store.Photo()
	if !near(p.Scale, 1.3) || !near(p.CenterX, 0.3) {
		t.Fatalf("photo = %+v", p)
	}
	texts := ed.store.Texts()
	if len(texts) != 2 {
		t.Fatalf("texts = %d", len(texts))
	}
	sig, main := texts[0], texts[1]
	if main.ID != domain.MainTextLayerID || main.Text != "Happy 30th!" || main.FontFamily != domain.FamilyInter {
		t.Fatalf("main = %+v", main)
	}
	if main.Color.Hex() != "#ffcc00" || main.FontSizeFraction != 0.08 {
		t.Fatalf("main style = %s %v", main.Color.Hex(), main.FontSizeFraction)
	}
	if sig.Text != "Love, Sam" || !near(sig.X, 0.5) || !near(sig.Y, 0.75) {
		t.Fatalf("sig = %+v", sig)
	}
	if ed.ctl.Active() {
		t.Fatal("drag left active")
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"two actions":      "steps:\n  - zoom: 0.1\n    reset_photo: true\n",
		"no action":        "steps:\n  - {}\n",
		"text without id":  "steps:\n  - text: {text: hi}\n",
		"drag w/o target":  "steps:\n  - drag: {from: [0,0], to: [1,1]}\n",
		"not yaml mapping": "steps: [[[",
		"bad color":        "steps:\n  - text: {id: main, color: \"#12\"}\n",
	}
	for name, in := range cases {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrInvalidRecipe) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestApplyStopsAtFailingStep(t *testing.T) {
	r, err := Parse([]byte("steps:\n  - text: {id: main, font: Comic Sans}\n  - zoom: 0.5\n"))
	if err != nil {
		t.Fatal(err)
	}
	ed := newEditor(t)
	if err := r.Apply(context.Background(), ed); !errors.Is(err, domain.ErrUnsupportedFamily) {
		t.Fatalf("err = %v", err)
	}
	if ed.store.Photo().Scale != 1 {
		t.Fatal("steps after the failure ran")
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "card.yaml")
	if err := os.WriteFile(p, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(p)
	if err != nil || len(r.Steps) != 7 {
		t.Fatalf("load = %v, %v", r, err)
	}
}
