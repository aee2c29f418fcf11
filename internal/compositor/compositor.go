/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package compositor flattens a layer snapshot into a raster of any size.
//
// Paint order, bottom to top:
//  1. photo, centered at its fraction position, height = scale * H
//  2. template, covering the whole raster
//  3. text layers in ascending z-order, each over a blurred black shadow
//
// The same snapshot rendered at the same size always yields identical pixels.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/disintegration/imaging"

	"cardcomposer/internal/domain"
	"cardcomposer/internal/geometry"
	"cardcomposer/internal/layers"
	applog "cardcomposer/internal/log"
	"cardcomposer/internal/textlayout"
)

var (
	ErrNotReady    = errors.New("template not ready")
	ErrInvalidSize = errors.New("render size must be positive")
)

// DefaultShadowSigma is the shadow blur at native template resolution.
const DefaultShadowSigma = 4.0

var shadowColor = color.NRGBA{A: 0xff}

// Compositor renders snapshots. It is safe for concurrent use.
type Compositor struct {
	fonts       *textlayout.FontLibrary
	shadowSigma float64
	log         *slog.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithShadowSigma overrides the shadow blur at native resolution. Zero
// disables the shadow.
func WithShadowSigma(sigma float64) Option {
	return func(c *Compositor) { c.shadowSigma = math.Max(0, sigma) }
}

// New returns a compositor drawing text with fonts. A nil library gets the
// bundled fallbacks.
func New(fonts *textlayout.FontLibrary, opts ...Option) *Compositor {
	if fonts == nil {
		fonts = textlayout.NewFontLibrary()
	}
	c := &Compositor{fonts: fonts, shadowSigma: DefaultShadowSigma, log: applog.WithComponent("compositor")}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Render paints snap into a new w x h raster. The canvas starts fully
// transparent.
func (c *Compositor) Render(snap layers.Snapshot, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	if !snap.Template.Ready() {
		return nil, ErrNotReady
	}
	start := time.Now()
	size := geometry.Size{W: w, H: h}
	canvas := imaging.New(w, h, color.NRGBA{})

	if p := snap.Photo; p != nil && !p.Bitmap.Empty() {
		canvas = drawPhoto(canvas, p, size)
	}

	tpl := snap.Template
	// crop is in template pixels; it is scaled to fill the whole raster
	crop := geometry.CoverRect(tpl.Bitmap.Width, tpl.Bitmap.Height, size).Round()
	if crop.Dx() > 0 && crop.Dy() > 0 {
		src := tpl.Bitmap.Image
		crop = crop.Add(src.Bounds().Min)
		scaled := imaging.Resize(imaging.Crop(src, crop), w, h, imaging.Lanczos)
		canvas = imaging.Overlay(canvas, scaled, image.Point{}, 1.0)
	}

	texts := append([]domain.TextLayer(nil), snap.Texts...)
	sort.SliceStable(texts, func(i, j int) bool { return texts[i].ZOrder < texts[j].ZOrder })
	sigma := c.shadowSigma * float64(h) / float64(tpl.NativeHeight)
	for _, t := range texts {
		var err error
		canvas, err = c.drawText(canvas, t, size, sigma)
		if err != nil {
			return nil, fmt.Errorf("text layer %s: %w", t.ID, err)
		}
	}

	c.log.Debug("rendered",
		slog.String("template", tpl.ID),
		slog.Int("w", w), slog.Int("h", h),
		slog.Int("texts", len(texts)),
		slog.Duration("took", time.Since(start)))
	return canvas, nil
}

func drawPhoto(canvas *image.NRGBA, p *domain.PhotoLayer, size geometry.Size) *image.NRGBA {
	r := geometry.PhotoRect(p.Bitmap.Width, p.Bitmap.Height, p.CenterX, p.CenterY, p.Scale, size).Round()
	if r.Dx() <= 0 || r.Dy() <= 0 || !r.Overlaps(canvas.Bounds()) {
		return canvas
	}
	scaled := imaging.Resize(p.Bitmap.Image, r.Dx(), r.Dy(), imaging.Lanczos)
	return imaging.Overlay(canvas, scaled, r.Min, 1.0)
}

func (c *Compositor) drawText(canvas *image.NRGBA, t domain.TextLayer, size geometry.Size, sigma float64) (*image.NRGBA, error) {
	px := math.Round(t.FontSizeFraction * float64(size.H))
	if px < 1 || t.Text == "" {
		return canvas, nil
	}
	face, err := c.fonts.Face(t.FontFamily, px)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	block := textlayout.Layout(face, t.Text)
	anchor := geometry.PointToPixels(t.X, t.Y, size)
	origin := image.Pt(int(math.Round(anchor.X)), int(math.Round(anchor.Y)))

	if sigma > 0 {
		pad := int(math.Ceil(3 * sigma))
		tile := image.NewNRGBA(image.Rect(0, 0, block.Width+2*pad, block.Height+2*pad))
		if err := textlayout.Draw(tile, face, block, image.Pt(pad, pad), shadowColor); err != nil {
			return nil, err
		}
		shadow := imaging.Blur(tile, sigma)
		canvas = imaging.Overlay(canvas, shadow, origin.Sub(image.Pt(pad, pad)), 1.0)
	}
	if err := textlayout.Draw(canvas, face, block, origin, t.Color.NRGBA()); err != nil {
		return nil, err
	}
	return canvas, nil
}
