/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model of a card composition: the template
// that defines the canonical coordinate space, the optional photo and the
// text layers. All positions and sizes are fractions of the template's
// native width or height, never absolute pixels.

import "image"

// Bitmap is a decoded image handle together with its intrinsic size.
type Bitmap struct {
	Image  image.Image
	Width  int
	Height int
}

// NewBitmap wraps img and records its bounds as the intrinsic size.
func NewBitmap(img image.Image) Bitmap {
	if img == nil {
		return Bitmap{}
	}
	b := img.Bounds()
	return Bitmap{Image: img, Width: b.Dx(), Height: b.Dy()}
}

// Empty reports whether the bitmap has no pixels to draw.
func (b Bitmap) Empty() bool { return b.Image == nil || b.Width <= 0 || b.Height <= 0 }

// Template is the background/frame image plus its native pixel size.
// It is immutable once created.
type Template struct {
	ID           string
	DisplayName  string
	Bitmap       Bitmap
	NativeWidth  int
	NativeHeight int
}

// NewTemplate builds a template whose native size is the bitmap size.
func NewTemplate(id, name string, bmp Bitmap) Template {
	return Template{ID: id, DisplayName: name, Bitmap: bmp, NativeWidth: bmp.Width, NativeHeight: bmp.Height}
}

// Ready reports whether the template is decoded and has known native dimensions.
func (t *Template) Ready() bool {
	return t != nil && !t.Bitmap.Empty() && t.NativeWidth > 0 && t.NativeHeight > 0
}

// PhotoLayer is the single uploaded photo. Scale 1.0 means the rendered
// height equals the raster height; width follows the bitmap aspect ratio.
type PhotoLayer struct {
	Bitmap  Bitmap
	CenterX float64
	CenterY float64
	Scale   float64
}

// TextLayer is one text overlay anchored at its top-left corner.
type TextLayer struct {
	ID               string
	Text             string
	X                float64
	Y                float64
	FontFamily       FontFamily
	Color            Color
	FontSizeFraction float64 // font size as a fraction of the raster height
	ZOrder           int
}

// PhotoPatch is a partial update of the photo transform. Nil fields are kept.
type PhotoPatch struct {
	CenterX *float64
	CenterY *float64
	Scale   *float64
}

// TextPatch is a partial update of a text layer. Nil fields are kept.
type TextPatch struct {
	Text             *string
	X                *float64
	Y                *float64
	FontFamily       *FontFamily
	Color            *Color
	FontSizeFraction *float64
}

// Float returns a pointer to v, for building patches inline.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for building patches inline.
func String(v string) *string { return &v }

// Photo transform limits and defaults.
const (
	MinPhotoScale     = 0.32
	MaxPhotoScale     = 2.4
	DefaultPhotoScale = 1.0
	DefaultPhotoX     = 0.5
	DefaultPhotoY     = 0.5
)

// Font size limits, as fractions of the raster height.
const (
	MinFontSizeFraction = 0.01
	MaxFontSizeFraction = 0.5
)

// MainTextLayerID identifies the text layer every template starts with.
const MainTextLayerID = "main"

// DefaultTextLayer is the layer installed whenever a template is selected.
func DefaultTextLayer() TextLayer {
	return TextLayer{
		ID:               MainTextLayerID,
		Text:             "Happy Birthday!",
		X:                0.15,
		Y:                0.44,
		FontFamily:       FamilyPlayfairDisplay,
		Color:            White,
		FontSizeFraction: 0.064,
		ZOrder:           0,
	}
}

// NewTextLayer returns the layer created by "add text", without id or z-order.
func NewTextLayer() TextLayer {
	return TextLayer{
		Text:             "Write here",
		X:                0.4,
		Y:                0.6,
		FontFamily:       FamilyInter,
		Color:            Color{R: 0x22, G: 0x22, B: 0x22, A: 0xff},
		FontSizeFraction: 0.048,
	}
}
