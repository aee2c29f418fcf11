/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geometry is the single authority for converting between the
// template-relative fraction space and pixel spaces (preview or export).
//
// Every position stored in the layer model is a fraction of the template's
// width or height. A fraction (fx, fy) rendered into a raster of size (W, H)
// lands at pixel (fx*W, fy*H); no other formula is used anywhere.
package geometry

import (
	"image"
	"math"
)

// Pt is a 2D point in pixel space.
type Pt struct{ X, Y float64 }

// Size is a width/height pair in pixels.
type Size struct{ W, H int }

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Pt    { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt    { return Pt{r.X + r.W, r.Y + r.H} }
func (r Rect) Center() Pt { return Pt{r.X + r.W/2, r.Y + r.H/2} }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Round snaps the rectangle to whole pixels. The origin and the size are
// rounded independently so that the pixel size of a layer does not depend
// on where it sits on the raster.
func (r Rect) Round() image.Rectangle {
	x := int(math.Round(r.X))
	y := int(math.Round(r.Y))
	return image.Rect(x, y, x+int(math.Round(r.W)), y+int(math.Round(r.H)))
}

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// ToPixelSpace converts a fraction of an axis into pixels along that axis.
func ToPixelSpace(fraction, axisLength float64) float64 { return fraction * axisLength }

// ToFractionSpace converts a pixel offset into a clamped fraction of the axis.
// A non-positive axis has no meaningful fraction and yields 0.
func ToFractionSpace(pixel, axisLength float64) float64 {
	if axisLength <= 0 {
		return 0
	}
	return Clamp01(pixel / axisLength)
}

// DeltaToFraction converts a pixel delta into an unclamped fraction delta.
// Drags accumulate deltas and clamp only the final position.
func DeltaToFraction(deltaPx, axisLength float64) float64 {
	if axisLength <= 0 {
		return 0
	}
	return deltaPx / axisLength
}

// PointToPixels maps a fractional point onto a raster of the given size.
func PointToPixels(fx, fy float64, size Size) Pt {
	return Pt{X: ToPixelSpace(fx, float64(size.W)), Y: ToPixelSpace(fy, float64(size.H))}
}

// PointToFractions maps a pixel point on a raster back into fraction space.
func PointToFractions(p Pt, size Size) (fx, fy float64) {
	return ToFractionSpace(p.X, float64(size.W)), ToFractionSpace(p.Y, float64(size.H))
}

// PreviewScale returns min(maxW/nativeW, maxH/nativeH, 1).
func PreviewScale(nativeW, nativeH, maxW, maxH int) float64 {
	if nativeW <= 0 || nativeH <= 0 || maxW <= 0 || maxH <= 0 {
		return 1
	}
	return math.Min(math.Min(float64(maxW)/float64(nativeW), float64(maxH)/float64(nativeH)), 1)
}

// PreviewBox fits the native template size into the (maxW, maxH) box keeping
// the aspect ratio and never upscaling. Dimensions are rounded to whole
// pixels. When the native size is unknown the box itself is returned so a
// placeholder can be shown at a stable size.
func PreviewBox(nativeW, nativeH, maxW, maxH int) Size {
	if nativeW <= 0 || nativeH <= 0 {
		return Size{W: maxW, H: maxH}
	}
	scale := PreviewScale(nativeW, nativeH, maxW, maxH)
	w := int(math.Round(float64(nativeW) * scale))
	h := int(math.Round(float64(nativeH) * scale))
	return Size{W: max(w, 1), H: max(h, 1)}
}

// PhotoRect computes where a photo lands on a raster of size (W, H): its
// displayed height is H*scale, its width follows the photo's intrinsic
// aspect ratio and it is centered on (centerX*W, centerY*H).
func PhotoRect(intrinsicW, intrinsicH int, centerX, centerY, scale float64, size Size) Rect {
	h := ToPixelSpace(scale, float64(size.H))
	aspect := 1.0
	if intrinsicW > 0 && intrinsicH > 0 {
		aspect = float64(intrinsicW) / float64(intrinsicH)
	}
	w := h * aspect
	c := PointToPixels(centerX, centerY, size)
	return Rect{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h}
}

// CoverRect returns the centered crop of a (srcW, srcH) source whose aspect
// ratio matches the (W, H) target, so that scaling the crop to the target
// covers it completely without distortion.
func CoverRect(srcW, srcH int, size Size) Rect {
	if srcW <= 0 || srcH <= 0 || size.Empty() {
		return Rect{}
	}
	sw, sh := float64(srcW), float64(srcH)
	target := float64(size.W) / float64(size.H)
	if sw/sh > target {
		w := sh * target
		return Rect{X: (sw - w) / 2, Y: 0, W: w, H: sh}
	}
	h := sw / target
	return Rect{X: 0, Y: (sh - h) / 2, W: sw, H: h}
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
