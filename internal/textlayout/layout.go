/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and rasterizes card text.
//
// Text is anchored by the top-left corner of its block: the first baseline
// sits Ascent pixels below the anchor and further lines advance by the
// face's line height. No wrapping is done; only explicit newlines break.
package textlayout

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// Face is a font resolved at one pixel size.
type Face struct {
	Family  string
	SizePx  float64
	Face    font.Face
	TTF     *truetype.Font
	Ascent  int
	Descent int
	Height  int
}

// Close releases the underlying face.
func (f *Face) Close() error {
	if f == nil || f.Face == nil {
		return nil
	}
	return f.Face.Close()
}

// Measure returns the advance width of s in pixels, rounded up.
func (f *Face) Measure(s string) int {
	return font.MeasureString(f.Face, s).Ceil()
}

// Line is one laid out line of a block.
type Line struct {
	Text     string
	Width    int
	Baseline int // offset from the block top
}

// Block is the result of laying out a text relative to its top-left anchor.
type Block struct {
	Lines  []Line
	Width  int
	Height int
}

// Bounds returns the block rectangle when anchored at (x, y).
func (b Block) Bounds(x, y int) image.Rectangle {
	return image.Rect(x, y, x+b.Width, y+b.Height)
}

// Layout splits text on newlines and measures every line.
func Layout(f *Face, text string) Block {
	var b Block
	parts := strings.Split(text, "\n")
	lineH := max(f.Height, f.Ascent+f.Descent)
	for i, p := range parts {
		w := f.Measure(p)
		b.Lines = append(b.Lines, Line{Text: p, Width: w, Baseline: f.Ascent + i*lineH})
		b.Width = max(b.Width, w)
	}
	b.Height = (len(parts)-1)*lineH + f.Ascent + f.Descent
	return b
}

// Draw rasterizes a laid out block onto dst with its top-left corner at
// origin.
func Draw(dst draw.Image, f *Face, b Block, origin image.Point, c color.Color) error {
	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(f.TTF)
	ctx.SetFontSize(f.SizePx)
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)
	ctx.SetSrc(image.NewUniform(c))
	ctx.SetHinting(font.HintingFull)
	for _, ln := range b.Lines {
		if ln.Text == "" {
			continue
		}
		if _, err := ctx.DrawString(ln.Text, freetype.Pt(origin.X, origin.Y+ln.Baseline)); err != nil {
			return fmt.Errorf("draw %q: %w", ln.Text, err)
		}
	}
	return nil
}
