/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/opentype"

	"cardcomposer/internal/domain"
)

var ErrInvalidFontSize = errors.New("font size must be positive")

// FontLibrary maps the supported font families to parsed font data. Cards
// always render bold, so one face per family is enough.
//
// Every family starts with a bundled Go font so rendering never depends on
// files being present; LoadTTF replaces it with the real family.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[domain.FontFamily]*loadedFont
}

type loadedFont struct {
	ot     *opentype.Font
	tt     *truetype.Font
	source string
}

// NewFontLibrary returns a library with the bundled fallbacks installed.
func NewFontLibrary() *FontLibrary {
	fl := &FontLibrary{fonts: make(map[domain.FontFamily]*loadedFont)}
	// Bundled TTFs are known-good; a parse failure here is a build defect.
	if err := fl.LoadBytes(domain.FamilyPlayfairDisplay, gobolditalic.TTF, "gofont:bolditalic"); err != nil {
		panic(err)
	}
	if err := fl.LoadBytes(domain.FamilyInter, gobold.TTF, "gofont:bold"); err != nil {
		panic(err)
	}
	return fl
}

// LoadTTF loads a font file for the given family, replacing the previous one.
func (fl *FontLibrary) LoadTTF(family domain.FontFamily, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.LoadBytes(family, data, path)
}

// LoadBytes parses TTF data for the given family. The data is parsed twice:
// opentype for metrics and measuring, truetype for rasterizing.
func (fl *FontLibrary) LoadBytes(family domain.FontFamily, data []byte, source string) error {
	if !family.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFamily, string(family))
	}
	ot, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", source, err)
	}
	tt, err := freetype.ParseFont(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", source, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[domain.FontFamily]*loadedFont)
	}
	fl.fonts[family] = &loadedFont{ot: ot, tt: tt, source: source}
	return nil
}

// Source reports where the font for family was loaded from.
func (fl *FontLibrary) Source(family domain.FontFamily) string {
	if lf := fl.find(family); lf != nil {
		return lf.source
	}
	return ""
}

func (fl *FontLibrary) find(family domain.FontFamily) *loadedFont {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if lf, ok := fl.fonts[family]; ok {
		return lf
	}
	// Unknown families render with the sans face.
	return fl.fonts[domain.FamilyInter]
}

// Face resolves a family at a pixel size (1 em == sizePx pixels).
func (fl *FontLibrary) Face(family domain.FontFamily, sizePx float64) (*Face, error) {
	if sizePx <= 0 {
		return nil, ErrInvalidFontSize
	}
	lf := fl.find(family)
	if lf == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFamily, string(family))
	}
	face, err := opentype.NewFace(lf.ot, &opentype.FaceOptions{Size: sizePx, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("face %s at %.1fpx: %w", family, sizePx, err)
	}
	m := face.Metrics()
	return &Face{
		Family:  string(family),
		SizePx:  sizePx,
		Face:    face,
		TTF:     lf.tt,
		Ascent:  m.Ascent.Ceil(),
		Descent: m.Descent.Ceil(),
		Height:  m.Height.Ceil(),
	}, nil
}
