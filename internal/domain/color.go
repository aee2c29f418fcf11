/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package domain

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a straight (non-premultiplied) RGBA color.
type Color struct {
	R, G, B, A uint8
}

var (
	White = Color{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Black = Color{A: 0xff}
)

// Palette is the set of swatches offered by the text controls.
var Palette = []Color{
	White,
	{R: 0xff, G: 0xd1, B: 0x66, A: 0xff},
	{R: 0xef, G: 0x47, B: 0x6f, A: 0xff},
	{R: 0x06, G: 0xd6, B: 0xa0, A: 0xff},
	{R: 0x11, G: 0x8a, B: 0xb2, A: 0xff},
	{R: 0x22, G: 0x22, B: 0x22, A: 0xff},
	{R: 0x7d, G: 0x5f, B: 0xff, A: 0xff},
}

var ErrInvalidColor = errors.New("invalid hex color")

// ParseHexColor parses #rgb, #rrggbb and #rrggbbaa (the leading # is optional).
func ParseHexColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]}) + "ff"
	case 6:
		h += "ff"
	case 8:
	default:
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Hex formats the color as #rrggbb, or #rrggbbaa when not fully opaque.
func (c Color) Hex() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// NRGBA converts to the standard library color type used by the rasterizer.
func (c Color) NRGBA() color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

// UnmarshalText accepts hex notation, so colors read naturally in YAML recipes.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseHexColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.Hex()), nil }
