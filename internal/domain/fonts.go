/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FontFamily names one of the supported text families.
type FontFamily string

const (
	FamilyPlayfairDisplay FontFamily = "Playfair Display"
	FamilyInter           FontFamily = "Inter"
)

var ErrUnsupportedFamily = errors.New("unsupported font family")

// Families lists the supported families in stable order.
func Families() []FontFamily { return []FontFamily{FamilyPlayfairDisplay, FamilyInter} }

// Valid reports whether f is a supported family.
func (f FontFamily) Valid() bool {
	for _, s := range Families() {
		if f == s {
			return true
		}
	}
	return false
}

// ParseFontFamily matches a family name case-insensitively.
func ParseFontFamily(s string) (FontFamily, error) {
	for _, f := range Families() {
		if strings.EqualFold(strings.TrimSpace(s), string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFamily, s)
}
