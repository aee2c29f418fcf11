/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// Format is an export encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// JPEGQuality is the fixed quality used for lossy export.
const JPEGQuality = 95

// BaseName is the file name stem of every exported card.
const BaseName = "birthday-card"

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts png, jpeg and jpg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Filename is the suggested download name, e.g. birthday-card.jpeg.
func (f Format) Filename() string { return BaseName + "." + string(f) }

// MIMEType returns the media type of the encoded bytes.
func (f Format) MIMEType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) imaging() (imaging.Format, []imaging.EncodeOption, error) {
	switch f {
	case FormatPNG:
		return imaging.PNG, nil, nil
	case FormatJPEG:
		return imaging.JPEG, []imaging.EncodeOption{imaging.JPEGQuality(JPEGQuality)}, nil
	default:
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}
