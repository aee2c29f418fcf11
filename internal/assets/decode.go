/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	_ "image/gif"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"cardcomposer/internal/domain"
)

var ErrDecode = errors.New("could not decode image")

// Decoder turns raw bytes into a bitmap.
type Decoder interface {
	Decode(data []byte) (domain.Bitmap, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(data []byte) (domain.Bitmap, error)

func (f DecoderFunc) Decode(data []byte) (domain.Bitmap, error) { return f(data) }

// ImageDecoder decodes PNG, JPEG, GIF, WebP, BMP and TIFF, applying the
// EXIF orientation of JPEG photos.
type ImageDecoder struct{}

func (ImageDecoder) Decode(data []byte) (domain.Bitmap, error) { return Decode(bytes.NewReader(data)) }

// Decode reads one image from r.
func Decode(r io.Reader) (domain.Bitmap, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return domain.Bitmap{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bmp := domain.NewBitmap(img)
	if bmp.Empty() {
		return domain.Bitmap{}, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return bmp, nil
}

// Load resolves ref and decodes it.
func Load(ctx context.Context, r Resolver, d Decoder, ref string) (domain.Bitmap, error) {
	data, err := ReadAll(ctx, r, ref)
	if err != nil {
		return domain.Bitmap{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Bitmap{}, err
	}
	return d.Decode(data)
}
