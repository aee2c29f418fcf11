/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a card at the template's native resolution,
// encodes it and hands the bytes to a Saver.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"cardcomposer/internal/layers"
	applog "cardcomposer/internal/log"
)

var (
	ErrTemplateNotReady = errors.New("no template loaded")
	ErrEncode           = errors.New("encode failed")
	ErrNoSaver          = errors.New("no saver configured")
)

// Source provides the snapshot to export; *layers.Store satisfies it.
type Source interface {
	Snapshot() layers.Snapshot
}

// Renderer flattens a snapshot; *compositor.Compositor satisfies it.
type Renderer interface {
	Render(snap layers.Snapshot, w, h int) (*image.NRGBA, error)
}

// EncodeFunc writes img to w in the given format.
type EncodeFunc func(w io.Writer, img image.Image, f Format) error

// Encode is the default EncodeFunc: lossless PNG or JPEG at JPEGQuality.
func Encode(w io.Writer, img image.Image, f Format) error {
	imf, opts, err := f.imaging()
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, imf, opts...)
}

// Result is one encoded card.
type Result struct {
	Filename string
	Format   Format
	Data     []byte
	Width    int
	Height   int
}

// Exporter runs the render, encode and save steps.
type Exporter struct {
	renderer Renderer
	saver    Saver
	encode   EncodeFunc
	log      *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithEncoder replaces the image encoder.
func WithEncoder(fn EncodeFunc) Option { return func(e *Exporter) { e.encode = fn } }

// NewExporter returns an exporter that renders with r and stores results with s.
func NewExporter(r Renderer, s Saver, opts ...Option) *Exporter {
	e := &Exporter{renderer: r, saver: s, encode: Encode, log: applog.WithComponent("export")}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export renders src at native size, encodes it as f and saves the result.
// Nothing reaches the saver when rendering or encoding fails.
func (e *Exporter) Export(ctx context.Context, src Source, f Format) (Result, error) {
	res, err := e.Render(ctx, src, f)
	if err != nil {
		return Result{}, err
	}
	if e.saver == nil {
		return Result{}, ErrNoSaver
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := e.saver.Save(ctx, res); err != nil {
		return Result{}, fmt.Errorf("save %s: %w", res.Filename, err)
	}
	e.log.Info("exported", slog.String("file", res.Filename), slog.Int("bytes", len(res.Data)))
	return res, nil
}

// Render produces the encoded result without saving it.
func (e *Exporter) Render(ctx context.Context, src Source, f Format) (Result, error) {
	if _, _, err := f.imaging(); err != nil {
		return Result{}, err
	}
	snap := src.Snapshot()
	if !snap.Template.Ready() {
		return Result{}, ErrTemplateNotReady
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	w, h := snap.Template.NativeWidth, snap.Template.NativeHeight
	start := time.Now()
	img, err := e.renderer.Render(snap, w, h)
	if err != nil {
		return Result{}, fmt.Errorf("render %dx%d: %w", w, h, err)
	}
	var buf bytes.Buffer
	if err := e.encode(&buf, img, f); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrEncode, f, err)
	}
	e.log.Debug("encoded",
		slog.String("format", string(f)),
		slog.Int("w", w), slog.Int("h", h),
		slog.Duration("took", time.Since(start)))
	return Result{Filename: f.Filename(), Format: f, Data: buf.Bytes(), Width: w, Height: h}, nil
}
