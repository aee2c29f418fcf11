/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session wires one editing session together: the layer store,
// template and photo decoding, preview rendering and export.
//
// Decodes run in the background. Each template selection and each upload
// takes a generation number; a result is only applied if no newer request
// of the same kind started meanwhile, and photo results are also dropped
// when the template changed under them.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"cardcomposer/internal/assets"
	"cardcomposer/internal/catalog"
	"cardcomposer/internal/compositor"
	"cardcomposer/internal/domain"
	"cardcomposer/internal/drag"
	"cardcomposer/internal/export"
	"cardcomposer/internal/geometry"
	"cardcomposer/internal/layers"
	applog "cardcomposer/internal/log"
	"cardcomposer/internal/thumbcache"
)

var ErrSuperseded = errors.New("superseded by a newer request")

// Default preview box, in preview pixels.
const (
	DefaultPreviewMaxW = 400
	DefaultPreviewMaxH = 570
)

// Options holds the session's tunables.
type Options struct {
	PreviewMaxW int
	PreviewMaxH int
}

// Deps are the collaborators a session drives. Catalog, Resolver and Saver
// are required for template selection and export; the rest have defaults.
type Deps struct {
	Catalog    *catalog.Catalog
	Resolver   assets.Resolver
	Decoder    assets.Decoder
	Compositor *compositor.Compositor
	Saver      export.Saver
	Notifier   Notifier
	Thumbs     *thumbcache.Cache
}

// Session is one editing session.
type Session struct {
	opts     Options
	deps     Deps
	store    *layers.Store
	drag     *drag.Controller
	exporter *export.Exporter
	log      *slog.Logger

	mu       sync.Mutex
	tplGen   uint64
	photoGen uint64
	wg       sync.WaitGroup
}

// New creates a session with an empty store.
func New(opts Options, deps Deps) *Session {
	if opts.PreviewMaxW <= 0 {
		opts.PreviewMaxW = DefaultPreviewMaxW
	}
	if opts.PreviewMaxH <= 0 {
		opts.PreviewMaxH = DefaultPreviewMaxH
	}
	if deps.Decoder == nil {
		deps.Decoder = assets.ImageDecoder{}
	}
	if deps.Compositor == nil {
		deps.Compositor = compositor.New(nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Log: applog.WithComponent("notify")}
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	store := layers.NewStore()
	return &Session{
		opts:     opts,
		deps:     deps,
		store:    store,
		drag:     drag.NewController(store),
		exporter: export.NewExporter(deps.Compositor, deps.Saver),
		log:      applog.WithComponent("session"),
	}
}

// Store exposes the layer store for direct edits.
func (s *Session) Store() *layers.Store { return s.store }

// Drag exposes the drag controller bound to the store.
func (s *Session) Drag() *drag.Controller { return s.drag }

// Catalog returns the template catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.deps.Catalog }

// Close waits for in-flight decodes to finish.
func (s *Session) Close() { s.wg.Wait() }

// Pending tracks one background decode.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending { return &Pending{done: make(chan struct{})} }

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the request has been applied, dropped or failed.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request finishes or ctx ends. It returns
// ErrSuperseded for results that were dropped as stale.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectTemplate loads the catalog entry id in the background and installs
// it, which resets the photo and text layers. On failure the current state
// is kept and the user is notified.
func (s *Session) SelectTemplate(ctx context.Context, id string) *Pending {
	s.mu.Lock()
	s.tplGen++
	gen := s.tplGen
	s.mu.Unlock()

	p := newPending()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.finish(s.loadTemplate(ctx, id, gen))
	}()
	return p
}

func (s *Session) loadTemplate(ctx context.Context, id string, gen uint64) error {
	l := applog.WithOperation(s.log, "select_template").With(slog.String("template", id))
	entry, err := s.deps.Catalog.Lookup(id)
	if err != nil {
		s.notifyTemplateFailure(l, err)
		return err
	}
	if s.deps.Resolver == nil {
		err := fmt.Errorf("%w: no resolver", assets.ErrUnsupportedRef)
		s.notifyTemplateFailure(l, err)
		return err
	}
	bmp, err := assets.Load(ctx, s.deps.Resolver, s.deps.Decoder, entry.Img)
	if err != nil {
		if s.stale(gen, 0, false) {
			return ErrSuperseded
		}
		s.notifyTemplateFailure(l, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.tplGen {
		l.Debug("stale template result dropped")
		return ErrSuperseded
	}
	s.store.SetTemplate(domain.NewTemplate(entry.ID, entry.Name, bmp))
	l.InfoContext(ctx, "template ready", slog.Int("w", bmp.Width), slog.Int("h", bmp.Height))
	return nil
}

func (s *Session) notifyTemplateFailure(l *slog.Logger, err error) {
	l.Warn("template load failed", slog.Any("err", err))
	s.deps.Notifier.Notify(Notification{Level: LevelError, Title: "Template unavailable", Description: "Could not load the template image."})
}

// stale reports whether a newer template (and, for photos, a newer upload)
// was requested since the given generations were taken.
func (s *Session) stale(tplGen, photoGen uint64, photo bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tplGen != s.tplGen {
		return true
	}
	return photo && photoGen != s.photoGen
}

// UploadPhoto decodes data in the background and installs it as the photo
// at the default transform. The result is dropped if another upload or a
// template selection started meanwhile.
func (s *Session) UploadPhoto(ctx context.Context, data []byte) *Pending {
	s.mu.Lock()
	s.photoGen++
	pgen, tgen := s.photoGen, s.tplGen
	s.mu.Unlock()

	p := newPending()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.finish(s.applyPhoto(ctx, data, tgen, pgen))
	}()
	return p
}

func (s *Session) applyPhoto(ctx context.Context, data []byte, tgen, pgen uint64) error {
	l := applog.WithOperation(s.log, "upload_photo").With(slog.Int("bytes", len(data)))
	if err := ctx.Err(); err != nil {
		return err
	}
	bmp, err := s.deps.Decoder.Decode(data)
	if err != nil {
		if s.stale(tgen, pgen, true) {
			return ErrSuperseded
		}
		l.WarnContext(ctx, "photo decode failed", slog.Any("err", err))
		s.deps.Notifier.Notify(Notification{Level: LevelError, Title: "Upload failed", Description: "Could not read the photo."})
		return err
	}

	s.mu.Lock()
	if tgen != s.tplGen || pgen != s.photoGen {
		s.mu.Unlock()
		l.Debug("stale photo result dropped")
		return ErrSuperseded
	}
	err = s.store.SetPhoto(bmp)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	l.InfoContext(ctx, "photo ready", slog.Int("w", bmp.Width), slog.Int("h", bmp.Height))
	s.deps.Notifier.Notify(Notification{Level: LevelInfo, Title: "Profile image loaded!", Description: "Drag to position and scale."})
	return nil
}

// AddText appends a new text layer, selects it and returns its id.
func (s *Session) AddText() string {
	id := s.store.AddTextLayer()
	s.deps.Notifier.Notify(Notification{Level: LevelInfo, Title: "Added new text overlay!"})
	return id
}

// PreviewSize is the on-screen raster size for the current template. Without
// a template it is the full preview box, the size of the placeholder.
func (s *Session) PreviewSize() geometry.Size {
	t := s.store.Template()
	if !t.Ready() {
		return geometry.PreviewBox(0, 0, s.opts.PreviewMaxW, s.opts.PreviewMaxH)
	}
	return geometry.PreviewBox(t.NativeWidth, t.NativeHeight, s.opts.PreviewMaxW, s.opts.PreviewMaxH)
}

// Preview renders the current state at PreviewSize. It returns
// compositor.ErrNotReady while no template is loaded.
func (s *Session) Preview() (*image.NRGBA, error) {
	snap := s.store.Snapshot()
	if !snap.Template.Ready() {
		return nil, compositor.ErrNotReady
	}
	size := geometry.PreviewBox(snap.Template.NativeWidth, snap.Template.NativeHeight, s.opts.PreviewMaxW, s.opts.PreviewMaxH)
	return s.deps.Compositor.Render(snap, size.W, size.H)
}

// Export renders at native resolution, encodes and saves, notifying the user
// about the outcome.
func (s *Session) Export(ctx context.Context, f export.Format) (export.Result, error) {
	res, err := s.exporter.Export(ctx, s.store, f)
	if err != nil {
		desc := "Could not save the image."
		switch {
		case errors.Is(err, export.ErrTemplateNotReady):
			desc = "Template not loaded"
		case errors.Is(err, export.ErrEncode):
			desc = "Could not encode the image."
		}
		s.log.Warn("export failed", slog.String("format", string(f)), slog.Any("err", err))
		s.deps.Notifier.Notify(Notification{Level: LevelError, Title: "Download failed", Description: desc})
		return export.Result{}, err
	}
	s.deps.Notifier.Notify(Notification{Level: LevelInfo, Title: "Image downloaded!", Description: "Saved as " + res.Filename})
	return res, nil
}

// Thumbnail returns a PNG tile for the template picker, served from the
// thumbnail cache when one is configured.
func (s *Session) Thumbnail(ctx context.Context, id string, w, h int) ([]byte, error) {
	entry, err := s.deps.Catalog.Lookup(id)
	if err != nil {
		return nil, err
	}
	gen := func(ctx context.Context) ([]byte, error) {
		if s.deps.Resolver == nil {
			return nil, fmt.Errorf("%w: no resolver", assets.ErrUnsupportedRef)
		}
		bmp, err := assets.Load(ctx, s.deps.Resolver, s.deps.Decoder, entry.Img)
		if err != nil {
			return nil, err
		}
		return thumbcache.Render(bmp, w, h)
	}
	if s.deps.Thumbs == nil {
		return gen(ctx)
	}
	return s.deps.Thumbs.GetOrCreate(ctx, thumbcache.Key{TemplateID: entry.ID, Ref: entry.Img, W: w, H: h}, gen)
}
