/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cardcomposer/internal/assets"
	"cardcomposer/internal/catalog"
	"cardcomposer/internal/compositor"
	"cardcomposer/internal/domain"
	"cardcomposer/internal/export"
	"cardcomposer/internal/thumbcache"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeAssets serves PNGs by reference; refs listed in gates block until the
// gate channel is closed.
type fakeAssets struct {
	mu    sync.Mutex
	files map[string][]byte
	gates map[string]chan struct{}
	opens atomic.Int32
}

func (f *fakeAssets) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	f.opens.Add(1)
	f.mu.Lock()
	gate := f.gates[ref]
	data, ok := f.files[ref]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, assets.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`[
		{"id":"a","name":"A","img":"/a.png"},
		{"id":"b","name":"B","img":"/b.png"},
		{"id":"slow","name":"Slow","img":"/slow.png"},
		{"id":"gone","name":"Gone","img":"/gone.png"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type fixture struct {
	s      *Session
	assets *fakeAssets
	notes  *RecordingNotifier
	saved  []export.Result
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		assets: &fakeAssets{
			files: map[string][]byte{"/a.png": pngOf(t, 100, 150), "/b.png": pngOf(t, 200, 100), "/slow.png": pngOf(t, 50, 50)},
			gates: map[string]chan struct{}{},
		},
		notes: &RecordingNotifier{},
	}
	fx.s = New(Options{}, Deps{
		Catalog:  testCatalog(t),
		Resolver: fx.assets,
		Notifier: fx.notes,
		Saver: export.SaverFunc(func(_ context.Context, r export.Result) error {
			fx.saved = append(fx.saved, r)
			return nil
		}),
	})
	t.Cleanup(fx.s.Close)
	return fx
}

func wait(t *testing.T, p *Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestSelectTemplateInstallsAndResets(t *testing.T) {
	fx := newFixture(t)
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "a")); err != nil {
		t.Fatalf("select: %v", err)
	}
	tpl := fx.s.Store().Template()
	if tpl == nil || tpl.ID != "a" || tpl.NativeWidth != 100 || tpl.NativeHeight != 150 {
		t.Fatalf("template = %+v", tpl)
	}
	fx.s.AddText()
	if err := wait(t, fx.s.UploadPhoto(context.Background(), pngOf(t, 10, 10))); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "b")); err != nil {
		t.Fatalf("select b: %v", err)
	}
	if fx.s.Store().Photo() != nil || len(fx.s.Store().Texts()) != 1 {
		t.Fatal("template switch did not reset layers")
	}
}

func TestLastTemplateSelectionWins(t *testing.T) {
	fx := newFixture(t)
	gate := make(chan struct{})
	fx.assets.gates["/slow.png"] = gate

	slow := fx.s.SelectTemplate(context.Background(), "slow")
	fast := fx.s.SelectTemplate(context.Background(), "a")
	if err := wait(t, fast); err != nil {
		t.Fatalf("fast: %v", err)
	}
	close(gate)
	if err := wait(t, slow); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("slow err = %v", err)
	}
	if id := fx.s.Store().Template().ID; id != "a" {
		t.Fatalf("template = %s, want a", id)
	}
}

func TestTemplateFailureKeepsState(t *testing.T) {
	fx := newFixture(t)
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "a")); err != nil {
		t.Fatal(err)
	}
	rev := fx.s.Store().Revision()
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "gone")); !errors.Is(err, assets.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if fx.s.Store().Template().ID != "a" || fx.s.Store().Revision() != rev {
		t.Fatal("failed load changed the store")
	}
	n, _ := fx.notes.Last()
	if n.Level != LevelError || n.Description != "Could not load the template image." {
		t.Fatalf("notification = %+v", n)
	}
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "nope")); !errors.Is(err, catalog.ErrUnknownID) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestUploadPhoto(t *testing.T) {
	fx := newFixture(t)
	if err := wait(t, fx.s.UploadPhoto(context.Background(), pngOf(t, 40, 30))); err != nil {
		t.Fatalf("upload: %v", err)
	}
	p := fx.s.Store().Photo()
	if p == nil || p.Bitmap.Width != 40 || p.Scale != 1 || p.CenterX != 0.5 {
		t.Fatalf("photo = %+v", p)
	}
	if n, _ := fx.notes.Last(); n.Title != "Profile image loaded!" {
		t.Fatalf("notification = %+v", n)
	}
	if err := wait(t, fx.s.UploadPhoto(context.Background(), []byte("garbage"))); !errors.Is(err, assets.ErrDecode) {
		t.Fatalf("garbage err = %v", err)
	}
	if fx.s.Store().Photo().Bitmap.Width != 40 {
		t.Fatal("failed upload replaced the photo")
	}
	if n, _ := fx.notes.Last(); n.Level != LevelError {
		t.Fatalf("notification = %+v", n)
	}
}

func TestUploadSupersededByNewerUploadOrTemplate(t *testing.T) {
	fx := newFixture(t)
	gate := make(chan struct{})
	slowData := pngOf(t, 7, 7)
	fx.s.deps.Decoder = assets.DecoderFunc(func(data []byte) (domain.Bitmap, error) {
		if bytes.Equal(data, slowData) {
			<-gate
		}
		return assets.ImageDecoder{}.Decode(data)
	})

	slow := fx.s.UploadPhoto(context.Background(), slowData)
	fast := fx.s.UploadPhoto(context.Background(), pngOf(t, 9, 9))
	if err := wait(t, fast); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := wait(t, slow); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("slow err = %v", err)
	}
	if w := fx.s.Store().Photo().Bitmap.Width; w != 9 {
		t.Fatalf("photo width = %d, want 9", w)
	}

	gate2 := make(chan struct{})
	slowData = pngOf(t, 11, 11)
	fx.s.deps.Decoder = assets.DecoderFunc(func(data []byte) (domain.Bitmap, error) {
		<-gate2
		return assets.ImageDecoder{}.Decode(data)
	})
	up := fx.s.UploadPhoto(context.Background(), slowData)
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "a")); err != nil {
		t.Fatal(err)
	}
	close(gate2)
	if err := wait(t, up); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("upload across template change err = %v", err)
	}
	if fx.s.Store().Photo() != nil {
		t.Fatal("stale photo installed on the new template")
	}
}

func TestPreviewSizing(t *testing.T) {
	fx := newFixture(t)
	if got := fx.s.PreviewSize(); got.W != 400 || got.H != 570 {
		t.Fatalf("placeholder size = %+v", got)
	}
	if _, err := fx.s.Preview(); !errors.Is(err, compositor.ErrNotReady) {
		t.Fatalf("preview err = %v", err)
	}
	fx.assets.files["/a.png"] = pngOf(t, 1000, 1500)
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "a")); err != nil {
		t.Fatal(err)
	}
	if got := fx.s.PreviewSize(); got.W != 380 || got.H != 570 {
		t.Fatalf("preview size = %+v", got)
	}
	img, err := fx.s.Preview()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if img.Bounds().Dx() != 380 || img.Bounds().Dy() != 570 {
		t.Fatalf("preview bounds = %v", img.Bounds())
	}
}

func TestExportNotifications(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.s.Export(context.Background(), export.FormatPNG); !errors.Is(err, export.ErrTemplateNotReady) {
		t.Fatalf("err = %v", err)
	}
	if n, _ := fx.notes.Last(); n.Title != "Download failed" || n.Description != "Template not loaded" {
		t.Fatalf("notification = %+v", n)
	}
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "a")); err != nil {
		t.Fatal(err)
	}
	res, err := fx.s.Export(context.Background(), export.FormatJPEG)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Width != 100 || res.Height != 150 || len(fx.saved) != 1 {
		t.Fatalf("result %dx%d saved=%d", res.Width, res.Height, len(fx.saved))
	}
	n, _ := fx.notes.Last()
	if n.Title != "Image downloaded!" || !strings.Contains(n.Description, "birthday-card.jpeg") {
		t.Fatalf("notification = %+v", n)
	}
}

func TestThumbnailUsesCache(t *testing.T) {
	fx := newFixture(t)
	cache, err := thumbcache.Open(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	fx.s.deps.Thumbs = cache
	for i := 0; i < 2; i++ {
		data, err := fx.s.Thumbnail(context.Background(), "b", 150, 180)
		if err != nil {
			t.Fatalf("thumbnail: %v", err)
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil || cfg.Width != 150 || cfg.Height != 180 {
			t.Fatalf("thumb %dx%d err=%v", cfg.Width, cfg.Height, err)
		}
	}
	if n := fx.assets.opens.Load(); n != 1 {
		t.Fatalf("asset opened %d times", n)
	}
}

func TestAddTextNotifies(t *testing.T) {
	fx := newFixture(t)
	if err := wait(t, fx.s.SelectTemplate(context.Background(), "a")); err != nil {
		t.Fatal(err)
	}
	id := fx.s.AddText()
	if fx.s.Store().Selected() != id {
		t.Fatal("new text not selected")
	}
	if n, _ := fx.notes.Last(); n.Title != "Added new text overlay!" {
		t.Fatalf("notification = %+v", n)
	}
}
