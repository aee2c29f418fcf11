/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package thumbcache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"cardcomposer/internal/domain"
)

func openTest(t *testing.T, maxBytes int64) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), maxBytes)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	tick := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return c
}

func TestPutGet(t *testing.T) {
	c := openTest(t, 0)
	ctx := context.Background()
	k := Key{TemplateID: "template1", Ref: "/a.png", W: 150, H: 180}
	if _, ok, err := c.Get(ctx, k); err != nil || ok {
		t.Fatalf("empty get ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, k, []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Put(ctx, k, []byte("two")); err != nil {
		t.Fatalf("put again: %v", err)
	}
	b, ok, err := c.Get(ctx, k)
	if err != nil || !ok || string(b) != "two" {
		t.Fatalf("get = %q ok=%v err=%v", b, ok, err)
	}
	other := k
	other.Ref = "/b.png"
	if _, ok, _ := c.Get(ctx, other); ok {
		t.Fatal("different ref hit the cache")
	}
	if total, _ := c.TotalBytes(ctx); total != 3 {
		t.Fatalf("total = %d", total)
	}
	if err := c.Put(ctx, Key{TemplateID: "x"}, nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("invalid key err = %v", err)
	}
}

func TestGetOrCreateGeneratesOnce(t *testing.T) {
	c := openTest(t, 0)
	ctx := context.Background()
	k := Key{TemplateID: "t", W: 10, H: 10}
	calls := 0
	gen := func(context.Context) ([]byte, error) {
		calls++
		return []byte("thumb"), nil
	}
	for i := 0; i < 3; i++ {
		b, err := c.GetOrCreate(ctx, k, gen)
		if err != nil || string(b) != "thumb" {
			t.Fatalf("GetOrCreate = %q, %v", b, err)
		}
	}
	if calls != 1 {
		t.Fatalf("generator called %d times", calls)
	}
	boom := errors.New("boom")
	if _, err := c.GetOrCreate(ctx, Key{TemplateID: "u", W: 1, H: 1}, func(context.Context) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := openTest(t, 10)
	ctx := context.Background()
	a := Key{TemplateID: "a", W: 1, H: 1}
	b := Key{TemplateID: "b", W: 1, H: 1}
	d := Key{TemplateID: "d", W: 1, H: 1}
	for _, k := range []Key{a, b} {
		if err := c.Put(ctx, k, []byte("1234")); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok, _ := c.Get(ctx, a); !ok {
		t.Fatal("a missing")
	}
	if err := c.Put(ctx, d, []byte("1234")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, b); ok {
		t.Fatal("b should have been evicted")
	}
	for _, k := range []Key{a, d} {
		if _, ok, _ := c.Get(ctx, k); !ok {
			t.Fatalf("%s evicted", k.TemplateID)
		}
	}
	if err := c.Evict(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if total, _ := c.TotalBytes(ctx); total != 0 {
		t.Fatalf("total after full evict = %d", total)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	k := Key{TemplateID: "t", W: 2, H: 2}
	if err := c.Put(context.Background(), k, []byte("x")); err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
	c2, err := Open(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	if _, ok, _ := c2.Get(context.Background(), k); !ok {
		t.Fatal("entry lost after reopen")
	}
}

func TestRenderCoversTile(t *testing.T) {
	bmp := domain.NewBitmap(image.NewNRGBA(image.Rect(0, 0, 400, 200)))
	data, err := Render(bmp, 150, 180)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 150 || cfg.Height != 180 {
		t.Fatalf("size = %dx%d", cfg.Width, cfg.Height)
	}
	if _, err := Render(domain.Bitmap{}, 10, 10); err == nil {
		t.Fatal("expected error for empty bitmap")
	}
}
