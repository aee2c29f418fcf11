/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package thumbcache keeps rendered template-picker thumbnails in a local
// SQLite database. The cache is disposable: deleting the file only costs a
// re-render.
package thumbcache

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "modernc.org/sqlite"

	"cardcomposer/internal/domain"
	applog "cardcomposer/internal/log"
)

const (
	FileName = "thumbs.sqlite"

	// DefaultMaxBytes caps the summed blob size before LRU eviction kicks in.
	DefaultMaxBytes = 32 << 20
)

var ErrInvalidKey = errors.New("invalid thumbnail key")

// Key identifies one thumbnail variant. Ref is the template's asset
// reference, so a catalog pointing an id at a new image misses the cache.
type Key struct {
	TemplateID string
	Ref        string
	W, H       int
}

func (k Key) valid() bool {
	return strings.TrimSpace(k.TemplateID) != "" && k.W > 0 && k.H > 0
}

// Cache is a size-capped LRU of PNG thumbnails.
type Cache struct {
	db       *sql.DB
	path     string
	maxBytes int64
	now      func() time.Time
	log      *slog.Logger
	mu       sync.Mutex
}

// Open creates or opens the cache database inside dir. maxBytes <= 0 uses
// DefaultMaxBytes.
func Open(dir string, maxBytes int64) (*Cache, error) {
	l := applog.WithOperation(applog.WithComponent("thumbcache"), "open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.Error("create cache dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	l.Debug("cache ready", slog.String("path", path))
	return &Cache{db: db, path: path, maxBytes: maxBytes, now: time.Now, log: applog.WithComponent("thumbcache")}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS thumbs (
			id          INTEGER PRIMARY KEY,
			template_id TEXT    NOT NULL,
			ref         TEXT    NOT NULL DEFAULT '',
			w           INTEGER NOT NULL,
			h           INTEGER NOT NULL,
			blob        BLOB    NOT NULL,
			size        INTEGER NOT NULL,
			updated_at  TEXT    NOT NULL,
			last_access INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_thumbs_variant ON thumbs(template_id, ref, w, h);`,
		`CREATE INDEX IF NOT EXISTS idx_thumbs_access ON thumbs(last_access);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure thumbs schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file location.
func (c *Cache) Path() string { return c.path }

// Close releases the database.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached blob for k and marks it recently used.
func (c *Cache) Get(ctx context.Context, k Key) ([]byte, bool, error) {
	if !k.valid() {
		return nil, false, fmt.Errorf("%w: %+v", ErrInvalidKey, k)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT blob FROM thumbs WHERE template_id=? AND ref=? AND w=? AND h=?`,
		k.TemplateID, k.Ref, k.W, k.H).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query thumb: %w", err)
	}
	_, _ = c.db.ExecContext(ctx, `UPDATE thumbs SET last_access=? WHERE template_id=? AND ref=? AND w=? AND h=?`,
		c.now().UnixNano(), k.TemplateID, k.Ref, k.W, k.H)
	return blob, true, nil
}

// Put upserts a blob and evicts least recently used rows above the cap.
func (c *Cache) Put(ctx context.Context, k Key, blob []byte) error {
	if !k.valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidKey, k)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	_, err := c.db.ExecContext(ctx, `INSERT INTO thumbs(template_id,ref,w,h,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(template_id,ref,w,h) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		k.TemplateID, k.Ref, k.W, k.H, blob, len(blob), now.UTC().Format(time.RFC3339), now.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert thumb: %w", err)
	}
	return c.evictLocked(ctx, c.maxBytes)
}

// GetOrCreate returns the cached blob or generates, stores and returns it.
func (c *Cache) GetOrCreate(ctx context.Context, k Key, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, ok, err := c.Get(ctx, k); err != nil {
		return nil, err
	} else if ok {
		return b, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Put(ctx, k, data); err != nil {
		// A cache write failure is not fatal for the caller.
		c.log.Warn("store thumb failed", slog.String("template", k.TemplateID), slog.Any("err", err))
	}
	return data, nil
}

// TotalBytes returns the summed size of all cached blobs.
func (c *Cache) TotalBytes(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbs`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Evict deletes least recently used rows until the total is <= capBytes.
func (c *Cache) Evict(ctx context.Context, capBytes int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(ctx, capBytes)
}

func (c *Cache) evictLocked(ctx context.Context, capBytes int64) error {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbs`).Scan(&total); err != nil {
		return fmt.Errorf("sum thumbs size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT id, size FROM thumbs ORDER BY last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the single connection must be free before writing
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM thumbs WHERE id IN (?` + strings.Repeat(",?", len(victims)-1) + `)`
	if _, err := c.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	c.log.Debug("evicted", slog.Int("rows", len(victims)), slog.Int64("cap", capBytes))
	return nil
}

// Render produces a PNG thumbnail that covers w x h, cropped around the
// center like the template picker tiles.
func Render(bmp domain.Bitmap, w, h int) ([]byte, error) {
	if bmp.Empty() {
		return nil, errors.New("thumbnail source is empty")
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("thumbnail size %dx%d", w, h)
	}
	img := imaging.Fill(bmp.Image, w, h, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
