/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package assets turns asset references from the template catalog or an
// upload into decoded bitmaps.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("asset not found")
	ErrUnsupportedRef = errors.New("unsupported asset reference")
)

// MaxAssetBytes bounds how much is read for a single asset.
const MaxAssetBytes = 64 << 20

// Resolver opens the bytes behind an asset reference.
type Resolver interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ref string) (io.ReadCloser, error)

func (f ResolverFunc) Open(ctx context.Context, ref string) (io.ReadCloser, error) { return f(ctx, ref) }

// DirResolver serves references relative to Root. References may carry a
// leading slash, as catalog entries like "/templates/gold.png" do; they never
// escape Root.
type DirResolver struct {
	Root string
}

func (d DirResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return f, nil
}

func (d DirResolver) path(ref string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(strings.TrimPrefix(ref, "file://")))
	rel := strings.TrimPrefix(clean, string(filepath.Separator))
	if rel == "" || rel == "." {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
	}
	return filepath.Join(d.Root, rel), nil
}

// HTTPResolver fetches absolute http(s) references, or references relative
// to BaseURL when one is set.
type HTTPResolver struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver with the given request timeout.
// baseURL may include a trailing slash; it will be normalized.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPResolver{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	raw := ref
	if !isRemote(ref) {
		if h.BaseURL == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
		}
		raw = h.BaseURL + "/" + strings.TrimLeft(ref, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRef, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u.Redacted())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: %s", u.Redacted(), resp.Status)
	}
	return resp.Body, nil
}

// MuxResolver sends http(s) references to Remote and everything else to
// Local.
type MuxResolver struct {
	Local  Resolver
	Remote Resolver
}

func (m MuxResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	r := m.Local
	if isRemote(ref) {
		r = m.Remote
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
	}
	return r.Open(ctx, ref)
}

// ChainResolver tries each resolver in turn, moving on while a reference is
// missing or unsupported. Other errors stop the chain.
type ChainResolver []Resolver

func (c ChainResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	err := fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
	for _, r := range c {
		if r == nil {
			continue
		}
		var rc io.ReadCloser
		rc, err = r.Open(ctx, ref)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnsupportedRef) {
			return nil, err
		}
	}
	return nil, err
}

func isRemote(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// ReadAll opens ref and reads at most MaxAssetBytes of it.
func ReadAll(ctx context.Context, r Resolver, ref string) ([]byte, error) {
	rc, err := r.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if len(data) > MaxAssetBytes {
		return nil, fmt.Errorf("asset %s exceeds %d bytes", ref, MaxAssetBytes)
	}
	return data, nil
}
