/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package layers holds the authoritative, session-scoped state of a card:
// the template, the optional photo and the ordered text layers.
package layers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"cardcomposer/internal/domain"
	"cardcomposer/internal/geometry"
)

var (
	ErrLayerNotFound = errors.New("text layer not found")
	ErrNoPhoto       = errors.New("no photo installed")
	ErrEmptyBitmap   = errors.New("bitmap has no pixels")
)

// Snapshot is an immutable copy of the store used for rendering.
// Texts are ordered by ascending z-order.
type Snapshot struct {
	Template *domain.Template
	Photo    *domain.PhotoLayer
	Texts    []domain.TextLayer
	Revision uint64
}

// Store is the single mutable resource of an editing session. Every
// operation is atomic from the caller's perspective; numeric input is
// clamped, never rejected.
//
// texts is kept sorted by z-order and the ZOrder of each layer always equals
// its index, which keeps the z-order sequence dense.
type Store struct {
	mu       sync.RWMutex
	template *domain.Template
	photo    *domain.PhotoLayer
	texts    []domain.TextLayer
	selected string
	revision uint64
	newID    func() string
}

// NewStore returns an empty store with no template.
func NewStore() *Store {
	return &Store{newID: func() string { return "txt-" + uuid.NewString() }}
}

// Snapshot returns a deep copy of the renderable state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Revision: s.revision, Texts: append([]domain.TextLayer(nil), s.texts...)}
	if s.template != nil {
		t := *s.template
		snap.Template = &t
	}
	if s.photo != nil {
		p := *s.photo
		snap.Photo = &p
	}
	return snap
}

// Revision increases with every successful mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Template returns a copy of the current template, or nil.
func (s *Store) Template() *domain.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.template == nil {
		return nil
	}
	t := *s.template
	return &t
}

// SetTemplate replaces the template and resets the photo and text layers to
// the template defaults.
func (s *Store) SetTemplate(t domain.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = &t
	s.photo = nil
	s.texts = []domain.TextLayer{domain.DefaultTextLayer()}
	s.selected = domain.MainTextLayerID
	s.revision++
}

// SetPhoto installs a new photo centered at scale 1.0.
func (s *Store) SetPhoto(bmp domain.Bitmap) error {
	if bmp.Empty() {
		return ErrEmptyBitmap
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photo = &domain.PhotoLayer{
		Bitmap:  bmp,
		CenterX: domain.DefaultPhotoX,
		CenterY: domain.DefaultPhotoY,
		Scale:   domain.DefaultPhotoScale,
	}
	s.revision++
	return nil
}

// ClearPhoto removes the photo layer.
func (s *Store) ClearPhoto() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo != nil {
		s.photo = nil
		s.revision++
	}
}

// Photo returns a copy of the photo layer, or nil.
func (s *Store) Photo() *domain.PhotoLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.photo == nil {
		return nil
	}
	p := *s.photo
	return &p
}

// UpdatePhotoTransform merges patch into the photo transform.
func (s *Store) UpdatePhotoTransform(patch domain.PhotoPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return ErrNoPhoto
	}
	if patch.CenterX != nil {
		s.photo.CenterX = geometry.Clamp01(*patch.CenterX)
	}
	if patch.CenterY != nil {
		s.photo.CenterY = geometry.Clamp01(*patch.CenterY)
	}
	if patch.Scale != nil {
		s.photo.Scale = clampScale(*patch.Scale)
	}
	s.revision++
	return nil
}

// ZoomPhoto steps the photo scale by delta, rounded to three decimals.
func (s *Store) ZoomPhoto(delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return ErrNoPhoto
	}
	s.photo.Scale = clampScale(geometry.FloatRound(s.photo.Scale+delta, 3))
	s.revision++
	return nil
}

// ResetPhoto recenters the photo at scale 1.0, keeping its bitmap.
func (s *Store) ResetPhoto() error {
	one := domain.DefaultPhotoScale
	x, y := domain.DefaultPhotoX, domain.DefaultPhotoY
	return s.UpdatePhotoTransform(domain.PhotoPatch{CenterX: &x, CenterY: &y, Scale: &one})
}

func clampScale(v float64) float64 {
	return geometry.Clamp(v, domain.MinPhotoScale, domain.MaxPhotoScale)
}

// Texts returns the text layers ordered by z-order.
func (s *Store) Texts() []domain.TextLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TextLayer(nil), s.texts...)
}

// Text returns a copy of one text layer.
func (s *Store) Text(id string) (domain.TextLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.texts[i], true
	}
	return domain.TextLayer{}, false
}

// AddTextLayer appends a new layer on top, selects it and returns its id.
func (s *Store) AddTextLayer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := domain.NewTextLayer()
	l.ID = s.newID()
	l.ZOrder = len(s.texts)
	s.texts = append(s.texts, l)
	s.selected = l.ID
	s.revision++
	return l.ID
}

// UpdateTextLayer merges patch into the layer. Positions are clamped to
// [0,1] and the font size to its supported range. An unsupported font
// family rejects the whole patch.
func (s *Store) UpdateTextLayer(id string, patch domain.TextPatch) error {
	if patch.FontFamily != nil && !patch.FontFamily.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFamily, *patch.FontFamily)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	l := &s.texts[i]
	if patch.Text != nil {
		l.Text = *patch.Text
	}
	if patch.X != nil {
		l.X = geometry.Clamp01(*patch.X)
	}
	if patch.Y != nil {
		l.Y = geometry.Clamp01(*patch.Y)
	}
	if patch.FontFamily != nil {
		l.FontFamily = *patch.FontFamily
	}
	if patch.Color != nil {
		l.Color = *patch.Color
	}
	if patch.FontSizeFraction != nil {
		l.FontSizeFraction = geometry.Clamp(*patch.FontSizeFraction, domain.MinFontSizeFraction, domain.MaxFontSizeFraction)
	}
	s.revision++
	return nil
}

// RemoveTextLayer deletes a layer and renumbers the rest. If the removed
// layer was selected, selection moves to the nearest remaining index.
func (s *Store) RemoveTextLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	s.texts = append(s.texts[:i], s.texts[i+1:]...)
	s.renumberLocked()
	if s.selected == id {
		s.selected = ""
		if n := len(s.texts); n > 0 {
			s.selected = s.texts[min(i, n-1)].ID
		}
	}
	s.revision++
	return nil
}

// ReorderTextLayer moves a layer to newZ, shifting the layers in between.
// newZ is clamped to [0, N-1].
func (s *Store) ReorderTextLayer(id string, newZ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	newZ = max(0, min(newZ, len(s.texts)-1))
	l := s.texts[i]
	rest := append(s.texts[:i:i], s.texts[i+1:]...)
	out := make([]domain.TextLayer, 0, len(s.texts))
	out = append(out, rest[:newZ]...)
	out = append(out, l)
	out = append(out, rest[newZ:]...)
	s.texts = out
	s.renumberLocked()
	s.revision++
	return nil
}

// Select sets the editing focus. Selection is UI state: it does not change
// the revision and is not part of the snapshot.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	s.selected = id
	return nil
}

// Selected returns the id of the selected text layer, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *Store) indexLocked(id string) int {
	for i := range s.texts {
		if s.texts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) renumberLocked() {
	for i := range s.texts {
		s.texts[i].ZOrder = i
	}
}
