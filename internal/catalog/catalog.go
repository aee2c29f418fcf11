/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package catalog reads the list of selectable templates.
//
// A catalog is a JSON array of {"id", "name", "img"} objects; img is an asset
// reference handed to the asset resolver.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed default.json
var defaultJSON []byte

var (
	ErrInvalidCatalog = errors.New("invalid template catalog")
	ErrUnknownID      = errors.New("unknown template id")
)

// Entry is one selectable template.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Img  string `json:"img"`
}

// Catalog is an ordered, immutable list of entries.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// Parse validates data against the catalog schema and decodes it. Ids must
// be unique.
func Parse(data []byte) (*Catalog, error) {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(msgs, "; "))
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	c := &Catalog{entries: entries, byID: make(map[string]int, len(entries))}
	for i, e := range entries {
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, e.ID)
		}
		c.byID[e.ID] = i
	}
	return c, nil
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultJSON)
	if err != nil {
		panic(err)
	}
	return c
}

// Entries returns a copy of the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return append([]Entry(nil), c.entries...)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Lookup finds an entry by id.
func (c *Catalog) Lookup(id string) (Entry, error) {
	if c != nil {
		if i, ok := c.byID[id]; ok {
			return c.entries[i], nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrUnknownID, id)
}

// First returns the entry selected when the editor opens.
func (c *Catalog) First() (Entry, bool) {
	if c.Len() == 0 {
		return Entry{}, false
	}
	return c.entries[0], true
}
