/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 4 {
		t.Fatalf("len = %d", c.Len())
	}
	first, ok := c.First()
	if !ok || first.ID != "template1" || first.Name != "Starry Night" {
		t.Fatalf("first = %+v", first)
	}
	e, err := c.Lookup("template3")
	if err != nil || e.Name != "Orange Blossoms" {
		t.Fatalf("lookup = %+v, %v", e, err)
	}
	if _, err := c.Lookup("nope"); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("unknown err = %v", err)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not an array":   `{"id":"a","name":"A","img":"/a.png"}`,
		"missing img":    `[{"id":"a","name":"A"}]`,
		"empty id":       `[{"id":"","name":"A","img":"/a.png"}]`,
		"extra field":    `[{"id":"a","name":"A","img":"/a.png","w":3}]`,
		"duplicate id":   `[{"id":"a","name":"A","img":"/a.png"},{"id":"a","name":"B","img":"/b.png"}]`,
		"not even json":  `[{`,
		"wrong type img": `[{"id":"a","name":"A","img":7}]`,
	}
	for name, in := range cases {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrInvalidCatalog) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(p, []byte(`[{"id":"gold","name":"Gold","img":"/templates/gold.png"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entries := c.Entries()
	entries[0].ID = "mutated"
	if e, _ := c.First(); e.ID != "gold" {
		t.Fatalf("Entries leaked internal slice: %+v", e)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmptyCatalog(t *testing.T) {
	c, err := Parse([]byte(`[]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := c.First(); ok {
		t.Fatal("empty catalog has a first entry")
	}
}
