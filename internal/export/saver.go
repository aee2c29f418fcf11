/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Saver is the download sink for an encoded card.
type Saver interface {
	Save(ctx context.Context, r Result) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, r Result) error

func (f SaverFunc) Save(ctx context.Context, r Result) error { return f(ctx, r) }

// DirSaver writes results into Dir under their suggested file name,
// replacing an existing file atomically.
type DirSaver struct {
	Dir string
	// Name overrides the file name when set.
	Name string
}

// Path returns where r would be written.
func (d DirSaver) Path(r Result) string {
	name := r.Filename
	if d.Name != "" {
		name = d.Name
	}
	return filepath.Join(d.Dir, name)
}

func (d DirSaver) Save(ctx context.Context, r Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := d.Path(r)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	tmp := dst + ".tmp"
	if err := writeFileSync(tmp, r.Data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", dst, err)
	}
	return nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
