// Mod Merge Core
// Copyright (c) 2026 Mod Merge Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Mod Merge Core.
//
// Mod Merge Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Mod Merge Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Mod Merge Core.  If not, see <http://www.gnu.org/licenses/>.

package stage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/modforge/mergecore/pkg/merrors"
)

// maxLinkFanOut bounds concurrent hard-link-or-copy work within a
// single mod layer (spec §5: "Parallelism is only across files within
// one mod.").
const maxLinkFanOut = 16

// linkLayer enumerates every file under layer and hard-links or copies
// the ones that survive the skip filter into dest, in parallel (spec
// §4.8 step 5, §5).
func (o *Orchestrator) linkLayer(ctx context.Context, layer, dest string, report *merrors.Report, wins map[string]string) error {
	type job struct {
		rel string
		src string
	}
	var jobs []job

	err := walkTree(o.fs, layer, func(path string, info os.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(layer, path)
		if err != nil {
			return merrors.New(merrors.KindIO, path, err)
		}
		rel = filepath.ToSlash(rel)
		if shouldSkipLinkPath(rel) {
			return nil
		}
		dst := filepath.Join(dest, rel)
		exists, err := afero.Exists(o.fs, dst)
		if err != nil {
			return merrors.New(merrors.KindIO, dst, err)
		}
		if exists {
			// First writer wins (spec §5); a higher-priority layer,
			// processed earlier, already claimed this destination.
			return nil
		}
		jobs = append(jobs, job{rel: rel, src: path})
		return nil
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLinkFanOut)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			dst := filepath.Join(dest, j.rel)
			if err := o.fs.MkdirAll(filepath.Dir(dst), o.dirPerm); err != nil {
				return merrors.New(merrors.KindIO, dst, err)
			}
			if err := o.linkOrCopy(j.src, dst); err != nil {
				return merrors.New(merrors.KindIO, dst, err)
			}
			report.AddTouched(dst)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, j := range jobs {
		wins[j.rel] = layer
	}
	return nil
}

// shouldSkipLinkPath implements spec §4.8 step 5's per-file skip
// conditions on a slash-separated relative path: under logs/, options/,
// or meta/; a .json extension; or a top-level file whose extension
// isn't .txt. The "destination already exists" condition is checked by
// the caller since it needs dest, not rel, to answer.
func shouldSkipLinkPath(rel string) bool {
	if strings.HasPrefix(rel, "logs/") || strings.HasPrefix(rel, "options/") || strings.HasPrefix(rel, "meta/") {
		return true
	}
	if strings.EqualFold(filepath.Ext(rel), ".json") {
		return true
	}
	if !strings.Contains(rel, "/") && !strings.EqualFold(filepath.Ext(rel), ".txt") {
		// a top-level file (no directory component) that isn't .txt
		return true
	}
	return false
}

// walkTree enumerates every entry under root and calls fn for each. On
// the real OS filesystem it uses fastwalk (spec's "Fast directory
// walking" ambient-stack choice, the same library the teacher uses for
// its own media scanner); against any other afero.Fs (afero.MemMapFs in
// tests) it falls back to afero.Walk, since fastwalk only understands
// real OS paths.
func walkTree(fsys afero.Fs, root string, fn func(path string, info os.FileInfo) error) error {
	if _, ok := fsys.(*afero.OsFs); ok {
		conf := &fastwalk.Config{Follow: true}
		return fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			return fn(path, info)
		})
	}

	exists, err := afero.DirExists(fsys, root)
	if err != nil {
		return merrors.New(merrors.KindIO, root, err)
	}
	if !exists {
		return nil
	}
	return afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return fn(path, info)
	})
}
