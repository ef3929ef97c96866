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
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// maxCopyFanOut bounds concurrent file copies during the external
// mirror fallback (spec §4.8 "External linking": "the two subtree
// copies may proceed in parallel"; within each subtree the individual
// file copies are likewise safe to parallelize since destinations
// never collide).
const maxCopyFanOut = 16

// linkOrCopy hard-links src to dst when both live on the real OS
// filesystem, falling back to a byte copy on any failure (spec §4.8:
// "attempt hard-link... on failure, fall back to copy"; §7: "Link-phase
// hard-link failures degrade silently to copy."). Against a non-OS
// afero.Fs (tests), hard links aren't meaningful, so it copies
// directly.
func (o *Orchestrator) linkOrCopy(src, dst string) error {
	if _, ok := o.fs.(*afero.OsFs); ok {
		if err := os.Link(src, dst); err == nil {
			return nil
		}
	}
	return o.copyFile(src, dst)
}

func (o *Orchestrator) copyFile(src, dst string) error {
	in, err := o.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := o.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, o.filePerm)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}

// copyTree recursively copies every file under src to the matching
// relative path under dst, in parallel across files (spec §4.8
// "External linking" copy-only path).
func (o *Orchestrator) copyTree(ctx context.Context, src, dst string) error {
	exists, err := afero.DirExists(o.fs, src)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCopyFanOut)

	err = walkTree(o.fs, src, func(path string, info os.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if err := o.fs.MkdirAll(filepath.Dir(target), o.dirPerm); err != nil {
				return err
			}
			return o.copyFile(path, target)
		})
		return nil
	})
	if err != nil {
		return err
	}
	return g.Wait()
}
