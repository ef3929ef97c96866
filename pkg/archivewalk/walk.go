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

// Package archivewalk recursively enumerates every (logical-path, bytes)
// pair reachable from an archive blob (spec §4.3), descending into
// nested archives that look like further containers. Fan-out across
// sibling entries at each level uses an errgroup.Group the way the
// teacher bounds concurrency in its own indexing pipeline
// (pkg/database/mediadb/mediadb.go), rather than spawning one goroutine
// per entry unbounded.
package archivewalk

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/merrors"
)

// Node is one (logical-path, bytes) pair yielded by Walk, at any
// nesting depth. LogicalPath chains nested archive names with "//" so
// downstream reporting can reconstruct the nesting (spec §4.3).
type Node struct {
	LogicalPath string
	Data        []byte
}

// maxFanOut bounds concurrent sibling decodes per archive level.
const maxFanOut = 8

// minDescendLen is the length threshold below which a blob is never
// treated as a nested archive even if its header matches (spec §8:
// "An archive whose first bytes match the magic but whose length is
// ≤ 64 is not descended.").
const minDescendLen = 64

// Walk decodes data as an archive rooted at logicalPath and returns
// every entry reachable from it, including entries inside nested
// archives that satisfy the recursion conditions of spec §4.3. A
// sub-entry that looks like an archive but fails to decode is reported
// as a scoped warning and kept as a leaf instead of aborting its
// siblings.
func Walk(ctx context.Context, logicalPath string, data []byte, arc codec.ArchiveCodec) ([]Node, []merrors.Warning, error) {
	archive, err := arc.Decode(data)
	if err != nil {
		return nil, nil, merrors.New(merrors.KindCodec, logicalPath, err)
	}

	type result struct {
		idx      int
		nodes    []Node
		warnings []merrors.Warning
	}

	entries := archive.Entries
	results := make([]result, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			childPath := logicalPath + "//" + entry.Name
			node := Node{LogicalPath: childPath, Data: entry.Data}

			if !ShouldDescend(entry.Name, entry.Data) {
				results[i] = result{idx: i, nodes: []Node{node}}
				return nil
			}

			children, warnings, err := Walk(gctx, childPath, entry.Data, arc)
			if err != nil {
				// A malformed nested archive is scoped to this child;
				// keep it as an opaque leaf and record a warning rather
				// than aborting sibling enumeration (spec §4.3).
				results[i] = result{
					idx:   i,
					nodes: []Node{node},
					warnings: []merrors.Warning{{
						Path: childPath,
						Kind: merrors.KindCodec,
						Msg:  "archive-decode error, kept as opaque leaf: " + err.Error(),
					}},
				}
				return nil
			}
			results[i] = result{idx: i, nodes: append([]Node{node}, children...), warnings: warnings}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, merrors.New(merrors.KindIO, logicalPath, err)
	}

	var nodes []Node
	var warnings []merrors.Warning
	for _, r := range results {
		nodes = append(nodes, r.nodes...)
		warnings = append(warnings, r.warnings...)
	}
	return nodes, warnings, nil
}

// ShouldDescend applies the three recursion conditions of spec §4.3
// (length, magic, and the .ssarc sentinel exclusion). Exported so other
// components that recurse into nested archives outside of Walk itself —
// the Pack Merger's own nested-archive selection (spec §4.7 step 2) —
// apply the exact same guard instead of re-deriving it.
func ShouldDescend(name string, data []byte) bool {
	if len(data) <= minDescendLen {
		return false
	}
	if strings.HasSuffix(name, "ssarc") {
		return false
	}
	return codec.LooksLikeArchive(data)
}
